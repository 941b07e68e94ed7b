package models

import internal "github.com/visarisk/agent/internal/models"

// ErrorKind classifies login and registration failures.
type ErrorKind = internal.ErrorKind

type LoginError = internal.LoginError

type RegisterError = internal.RegisterError

// KindOf returns the ErrorKind carried by err.
var KindOf = internal.KindOf
