package models

import (
	"errors"
	"strings"
)

// ErrorKind classifies session failures. Kinds are errors themselves so
// callers can test with errors.Is(err, models.ErrInvalidCredentials).
type ErrorKind string

const (
	ErrInvalidCredentials ErrorKind = "invalid credentials"
	ErrNetwork            ErrorKind = "network error"
	ErrServer             ErrorKind = "server error"
	ErrValidation         ErrorKind = "validation error"
	ErrPasswordMismatch   ErrorKind = "password mismatch"
	ErrMalformedResponse  ErrorKind = "malformed response"
	ErrUnknown            ErrorKind = "unknown error"
)

func (k ErrorKind) Error() string {
	return string(k)
}

// LoginError is returned by a failed login. Message is safe to show.
type LoginError struct {
	Kind       ErrorKind
	Message    string
	StatusCode int
	Err        error
}

func (e *LoginError) Error() string {
	if len(e.Message) > 0 {
		return e.Message
	}
	return e.Kind.Error()
}

func (e *LoginError) Unwrap() error {
	return e.Err
}

func (e *LoginError) Is(target error) bool {
	kind, ok := target.(ErrorKind)
	return ok && kind == e.Kind
}

// RegisterError is returned by a failed registration. Messages holds one
// entry per rejected field.
type RegisterError struct {
	Kind       ErrorKind
	Messages   []string
	Fields     map[string][]string
	StatusCode int
	Err        error
}

func (e *RegisterError) Error() string {
	if len(e.Messages) > 0 {
		return strings.Join(e.Messages, " ")
	}
	return e.Kind.Error()
}

func (e *RegisterError) Unwrap() error {
	return e.Err
}

func (e *RegisterError) Is(target error) bool {
	kind, ok := target.(ErrorKind)
	return ok && kind == e.Kind
}

// KindOf extracts the ErrorKind of a session error, or ErrUnknown.
func KindOf(err error) ErrorKind {
	var loginErr *LoginError
	if errors.As(err, &loginErr) {
		return loginErr.Kind
	}
	var registerErr *RegisterError
	if errors.As(err, &registerErr) {
		return registerErr.Kind
	}
	var kind ErrorKind
	if errors.As(err, &kind) {
		return kind
	}
	return ErrUnknown
}
