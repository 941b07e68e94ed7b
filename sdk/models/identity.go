// Package models provides public SDK types for the Visarisk agent.
// These types are re-exported from the internal models package so that
// other programs can read the session the agent publishes.
package models

import internal "github.com/visarisk/agent/internal/models"

// Role is the kind of account signed in: student or parent.
type Role = internal.Role

const (
	RoleUnknown = internal.RoleUnknown
	RoleStudent = internal.RoleStudent
	RoleParent  = internal.RoleParent
)

// Identity is who the current session belongs to.
// See internal/models.Identity for full documentation.
type Identity = internal.Identity

// ParseRole maps a claim value onto a known Role.
var ParseRole = internal.ParseRole
