package models

import (
	"slices"
	"strings"
	"time"
)

type Role string

const (
	RoleUnknown Role = ""
	RoleStudent Role = "student"
	RoleParent  Role = "parent"
)

// ParseRole maps a claim value onto a known role. Anything unrecognised
// is RoleUnknown.
func ParseRole(value string) Role {
	switch Role(strings.ToLower(strings.TrimSpace(value))) {
	case RoleStudent:
		return RoleStudent
	case RoleParent:
		return RoleParent
	default:
		return RoleUnknown
	}
}

func (r Role) IsKnown() bool {
	return r != RoleUnknown
}

func (r Role) String() string {
	if r == RoleUnknown {
		return "unknown"
	}
	return string(r)
}

// DashboardPath is where a user with this role lands after login.
func (r Role) DashboardPath() string {
	switch r {
	case RoleParent:
		return "/dashboard/parent"
	default:
		return "/dashboard/student"
	}
}

// Identity is derived from the stored credential. It is never persisted.
type Identity struct {
	Authenticated bool       `json:"authenticated"`
	Role          Role       `json:"role,omitempty"`
	Email         string     `json:"email,omitempty"`
	Subject       string     `json:"subject,omitempty"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
}

func (i *Identity) HasRole() bool {
	return i != nil && i.Role.IsKnown()
}

// RoleIn reports whether the identity role is one of roles.
func (i *Identity) RoleIn(roles ...Role) bool {
	if i == nil {
		return false
	}
	return slices.Contains(roles, i.Role)
}

func (i *Identity) GetName() string {
	if i == nil {
		return "Unknown"
	}
	if len(i.Email) > 0 {
		return i.Email
	}
	if len(i.Subject) > 0 {
		return i.Subject
	}
	return "Signed in"
}

func (i *Identity) Clone() *Identity {
	if i == nil {
		return nil
	}
	out := *i
	if i.ExpiresAt != nil {
		expiry := *i.ExpiresAt
		out.ExpiresAt = &expiry
	}
	return &out
}
