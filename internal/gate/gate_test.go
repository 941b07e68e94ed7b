package gate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/visarisk/agent/internal/models"
)

func authenticated(role models.Role) models.SessionState {
	return models.AuthenticatedState(&models.Identity{
		Authenticated: true,
		Role:          role,
	})
}

func TestGate_Decide(t *testing.T) {
	g := New("/login", "/", false)

	tests := []struct {
		name     string
		state    models.SessionState
		required []models.Role
		expected Decision
	}{
		{
			name:     "unknown suspends",
			state:    models.UnknownState(),
			expected: Decision{Outcome: Suspend},
		},
		{
			name:     "unknown suspends with roles",
			state:    models.UnknownState(),
			required: []models.Role{models.RoleStudent},
			expected: Decision{Outcome: Suspend},
		},
		{
			name:     "pending suspends",
			state:    models.PendingState(),
			required: []models.Role{models.RoleStudent},
			expected: Decision{Outcome: Suspend},
		},
		{
			name:     "unauthenticated redirects to login",
			state:    models.UnauthenticatedState(),
			required: []models.Role{models.RoleParent},
			expected: Decision{Outcome: RedirectToLogin, Location: "/login", ReturnTo: "/trends?week=3"},
		},
		{
			name:     "authenticated without requirement",
			state:    authenticated(models.RoleStudent),
			expected: Decision{Outcome: Allow},
		},
		{
			name:     "matching role",
			state:    authenticated(models.RoleStudent),
			required: []models.Role{models.RoleStudent},
			expected: Decision{Outcome: Allow},
		},
		{
			name:     "one of several roles",
			state:    authenticated(models.RoleParent),
			required: []models.Role{models.RoleStudent, models.RoleParent},
			expected: Decision{Outcome: Allow},
		},
		{
			name:     "wrong role",
			state:    authenticated(models.RoleParent),
			required: []models.Role{models.RoleStudent},
			expected: Decision{Outcome: RedirectToDefault, Location: "/"},
		},
		{
			name:     "missing role is allowed",
			state:    authenticated(models.RoleUnknown),
			required: []models.Role{models.RoleStudent},
			expected: Decision{Outcome: Allow},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, g.Decide(tt.state, "/trends?week=3", tt.required...))
		})
	}
}

func TestGate_RequireRoleClaim(t *testing.T) {
	g := New("/login", "/home", true)

	decision := g.Decide(authenticated(models.RoleUnknown), "/dashboard/student", models.RoleStudent)
	assert.Equal(t, Decision{Outcome: RedirectToDefault, Location: "/home"}, decision)

	// Unrestricted locations stay open.
	decision = g.Decide(authenticated(models.RoleUnknown), "/assessment")
	assert.Equal(t, Allow, decision.Outcome)
}

func TestGate_Defaults(t *testing.T) {
	g := New("", "", false)
	assert.Equal(t, DefaultLoginPath, g.LoginPath)
	assert.Equal(t, DefaultDefaultPath, g.DefaultPath)
}

func TestGate_UnauthenticatedDropsForeignReturn(t *testing.T) {
	g := New("/login", "/", false)
	decision := g.Decide(models.UnauthenticatedState(), "https://evil.example.com/")
	assert.Equal(t, RedirectToLogin, decision.Outcome)
	assert.Empty(t, decision.ReturnTo)
}

func TestSafeReturnTo(t *testing.T) {
	tests := []struct {
		location string
		expected string
	}{
		{"/dashboard/student", "/dashboard/student"},
		{"/trends?week=3", "/trends?week=3"},
		{" /assessment ", "/assessment"},
		{"", ""},
		{"dashboard", ""},
		{"//evil.example.com", ""},
		{"/\\evil.example.com", ""},
		{"https://evil.example.com/x", ""},
		{"/x\r\nSet-Cookie: a=b", ""},
	}

	for _, tt := range tests {
		t.Run(tt.location, func(t *testing.T) {
			assert.Equal(t, tt.expected, SafeReturnTo(tt.location))
		})
	}
}

func TestOutcome_String(t *testing.T) {
	assert.Equal(t, "suspend", Suspend.String())
	assert.Equal(t, "redirect_to_login", RedirectToLogin.String())
}
