package models

import internal "github.com/visarisk/agent/internal/models"

// StateKind is the phase a session is in.
type StateKind = internal.StateKind

const (
	StateUnknown         = internal.StateUnknown
	StateUnauthenticated = internal.StateUnauthenticated
	StateAuthenticated   = internal.StateAuthenticated
	StatePending         = internal.StatePending
)

// SessionState is a snapshot of the session published by the agent.
type SessionState = internal.SessionState

// SessionStateResponse is the JSON body of GET /api/v1/session.
type SessionStateResponse = internal.SessionStateResponse

// Credential is the token pair the agent keeps for the signed in account.
type Credential = internal.Credential

// RegistrationProfile is the sign up form.
type RegistrationProfile = internal.RegistrationProfile
