package models

import "fmt"

type StateKind int

const (
	// StateUnknown is the initial state before persistence was consulted.
	StateUnknown StateKind = iota
	StateUnauthenticated
	StateAuthenticated
	// StatePending brackets an in-flight login or logout.
	StatePending
)

func (k StateKind) String() string {
	switch k {
	case StateUnknown:
		return "unknown"
	case StateUnauthenticated:
		return "unauthenticated"
	case StateAuthenticated:
		return "authenticated"
	case StatePending:
		return "pending"
	default:
		return fmt.Sprintf("state(%d)", int(k))
	}
}

// SessionState is the published value describing who is logged in.
// Identity is only set for StateAuthenticated.
type SessionState struct {
	Kind     StateKind `json:"-"`
	Identity *Identity `json:"identity,omitempty"`
}

func UnknownState() SessionState {
	return SessionState{Kind: StateUnknown}
}

func UnauthenticatedState() SessionState {
	return SessionState{Kind: StateUnauthenticated}
}

func PendingState() SessionState {
	return SessionState{Kind: StatePending}
}

func AuthenticatedState(identity *Identity) SessionState {
	return SessionState{
		Kind:     StateAuthenticated,
		Identity: identity.Clone(),
	}
}

func (s SessionState) IsAuthenticated() bool {
	return s.Kind == StateAuthenticated && s.Identity != nil && s.Identity.Authenticated
}

// IsSettled is false while the state is Unknown or Pending. Access
// decisions must wait for a settled state.
func (s SessionState) IsSettled() bool {
	return s.Kind == StateAuthenticated || s.Kind == StateUnauthenticated
}

// Clone returns a copy that shares nothing with s.
func (s SessionState) Clone() SessionState {
	return SessionState{
		Kind:     s.Kind,
		Identity: s.Identity.Clone(),
	}
}

func (s SessionState) String() string {
	if s.Kind == StateAuthenticated && s.Identity != nil {
		return fmt.Sprintf("authenticated(%s, role=%s)", s.Identity.GetName(), s.Identity.Role)
	}
	return s.Kind.String()
}

// SessionStateResponse is the JSON view of the current state.
type SessionStateResponse struct {
	State    string    `json:"state"`
	Identity *Identity `json:"identity,omitempty"`
}

func (s SessionState) ToResponse() SessionStateResponse {
	return SessionStateResponse{
		State:    s.Kind.String(),
		Identity: s.Identity.Clone(),
	}
}
