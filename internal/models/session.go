package models

import (
	"strings"
	"time"
)

// Credential is the material issued by the backend after a successful login.
// Both values are opaque to the agent.
type Credential struct {
	AccessToken  string `json:"access_token" yaml:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty" yaml:"refresh_token,omitempty"`
}

func (c *Credential) IsZero() bool {
	return c == nil || len(strings.TrimSpace(c.AccessToken)) == 0
}

// TokenRequest is the body sent to the credential-exchange endpoint.
type TokenRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// TokenResponse accepts both the camelCase layout and the backend's
// native short field names.
type TokenResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	Access       string `json:"access"`
	Refresh      string `json:"refresh"`
}

func (t TokenResponse) ToCredential() Credential {
	access := t.AccessToken
	if len(access) == 0 {
		access = t.Access
	}
	refresh := t.RefreshToken
	if len(refresh) == 0 {
		refresh = t.Refresh
	}
	return Credential{
		AccessToken:  access,
		RefreshToken: refresh,
	}
}

// StoredSession is the durable record kept on the users local system.
type StoredSession struct {
	Version   string      `json:"version" yaml:"version"`
	Timestamp time.Time   `json:"timestamp" yaml:"timestamp"`
	Session   *Credential `json:"session,omitempty" yaml:"session,omitempty"`
}

// LogoutRequest is sent to the optional server side logout endpoint.
type LogoutRequest struct {
	Refresh string `json:"refresh"`
}

// Profile is the optional side channel identity returned by the backend.
type Profile struct {
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Role      string `json:"role"`
}
