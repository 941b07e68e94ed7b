// Package gate decides whether a request for a protected location may
// proceed given the current session state.
package gate

import (
	"net/url"
	"strings"

	"github.com/visarisk/agent/internal/models"
)

const (
	DefaultLoginPath   = "/login"
	DefaultDefaultPath = "/"
)

type Outcome int

const (
	// Suspend means the state is not settled yet. Render a neutral view and
	// ask again later, never redirect.
	Suspend Outcome = iota
	Allow
	RedirectToLogin
	RedirectToDefault
)

func (o Outcome) String() string {
	switch o {
	case Suspend:
		return "suspend"
	case Allow:
		return "allow"
	case RedirectToLogin:
		return "redirect_to_login"
	case RedirectToDefault:
		return "redirect_to_default"
	default:
		return "invalid"
	}
}

type Decision struct {
	Outcome Outcome
	// Location is where to send the user for either redirect outcome.
	Location string
	// ReturnTo is the originally requested location for RedirectToLogin.
	ReturnTo string
}

type Gate struct {
	LoginPath   string
	DefaultPath string
	// RequireRoleClaim denies role restricted locations to identities
	// without a role instead of letting them through.
	RequireRoleClaim bool
}

func New(loginPath, defaultPath string, requireRoleClaim bool) *Gate {
	if len(loginPath) == 0 {
		loginPath = DefaultLoginPath
	}
	if len(defaultPath) == 0 {
		defaultPath = DefaultDefaultPath
	}
	return &Gate{
		LoginPath:        loginPath,
		DefaultPath:      defaultPath,
		RequireRoleClaim: requireRoleClaim,
	}
}

// Decide maps the session state and the roles required by the requested
// location onto an outcome. It has no side effects.
func (g *Gate) Decide(state models.SessionState, requested string, required ...models.Role) Decision {

	switch state.Kind {
	case models.StateUnauthenticated:
		return Decision{
			Outcome:  RedirectToLogin,
			Location: g.LoginPath,
			ReturnTo: SafeReturnTo(requested),
		}
	case models.StateAuthenticated:
		// handled below
	default:
		return Decision{Outcome: Suspend}
	}

	if len(required) == 0 {
		return Decision{Outcome: Allow}
	}

	identity := state.Identity

	if !identity.HasRole() {
		if g.RequireRoleClaim {
			return Decision{Outcome: RedirectToDefault, Location: g.DefaultPath}
		}
		return Decision{Outcome: Allow}
	}

	if identity.RoleIn(required...) {
		return Decision{Outcome: Allow}
	}

	return Decision{Outcome: RedirectToDefault, Location: g.DefaultPath}
}

// SafeReturnTo accepts only a local absolute path, so a return location
// can never send the user to another site. Anything else is "".
func SafeReturnTo(location string) string {

	location = strings.TrimSpace(location)

	if !strings.HasPrefix(location, "/") ||
		strings.HasPrefix(location, "//") ||
		strings.HasPrefix(location, "/\\") ||
		strings.ContainsAny(location, "\r\n") {
		return ""
	}

	parsed, err := url.Parse(location)
	if err != nil || parsed.IsAbs() || len(parsed.Host) > 0 {
		return ""
	}

	return location
}
