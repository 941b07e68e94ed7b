// Package identity derives who the current user is from stored credential
// material.
//
// Access tokens are decoded, not verified: the agent never holds the
// backend signing key, and the backend checks every request it receives
// anyway. A resolved Identity is therefore a display and routing hint,
// not proof.
package identity

import (
	"strings"
	"time"
	"unicode"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
	"github.com/visarisk/agent/internal/models"
)

const (
	DefaultRoleClaim  = "role"
	DefaultEmailClaim = "email"
)

// Resolver maps credential material to an identity. A nil result means
// no usable session.
type Resolver interface {
	Resolve(credential *models.Credential) *models.Identity
}

type ClaimsResolver struct {
	RoleClaim  string
	EmailClaim string

	// RejectExpired resolves tokens whose exp claim has passed to nil.
	RejectExpired bool

	now    func() time.Time
	parser *jwt.Parser
}

func NewClaimsResolver(roleClaim, emailClaim string, rejectExpired bool) *ClaimsResolver {
	if len(roleClaim) == 0 {
		roleClaim = DefaultRoleClaim
	}
	if len(emailClaim) == 0 {
		emailClaim = DefaultEmailClaim
	}
	return &ClaimsResolver{
		RoleClaim:     roleClaim,
		EmailClaim:    emailClaim,
		RejectExpired: rejectExpired,
		now:           time.Now,
		parser:        jwt.NewParser(),
	}
}

func (r *ClaimsResolver) Resolve(credential *models.Credential) *models.Identity {

	if credential.IsZero() {
		return nil
	}

	token := credential.AccessToken

	if !usableAsBearer(token) {
		logrus.Warnln("Stored access token cannot be used as a bearer credential")
		return nil
	}

	identity := &models.Identity{
		Authenticated: true,
	}

	// Opaque tokens carry no claims but are still a session
	if strings.Count(token, ".") != 2 {
		return identity
	}

	// A dotted opaque handle is still a session, just one without claims
	claims := jwt.MapClaims{}
	if _, _, err := r.parser.ParseUnverified(token, claims); err != nil {
		logrus.WithError(err).Debugln("Access token carries no readable claims")
		return identity
	}

	identity.Role = models.ParseRole(stringClaim(claims, r.RoleClaim))
	identity.Email = stringClaim(claims, r.EmailClaim)

	if subject, err := claims.GetSubject(); err == nil {
		identity.Subject = subject
	}

	if expiry, err := claims.GetExpirationTime(); err == nil && expiry != nil {
		expiresAt := expiry.UTC()
		identity.ExpiresAt = &expiresAt

		if r.RejectExpired && r.now().After(expiresAt) {
			logrus.WithField("expiresAt", expiresAt).Infoln("Stored access token has expired")
			return nil
		}
	}

	return identity
}

func stringClaim(claims jwt.MapClaims, name string) string {
	value, ok := claims[name]
	if !ok {
		return ""
	}
	str, ok := value.(string)
	if !ok {
		return ""
	}
	return str
}

func usableAsBearer(token string) bool {
	for _, r := range token {
		if unicode.IsSpace(r) || unicode.IsControl(r) || r > unicode.MaxASCII {
			return false
		}
	}
	return true
}
