package daemon

import (
	"crypto/subtle"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/visarisk/agent/internal/common"
)

const (
	csrfSessionKey   = "_visarisk_csrf"
	logoutSessionKey = "_visarisk_logout"
	csrfFormField    = "csrf_token"
	logoutFormField  = "logout_token"
	csrfTokenLength  = 43
)

// setCSRFToken issues a fresh token for the next form submission and keeps
// it in the cookie session.
func setCSRFToken(c *gin.Context) (string, error) {
	token, err := common.GenerateSecureRandomString(csrfTokenLength)
	if err != nil {
		return "", err
	}

	session := sessions.Default(c)
	session.Set(csrfSessionKey, token)
	if err := session.Save(); err != nil {
		return "", err
	}

	return token, nil
}

// validateAndClearCSRFToken checks the submitted token. Tokens are single
// use and cleared whatever the outcome.
func validateAndClearCSRFToken(c *gin.Context, token string) bool {
	session := sessions.Default(c)
	stored, _ := session.Get(csrfSessionKey).(string)

	session.Delete(csrfSessionKey)
	if err := session.Save(); err != nil {
		LogWithCorrelation(c).WithError(err).Warn("Failed to clear CSRF token")
	}

	if len(stored) == 0 || len(token) == 0 {
		LogWithCorrelation(c).Warn("CSRF validation failed: missing token")
		return false
	}

	if subtle.ConstantTimeCompare([]byte(stored), []byte(token)) != 1 {
		LogWithCorrelation(c).Warn("CSRF validation failed: token mismatch")
		return false
	}

	return true
}

// logoutToken returns the token the header's log out form carries. Unlike
// form tokens it lives as long as the cookie session, since every page
// renders it.
func logoutToken(c *gin.Context) string {
	session := sessions.Default(c)
	if token, ok := session.Get(logoutSessionKey).(string); ok && len(token) > 0 {
		return token
	}

	token, err := common.GenerateSecureRandomString(csrfTokenLength)
	if err != nil {
		LogWithCorrelation(c).WithError(err).Warn("Failed to generate logout token")
		return ""
	}

	session.Set(logoutSessionKey, token)
	if err := session.Save(); err != nil {
		LogWithCorrelation(c).WithError(err).Warn("Failed to store logout token")
		return ""
	}

	return token
}

func validLogoutToken(c *gin.Context, token string) bool {
	stored, _ := sessions.Default(c).Get(logoutSessionKey).(string)
	if len(stored) == 0 || len(token) == 0 {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(stored), []byte(token)) == 1
}
