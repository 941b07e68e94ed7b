package common

import (
	"crypto/rand"
	"encoding/base64"
)

// GenerateSecureRandomString returns a URL safe random string of exactly
// length characters.
func GenerateSecureRandomString(length int) (string, error) {
	byteLength := (length*3 + 3) / 4

	bytes := make([]byte, byteLength)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}

	encoded := base64.URLEncoding.EncodeToString(bytes)
	return encoded[:length], nil
}

// GenerateSessionSecret is used to sign the local cookie session when no
// secret is configured. Cookies do not survive a restart in that case.
func GenerateSessionSecret() string {
	secret, err := GenerateSecureRandomString(48)
	if err != nil {
		return DefaultServerSecret
	}
	return secret
}
