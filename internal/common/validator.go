package common

import (
	"net/mail"
	"net/url"
	"strings"
)

// IsValidLoginServer accepts absolute http(s) URLs with a host.
func IsValidLoginServer(endpoint string) bool {
	parsed, err := url.Parse(strings.TrimSpace(endpoint))
	if err != nil {
		return false
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return false
	}
	return len(parsed.Host) > 0
}

func IsValidURL(rawurl string) bool {
	_, err := url.ParseRequestURI(rawurl)
	return err == nil
}

// IsValidEmail accepts a bare address only, not "Name <address>".
func IsValidEmail(email string) bool {
	address, err := mail.ParseAddress(email)
	return err == nil && address.Address == email && len(address.Name) == 0
}
