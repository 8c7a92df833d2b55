package authflow

import (
	"regexp"
	"strings"

	"github.com/kurabu/authflow/internal"
)

// Local part is dot-separated atoms or a quoted string; domain is an IPv4
// literal or a dotted name ending in an alphabetic TLD.
var emailPattern = regexp.MustCompile(`^(([^<>()\[\]\\.,;:\s@"]+(\.[^<>()\[\]\\.,;:\s@"]+)*)|(".+"))@((\[[0-9]{1,3}\.[0-9]{1,3}\.[0-9]{1,3}\.[0-9]{1,3}])|(([a-zA-Z\-0-9]+\.)+[a-zA-Z]{2,}))$`)

// ValidEmail reports whether email matches the accepted address pattern.
func ValidEmail(email string) bool {
	return emailPattern.MatchString(email)
}

// ValidSessionKey reports whether key is syntactically a session key.
func ValidSessionKey(key string) bool {
	return internal.ValidateSessionKeyFormat(key)
}

// checkSessionKey rejects empty and non-UUID keys before any store access.
func checkSessionKey(key string) error {
	if strings.TrimSpace(key) == "" {
		return ErrMissingParameter
	}
	if !internal.ValidateSessionKeyFormat(key) {
		return ErrMalformedParameter
	}
	return nil
}
