package utils

import (
	"regexp"
	"strings"
)

var dsnPasswordRegex = regexp.MustCompile(`(:)([^:@/]+)(@)`)

// MaskDSN hides the password component of a connection string.
func MaskDSN(dsn string) string {
	return dsnPasswordRegex.ReplaceAllString(dsn, ":***@")
}

// MaskSecret keeps the last four characters of a credential so log lines stay
// correlatable without exposing the value. Short values are masked entirely.
func MaskSecret(s string) string {
	if len(s) <= 8 {
		return strings.Repeat("*", len(s))
	}
	return "****" + s[len(s)-4:]
}
