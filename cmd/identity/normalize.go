package identity

import (
	"net/mail"
	"strings"
	"unicode/utf8"
)

// Name length bounds, in runes.
const (
	MinNameLength = 1
	MaxNameLength = 50
)

// NormalizeEmail performs case-insensitive canonicalization.
func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// ValidEmail accepts a bare addr-spec ("a@b.c"), not a display-name form.
func ValidEmail(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" || strings.ContainsAny(s, " <>") {
		return false
	}
	addr, err := mail.ParseAddress(s)
	if err != nil || addr.Address != s {
		return false
	}
	_, domain, ok := strings.Cut(s, "@")
	return ok && strings.Contains(domain, ".")
}

// ValidName reports whether the trimmed display name is within bounds.
func ValidName(s string) bool {
	n := utf8.RuneCountInString(strings.TrimSpace(s))
	return n >= MinNameLength && n <= MaxNameLength
}
