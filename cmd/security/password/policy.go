package password

import (
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"
)

var trivialPasswords = []string{
	"password", "password123", "12345678", "123456789", "qwerty123", "11111111", "changeme",
}

// Check applies the policy to a candidate password.
func (c Config) Check(password string) error {
	n := utf8.RuneCountInString(password)
	switch {
	case n < c.Policy.MinLength:
		return ErrPasswordTooShort
	case n > c.Policy.MaxLength:
		return ErrPasswordTooLong
	case c.Policy.RejectVeryWeak && veryWeak(password):
		return ErrWeakPassword
	}
	return nil
}

// veryWeak catches a repeated single character, short digit-only strings and
// a handful of well-known defaults. It is not a strength estimator.
func veryWeak(pw string) bool {
	s := strings.TrimSpace(pw)
	if s == "" {
		return true
	}

	first, _ := utf8.DecodeRuneInString(s)
	if strings.Trim(s, string(first)) == "" {
		return true
	}

	digits := strings.IndexFunc(s, func(r rune) bool { return !unicode.IsDigit(r) }) < 0
	if digits && utf8.RuneCountInString(s) < 12 {
		return true
	}

	return slices.Contains(trivialPasswords, strings.ToLower(s))
}
