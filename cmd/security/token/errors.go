package token

import "errors"

// Public, stable errors for callers.
var (
	ErrSaltMissing  = errors.New("cookie salt missing")
	ErrSaltTooShort = errors.New("cookie salt too short")
)
