package refresh

import "errors"

var (
	// ErrNotFound is returned when a hash does not resolve to a live session.
	ErrNotFound = errors.New("refresh: session not found")

	// ErrInvalidUser is returned for non-positive user ids.
	ErrInvalidUser = errors.New("refresh: invalid user id")

	// ErrMalformedRecord is returned when a stored record cannot be decoded.
	ErrMalformedRecord = errors.New("refresh: malformed session record")

	// ErrConfig is returned for invalid store configuration.
	ErrConfig = errors.New("refresh: invalid config")
)
