package revocation

import "errors"

var (
	// ErrInvalidTokenID is returned for an empty token id.
	ErrInvalidTokenID = errors.New("revocation: invalid token id")

	// ErrInvalidUser is returned for a non-positive user id.
	ErrInvalidUser = errors.New("revocation: invalid user id")

	// ErrMalformedWatermark is returned when a stored watermark matches neither encoding.
	ErrMalformedWatermark = errors.New("revocation: malformed watermark")

	// ErrConfig is returned for an unknown failure mode.
	ErrConfig = errors.New("revocation: invalid config")
)
