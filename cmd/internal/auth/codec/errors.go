package codec

import "errors"

var (
	// ErrConfig is returned for invalid codec configuration.
	ErrConfig = errors.New("codec: invalid config")

	// ErrInvalidSubject is returned when issuing for an incomplete subject.
	ErrInvalidSubject = errors.New("codec: invalid subject")

	// ErrUnparsable is returned by Inspect when the token cannot be decoded at all.
	ErrUnparsable = errors.New("codec: unparsable token")
)
