package kv

import "errors"

var (
	// ErrNotFound is returned by Get when the key does not exist or has expired.
	ErrNotFound = errors.New("kv: key not found")

	// ErrUnavailable wraps transport/timeout failures of the backing store.
	ErrUnavailable = errors.New("kv: store unavailable")

	// ErrInvalidTTL is returned by Set when ttl <= 0. Every warden key is TTL-bounded.
	ErrInvalidTTL = errors.New("kv: ttl must be positive")

	// ErrConfig is returned for invalid store configuration.
	ErrConfig = errors.New("kv: invalid config")
)
