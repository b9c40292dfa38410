package kv

import (
	"context"
	"fmt"
	"time"
)

// ScanCount is the per-iteration SCAN hint used by prefix scans.
const ScanCount = 1000

// Store abstracts the shared key/value store.
//
// Implementations must bound every call with a timeout and report backend
// failures as ErrUnavailable (wrapped).
type Store interface {
	// Get returns the value for key or ErrNotFound.
	Get(ctx context.Context, key string) (string, error)

	// Set writes key=value with the given TTL (must be > 0).
	Set(ctx context.Context, key, value string, ttl time.Duration) error

	// Exists reports whether key is present.
	Exists(ctx context.Context, key string) (bool, error)

	// Delete removes keys. Missing keys are not an error.
	Delete(ctx context.Context, keys ...string) error

	// ScanPrefix returns all live keys starting with prefix, using cursor-based
	// iteration rather than full key enumeration.
	ScanPrefix(ctx context.Context, prefix string) ([]string, error)

	// Ping checks connectivity.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}

func unavailable(op string, err error) error {
	// Keys are deliberately left out: refresh keys embed raw tokens.
	return fmt.Errorf("%w: %s: %v", ErrUnavailable, op, err)
}
