package password

import (
	"fmt"
	"runtime"
)

// Argon2idParams controls Argon2id hashing cost.
// MemoryKiB is in KiB as required by argon2.IDKey.
type Argon2idParams struct {
	MemoryKiB   uint32
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// Policy bounds accepted passwords (counted in runes).
type Policy struct {
	MinLength int
	MaxLength int

	// RejectVeryWeak enables a minimal trivial-pattern check.
	RejectVeryWeak bool
}

// Config is the hashing configuration. The zero value is not usable.
type Config struct {
	Params Argon2idParams
	Policy Policy
}

// DefaultConfig matches the registration rules: 8 to 128 characters.
func DefaultConfig() Config {
	threads := runtime.NumCPU()
	if threads <= 0 {
		threads = 1
	}
	if threads > 4 {
		threads = 4
	}

	return Config{
		Params: Argon2idParams{
			MemoryKiB:   64 * 1024,
			Iterations:  3,
			Parallelism: uint8(threads), // #nosec G115 -- clamped to [1..4].
			SaltLength:  16,
			KeyLength:   32,
		},
		Policy: Policy{
			MinLength: 8,
			MaxLength: 128,
		},
	}
}

// Validate checks the configuration itself (not a password; see Check).
func (c Config) Validate() error {
	p := c.Params
	switch {
	case p.MemoryKiB < 8*1024 || p.MemoryKiB > 1024*1024:
		return fmt.Errorf("%w: argon2 memory %d KiB out of range [8192..1048576]", ErrConfig, p.MemoryKiB)
	case p.Iterations < 1 || p.Iterations > 20:
		return fmt.Errorf("%w: argon2 iterations %d out of range [1..20]", ErrConfig, p.Iterations)
	case p.Parallelism < 1:
		return fmt.Errorf("%w: argon2 parallelism must be positive", ErrConfig)
	case p.SaltLength < 8 || p.SaltLength > 64:
		return fmt.Errorf("%w: salt length %d out of range [8..64]", ErrConfig, p.SaltLength)
	case p.KeyLength < 16 || p.KeyLength > 64:
		return fmt.Errorf("%w: key length %d out of range [16..64]", ErrConfig, p.KeyLength)
	case c.Policy.MinLength < 1:
		return fmt.Errorf("%w: min length must be positive", ErrConfig)
	case c.Policy.MinLength > c.Policy.MaxLength:
		return fmt.Errorf("%w: min length (%d) > max length (%d)", ErrConfig, c.Policy.MinLength, c.Policy.MaxLength)
	}
	return nil
}
