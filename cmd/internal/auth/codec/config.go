package codec

import (
	"fmt"
	"time"
)

// MinSecretBytes is the minimum HS256 key size.
const MinSecretBytes = 32

// Config controls signing and token lifetimes.
type Config struct {
	// Secret is the symmetric key shared by the edge and the authority.
	Secret []byte

	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// DefaultConfig returns lifetimes suitable for development. Secret must still be set.
func DefaultConfig() Config {
	return Config{
		AccessTTL:  15 * time.Minute,
		RefreshTTL: 7 * 24 * time.Hour,
	}
}

// Validate checks key size and TTL ordering.
func (c Config) Validate() error {
	if len(c.Secret) < MinSecretBytes {
		return fmt.Errorf("%w: secret must be at least %d bytes", ErrConfig, MinSecretBytes)
	}
	if c.AccessTTL <= 0 || c.RefreshTTL <= 0 {
		return fmt.Errorf("%w: ttls must be positive", ErrConfig)
	}
	if c.AccessTTL >= c.RefreshTTL {
		return fmt.Errorf("%w: access ttl must be shorter than refresh ttl", ErrConfig)
	}
	return nil
}
