package app

import (
	"errors"
	"fmt"
	"strings"

	"warden/cmd/internal/auth/codec"
	"warden/cmd/internal/auth/refresh"
	"warden/cmd/security/token"
)

// Binary names, used in logs and for role-specific checks.
const (
	RoleEdge      = "edge"
	RoleAuthority = "authority"
)

// ValidateSecurityConfig fails startup on missing or weak secrets. The edge
// needs only the JWT key; the authority also salts refresh cookies.
func ValidateSecurityConfig(cfg Config, role string) error {
	switch n := len(cfg.JWTSecret); {
	case n == 0:
		return fmt.Errorf("%w: WARDEN_JWT_SECRET is missing", ErrConfig)
	case n < codec.MinSecretBytes:
		return fmt.Errorf("%w: WARDEN_JWT_SECRET is too short (min %d bytes)", ErrConfig, codec.MinSecretBytes)
	}

	if role != RoleAuthority {
		return nil
	}

	if err := token.ValidateSalt(cfg.CookieSalt, refresh.MinSaltBytes); err != nil {
		switch {
		case errors.Is(err, token.ErrSaltMissing):
			return fmt.Errorf("%w: WARDEN_COOKIE_SALT is missing", ErrConfig)
		case errors.Is(err, token.ErrSaltTooShort):
			return fmt.Errorf("%w: WARDEN_COOKIE_SALT is too short (min %d bytes)", ErrConfig, refresh.MinSaltBytes)
		default:
			return err
		}
	}

	email := strings.TrimSpace(cfg.BootstrapAdminEmail)
	if (email == "") != (cfg.BootstrapAdminPassword == "") {
		return fmt.Errorf("%w: WARDEN_BOOTSTRAP_ADMIN_EMAIL and WARDEN_BOOTSTRAP_ADMIN_PASSWORD must be set together", ErrConfig)
	}
	return nil
}
