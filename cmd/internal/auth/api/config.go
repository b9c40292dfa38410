package authapi

import (
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Config controls the auth API.
type Config struct {
	MaxBodyBytes int64

	// Refresh cookie attributes. The cookie is always HttpOnly.
	CookieName     string
	CookiePath     string
	CookieDomain   string
	CookieSecure   bool
	CookieSameSite http.SameSite
	CookieMaxAge   time.Duration

	// Failed logins per client IP before 429.
	LoginIPMax    int
	LoginIPWindow time.Duration
}

// DefaultConfig returns production defaults; CookieMaxAge should match the refresh TTL.
func DefaultConfig() Config {
	return Config{
		MaxBodyBytes:   1 << 20,
		CookieName:     "refresh-token",
		CookiePath:     "/",
		CookieSecure:   true,
		CookieSameSite: http.SameSiteStrictMode,
		CookieMaxAge:   7 * 24 * time.Hour,
		LoginIPMax:     20,
		LoginIPWindow:  5 * time.Minute,
	}
}

// Validate reports the first invalid field.
func (c Config) Validate() error {
	switch {
	case c.MaxBodyBytes <= 0:
		return fmt.Errorf("authapi: max body bytes must be positive")
	case strings.TrimSpace(c.CookieName) == "":
		return fmt.Errorf("authapi: cookie name is required")
	case c.CookieMaxAge <= 0:
		return fmt.Errorf("authapi: cookie max age must be positive")
	case c.LoginIPMax < 0 || (c.LoginIPMax > 0 && c.LoginIPWindow <= 0):
		return fmt.Errorf("authapi: invalid login throttle")
	}
	return nil
}
