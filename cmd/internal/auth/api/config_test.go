package authapi

import (
	"net/http"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if cfg.CookieName != "refresh-token" || !cfg.CookieSecure || cfg.CookieSameSite != http.SameSiteStrictMode || cfg.CookiePath != "/" {
		t.Fatalf("cookie defaults: %+v", cfg)
	}
	if cfg.CookieMaxAge != 7*24*time.Hour {
		t.Fatalf("cookie max age=%s", cfg.CookieMaxAge)
	}
}

func TestConfigValidate(t *testing.T) {
	cases := []func(*Config){
		func(c *Config) { c.MaxBodyBytes = 0 },
		func(c *Config) { c.CookieName = " " },
		func(c *Config) { c.CookieMaxAge = 0 },
		func(c *Config) { c.LoginIPMax = -1 },
		func(c *Config) { c.LoginIPWindow = 0 },
	}
	for i, mutate := range cases {
		cfg := DefaultConfig()
		mutate(&cfg)
		if err := cfg.Validate(); err == nil {
			t.Fatalf("case %d: expected error", i)
		}
	}
}
