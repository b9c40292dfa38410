package password

import (
	"errors"
	"testing"
)

func TestDefaultConfig_Valid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if cfg.Policy.MinLength != 8 || cfg.Policy.MaxLength != 128 {
		t.Fatalf("policy=%+v", cfg.Policy)
	}
}

func TestConfigValidate_Rejects(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"low memory", func(c *Config) { c.Params.MemoryKiB = 1024 }},
		{"zero iterations", func(c *Config) { c.Params.Iterations = 0 }},
		{"zero parallelism", func(c *Config) { c.Params.Parallelism = 0 }},
		{"short salt", func(c *Config) { c.Params.SaltLength = 4 }},
		{"short key", func(c *Config) { c.Params.KeyLength = 8 }},
		{"min above max", func(c *Config) { c.Policy.MinLength = 20; c.Policy.MaxLength = 10 }},
	}
	for _, tc := range cases {
		cfg := DefaultConfig()
		tc.mutate(&cfg)
		if err := cfg.Validate(); !errors.Is(err, ErrConfig) {
			t.Fatalf("%s: expected ErrConfig, got %v", tc.name, err)
		}
	}
}
