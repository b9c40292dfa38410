package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

type builder func(ctx context.Context, cfg Config, log Logger) (*Runtime, error)

// RunEdge is the entrypoint of cmd/warden-edge.
func RunEdge() error { return run(RoleEdge, NewEdge) }

// RunAuthority is the entrypoint of cmd/warden-authority.
func RunAuthority() error { return run(RoleAuthority, NewAuthority) }

// run returns an error instead of calling os.Exit so deferred cleanup runs.
func run(name string, build builder) error {
	cfg, err := LoadConfig(os.Getenv("WARDEN_ENV_FILE"))
	if err != nil {
		return err
	}
	log := NewLogger(os.Stdout, cfg.LogLevel, cfg.LogFormat, cfg.LogColor).With("binary", name)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	rt, err := build(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	return rt.Run(ctx)
}
