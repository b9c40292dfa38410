package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"warden/cmd/identity"
	authapi "warden/cmd/internal/auth/api"
	"warden/cmd/internal/auth/codec"
	"warden/cmd/internal/auth/edge"
	"warden/cmd/internal/auth/refresh"
	"warden/cmd/internal/auth/revocation"
	"warden/cmd/internal/auth/session"
	"warden/cmd/internal/metrics"
	"warden/cmd/internal/realtime"
	"warden/cmd/security/password"
)

// NewAuthority wires the token issuer: auth and admin API, the realtime
// notifier on /ws, and the health routes.
func NewAuthority(ctx context.Context, cfg Config, log Logger) (*Runtime, error) {
	if err := ValidateSecurityConfig(cfg, RoleAuthority); err != nil {
		return nil, err
	}
	pw := cfg.Passwords()
	if err := pw.Validate(); err != nil {
		return nil, err
	}

	rt := &Runtime{name: RoleAuthority, cfg: cfg, log: log}
	fail := func(err error) (*Runtime, error) {
		_ = rt.Close()
		return nil, err
	}

	reg := newRegistry()
	m := metrics.New(reg)

	store, storeCheck, err := newSharedStore(cfg, log, RoleAuthority)
	if err != nil {
		return fail(err)
	}
	rt.onClose(store.Close)

	c, err := codec.New(cfg.Codec())
	if err != nil {
		return fail(err)
	}
	mode, _ := cfg.FailureMode()
	revs := revocation.New(store, log, revocation.Options{FailureMode: mode, Metrics: m})
	refs, err := refresh.New(store, c, log, refresh.Options{Salt: cfg.CookieSalt})
	if err != nil {
		return fail(err)
	}

	users, pool, err := newDirectory(ctx, cfg, log)
	if err != nil {
		return fail(err)
	}
	if pool != nil {
		rt.onClose(func() error { pool.Close(); return nil })
	}

	verifier := edge.NewVerifier(c, revs, log, edge.WithMetrics(m))
	ws := realtime.NewWSGateway(log, verifier, realtime.NewRegistry(log, m), m, cfg.Gateway())

	svc, err := session.NewService(session.Deps{
		Users:       users,
		Passwords:   pw,
		Tokens:      c,
		Sessions:    refs,
		Revocations: revs,
		Notifier:    ws.Registry(),
		Metrics:     m,
		Log:         log,
	})
	if err != nil {
		return fail(err)
	}
	if err := seedAdmin(ctx, cfg, users, pw, log); err != nil {
		return fail(err)
	}

	api, err := authapi.NewHandler(log, cfg.AuthAPI(), svc, verifier)
	if err != nil {
		return fail(err)
	}

	mux := http.NewServeMux()
	api.Register(mux)
	mux.Handle("GET /ws", ws)

	checks := []readyCheck{storeCheck}
	switch {
	case pool != nil:
		checks = append(checks, readyCheck{name: "db", check: func(ctx context.Context) error { return pool.Ping(ctx) }})
	case cfg.ReadinessRequireDB:
		checks = append(checks, readyCheck{name: "db", check: func(context.Context) error { return errors.New("not configured") }})
	}
	registerHealthRoutes(mux, log, reg, checks...)

	rt.handler = WithRequestLogging(WithSecurityHeaders(mux), log)
	return rt, nil
}

// seedAdmin creates the configured SUPER_ADMIN once. An existing account is kept.
func seedAdmin(ctx context.Context, cfg Config, users identity.Store, pw password.Config, log Logger) error {
	email := strings.TrimSpace(cfg.BootstrapAdminEmail)
	if email == "" {
		return nil
	}
	hash, err := pw.Hash(cfg.BootstrapAdminPassword)
	if err != nil {
		return fmt.Errorf("%w: WARDEN_BOOTSTRAP_ADMIN_PASSWORD: %v", ErrConfig, err)
	}
	u, err := users.CreateUser(ctx, identity.CreateUserInput{
		Email:        email,
		Name:         "Administrator",
		PasswordHash: hash,
		Role:         codec.RoleSuperAdmin,
	})
	if identity.IsConflict(err) {
		log.Info("bootstrap.admin.exists", "email", email)
		return nil
	}
	if err != nil {
		return fmt.Errorf("bootstrap admin: %w", err)
	}
	log.Warn("bootstrap.admin.created", "user_id", u.ID, "email", u.Email)
	return nil
}

func newRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}
