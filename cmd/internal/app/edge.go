package app

import (
	"context"
	"net/http"

	"warden/cmd/internal/auth/codec"
	"warden/cmd/internal/auth/edge"
	"warden/cmd/internal/auth/revocation"
	"warden/cmd/internal/metrics"
)

// NewEdge wires the gateway: every non-public request is verified locally
// against the shared store, then proxied to the authority or the upstream.
func NewEdge(_ context.Context, cfg Config, log Logger) (*Runtime, error) {
	if err := ValidateSecurityConfig(cfg, RoleEdge); err != nil {
		return nil, err
	}

	rt := &Runtime{name: RoleEdge, cfg: cfg, log: log}
	fail := func(err error) (*Runtime, error) {
		_ = rt.Close()
		return nil, err
	}

	reg := newRegistry()
	m := metrics.New(reg)

	store, storeCheck, err := newSharedStore(cfg, log, RoleEdge)
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
	verifier := edge.NewVerifier(c, revs, log, edge.WithMetrics(m))

	proxy, err := edge.NewProxy(cfg.Proxy(), log)
	if err != nil {
		return fail(err)
	}

	mux := http.NewServeMux()
	registerHealthRoutes(mux, log, reg, storeCheck)
	mux.Handle("/", edge.Middleware(verifier, cfg.Middleware(), log)(proxy))

	rt.handler = WithRequestLogging(WithCORS(mux, cfg, log), log)
	return rt, nil
}
