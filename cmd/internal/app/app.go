// Package app wires the warden runtimes: config, logging, HTTP routes, and the
// stores each binary owns.
package app

import (
	"context"
	"errors"
	"net/http"
	"time"
)

// Runtime is one warden binary: its root handler plus the resources it owns.
type Runtime struct {
	name    string
	cfg     Config
	log     Logger
	handler http.Handler

	// closers run in reverse order on shutdown.
	closers []func() error
}

// Handler returns the fully wrapped root handler.
func (rt *Runtime) Handler() http.Handler { return rt.handler }

func (rt *Runtime) onClose(fn func() error) { rt.closers = append(rt.closers, fn) }

// Close releases store and pool resources.
func (rt *Runtime) Close() error {
	var errs []error
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	rt.closers = nil
	return errors.Join(errs...)
}

// Run starts the HTTP server and blocks until context cancellation or a fatal
// server error. Resources are closed before it returns.
func (rt *Runtime) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              rt.cfg.HTTPAddr,
		Handler:           rt.handler,
		ReadHeaderTimeout: nonZeroDuration(rt.cfg.ReadHeaderTimeout, 5*time.Second),
		ReadTimeout:       nonZeroDuration(rt.cfg.ReadTimeout, 15*time.Second),
		WriteTimeout:      nonZeroDuration(rt.cfg.WriteTimeout, 15*time.Second),
		IdleTimeout:       nonZeroDuration(rt.cfg.IdleTimeout, 60*time.Second),
		MaxHeaderBytes:    nonZeroInt(rt.cfg.MaxHeaderBytes, 1<<20),
	}
	defer func() {
		if err := rt.Close(); err != nil {
			rt.log.Error("store.close.fail", "err", err)
		}
	}()

	rt.log.Info("server.start", "binary", rt.name, "addr", rt.cfg.HTTPAddr)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		rt.log.Info("server.stop", "reason", "context_done")
	case err := <-errCh:
		rt.log.Error("server.fail", "err", err)
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), nonZeroDuration(rt.cfg.ShutdownTimeout, 10*time.Second))
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		rt.log.Error("server.shutdown.fail", "err", err)
		return err
	}

	rt.log.Info("server.stopped", "binary", rt.name)
	return nil
}

func nonZeroDuration(v, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return v
}

func nonZeroInt(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
