package app

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"warden/cmd/internal/metrics"
)

// readyCheck is one dependency checked by /readyz.
type readyCheck struct {
	name  string
	check func(ctx context.Context) error
}

// registerHealthRoutes mounts /healthz, /readyz and /metrics. They bypass
// authentication on both binaries.
func registerHealthRoutes(mux *http.ServeMux, log Logger, gatherer prometheus.Gatherer, checks ...readyCheck) {
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})

	mux.HandleFunc("GET /readyz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		for _, c := range checks {
			if err := c.check(ctx); err != nil {
				log.Info("readyz.not_ready", "dependency", c.name, "err", err)
				http.Error(w, c.name+" not ready", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready\n"))
	})

	mux.Handle("GET /metrics", metrics.Handler(gatherer))
}
