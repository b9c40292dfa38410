// Package metrics owns warden's Prometheus collectors.
//
// A nil *Metrics is valid and records nothing, so components can be built
// without a registry in tests.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "warden"

// Metrics groups the counters and gauges shared by edge and authority.
type Metrics struct {
	verify      *prometheus.CounterVec
	revocations *prometheus.CounterVec
	failOpen    prometheus.Counter
	logins      *prometheus.CounterVec
	push        *prometheus.CounterVec
	wsConns     prometheus.Gauge
}

// New creates the collectors and registers them on reg (when non-nil).
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		verify: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "verify_total",
			Help:      "Token verifications by outcome.",
		}, []string{"result"}),
		revocations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "revocations_total",
			Help:      "Revocation facts written, by kind (token, user, refresh).",
		}, []string{"kind"}),
		failOpen: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "watermark_fail_open_total",
			Help:      "Watermark reads that failed and were treated as not invalidated.",
		}),
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "logins_total",
			Help:      "Login attempts by outcome.",
		}, []string{"outcome"}),
		push: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "realtime_push_total",
			Help:      "Realtime notifications by delivery outcome.",
		}, []string{"delivered"}),
		wsConns: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "realtime_connections",
			Help:      "Live realtime connections on this process.",
		}),
	}

	if reg != nil {
		reg.MustRegister(m.verify, m.revocations, m.failOpen, m.logins, m.push, m.wsConns)
	}
	return m
}

// Handler serves the registry in the Prometheus text format.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// Verify records a verification outcome ("ok", "expired", "blacklisted", ...).
func (m *Metrics) Verify(result string) {
	if m == nil {
		return
	}
	m.verify.WithLabelValues(result).Inc()
}

// Revoked records a written revocation fact.
func (m *Metrics) Revoked(kind string) {
	if m == nil {
		return
	}
	m.revocations.WithLabelValues(kind).Inc()
}

// WatermarkFailOpen records a fail-open watermark read.
func (m *Metrics) WatermarkFailOpen() {
	if m == nil {
		return
	}
	m.failOpen.Inc()
}

// Login records a login outcome ("ok", "invalid", "takeover").
func (m *Metrics) Login(outcome string) {
	if m == nil {
		return
	}
	m.logins.WithLabelValues(outcome).Inc()
}

// Push records a realtime push attempt.
func (m *Metrics) Push(delivered bool) {
	if m == nil {
		return
	}
	label := "false"
	if delivered {
		label = "true"
	}
	m.push.WithLabelValues(label).Inc()
}

// ConnOpened increments the live connection gauge.
func (m *Metrics) ConnOpened() {
	if m == nil {
		return
	}
	m.wsConns.Inc()
}

// ConnClosed decrements the live connection gauge.
func (m *Metrics) ConnClosed() {
	if m == nil {
		return
	}
	m.wsConns.Dec()
}
