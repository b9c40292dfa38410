package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_Counters(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	m := New(reg)

	m.Verify("ok")
	m.Verify("ok")
	m.Verify("blacklisted")
	m.Revoked("user")
	m.WatermarkFailOpen()
	m.Push(true)
	m.Push(false)
	m.ConnOpened()
	m.ConnOpened()
	m.ConnClosed()

	if got := testutil.ToFloat64(m.verify.WithLabelValues("ok")); got != 2 {
		t.Fatalf("verify ok=%v want 2", got)
	}
	if got := testutil.ToFloat64(m.verify.WithLabelValues("blacklisted")); got != 1 {
		t.Fatalf("verify blacklisted=%v want 1", got)
	}
	if got := testutil.ToFloat64(m.failOpen); got != 1 {
		t.Fatalf("fail open=%v want 1", got)
	}
	if got := testutil.ToFloat64(m.wsConns); got != 1 {
		t.Fatalf("ws conns=%v want 1", got)
	}
}

func TestMetrics_NilIsNoop(t *testing.T) {
	t.Parallel()

	var m *Metrics
	m.Verify("ok")
	m.Revoked("token")
	m.WatermarkFailOpen()
	m.Login("ok")
	m.Push(true)
	m.ConnOpened()
	m.ConnClosed()
}

func TestHandler_ExposesNamespace(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	m := New(reg)
	m.Login("ok")

	rr := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d", rr.Code)
	}
	body, _ := io.ReadAll(rr.Body)
	if !strings.Contains(string(body), `warden_logins_total{outcome="ok"} 1`) {
		t.Fatalf("metrics output missing login counter:\n%s", body)
	}
}
