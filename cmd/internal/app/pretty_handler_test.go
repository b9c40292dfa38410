package app

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestPrettyHandler_RequestLine(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(newPrettyHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}, false))

	log.Info("http.request",
		"method", "post",
		"path", "/auth/login",
		"status", 401,
		"status_class", "4xx",
		"duration_ms", int64(12),
		"user_agent", "curl 8.0",
	)

	out := buf.String()
	for _, want := range []string{
		"lvl=[INFO]",
		"method=POST",
		"path=/auth/login",
		"status=401",
		"class=4xx",
		"duration=12ms",
		`user_agent="curl 8.0"`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in %q", want, out)
		}
	}
	if strings.Contains(out, "\x1b[") {
		t.Fatalf("color codes without color: %q", out)
	}
}

func TestPrettyHandler_GroupsAndAttrs(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(newPrettyHandler(&buf, nil, false)).With("binary", "edge").WithGroup("ws")

	log.Info("ws.connect", "client_id", "01J", slog.Group("peer", "ip", "10.0.0.1"))

	out := buf.String()
	for _, want := range []string{"binary=edge", "ws.client_id=01J", "ws.peer.ip=10.0.0.1"} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in %q", want, out)
		}
	}
}

func TestPrettyHandler_BoundAttrsKeepTheirGroup(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(newPrettyHandler(&buf, nil, false)).
		WithGroup("edge").With("upstream", "orders").
		WithGroup("verify")

	log.Info("edge.reject", "reason", "expired", slog.Group("", "inline", 1))

	out := buf.String()
	for _, want := range []string{"edge.upstream=orders", "edge.verify.reason=expired", "edge.verify.inline=1"} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in %q", want, out)
		}
	}
	if strings.Contains(out, "edge.verify.upstream") {
		t.Fatalf("bound attr picked up a later group: %q", out)
	}
}

func TestPrettyHandler_LevelFilterAndColor(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(newPrettyHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn}, true))

	log.Info("dropped")
	if buf.Len() != 0 {
		t.Fatalf("info must be filtered at warn level: %q", buf.String())
	}

	log.Error("revocation.watermark.fail_open", "reason", "store_unavailable")
	out := buf.String()
	if !strings.Contains(out, ansiRed+"[ERROR]"+ansiReset) {
		t.Fatalf("error tag not colored: %q", out)
	}
	if !strings.Contains(out, ansiRed+"store_unavailable"+ansiReset) {
		t.Fatalf("reason not highlighted: %q", out)
	}
}

func TestValueToString(t *testing.T) {
	t.Parallel()

	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	cases := []struct {
		in   slog.Value
		want string
	}{
		{in: slog.StringValue("x"), want: "x"},
		{in: slog.Int64Value(-3), want: "-3"},
		{in: slog.BoolValue(true), want: "true"},
		{in: slog.DurationValue(1500 * time.Millisecond), want: "1.5s"},
		{in: slog.TimeValue(at), want: "2026-03-01T10:00:00Z"},
	}
	for _, tc := range cases {
		if got := valueToString(tc.in); got != tc.want {
			t.Fatalf("valueToString(%v)=%q want %q", tc.in, got, tc.want)
		}
	}
	if got := quoteIfNeeded(""); got != `""` {
		t.Fatalf("empty quote=%q", got)
	}
}
