package authapi

import (
	"net/http/httptest"
	"testing"
)

func TestClientIP(t *testing.T) {
	cases := []struct {
		name    string
		remote  string
		xff     string
		realIP  string
		want    string
	}{
		{name: "public peer wins", remote: "203.0.113.5:4000", xff: "198.51.100.1", want: "203.0.113.5"},
		{name: "loopback uses xff", remote: "127.0.0.1:4000", xff: "198.51.100.1, 10.0.0.2", want: "198.51.100.1"},
		{name: "private uses xff", remote: "10.1.2.3:80", xff: "198.51.100.7", want: "198.51.100.7"},
		{name: "falls back to x-real-ip", remote: "192.168.1.10:80", realIP: "198.51.100.9", want: "198.51.100.9"},
		{name: "garbage headers keep peer", remote: "172.16.0.4:80", xff: "not-an-ip", realIP: "nope", want: "172.16.0.4"},
		{name: "ipv6 loopback", remote: "[::1]:9000", xff: "2001:db8::1", want: "2001:db8::1"},
	}
	for _, tc := range cases {
		r := httptest.NewRequest("POST", "/auth/login", nil)
		r.RemoteAddr = tc.remote
		if tc.xff != "" {
			r.Header.Set("X-Forwarded-For", tc.xff)
		}
		if tc.realIP != "" {
			r.Header.Set("X-Real-IP", tc.realIP)
		}
		if got := clientIP(r); got != tc.want {
			t.Fatalf("%s: clientIP=%q want %q", tc.name, got, tc.want)
		}
	}
}
