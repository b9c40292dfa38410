package authapi

import (
	"net"
	"net/http"
	"strings"
)

// clientIP returns the login origin recorded in takeover notices.
//
// The socket peer wins unless it is internal (loopback or private), in which
// case a proxy sits in front and the first X-Forwarded-For entry, then
// X-Real-IP, is used.
func clientIP(r *http.Request) string {
	peer := remoteHost(r.RemoteAddr)
	if ip := net.ParseIP(peer); ip != nil && !isInternal(ip) {
		return peer
	}

	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := parseForwardedIP(first); ip != nil {
			return ip.String()
		}
	}
	if ip := parseForwardedIP(r.Header.Get("X-Real-IP")); ip != nil {
		return ip.String()
	}
	return peer
}

func remoteHost(addr string) string {
	addr = strings.TrimSpace(addr)
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}

func parseForwardedIP(raw string) net.IP {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	if host, _, err := net.SplitHostPort(raw); err == nil {
		raw = host
	}
	return net.ParseIP(strings.Trim(raw, "[]"))
}

func isInternal(ip net.IP) bool {
	return ip.IsLoopback() || ip.IsPrivate() || ip.IsUnspecified()
}
