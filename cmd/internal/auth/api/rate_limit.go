package authapi

import (
	"net/http"
	"strconv"
	"sync"
	"time"
)

// loginLimiter counts failed logins per client IP in a sliding window.
type loginLimiter struct {
	max    int
	window time.Duration

	mu       sync.Mutex
	failures map[string][]time.Time
}

func newLoginLimiter(limit int, window time.Duration) *loginLimiter {
	return &loginLimiter{max: limit, window: window, failures: make(map[string][]time.Time)}
}

// blocked reports whether ip is over the limit, and for how long.
func (l *loginLimiter) blocked(ip string, now time.Time) (bool, time.Duration) {
	if l == nil || l.max <= 0 || ip == "" {
		return false, 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	live := l.pruneLocked(ip, now)
	if len(live) < l.max {
		return false, 0
	}
	return true, live[0].Add(l.window).Sub(now)
}

func (l *loginLimiter) fail(ip string, now time.Time) {
	if l == nil || l.max <= 0 || ip == "" {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.failures[ip] = append(l.pruneLocked(ip, now), now)
}

func (l *loginLimiter) reset(ip string) {
	if l == nil {
		return
	}
	l.mu.Lock()
	delete(l.failures, ip)
	l.mu.Unlock()
}

func (l *loginLimiter) pruneLocked(ip string, now time.Time) []time.Time {
	list := l.failures[ip]
	cut := now.Add(-l.window)
	i := 0
	for i < len(list) && !list[i].After(cut) {
		i++
	}
	list = list[i:]
	if len(list) == 0 {
		delete(l.failures, ip)
		return nil
	}
	l.failures[ip] = list
	return list
}

func writeRateLimited(w http.ResponseWriter, retryAfter time.Duration) {
	if retryAfter > 0 {
		w.Header().Set("Retry-After", strconv.FormatInt(int64(retryAfter.Seconds()+0.5), 10))
	}
	writeError(w, http.StatusTooManyRequests, "rate_limited", "too many attempts")
}
