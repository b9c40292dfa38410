package kv

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// Memory is a single-process Store, selected with WARDEN_REDIS_ADDR=memory.
// Expired keys are dropped lazily on access and during scans.
type Memory struct {
	mu    sync.Mutex
	items map[string]memItem
	now   func() time.Time
}

type memItem struct {
	value     string
	expiresAt time.Time
}

// NewMemory constructs an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		items: make(map[string]memItem),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// SetClock overrides the clock used for TTL evaluation (tests).
func (m *Memory) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if now != nil {
		m.now = now
	}
}

// Get returns the value for key or ErrNotFound.
func (m *Memory) Get(ctx context.Context, key string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", unavailable("get", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	it, ok := m.liveLocked(key)
	if !ok {
		return "", ErrNotFound
	}
	return it.value, nil
}

// Set writes key=value with ttl.
func (m *Memory) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if ttl <= 0 {
		return ErrInvalidTTL
	}
	if err := ctx.Err(); err != nil {
		return unavailable("set", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.items[key] = memItem{value: value, expiresAt: m.now().Add(ttl)}
	return nil
}

// Exists reports whether key is present and unexpired.
func (m *Memory) Exists(ctx context.Context, key string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, unavailable("exists", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	_, ok := m.liveLocked(key)
	return ok, nil
}

// Delete removes keys.
func (m *Memory) Delete(ctx context.Context, keys ...string) error {
	if err := ctx.Err(); err != nil {
		return unavailable("del", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, k := range keys {
		delete(m.items, k)
	}
	return nil
}

// ScanPrefix returns live keys with the given prefix, sorted.
func (m *Memory) ScanPrefix(ctx context.Context, prefix string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, unavailable("scan", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]string, 0)
	for k := range m.items {
		if !strings.HasPrefix(k, prefix) {
			continue
		}
		if _, ok := m.liveLocked(k); ok {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out, nil
}

// TTL returns the remaining lifetime of key (tests and diagnostics).
func (m *Memory) TTL(key string) (time.Duration, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	it, ok := m.liveLocked(key)
	if !ok {
		return 0, false
	}
	return it.expiresAt.Sub(m.now()), true
}

// Ping always succeeds.
func (m *Memory) Ping(_ context.Context) error { return nil }

// Close is a no-op.
func (m *Memory) Close() error { return nil }

func (m *Memory) liveLocked(key string) (memItem, bool) {
	it, ok := m.items[key]
	if !ok {
		return memItem{}, false
	}
	if !m.now().Before(it.expiresAt) {
		delete(m.items, key)
		return memItem{}, false
	}
	return it, true
}
