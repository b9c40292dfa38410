package realtime

import (
	"log/slog"
	"strings"
	"sync"

	"warden/cmd/internal/metrics"
)

// Registry maps user identities (emails) to their single live Client.
// It is safe for concurrent use.
type Registry struct {
	log *slog.Logger
	m   *metrics.Metrics

	mu       sync.RWMutex
	byUser   map[string]*Client
	byClient map[string]string
}

// NewRegistry constructs an empty Registry.
func NewRegistry(log *slog.Logger, m *metrics.Metrics) *Registry {
	if log == nil {
		log = slog.Default()
	}
	return &Registry{
		log:      log,
		m:        m,
		byUser:   make(map[string]*Client),
		byClient: make(map[string]string),
	}
}

func userKey(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register makes c the live client of its user, closing any previous one.
func (r *Registry) Register(c *Client) {
	if c == nil {
		return
	}
	key := userKey(c.Email)

	r.mu.Lock()
	prev := r.byUser[key]
	if prev != nil && prev != c {
		delete(r.byClient, prev.ID)
	}
	r.byUser[key] = c
	r.byClient[c.ID] = key
	r.mu.Unlock()

	if prev != nil && prev != c {
		r.log.Warn("ws.session.replaced", "user", key, "old_client_id", prev.ID, "new_client_id", c.ID)
		prev.Close()
	}
	r.log.Info("ws.session.registered", "user", key, "client_id", c.ID)
}

// Unregister removes c. A newer client registered for the same user is left alone.
func (r *Registry) Unregister(c *Client) bool {
	if c == nil {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	key, ok := r.byClient[c.ID]
	if !ok {
		return false
	}
	delete(r.byClient, c.ID)
	if r.byUser[key] == c {
		delete(r.byUser, key)
	}
	return true
}

// SendTo enqueues payload for the user's live client. Delivery is best effort
// and never retried.
func (r *Registry) SendTo(email string, payload []byte) bool {
	key := userKey(email)

	r.mu.RLock()
	c := r.byUser[key]
	r.mu.RUnlock()

	delivered := c != nil && c.Enqueue(payload)
	r.m.Push(delivered)
	if !delivered {
		r.log.Info("ws.push.undelivered", "user", key, "connected", c != nil)
	}
	return delivered
}

// Broadcast enqueues payload for every live client and returns how many accepted it.
func (r *Registry) Broadcast(payload []byte) int {
	r.mu.RLock()
	clients := make([]*Client, 0, len(r.byUser))
	for _, c := range r.byUser {
		clients = append(clients, c)
	}
	r.mu.RUnlock()

	n := 0
	for _, c := range clients {
		if c.Enqueue(payload) {
			n++
		}
	}
	return n
}

// Connected reports whether the user has a live client.
func (r *Registry) Connected(email string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.byUser[userKey(email)]
	return ok
}

// Count returns the number of live clients.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byUser)
}
