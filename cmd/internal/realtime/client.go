package realtime

import (
	"sync"

	"warden/cmd/internal/auth/codec"
)

// Client is one connected notification channel.
//
// Send is never closed by the server so concurrent senders cannot panic;
// done signals the connection goroutines to stop. Close is idempotent.
type Client struct {
	ID     string
	UserID int64
	Email  string
	Role   codec.Role
	Send   chan []byte

	done      chan struct{}
	closeOnce sync.Once
}

// NewClient constructs a Client with a bounded send queue.
func NewClient(id string, userID int64, email string, role codec.Role, sendQueueSize int) *Client {
	if sendQueueSize <= 0 {
		sendQueueSize = wsDefaultSendQueueSize
	}
	return &Client{
		ID:     id,
		UserID: userID,
		Email:  email,
		Role:   role,
		Send:   make(chan []byte, sendQueueSize),
		done:   make(chan struct{}),
	}
}

// Done is closed when the client is shutting down.
func (c *Client) Done() <-chan struct{} {
	if c == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return c.done
}

// Close signals the client goroutines to stop.
func (c *Client) Close() {
	if c == nil {
		return
	}
	c.closeOnce.Do(func() {
		close(c.done)
	})
}

// Enqueue hands payload to the writer without blocking. It reports false when
// the client is closed or its queue is full.
func (c *Client) Enqueue(payload []byte) bool {
	select {
	case <-c.Done():
		return false
	default:
	}
	select {
	case c.Send <- payload:
		return true
	default:
		return false
	}
}
