package realtime

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"warden/cmd/internal/auth/edge"
	"warden/cmd/internal/metrics"
	v1 "warden/shared/contracts/notify/v1"

	"github.com/coder/websocket"
)

const (
	wsDefaultSendQueueSize = 32
	wsMinSendQueueSize     = 4

	wsDefaultWriteTimeout = 5 * time.Second
	wsCloseGrace          = 1 * time.Second

	wsMaxPingFailures = 3
)

// Authenticator verifies the connection-time token. *edge.Verifier satisfies it.
type Authenticator interface {
	Verify(ctx context.Context, token string) (edge.Identity, error)
}

// GatewayConfig tunes the WebSocket gateway.
type GatewayConfig struct {
	// AllowedOrigins lists full origins or hosts; "*" allows any origin.
	AllowedOrigins []string
	OriginRequired bool

	WriteTimeout      time.Duration
	HeartbeatInterval time.Duration
	HeartbeatTimeout  time.Duration
	SendQueueSize     int

	RateEvents int
	RateWindow time.Duration
}

// DefaultGatewayConfig only admits local origins.
func DefaultGatewayConfig() GatewayConfig {
	return GatewayConfig{
		AllowedOrigins:    []string{"http://localhost", "http://127.0.0.1"},
		OriginRequired:    true,
		WriteTimeout:      wsDefaultWriteTimeout,
		HeartbeatInterval: heartbeatInterval,
		HeartbeatTimeout:  heartbeatTimeout,
		SendQueueSize:     wsDefaultSendQueueSize,
		RateEvents:        rateLimitEvents,
		RateWindow:        rateLimitWindow,
	}
}

// WSGateway is the WebSocket entrypoint of the admin notification channel.
//
// The upgrade is authorized before Accept: the token must verify against the
// revocation store and carry a privileged role.
type WSGateway struct {
	log  *slog.Logger
	auth Authenticator
	reg  *Registry
	m    *metrics.Metrics

	originRequired bool
	allowedOrigins []string

	// Derived for websocket.Accept, which rejects cross-origin requests unless
	// their host matches one of these patterns.
	originPatterns []string

	writeTimeout     time.Duration
	sendQueueSize    int
	heartbeatEvery   time.Duration
	heartbeatTimeout time.Duration
	rateEvents       int
	rateWindow       time.Duration
}

// NewWSGateway constructs a gateway. Zero values in cfg fall back to defaults.
func NewWSGateway(log *slog.Logger, auth Authenticator, reg *Registry, m *metrics.Metrics, cfg GatewayConfig) *WSGateway {
	if log == nil {
		log = slog.Default()
	}
	if reg == nil {
		reg = NewRegistry(log, m)
	}
	def := DefaultGatewayConfig()

	g := &WSGateway{
		log:              log,
		auth:             auth,
		reg:              reg,
		m:                m,
		originRequired:   cfg.OriginRequired,
		allowedOrigins:   cfg.AllowedOrigins,
		writeTimeout:     orDuration(cfg.WriteTimeout, def.WriteTimeout),
		sendQueueSize:    cfg.SendQueueSize,
		heartbeatEvery:   orDuration(cfg.HeartbeatInterval, def.HeartbeatInterval),
		heartbeatTimeout: orDuration(cfg.HeartbeatTimeout, def.HeartbeatTimeout),
		rateEvents:       cfg.RateEvents,
		rateWindow:       orDuration(cfg.RateWindow, def.RateWindow),
	}
	if g.sendQueueSize <= 0 {
		g.sendQueueSize = def.SendQueueSize
	}
	if g.sendQueueSize < wsMinSendQueueSize {
		g.sendQueueSize = wsMinSendQueueSize
	}
	if g.rateEvents <= 0 {
		g.rateEvents = def.RateEvents
	}
	g.originPatterns = deriveOriginPatternsFromAllowedOrigins(g.allowedOrigins)
	return g
}

// Registry returns the registry clients are registered in.
func (g *WSGateway) Registry() *Registry { return g.reg }

// ServeHTTP adapter so it can be mounted as http.Handler.
func (g *WSGateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	g.HandleWS(w, r)
}

// HandleWS authorizes the upgrade, registers the client and runs the connection loop.
func (g *WSGateway) HandleWS(w http.ResponseWriter, r *http.Request) {
	if err := g.enforceOrigin(r); err != nil {
		g.log.Info("ws.reject.origin", "err", err, "origin", r.Header.Get("Origin"), "remote", r.RemoteAddr)
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	token := edge.RequestToken(r)
	if token == "" {
		g.log.Info("ws.reject.auth", "reason", "missing_token", "remote", r.RemoteAddr)
		edge.WriteUnauthorized(w)
		return
	}
	id, err := g.auth.Verify(r.Context(), token)
	if err != nil {
		g.log.Info("ws.reject.auth", "reason", edge.ReasonOf(err).String(), "remote", r.RemoteAddr)
		edge.WriteUnauthorized(w)
		return
	}
	if !id.Role.Privileged() {
		g.log.Warn("ws.reject.role", "user_id", id.UserID, "role", string(id.Role))
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	clientID, err := NewClientID(time.Now().UTC())
	if err != nil {
		g.log.Error("ws.client_id.fail", "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		Subprotocols:   []string{v1.Subprotocol},
		OriginPatterns: g.originPatterns,
	})
	if err != nil {
		g.log.Error("ws.accept.fail", "err", err)
		return
	}
	defer func() { _ = conn.Close(websocket.StatusNormalClosure, "bye") }()

	conn.SetReadLimit(maxFrameBytes)

	client := NewClient(clientID, id.UserID, id.Email, id.Role, g.sendQueueSize)
	g.reg.Register(client)
	g.m.ConnOpened()
	defer func() {
		g.reg.Unregister(client)
		g.m.ConnClosed()
		g.log.Info("ws.session.closed", "client_id", clientID, "user_id", id.UserID)
	}()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// The writer owns the close: stop records the status once and signals the
	// client; the writer flushes what is queued and then closes the conn.
	// A client closed by the registry keeps the default status.
	var (
		closeMu     sync.Mutex
		closeSet    bool
		closeCode   = websocket.StatusPolicyViolation
		closeReason = "session replaced"
	)
	stop := func(code websocket.StatusCode, reason string) {
		closeMu.Lock()
		if !closeSet {
			closeSet, closeCode, closeReason = true, code, reason
		}
		closeMu.Unlock()
		client.Close()
	}
	closeStatus := func() (websocket.StatusCode, string) {
		closeMu.Lock()
		defer closeMu.Unlock()
		return closeCode, closeReason
	}

	g.enqueueFrame(client, v1.NewConnectionSuccess())

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		defer cancel()

	writeLoop:
		for {
			select {
			case <-ctx.Done():
				stop(websocket.StatusGoingAway, "context done")
				break writeLoop
			case <-client.Done():
				break writeLoop
			case payload := <-client.Send:
				if err := writeFrame(ctx, conn, payload, g.writeTimeout); err != nil {
					g.log.Info("ws.write.fail", "client_id", clientID, "close_status", websocket.CloseStatus(err), "err", err)
					stop(websocket.StatusAbnormalClosure, "write failed")
					_ = conn.Close(closeStatus())
					return
				}
			}
		}

		if n := g.flush(context.WithoutCancel(ctx), conn, client); n > 0 {
			g.log.Debug("ws.flush.ok", "client_id", clientID, "frames", n)
		}
		_ = conn.Close(closeStatus())
	}()

	heartbeatDone := make(chan struct{})
	go func() {
		defer close(heartbeatDone)

		t := time.NewTicker(g.heartbeatEvery)
		defer t.Stop()

		failures := 0
		for {
			select {
			case <-ctx.Done():
				return
			case <-client.Done():
				return
			case <-t.C:
				hbCtx, hbCancel := context.WithTimeout(ctx, g.heartbeatTimeout)
				err := conn.Ping(hbCtx)
				hbCancel()

				if err != nil {
					failures++
					g.log.Info("ws.ping.fail", "client_id", clientID, "failures", failures, "err", err)
					if failures >= wsMaxPingFailures {
						stop(websocket.StatusGoingAway, "heartbeat failed")
						return
					}
					continue
				}
				failures = 0
			}
		}
	}()

	rl := NewRateLimiter(g.rateEvents, g.rateWindow)

readLoop:
	for {
		mt, data, err := conn.Read(ctx)
		if err != nil {
			switch classifyReadErr(err) {
			case readErrClose:
				stop(websocket.StatusNormalClosure, "peer closed")
			case readErrCtxDone:
				stop(websocket.StatusNormalClosure, "context done")
			case readErrConnClosed:
				stop(websocket.StatusAbnormalClosure, "conn closed")
			default:
				g.log.Info("ws.read.fail", "client_id", clientID, "err", err)
				stop(websocket.StatusAbnormalClosure, "read failed")
			}
			break readLoop
		}

		if !rl.Allow(time.Now().UTC()) {
			g.enqueueFrame(client, v1.NewError("rate_limited", "too many messages"))
			stop(websocket.StatusPolicyViolation, "rate limited")
			break readLoop
		}

		if mt != websocket.MessageText {
			g.enqueueFrame(client, v1.NewError("unsupported", "text frames only"))
			continue
		}

		echo, err := v1.NewMessageReceived(data)
		if err != nil {
			g.enqueueFrame(client, v1.NewError("bad_json", "invalid JSON"))
			continue
		}
		g.log.Debug("ws.message.received", "client_id", clientID, "user_id", id.UserID, "bytes", len(data))
		g.enqueueFrame(client, echo)
	}

	stop(websocket.StatusNormalClosure, "bye")
	<-writerDone

	select {
	case <-heartbeatDone:
	case <-time.After(wsCloseGrace):
	}
}

func (g *WSGateway) enqueueFrame(client *Client, frame any) bool {
	b, err := v1.Encode(frame)
	if err != nil {
		g.log.Error("ws.encode.fail", "err", err)
		return false
	}
	return client.Enqueue(b)
}

// flush writes the frames still queued on client, each under the write
// timeout. It stops at the first failure and reports how many were written.
func (g *WSGateway) flush(ctx context.Context, conn *websocket.Conn, client *Client) int {
	for n := 0; n < cap(client.Send); n++ {
		select {
		case payload := <-client.Send:
			if err := writeFrame(ctx, conn, payload, g.writeTimeout); err != nil {
				g.log.Info("ws.flush.fail", "client_id", client.ID, "err", err)
				return n
			}
		default:
			return n
		}
	}
	return cap(client.Send)
}

func writeFrame(parent context.Context, conn *websocket.Conn, payload []byte, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()
	return conn.Write(ctx, websocket.MessageText, payload)
}

// ---- read error classification ----

type readErrKind uint8

const (
	readErrUnknown readErrKind = iota
	readErrClose
	readErrCtxDone
	readErrConnClosed
)

func classifyReadErr(err error) readErrKind {
	if websocket.CloseStatus(err) != -1 {
		return readErrClose
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return readErrCtxDone
	}
	if errors.Is(err, net.ErrClosed) || errors.Is(err, io.EOF) {
		return readErrConnClosed
	}
	return readErrUnknown
}

// ---- origin policy ----

func (g *WSGateway) enforceOrigin(r *http.Request) error {
	origin := strings.TrimSpace(r.Header.Get("Origin"))
	if origin == "" {
		if g.originRequired {
			return errors.New("missing origin")
		}
		return nil
	}

	if len(g.allowedOrigins) == 0 {
		return errors.New("origin not allowed (no allowlist)")
	}

	originHost := originHostOnly(origin)

	for _, a := range g.allowedOrigins {
		a = strings.TrimSpace(a)
		switch {
		case a == "":
			continue
		case a == "*":
			return nil
		case origin == a:
			return nil
		case originHost != "" && originHost == originHostOnly(a):
			// Host match ignores scheme and port.
			return nil
		}
	}

	return fmt.Errorf("origin not allowed: %s", origin)
}

func originHostOnly(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}

	if strings.Contains(s, "://") {
		u, err := url.Parse(s)
		if err != nil {
			return ""
		}
		s = strings.TrimSpace(u.Host)
		if s == "" {
			return ""
		}
	}

	if host, _, err := net.SplitHostPort(s); err == nil {
		return strings.ToLower(host)
	}
	return strings.ToLower(s)
}

// deriveOriginPatternsFromAllowedOrigins keeps websocket.Accept's own origin
// check in agreement with enforceOrigin. Accept matches patterns against the
// origin host with path.Match.
func deriveOriginPatternsFromAllowedOrigins(allowed []string) []string {
	seen := make(map[string]struct{}, len(allowed))

	for _, a := range allowed {
		if strings.TrimSpace(a) == "*" {
			return []string{"*"}
		}
		h := originHostOnly(a)
		if h == "" {
			continue
		}
		// Accept compares against host:port, so allow any port as well.
		seen[h] = struct{}{}
		seen[h+":*"] = struct{}{}
	}

	out := make([]string, 0, len(seen))
	for h := range seen {
		out = append(out, h)
	}
	sort.Strings(out)
	return out
}

func orDuration(v, def time.Duration) time.Duration {
	if v > 0 {
		return v
	}
	return def
}
