package edge

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
)

// Identity headers forwarded to downstream handlers.
const (
	HeaderUserID    = "X-User-Id"
	HeaderUserEmail = "X-User-Email"
	HeaderUserRole  = "X-User-Role"
)

// Authenticator verifies a raw token. *Verifier satisfies it.
type Authenticator interface {
	Verify(ctx context.Context, token string) (Identity, error)
}

// MiddlewareConfig selects which requests skip verification.
type MiddlewareConfig struct {
	// PublicPaths are matched exactly, or as a prefix when they end in "/".
	PublicPaths []string

	// SkipSuffixes are matched against the end of the path.
	SkipSuffixes []string
}

// DefaultMiddlewareConfig skips refresh endpoints and the unauthenticated auth routes.
func DefaultMiddlewareConfig() MiddlewareConfig {
	return MiddlewareConfig{
		PublicPaths:  []string{"/auth/login", "/auth/register", "/auth/logout"},
		SkipSuffixes: []string{"/refresh"},
	}
}

type identityKey struct{}

// WithIdentity stores id on ctx.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFrom returns the Identity stored by Middleware.
func IdentityFrom(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok
}

// Middleware authenticates every request not exempted by cfg.
func Middleware(auth Authenticator, cfg MiddlewareConfig, log *slog.Logger) func(http.Handler) http.Handler {
	if log == nil {
		log = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Never trust identity headers supplied by the client.
			r.Header.Del(HeaderUserID)
			r.Header.Del(HeaderUserEmail)
			r.Header.Del(HeaderUserRole)

			if cfg.skips(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			token := RequestToken(r)
			if token == "" {
				log.Info("edge.reject", "path", r.URL.Path, "reason", "missing_token")
				WriteUnauthorized(w)
				return
			}

			id, err := auth.Verify(r.Context(), token)
			if err != nil {
				log.Info("edge.reject", "path", r.URL.Path, "reason", ReasonOf(err).String())
				WriteUnauthorized(w)
				return
			}

			r.Header.Set(HeaderUserID, strconv.FormatInt(id.UserID, 10))
			r.Header.Set(HeaderUserEmail, id.Email)
			r.Header.Set(HeaderUserRole, string(id.Role))
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

func (c MiddlewareConfig) skips(path string) bool {
	for _, s := range c.SkipSuffixes {
		if s != "" && strings.HasSuffix(path, s) {
			return true
		}
	}
	for _, p := range c.PublicPaths {
		switch {
		case p == "":
		case strings.HasSuffix(p, "/"):
			if strings.HasPrefix(path, p) {
				return true
			}
		case path == p:
			return true
		}
	}
	return false
}

// RequestToken extracts the credential: the "token" query parameter on
// WebSocket upgrades (browsers cannot set headers there), else the bearer header.
func RequestToken(r *http.Request) string {
	if IsWebSocketUpgrade(r) {
		if t := strings.TrimSpace(r.URL.Query().Get("token")); t != "" {
			return t
		}
	}
	return BearerToken(r)
}

// BearerToken returns the token of an "Authorization: Bearer <t>" header.
func BearerToken(r *http.Request) string {
	raw := strings.TrimSpace(r.Header.Get("Authorization"))
	scheme, token, ok := strings.Cut(raw, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// IsWebSocketUpgrade reports whether r asks for a WebSocket upgrade.
func IsWebSocketUpgrade(r *http.Request) bool {
	return strings.EqualFold(strings.TrimSpace(r.Header.Get("Upgrade")), "websocket")
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error apiError `json:"error"`
}

// WriteUnauthorized writes the uniform authentication failure.
func WriteUnauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("WWW-Authenticate", `Bearer realm="warden"`)
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(errorResponse{Error: apiError{Code: "unauthorized", Message: "authentication required"}})
}
