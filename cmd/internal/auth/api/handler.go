package authapi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"warden/cmd/internal/auth/edge"
	"warden/cmd/internal/auth/session"
)

// Handler wires the auth endpoints to a session.Service.
type Handler struct {
	log     *slog.Logger
	cfg     Config
	svc     *session.Service
	guard   edge.Authenticator
	limiter *loginLimiter
	now     func() time.Time
}

// NewHandler builds a Handler. guard verifies bearer tokens on /auth/verify
// and the admin routes; it is the same verifier the edge runs.
func NewHandler(log *slog.Logger, cfg Config, svc *session.Service, guard edge.Authenticator) (*Handler, error) {
	if svc == nil || guard == nil {
		return nil, errors.New("authapi: session service and guard are required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = slog.Default()
	}
	return &Handler{
		log:     log,
		cfg:     cfg,
		svc:     svc,
		guard:   guard,
		limiter: newLoginLimiter(cfg.LoginIPMax, cfg.LoginIPWindow),
		now:     func() time.Time { return time.Now().UTC() },
	}, nil
}

// Register wires the auth routes onto mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /auth/login", h.handleLogin)
	mux.HandleFunc("POST /auth/register", h.handleRegister)
	mux.HandleFunc("POST /auth/refresh", h.handleRefresh)
	mux.HandleFunc("POST /auth/logout", h.handleLogout)
	mux.HandleFunc("GET /auth/verify", h.handleVerify)

	mux.HandleFunc("GET /auth/admin/users", h.admin(h.handleUsers))
	mux.HandleFunc("GET /auth/admin/users/{id}/sessions", h.admin(h.handleUserSessions))
	mux.HandleFunc("POST /auth/admin/force-logout/{id}", h.admin(h.handleForceLogout))
	mux.HandleFunc("POST /auth/admin/blacklist-token", h.admin(h.handleBlacklistToken))
	mux.HandleFunc("GET /auth/admin/session-stats", h.admin(h.handleSessionStats))
	mux.HandleFunc("GET /auth/admin/force-logout-history", h.admin(h.handleHistory))
	mux.HandleFunc("POST /auth/admin/notices", h.admin(h.handleNotice))
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "email and password are required")
		return
	}

	ip := clientIP(r)
	now := h.now()
	if blocked, retryAfter := h.limiter.blocked(ip, now); blocked {
		h.log.Warn("auth.login.rate_limited", "ip", ip)
		writeRateLimited(w, retryAfter)
		return
	}

	res, err := h.svc.Login(r.Context(), req.Email, req.Password, ip, strings.TrimSpace(r.UserAgent()))
	switch {
	case errors.Is(err, session.ErrInvalidCredentials):
		h.limiter.fail(ip, now)
		writeError(w, http.StatusUnauthorized, "invalid_credentials", "invalid email or password")
		return
	case err != nil:
		h.serverError(w, "auth.login", err)
		return
	}
	h.limiter.reset(ip)

	h.setRefreshCookie(w, res.SessionHash, res.SessionTTL)
	writeSuccess(w, http.StatusOK, "login successful", loginResponse{
		AccessToken: res.AccessToken,
		User:        toUserResponse(res.User),
	})
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}

	u, err := h.svc.Register(r.Context(), req.Email, req.Password, req.Name)
	switch {
	case errors.Is(err, session.ErrEmailTaken):
		writeError(w, http.StatusConflict, "email_taken", "email already exists")
		return
	case errors.Is(err, session.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, "invalid_request", strings.TrimPrefix(err.Error(), session.ErrInvalidInput.Error()+": "))
		return
	case err != nil:
		h.serverError(w, "auth.register", err)
		return
	}
	writeSuccess(w, http.StatusCreated, "registration completed", toUserResponse(u))
}

func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	hash, ok := h.refreshHashFromCookie(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "refresh_missing", "refresh token is missing")
		return
	}

	res, err := h.svc.Refresh(r.Context(), hash)
	switch {
	case errors.Is(err, session.ErrRefreshInvalid):
		h.clearRefreshCookie(w)
		writeError(w, http.StatusUnauthorized, "refresh_invalid", "invalid refresh token")
		return
	case err != nil:
		h.serverError(w, "auth.refresh", err)
		return
	}
	writeSuccess(w, http.StatusOK, "access token refreshed", refreshResponse{AccessToken: res.AccessToken})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if hash, ok := h.refreshHashFromCookie(r); ok {
		h.svc.Logout(r.Context(), hash)
	}
	h.clearRefreshCookie(w)
	writeSuccess(w, http.StatusOK, "logged out", nil)
}

func (h *Handler) handleVerify(w http.ResponseWriter, r *http.Request) {
	id, ok := h.authenticate(w, r)
	if !ok {
		return
	}
	writeSuccess(w, http.StatusOK, "token is valid", verifyResponse{
		UserID:    id.UserID,
		Email:     id.Email,
		Role:      id.Role,
		ExpiresAt: id.ExpiresAt,
	})
}

// authenticate verifies the bearer token, writing the uniform 401 on failure.
func (h *Handler) authenticate(w http.ResponseWriter, r *http.Request) (edge.Identity, bool) {
	tok := edge.BearerToken(r)
	if tok == "" {
		edge.WriteUnauthorized(w)
		return edge.Identity{}, false
	}
	id, err := h.guard.Verify(r.Context(), tok)
	if err != nil {
		h.log.Info("auth.guard.reject", "path", r.URL.Path, "reason", edge.ReasonOf(err).String())
		edge.WriteUnauthorized(w)
		return edge.Identity{}, false
	}
	return id, true
}

func (h *Handler) serverError(w http.ResponseWriter, op string, err error) {
	if errors.Is(err, session.ErrUnavailable) || errors.Is(err, context.DeadlineExceeded) {
		h.log.Error(op+".unavailable", "err", err)
		writeError(w, http.StatusServiceUnavailable, "unavailable", "please retry later")
		return
	}
	h.log.Error(op+".fail", "err", err)
	writeError(w, http.StatusInternalServerError, "internal", fmt.Sprintf("%s failed", strings.TrimPrefix(op, "auth.")))
}
