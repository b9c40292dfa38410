package authapi

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"warden/cmd/internal/auth/edge"
	"warden/cmd/internal/auth/session"
)

type adminHandler func(w http.ResponseWriter, r *http.Request, admin edge.Identity)

// admin requires a verified, privileged bearer token.
func (h *Handler) admin(next adminHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := h.authenticate(w, r)
		if !ok {
			return
		}
		if !id.Role.Privileged() {
			h.log.Warn("auth.admin.forbidden", "user_id", id.UserID, "path", r.URL.Path)
			writeError(w, http.StatusForbidden, "forbidden", "administrator role required")
			return
		}
		next(w, r, id)
	}
}

func pathUserID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	return id, err == nil && id > 0
}

func (h *Handler) handleUsers(w http.ResponseWriter, r *http.Request, _ edge.Identity) {
	users, err := h.svc.Users(r.Context())
	if err != nil {
		h.serverError(w, "auth.admin.users", err)
		return
	}
	out := make([]userResponse, 0, len(users))
	for _, u := range users {
		out = append(out, toUserResponse(u))
	}
	writeSuccess(w, http.StatusOK, "users listed", out)
}

func (h *Handler) handleUserSessions(w http.ResponseWriter, r *http.Request, _ edge.Identity) {
	userID, ok := pathUserID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid user id")
		return
	}
	list, err := h.svc.UserSessions(r.Context(), userID)
	if err != nil {
		h.serverError(w, "auth.admin.sessions", err)
		return
	}
	writeSuccess(w, http.StatusOK, "sessions listed", list)
}

func (h *Handler) handleForceLogout(w http.ResponseWriter, r *http.Request, admin edge.Identity) {
	userID, ok := pathUserID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid user id")
		return
	}
	res, err := h.svc.ForceLogout(r.Context(), userID, session.Admin{UserID: admin.UserID, Email: admin.Email})
	switch {
	case errors.Is(err, session.ErrUserNotFound):
		writeError(w, http.StatusNotFound, "not_found", "user not found")
		return
	case err != nil:
		h.serverError(w, "auth.admin.force_logout", err)
		return
	}
	writeSuccess(w, http.StatusOK, "user logged out", res)
}

func (h *Handler) handleBlacklistToken(w http.ResponseWriter, r *http.Request, _ edge.Identity) {
	var req revokeRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}

	res, err := h.svc.RevokeToken(r.Context(), req.Token)
	switch {
	case errors.Is(err, session.ErrInvalidTokenFormat):
		writeError(w, http.StatusBadRequest, "invalid_token", "invalid token format")
		return
	case errors.Is(err, session.ErrMissingTokenID):
		writeError(w, http.StatusBadRequest, "invalid_token", "token has no id")
		return
	case errors.Is(err, session.ErrNothingToRevoke):
		writeError(w, http.StatusBadRequest, "token_expired", "token already expired")
		return
	case err != nil:
		h.serverError(w, "auth.admin.blacklist", err)
		return
	}

	if res.Kind == session.RevokedRefresh {
		writeSuccess(w, http.StatusOK, "refresh session revoked", revokeResponse{TokenHash: res.TokenHash, BlacklistedAt: res.At})
		return
	}
	writeSuccess(w, http.StatusOK, "access token revoked", revokeResponse{JWTID: res.TokenID, BlacklistedAt: res.At})
}

func (h *Handler) handleSessionStats(w http.ResponseWriter, r *http.Request, _ edge.Identity) {
	st, err := h.svc.Stats(r.Context())
	if err != nil {
		h.serverError(w, "auth.admin.stats", err)
		return
	}
	writeSuccess(w, http.StatusOK, "session stats", st)
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request, _ edge.Identity) {
	hist, err := h.svc.History(r.Context())
	if err != nil {
		h.serverError(w, "auth.admin.history", err)
		return
	}
	writeSuccess(w, http.StatusOK, "force-logout history", hist)
}

func (h *Handler) handleNotice(w http.ResponseWriter, r *http.Request, admin edge.Identity) {
	var req noticeRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}
	res, err := h.svc.BroadcastNotice(session.Admin{UserID: admin.UserID, Email: admin.Email}, req.Message)
	switch {
	case errors.Is(err, session.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, "invalid_request", strings.TrimPrefix(err.Error(), session.ErrInvalidInput.Error()+": "))
		return
	case err != nil:
		h.serverError(w, "auth.admin.notice", err)
		return
	}
	writeSuccess(w, http.StatusOK, "notice sent", res)
}
