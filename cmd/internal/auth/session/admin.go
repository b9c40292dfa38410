package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"warden/cmd/identity"
	"warden/cmd/internal/auth/refresh"
	"warden/cmd/internal/auth/revocation"
	v1 "warden/shared/contracts/notify/v1"
)

// Placeholders for history entries whose user no longer exists.
const (
	DeletedUserEmail = "deleted user"
	UnknownUserName  = "unknown"
)

const statsNote = "active sessions are estimated from the number of live refresh tokens"

// Admin identifies the administrator performing an operation.
type Admin struct {
	UserID int64
	Email  string
}

// ForceLogoutResult describes a completed force-logout.
type ForceLogoutResult struct {
	UserID     int64     `json:"userId"`
	Email      string    `json:"email"`
	LoggedOut  time.Time `json:"forceLogoutTime"`
	AdminID    int64     `json:"adminUserId"`
	AdminEmail string    `json:"adminEmail"`
}

// ForceLogout shadows every token of targetID and removes its refresh session.
func (s *Service) ForceLogout(ctx context.Context, targetID int64, admin Admin) (ForceLogoutResult, error) {
	u, err := s.users.UserByID(ctx, targetID)
	if identity.IsNotFound(err) {
		return ForceLogoutResult{}, ErrUserNotFound
	}
	if err != nil {
		return ForceLogoutResult{}, fmt.Errorf("session: directory: %w", err)
	}

	now := s.now()
	adminID := admin.UserID
	actor := &revocation.Actor{AdminUserID: &adminID, AdminEmail: admin.Email}
	if err := s.revs.InvalidateAllForUser(ctx, u.ID, now, actor); err != nil {
		return ForceLogoutResult{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if err := s.refs.DeleteByUser(ctx, u.ID); err != nil {
		// The watermark already shadows every token; the session expires on its own.
		s.log.Warn("auth.admin.force_logout.session_delete_failed", "user_id", u.ID, "err", err)
	}

	s.log.Warn("auth.admin.force_logout", "user_id", u.ID, "email", u.Email, "admin_user_id", admin.UserID, "admin_email", admin.Email)
	return ForceLogoutResult{
		UserID:     u.ID,
		Email:      u.Email,
		LoggedOut:  now,
		AdminID:    admin.UserID,
		AdminEmail: admin.Email,
	}, nil
}

// RevokeKind says which mechanism RevokeToken used.
type RevokeKind string

const (
	RevokedRefresh RevokeKind = "refresh_session"
	RevokedAccess  RevokeKind = "access_token"
)

// RevokeResult describes a completed revocation.
type RevokeResult struct {
	Kind      RevokeKind
	TokenHash string
	TokenID   string
	At        time.Time
}

// RevokeToken revokes value, which is either a refresh cookie hash or a JWT.
// A hash deletes the refresh session; a JWT is blacklisted by jti until its
// natural expiry.
func (s *Service) RevokeToken(ctx context.Context, value string) (RevokeResult, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return RevokeResult{}, ErrInvalidTokenFormat
	}

	deleted, err := s.refs.DeleteByHash(ctx, value)
	if err != nil {
		return RevokeResult{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if deleted {
		s.log.Info("auth.admin.revoke", "kind", string(RevokedRefresh))
		return RevokeResult{Kind: RevokedRefresh, TokenHash: value, At: s.now()}, nil
	}

	claims, err := s.tokens.Inspect(value)
	if err != nil {
		return RevokeResult{}, ErrInvalidTokenFormat
	}
	if claims.TokenID == "" {
		return RevokeResult{}, ErrMissingTokenID
	}

	// The claims are unverified: no token this authority issued outlives
	// now+RefreshTTL, so a later exp only bounds how long the key lingers.
	now := s.now()
	until := claims.ExpiresAt
	if limit := now.Add(s.tokens.RefreshTTL()); until.After(limit) {
		s.log.Warn("auth.admin.revoke.exp_capped", "jti", claims.TokenID, "exp", claims.ExpiresAt, "capped_to", limit)
		until = limit
	}
	written, err := s.revs.BlacklistToken(ctx, claims.TokenID, until)
	if err != nil {
		return RevokeResult{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if !written {
		return RevokeResult{}, ErrNothingToRevoke
	}

	s.log.Info("auth.admin.revoke", "kind", string(RevokedAccess), "jti", claims.TokenID, "user_id", claims.UserID)
	return RevokeResult{Kind: RevokedAccess, TokenID: claims.TokenID, At: now}, nil
}

// NoticeResult reports how many consoles received an admin notice.
type NoticeResult struct {
	Delivered int       `json:"delivered"`
	SentAt    time.Time `json:"sentAt"`
}

// MaxNoticeLength bounds the text of an admin notice, in runes.
const MaxNoticeLength = 500

// BroadcastNotice pushes an ADMIN_NOTICE from admin to every connected console.
// Delivery is best effort; consoles with a full queue are skipped.
func (s *Service) BroadcastNotice(admin Admin, message string) (NoticeResult, error) {
	message = strings.TrimSpace(message)
	if message == "" || utf8.RuneCountInString(message) > MaxNoticeLength {
		return NoticeResult{}, fmt.Errorf("%w: message must be 1 to %d characters", ErrInvalidInput, MaxNoticeLength)
	}

	now := s.now()
	res := NoticeResult{SentAt: now}
	if s.notify == nil {
		return res, nil
	}
	payload, err := v1.Encode(v1.NewAdminNotice(now, admin.Email, message))
	if err != nil {
		return NoticeResult{}, fmt.Errorf("session: encode notice: %w", err)
	}
	res.Delivered = s.notify.Broadcast(payload)
	s.log.Info("auth.admin.notice", "admin_user_id", admin.UserID, "delivered", res.Delivered)
	return res, nil
}

// Stats is the session overview shown to administrators.
type Stats struct {
	Timestamp            time.Time `json:"timestamp"`
	ActiveSessionsApprox int       `json:"activeSessionsApprox"`
	BlacklistedTokens    int       `json:"blacklistedTokens"`
	BlacklistedTokenIDs  int       `json:"blacklistedTokenIds"`
	InvalidatedUsers     int       `json:"invalidatedUsers"`
	ConnectedAdmins      int       `json:"connectedAdmins"`
	Note                 string    `json:"note"`
}

// Stats counts live sessions and revocation keys. BlacklistedTokens is the
// sum of blacklisted ids and invalidated users.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	active, err := s.refs.CountActive(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	c, err := s.revs.Counts(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	connected := 0
	if s.notify != nil {
		connected = s.notify.Count()
	}
	return Stats{
		Timestamp:            s.now(),
		ActiveSessionsApprox: active,
		BlacklistedTokens:    c.Tokens + c.Users,
		BlacklistedTokenIDs:  c.Tokens,
		InvalidatedUsers:     c.Users,
		ConnectedAdmins:      connected,
		Note:                 statsNote,
	}, nil
}

// HistoryEntry is a force-logout record with the user resolved.
type HistoryEntry struct {
	UserID      int64     `json:"userId"`
	UserEmail   string    `json:"userEmail"`
	UserName    string    `json:"userName"`
	Timestamp   int64     `json:"timestamp"`
	LogoutTime  time.Time `json:"logoutTime"`
	AdminUserID *int64    `json:"adminUserId"`
	AdminEmail  string    `json:"adminEmail"`
	Reason      string    `json:"reason"`
}

// History lists live watermarks, newest first.
func (s *Service) History(ctx context.Context) ([]HistoryEntry, error) {
	entries, err := s.revs.History(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	out := make([]HistoryEntry, 0, len(entries))
	for _, e := range entries {
		h := HistoryEntry{
			UserID:      e.UserID,
			UserEmail:   DeletedUserEmail,
			UserName:    UnknownUserName,
			Timestamp:   e.Timestamp.UnixMilli(),
			LogoutTime:  e.Timestamp,
			AdminUserID: e.AdminUserID,
			AdminEmail:  e.AdminEmail,
			Reason:      e.Reason,
		}
		u, err := s.users.UserByID(ctx, e.UserID)
		switch {
		case err == nil:
			h.UserEmail, h.UserName = u.Email, u.Name
		case !identity.IsNotFound(err):
			return nil, fmt.Errorf("session: directory: %w", err)
		}
		out = append(out, h)
	}
	return out, nil
}

// UserSessions lists the refresh sessions of userID.
func (s *Service) UserSessions(ctx context.Context, userID int64) ([]refresh.SessionInfo, error) {
	list, err := s.refs.SessionsForUser(ctx, userID)
	if errors.Is(err, refresh.ErrInvalidUser) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return list, nil
}

// Users lists the directory.
func (s *Service) Users(ctx context.Context) ([]identity.User, error) {
	return s.users.ListUsers(ctx)
}
