package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"warden/cmd/identity"
	"warden/cmd/internal/auth/codec"
	"warden/cmd/internal/auth/refresh"
	"warden/cmd/internal/auth/revocation"
	"warden/cmd/internal/metrics"
	v1 "warden/shared/contracts/notify/v1"
)

// Passwords hashes and checks passwords. password.Config satisfies it.
type Passwords interface {
	Hash(password string) (string, error)
	Verify(encoded, password string) (bool, error)
	NeedsRehash(encoded string) bool
}

// Tokens mints and inspects tokens. *codec.Codec satisfies it.
type Tokens interface {
	IssueAccess(sub codec.Subject, now time.Time) (string, codec.Claims, error)
	Inspect(token string) (codec.Claims, error)
	// RefreshTTL is the longest lifetime of any token the codec issues.
	RefreshTTL() time.Duration
}

// Notifier delivers realtime payloads to connected consoles, keyed by email.
// *realtime.Registry satisfies it.
type Notifier interface {
	SendTo(email string, payload []byte) bool
	Broadcast(payload []byte) int
	Count() int
}

// Deps are the collaborators of a Service. Notifier and Metrics are optional.
type Deps struct {
	Users       identity.Store
	Passwords   Passwords
	Tokens      Tokens
	Sessions    *refresh.Store
	Revocations *revocation.Store
	Notifier    Notifier
	Metrics     *metrics.Metrics
	Log         *slog.Logger
	Now         func() time.Time
}

// Service implements login, refresh, logout and the administrative operations.
type Service struct {
	users  identity.Store
	pw     Passwords
	tokens Tokens
	refs   *refresh.Store
	revs   *revocation.Store
	notify Notifier
	m      *metrics.Metrics
	log    *slog.Logger
	now    func() time.Time

	// dummyHash is verified against for unknown emails so both failures cost the same.
	dummyHash string
}

// NewService checks d and builds a Service.
func NewService(d Deps) (*Service, error) {
	if d.Users == nil || d.Passwords == nil || d.Tokens == nil || d.Sessions == nil || d.Revocations == nil {
		return nil, fmt.Errorf("%w: users, passwords, tokens, sessions and revocations are required", ErrConfig)
	}
	if d.Log == nil {
		d.Log = slog.Default()
	}
	if d.Now == nil {
		d.Now = func() time.Time { return time.Now().UTC() }
	}
	dummy, err := d.Passwords.Hash("dummy-password-for-timing-only")
	if err != nil {
		return nil, fmt.Errorf("%w: password hasher: %v", ErrConfig, err)
	}
	return &Service{
		users:     d.Users,
		pw:        d.Passwords,
		tokens:    d.Tokens,
		refs:      d.Sessions,
		revs:      d.Revocations,
		notify:    d.Notifier,
		m:         d.Metrics,
		log:       d.Log,
		now:       d.Now,
		dummyHash: dummy,
	}, nil
}

// LoginResult is what a successful login hands to the transport.
// SessionHash goes into the refresh cookie; the raw refresh token never leaves
// the authority.
type LoginResult struct {
	AccessToken  string
	AccessClaims codec.Claims
	User         identity.User
	SessionHash  string
	SessionTTL   time.Duration
}

// Register creates a USER account.
func (s *Service) Register(ctx context.Context, email, password, name string) (identity.User, error) {
	email = identity.NormalizeEmail(email)
	if !identity.ValidEmail(email) {
		return identity.User{}, fmt.Errorf("%w: invalid email", ErrInvalidInput)
	}
	if !identity.ValidName(name) {
		return identity.User{}, fmt.Errorf("%w: name must be %d to %d characters", ErrInvalidInput, identity.MinNameLength, identity.MaxNameLength)
	}
	hash, err := s.pw.Hash(password)
	if err != nil {
		return identity.User{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	u, err := s.users.CreateUser(ctx, identity.CreateUserInput{
		Email:        email,
		Name:         name,
		PasswordHash: hash,
		Role:         codec.RoleUser,
		Now:          s.now(),
	})
	switch {
	case identity.IsConflict(err):
		s.log.Info("auth.register.conflict", "email", email)
		return identity.User{}, ErrEmailTaken
	case identity.IsInvalidInput(err):
		return identity.User{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	case err != nil:
		return identity.User{}, err
	}
	s.log.Info("auth.register.ok", "user_id", u.ID, "email", u.Email)
	return u, nil
}

// Login authenticates email and password and opens a session.
//
// For privileged users the previous session is taken over first: a
// FORCED_LOGOUT_NOTICE is pushed to the connected console (best effort), then
// the user watermark is set to the login instant. The new access token is
// issued at that same instant, so it is not shadowed while every earlier token,
// including one from the same second, is.
func (s *Service) Login(ctx context.Context, email, password, ip, userAgent string) (LoginResult, error) {
	u, err := s.authenticate(ctx, email, password)
	if err != nil {
		s.m.Login("invalid")
		return LoginResult{}, err
	}

	now := s.now()

	if u.Role.Privileged() {
		s.pushTakeoverNotice(u, now, ip, userAgent)
		if err := s.revs.InvalidateAllForUser(ctx, u.ID, now, nil); err != nil {
			s.m.Login("error")
			s.log.Error("auth.login.takeover_failed", "user_id", u.ID, "err", err)
			return LoginResult{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		s.log.Warn("auth.login.takeover", "user_id", u.ID, "email", u.Email, "ip", ip)
	}

	access, claims, err := s.tokens.IssueAccess(u.Subject(), now)
	if err != nil {
		s.m.Login("error")
		return LoginResult{}, fmt.Errorf("session: issue access: %w", err)
	}
	sess, err := s.refs.Create(ctx, u.Subject())
	if err != nil {
		s.m.Login("error")
		s.log.Error("auth.login.session_failed", "user_id", u.ID, "err", err)
		return LoginResult{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	s.m.Login("ok")
	s.log.Info("auth.login.ok", "user_id", u.ID, "role", string(u.Role), "jti", claims.TokenID, "ip", ip)
	return LoginResult{
		AccessToken:  access,
		AccessClaims: claims,
		User:         u,
		SessionHash:  sess.Hash,
		SessionTTL:   sess.Record.ExpiryDate.Sub(s.now()),
	}, nil
}

func (s *Service) authenticate(ctx context.Context, email, password string) (identity.User, error) {
	email = identity.NormalizeEmail(email)
	if email == "" || password == "" {
		return identity.User{}, ErrInvalidCredentials
	}

	u, err := s.users.UserByEmail(ctx, email)
	if identity.IsNotFound(err) {
		_, _ = s.pw.Verify(s.dummyHash, password)
		s.log.Info("auth.login.fail", "email", email, "reason", "unknown_user")
		return identity.User{}, ErrInvalidCredentials
	}
	if err != nil {
		return identity.User{}, fmt.Errorf("session: directory: %w", err)
	}

	ok, err := s.pw.Verify(u.PasswordHash, password)
	if err != nil {
		s.log.Error("auth.login.bad_hash", "user_id", u.ID, "err", err)
		return identity.User{}, ErrInvalidCredentials
	}
	if !ok {
		s.log.Info("auth.login.fail", "user_id", u.ID, "reason", "bad_password")
		return identity.User{}, ErrInvalidCredentials
	}

	if s.pw.NeedsRehash(u.PasswordHash) {
		if h, err := s.pw.Hash(password); err == nil {
			if err := s.users.UpdatePasswordHash(ctx, u.ID, h); err != nil {
				s.log.Warn("auth.login.rehash_failed", "user_id", u.ID, "err", err)
			}
		}
	}
	return u, nil
}

func (s *Service) pushTakeoverNotice(u identity.User, at time.Time, ip, userAgent string) {
	if s.notify == nil {
		return
	}
	payload, err := v1.Encode(v1.NewForcedLogoutNotice(at, ip, userAgent))
	if err != nil {
		s.log.Error("auth.login.notice_encode_failed", "user_id", u.ID, "err", err)
		return
	}
	delivered := s.notify.SendTo(u.Email, payload)
	s.log.Info("auth.login.notice", "user_id", u.ID, "delivered", delivered)
}

// RefreshResult carries a new access token.
type RefreshResult struct {
	AccessToken  string
	AccessClaims codec.Claims
}

// Refresh resolves a cookie hash and issues a new access token for its user.
// The user is re-read from the directory so role changes take effect.
func (s *Service) Refresh(ctx context.Context, hash string) (RefreshResult, error) {
	rec, err := s.refs.FindByHash(ctx, hash)
	if errors.Is(err, refresh.ErrNotFound) {
		return RefreshResult{}, ErrRefreshInvalid
	}
	if err != nil {
		return RefreshResult{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	u, err := s.users.UserByID(ctx, rec.UserID)
	if identity.IsNotFound(err) {
		s.log.Warn("auth.refresh.orphan", "user_id", rec.UserID)
		return RefreshResult{}, ErrRefreshInvalid
	}
	if err != nil {
		return RefreshResult{}, fmt.Errorf("session: directory: %w", err)
	}

	access, claims, err := s.tokens.IssueAccess(u.Subject(), s.now())
	if err != nil {
		return RefreshResult{}, fmt.Errorf("session: issue access: %w", err)
	}
	s.log.Info("auth.refresh.ok", "user_id", u.ID, "jti", claims.TokenID)
	return RefreshResult{AccessToken: access, AccessClaims: claims}, nil
}

// Logout ends the session behind hash. It never fails: an unknown hash is a
// no-op and store errors are logged.
func (s *Service) Logout(ctx context.Context, hash string) {
	hash = strings.TrimSpace(hash)
	if hash == "" {
		return
	}
	deleted, err := s.refs.DeleteByHash(ctx, hash)
	if err != nil {
		s.log.Warn("auth.logout.delete_failed", "err", err)
		return
	}
	s.log.Info("auth.logout.ok", "deleted", deleted)
}
