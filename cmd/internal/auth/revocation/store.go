package revocation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"warden/cmd/internal/kv"
	"warden/cmd/internal/metrics"
)

// Key layout shared with every component reading the store directly.
const (
	BlacklistPrefix = "jwt:blacklist:"
	WatermarkPrefix = "jwt:user_invalidate:"

	blacklistMarker = "blacklisted"

	// DefaultWatermarkTTL must exceed the longest access-token lifetime.
	DefaultWatermarkTTL = 24 * time.Hour
)

// Options configures a Store.
type Options struct {
	WatermarkTTL time.Duration
	FailureMode  FailureMode
	Metrics      *metrics.Metrics

	// Now overrides the clock (tests).
	Now func() time.Time
}

// Store reads and writes revocation facts. It is safe for concurrent use; all
// consistency comes from per-key atomic operations of the backing kv.Store.
type Store struct {
	kv   kv.Store
	log  *slog.Logger
	ttl  time.Duration
	mode FailureMode
	m    *metrics.Metrics
	now  func() time.Time
}

// New constructs a Store over kvs.
func New(kvs kv.Store, log *slog.Logger, opts Options) *Store {
	if log == nil {
		log = slog.Default()
	}
	if opts.WatermarkTTL <= 0 {
		opts.WatermarkTTL = DefaultWatermarkTTL
	}
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Now().UTC() }
	}
	return &Store{
		kv:   kvs,
		log:  log,
		ttl:  opts.WatermarkTTL,
		mode: opts.FailureMode,
		m:    opts.Metrics,
		now:  opts.Now,
	}
}

// FailureMode returns the configured watermark read policy.
func (s *Store) FailureMode() FailureMode { return s.mode }

// BlacklistToken blacklists tokenID until exp. It reports false (and writes
// nothing) when the token is already past its natural expiry.
func (s *Store) BlacklistToken(ctx context.Context, tokenID string, exp time.Time) (bool, error) {
	tokenID = strings.TrimSpace(tokenID)
	if tokenID == "" {
		return false, ErrInvalidTokenID
	}

	ttl := exp.Sub(s.now())
	if ttl <= 0 {
		s.log.Debug("revocation.blacklist.skip_expired", "jti", tokenID)
		return false, nil
	}

	if err := s.kv.Set(ctx, BlacklistPrefix+tokenID, blacklistMarker, ttl); err != nil {
		return false, fmt.Errorf("revocation: blacklist write: %w", err)
	}

	s.m.Revoked("token")
	s.log.Info("revocation.blacklist.set", "jti", tokenID, "ttl_s", int64(ttl.Seconds()))
	return true, nil
}

// IsBlacklisted reports whether tokenID is blacklisted. Store failures are
// returned to the caller, which must treat them as a rejection.
func (s *Store) IsBlacklisted(ctx context.Context, tokenID string) (bool, error) {
	if strings.TrimSpace(tokenID) == "" {
		return false, ErrInvalidTokenID
	}
	ok, err := s.kv.Exists(ctx, BlacklistPrefix+tokenID)
	if err != nil {
		return false, fmt.Errorf("revocation: blacklist read: %w", err)
	}
	return ok, nil
}

// InvalidateAllForUser overwrites the user's watermark with at.
// Last writer wins: the store does not compare against an existing watermark.
func (s *Store) InvalidateAllForUser(ctx context.Context, userID int64, at time.Time, actor *Actor) error {
	if userID <= 0 {
		return ErrInvalidUser
	}
	if at.IsZero() {
		at = s.now()
	}

	w := Watermark{Timestamp: at, AdminEmail: SystemActor, Reason: ReasonForceLogout}
	if actor != nil {
		w.AdminUserID = actor.AdminUserID
		if actor.AdminEmail != "" {
			w.AdminEmail = actor.AdminEmail
		}
	}

	raw, err := w.Encode()
	if err != nil {
		return fmt.Errorf("revocation: encode watermark: %w", err)
	}
	if err := s.kv.Set(ctx, watermarkKey(userID), raw, s.ttl); err != nil {
		return fmt.Errorf("revocation: watermark write: %w", err)
	}

	s.m.Revoked("user")
	s.log.Info("revocation.watermark.set",
		"user_id", userID,
		"timestamp_ms", at.UnixMilli(),
		"admin_user_id", w.AdminUserID,
		"admin_email", w.AdminEmail,
	)
	return nil
}

// Watermark returns the decoded watermark for userID, if any.
func (s *Store) Watermark(ctx context.Context, userID int64) (Watermark, bool, error) {
	if userID <= 0 {
		return Watermark{}, false, ErrInvalidUser
	}
	raw, err := s.kv.Get(ctx, watermarkKey(userID))
	if errors.Is(err, kv.ErrNotFound) {
		return Watermark{}, false, nil
	}
	if err != nil {
		return Watermark{}, false, fmt.Errorf("revocation: watermark read: %w", err)
	}
	w, err := DecodeWatermark(raw)
	if err != nil {
		return Watermark{}, false, err
	}
	return w, true, nil
}

// IsInvalidated reports whether a token issued at issuedAt is shadowed by the
// user's watermark. Read and decode failures are resolved by the FailureMode:
// FailOpen returns (false, nil); FailClosed returns (true, err).
func (s *Store) IsInvalidated(ctx context.Context, userID int64, issuedAt time.Time) (bool, error) {
	w, ok, err := s.Watermark(ctx, userID)
	if err != nil {
		if s.mode == FailClosed {
			s.log.Warn("revocation.watermark.fail_closed", "user_id", userID, "err", err)
			return true, err
		}
		s.m.WatermarkFailOpen()
		s.log.Warn("revocation.watermark.fail_open", "user_id", userID, "err", err)
		return false, nil
	}
	if !ok {
		return false, nil
	}
	return w.Rejects(issuedAt), nil
}

// Counts is the breakdown of live revocation keys.
type Counts struct {
	Tokens int
	Users  int
}

// Counts scans both key families.
func (s *Store) Counts(ctx context.Context) (Counts, error) {
	tokens, err := s.kv.ScanPrefix(ctx, BlacklistPrefix)
	if err != nil {
		return Counts{}, fmt.Errorf("revocation: scan blacklist: %w", err)
	}
	users, err := s.kv.ScanPrefix(ctx, WatermarkPrefix)
	if err != nil {
		return Counts{}, fmt.Errorf("revocation: scan watermarks: %w", err)
	}
	return Counts{Tokens: len(tokens), Users: len(users)}, nil
}

// CountBlacklisted returns blacklisted token ids plus invalidated users.
func (s *Store) CountBlacklisted(ctx context.Context) (int, error) {
	c, err := s.Counts(ctx)
	if err != nil {
		return 0, err
	}
	return c.Tokens + c.Users, nil
}

// HistoryEntry is one live watermark, as listed for administrators.
type HistoryEntry struct {
	UserID      int64
	Timestamp   time.Time
	AdminUserID *int64
	AdminEmail  string
	Reason      string
}

// History lists live watermarks, newest first.
func (s *Store) History(ctx context.Context) ([]HistoryEntry, error) {
	keys, err := s.kv.ScanPrefix(ctx, WatermarkPrefix)
	if err != nil {
		return nil, fmt.Errorf("revocation: scan watermarks: %w", err)
	}

	out := make([]HistoryEntry, 0, len(keys))
	for _, key := range keys {
		userID, err := strconv.ParseInt(strings.TrimPrefix(key, WatermarkPrefix), 10, 64)
		if err != nil || userID <= 0 {
			s.log.Warn("revocation.history.skip", "key", key, "reason", "bad_user_id")
			continue
		}

		w, ok, err := s.Watermark(ctx, userID)
		switch {
		case errors.Is(err, ErrMalformedWatermark):
			s.log.Warn("revocation.history.skip", "key", key, "reason", "malformed")
			continue
		case err != nil:
			return nil, err
		case !ok:
			// Expired between scan and read.
			continue
		}

		out = append(out, HistoryEntry{
			UserID:      userID,
			Timestamp:   w.Timestamp,
			AdminUserID: w.AdminUserID,
			AdminEmail:  w.AdminEmail,
			Reason:      w.Reason,
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	return out, nil
}

func watermarkKey(userID int64) string {
	return WatermarkPrefix + strconv.FormatInt(userID, 10)
}
