package refresh

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"warden/cmd/internal/auth/codec"
	"warden/cmd/internal/kv"
	"warden/cmd/security/token"
)

// Key prefixes shared with any component reading the store directly.
const (
	TokenPrefix = "refresh_token:"
	UserPrefix  = "user_refresh:"
	HashPrefix  = "hash_to_token:"

	// MinSaltBytes is the smallest accepted cookie salt.
	MinSaltBytes = 16
)

// Issuer mints refresh tokens. *codec.Codec satisfies it.
type Issuer interface {
	IssueRefresh(sub codec.Subject, now time.Time) (string, codec.Claims, error)
}

// Options configures a Store.
type Options struct {
	// Salt is appended to the raw token before hashing.
	Salt string

	// Now overrides the clock (tests).
	Now func() time.Time
}

// Store manages refresh sessions over a kv.Store.
type Store struct {
	kv     kv.Store
	issuer Issuer
	salt   string
	log    *slog.Logger
	now    func() time.Time
}

// New validates opts and returns a Store.
func New(kvs kv.Store, issuer Issuer, log *slog.Logger, opts Options) (*Store, error) {
	if kvs == nil || issuer == nil {
		return nil, fmt.Errorf("%w: store and issuer are required", ErrConfig)
	}
	if err := token.ValidateSalt(opts.Salt, MinSaltBytes); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfig, err)
	}
	if log == nil {
		log = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Now().UTC() }
	}
	return &Store{
		kv:     kvs,
		issuer: issuer,
		salt:   strings.TrimSpace(opts.Salt),
		log:    log,
		now:    opts.Now,
	}, nil
}

// Hash returns the cookie value for a raw refresh token.
func (s *Store) Hash(raw string) string {
	return token.HashSaltedHex(raw, s.salt)
}

// Create replaces any existing session of sub.UserID with a fresh one.
func (s *Store) Create(ctx context.Context, sub codec.Subject) (Session, error) {
	if sub.UserID <= 0 {
		return Session{}, ErrInvalidUser
	}
	if err := s.DeleteByUser(ctx, sub.UserID); err != nil {
		return Session{}, err
	}

	now := s.now()
	raw, claims, err := s.issuer.IssueRefresh(sub, now)
	if err != nil {
		return Session{}, fmt.Errorf("refresh: mint: %w", err)
	}

	rec := Record{
		UserID:     sub.UserID,
		Email:      sub.Email,
		Name:       sub.Name,
		IssuedAt:   claims.IssuedAt,
		ExpiryDate: claims.ExpiresAt,
	}
	ttl := claims.ExpiresAt.Sub(now)
	if ttl <= 0 {
		return Session{}, fmt.Errorf("%w: refresh token already expired", ErrConfig)
	}

	encoded, err := rec.encode()
	if err != nil {
		return Session{}, fmt.Errorf("refresh: encode record: %w", err)
	}

	hash := s.Hash(raw)
	writes := []struct{ key, value string }{
		{TokenPrefix + raw, encoded},
		{userKey(sub.UserID), raw},
		{HashPrefix + hash, raw},
	}
	for i, w := range writes {
		if err := s.kv.Set(ctx, w.key, w.value, ttl); err != nil {
			// Roll back what was written; readers already tolerate leftovers.
			keys := make([]string, 0, i)
			for _, done := range writes[:i] {
				keys = append(keys, done.key)
			}
			if len(keys) > 0 {
				if derr := s.kv.Delete(context.WithoutCancel(ctx), keys...); derr != nil {
					s.log.Warn("refresh.session.rollback_failed", "user_id", sub.UserID, "keys", len(keys), "err", derr)
				}
			}
			return Session{}, fmt.Errorf("refresh: write session: %w", err)
		}
	}

	s.log.Info("refresh.session.created", "user_id", sub.UserID, "expires_at", rec.ExpiryDate)
	return Session{Raw: raw, Hash: hash, Record: rec}, nil
}

// FindByHash resolves a cookie hash to its session record.
// A record past its own expiry is deleted and reported as ErrNotFound.
func (s *Store) FindByHash(ctx context.Context, hash string) (Record, error) {
	hash = strings.TrimSpace(hash)
	if hash == "" {
		return Record{}, ErrNotFound
	}

	raw, err := s.get(ctx, HashPrefix+hash)
	if err != nil {
		return Record{}, err
	}
	value, err := s.get(ctx, TokenPrefix+raw)
	if err != nil {
		return Record{}, err
	}

	rec, err := decodeRecord(value)
	if err != nil {
		s.log.Warn("refresh.session.malformed", "err", err)
		return Record{}, ErrNotFound
	}
	owner, err := s.get(ctx, userKey(rec.UserID))
	if err != nil {
		return Record{}, err
	}
	if owner != raw {
		// Superseded by a newer session whose cleanup did not finish.
		return Record{}, ErrNotFound
	}
	if rec.Expired(s.now()) {
		if err := s.deleteAll(ctx, raw, hash, rec.UserID); err != nil {
			s.log.Warn("refresh.session.expired_cleanup_failed", "user_id", rec.UserID, "err", err)
		}
		return Record{}, ErrNotFound
	}
	return rec, nil
}

// DeleteByUser removes the user's session, if any.
func (s *Store) DeleteByUser(ctx context.Context, userID int64) error {
	if userID <= 0 {
		return ErrInvalidUser
	}
	raw, err := s.get(ctx, userKey(userID))
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := s.deleteAll(ctx, raw, s.Hash(raw), userID); err != nil {
		return err
	}
	s.log.Info("refresh.session.deleted", "user_id", userID, "by", "user")
	return nil
}

// DeleteByHash removes the session behind hash. It reports whether the hash
// resolved, so a second call for the same hash returns false.
func (s *Store) DeleteByHash(ctx context.Context, hash string) (bool, error) {
	hash = strings.TrimSpace(hash)
	if hash == "" {
		return false, nil
	}

	raw, err := s.get(ctx, HashPrefix+hash)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	var userID int64
	if value, err := s.get(ctx, TokenPrefix+raw); err == nil {
		if rec, err := decodeRecord(value); err == nil {
			userID = rec.UserID
		}
	} else if !errors.Is(err, ErrNotFound) {
		return false, err
	}

	if err := s.deleteAll(ctx, raw, hash, userID); err != nil {
		return false, err
	}
	s.log.Info("refresh.session.deleted", "user_id", userID, "by", "hash")
	return true, nil
}

// CountActive approximates the number of live sessions.
func (s *Store) CountActive(ctx context.Context) (int, error) {
	keys, err := s.kv.ScanPrefix(ctx, TokenPrefix)
	if err != nil {
		return 0, fmt.Errorf("refresh: scan sessions: %w", err)
	}
	return len(keys), nil
}

// SessionsForUser lists the user's live sessions (zero or one).
func (s *Store) SessionsForUser(ctx context.Context, userID int64) ([]SessionInfo, error) {
	if userID <= 0 {
		return nil, ErrInvalidUser
	}
	raw, err := s.get(ctx, userKey(userID))
	if errors.Is(err, ErrNotFound) {
		return []SessionInfo{}, nil
	}
	if err != nil {
		return nil, err
	}
	value, err := s.get(ctx, TokenPrefix+raw)
	if errors.Is(err, ErrNotFound) {
		return []SessionInfo{}, nil
	}
	if err != nil {
		return nil, err
	}
	rec, err := decodeRecord(value)
	if err != nil {
		return []SessionInfo{}, nil
	}
	return []SessionInfo{{
		TokenHash:  s.Hash(raw),
		IssuedAt:   rec.IssuedAt,
		ExpiryDate: rec.ExpiryDate,
	}}, nil
}

// deleteAll removes the three linked keys. userID may be 0 when the record
// was already gone; the owner pointer is then left to expire.
func (s *Store) deleteAll(ctx context.Context, raw, hash string, userID int64) error {
	keys := []string{TokenPrefix + raw, HashPrefix + hash}
	if userID > 0 {
		owner, err := s.get(ctx, userKey(userID))
		switch {
		case err == nil && owner == raw:
			keys = append(keys, userKey(userID))
		case err != nil && !errors.Is(err, ErrNotFound):
			return err
		}
	}
	if err := s.kv.Delete(ctx, keys...); err != nil {
		return fmt.Errorf("refresh: delete session: %w", err)
	}
	return nil
}

func (s *Store) get(ctx context.Context, key string) (string, error) {
	v, err := s.kv.Get(ctx, key)
	if errors.Is(err, kv.ErrNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("refresh: read: %w", err)
	}
	return v, nil
}

func userKey(userID int64) string {
	return UserPrefix + strconv.FormatInt(userID, 10)
}
