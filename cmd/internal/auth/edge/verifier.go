package edge

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"warden/cmd/internal/auth/codec"
	"warden/cmd/internal/metrics"
)

// TokenCodec is the stateless part of verification. *codec.Codec satisfies it.
type TokenCodec interface {
	Verify(token string, now time.Time) codec.Result
}

// Revocations is the read side of the revocation store. *revocation.Store satisfies it.
type Revocations interface {
	IsBlacklisted(ctx context.Context, tokenID string) (bool, error)
	IsInvalidated(ctx context.Context, userID int64, issuedAt time.Time) (bool, error)
}

// Identity is a verified caller.
type Identity struct {
	UserID    int64
	Email     string
	Name      string
	Role      codec.Role
	TokenID   string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Verifier runs codec, blacklist and watermark checks in that order.
type Verifier struct {
	codec TokenCodec
	revs  Revocations
	log   *slog.Logger
	m     *metrics.Metrics
	now   func() time.Time
}

// VerifierOption customizes a Verifier.
type VerifierOption func(*Verifier)

// WithMetrics counts verification outcomes.
func WithMetrics(m *metrics.Metrics) VerifierOption {
	return func(v *Verifier) { v.m = m }
}

// WithClock overrides the verification clock (tests).
func WithClock(now func() time.Time) VerifierOption {
	return func(v *Verifier) {
		if now != nil {
			v.now = now
		}
	}
}

// NewVerifier constructs a Verifier.
func NewVerifier(c TokenCodec, revs Revocations, log *slog.Logger, opts ...VerifierOption) *Verifier {
	if log == nil {
		log = slog.Default()
	}
	v := &Verifier{
		codec: c,
		revs:  revs,
		log:   log,
		now:   func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(v)
		}
	}
	return v
}

// Verify returns the caller's Identity, or a *Rejection.
// Blacklist read failures always reject; watermark read failures follow the
// revocation store's FailureMode.
func (v *Verifier) Verify(ctx context.Context, token string) (Identity, error) {
	id, err := v.verify(ctx, strings.TrimSpace(token))
	v.m.Verify(ReasonOf(err).String())
	return id, err
}

func (v *Verifier) verify(ctx context.Context, token string) (Identity, error) {
	res := v.codec.Verify(token, v.now())
	if !res.OK() {
		return Identity{}, reject(fromCodec(res.Reason), nil)
	}
	cl := res.Claims
	if cl.Kind != codec.KindAccess {
		return Identity{}, reject(ReasonWrongTokenType, nil)
	}

	blacklisted, err := v.revs.IsBlacklisted(ctx, cl.TokenID)
	if err != nil {
		v.log.Warn("edge.blacklist.unavailable", "jti", cl.TokenID, "err", err)
		return Identity{}, reject(ReasonStoreUnavailable, err)
	}
	if blacklisted {
		return Identity{}, reject(ReasonBlacklisted, nil)
	}

	shadowed, err := v.revs.IsInvalidated(ctx, cl.UserID, cl.IssuedAt)
	if err != nil {
		return Identity{}, reject(ReasonStoreUnavailable, err)
	}
	if shadowed {
		return Identity{}, reject(ReasonWatermarkShadowed, nil)
	}

	return Identity{
		UserID:    cl.UserID,
		Email:     cl.Email,
		Name:      cl.Name,
		Role:      cl.Role,
		TokenID:   cl.TokenID,
		IssuedAt:  cl.IssuedAt,
		ExpiresAt: cl.ExpiresAt,
	}, nil
}

func fromCodec(r codec.Reason) Reason {
	switch r {
	case codec.ReasonBadSignature:
		return ReasonBadSignature
	case codec.ReasonExpired:
		return ReasonExpired
	default:
		return ReasonMalformed
	}
}
