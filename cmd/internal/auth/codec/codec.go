package codec

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// wireClaims is the JSON claim set on the wire.
// sub=email, jti=UUIDv4, iat/exp in seconds. iatMs repeats iat in unix millis
// so watermarks set within the same second still order against the token.
type wireClaims struct {
	UserID     int64  `json:"userId"`
	Name       string `json:"name,omitempty"`
	Role       Role   `json:"role,omitempty"`
	Kind       Kind   `json:"tokenType"`
	IssuedAtMs int64  `json:"iatMs,omitempty"`
	jwt.RegisteredClaims
}

// Codec signs and verifies HS256 tokens. It is safe for concurrent use.
type Codec struct {
	key        []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
}

// New validates cfg and returns a Codec.
func New(cfg Config) (*Codec, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	key := make([]byte, len(cfg.Secret))
	copy(key, cfg.Secret)
	return &Codec{key: key, accessTTL: cfg.AccessTTL, refreshTTL: cfg.RefreshTTL}, nil
}

// AccessTTL returns the configured access token lifetime.
func (c *Codec) AccessTTL() time.Duration { return c.accessTTL }

// RefreshTTL returns the configured refresh token lifetime.
func (c *Codec) RefreshTTL() time.Duration { return c.refreshTTL }

// IssueAccess mints an access token for sub with iat=now and exp=now+AccessTTL.
// The returned Claims carry iat at millisecond precision.
func (c *Codec) IssueAccess(sub Subject, now time.Time) (string, Claims, error) {
	if _, ok := ParseRole(string(sub.Role)); !ok {
		return "", Claims{}, fmt.Errorf("%w: role %q", ErrInvalidSubject, sub.Role)
	}
	return c.issue(sub, KindAccess, now, c.accessTTL)
}

// IssueRefresh mints a refresh token for sub. The role claim is omitted.
func (c *Codec) IssueRefresh(sub Subject, now time.Time) (string, Claims, error) {
	sub.Role = ""
	return c.issue(sub, KindRefresh, now, c.refreshTTL)
}

func (c *Codec) issue(sub Subject, kind Kind, now time.Time, ttl time.Duration) (string, Claims, error) {
	if sub.UserID <= 0 || strings.TrimSpace(sub.Email) == "" {
		return "", Claims{}, ErrInvalidSubject
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}

	jti, err := uuid.NewRandom()
	if err != nil {
		return "", Claims{}, fmt.Errorf("codec: token id: %w", err)
	}

	iat := jwt.NewNumericDate(now)
	exp := jwt.NewNumericDate(now.Add(ttl))

	wc := wireClaims{
		UserID:     sub.UserID,
		Name:       sub.Name,
		Role:       sub.Role,
		Kind:       kind,
		IssuedAtMs: now.UnixMilli(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub.Email,
			ID:        jti.String(),
			IssuedAt:  iat,
			ExpiresAt: exp,
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, wc).SignedString(c.key)
	if err != nil {
		return "", Claims{}, fmt.Errorf("codec: sign: %w", err)
	}
	return signed, wc.claims(), nil
}

// Verify checks structure, signature and expiry (now >= exp is expired).
// It never returns an error; every failure is a tagged Result.
func (c *Codec) Verify(token string, now time.Time) Result {
	token = strings.TrimSpace(token)
	if token == "" {
		return rejected(ReasonMalformed)
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}

	// Fresh parser per call: the time func is bound to now.
	p := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)

	var wc wireClaims
	_, err := p.ParseWithClaims(token, &wc, func(*jwt.Token) (any, error) {
		return c.key, nil
	})
	if err != nil {
		return rejected(classify(err))
	}

	if !wc.complete() {
		return rejected(ReasonMalformed)
	}
	return Result{Claims: wc.claims()}
}

// Inspect decodes claims WITHOUT verifying the signature or expiry.
// It exists for administrative revocation of a presented token and must never
// be used to authenticate a request.
func (c *Codec) Inspect(token string) (Claims, error) {
	var wc wireClaims
	if _, _, err := jwt.NewParser().ParseUnverified(strings.TrimSpace(token), &wc); err != nil {
		return Claims{}, fmt.Errorf("%w: %v", ErrUnparsable, err)
	}
	return wc.claims(), nil
}

func classify(err error) Reason {
	switch {
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return ReasonBadSignature
	case errors.Is(err, jwt.ErrTokenExpired):
		return ReasonExpired
	default:
		return ReasonMalformed
	}
}

func (wc wireClaims) complete() bool {
	if wc.UserID <= 0 || wc.Subject == "" || wc.ID == "" || wc.IssuedAt == nil || wc.ExpiresAt == nil {
		return false
	}
	switch wc.Kind {
	case KindAccess:
		_, ok := ParseRole(string(wc.Role))
		return ok
	case KindRefresh:
		return true
	default:
		return false
	}
}

func (wc wireClaims) claims() Claims {
	out := Claims{
		Subject: Subject{
			UserID: wc.UserID,
			Email:  wc.Subject,
			Name:   wc.Name,
			Role:   wc.Role,
		},
		TokenID: wc.ID,
		Kind:    wc.Kind,
	}
	if wc.IssuedAt != nil {
		out.IssuedAt = wc.IssuedAt.UTC()
		// iatMs only refines iat; a value outside iat's second is ignored.
		if ms := wc.IssuedAtMs; ms > 0 && ms/1000 == wc.IssuedAt.Unix() {
			out.IssuedAt = time.UnixMilli(ms).UTC()
		}
	}
	if wc.ExpiresAt != nil {
		out.ExpiresAt = wc.ExpiresAt.UTC()
	}
	return out
}
