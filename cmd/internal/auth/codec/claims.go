package codec

import (
	"strings"
	"time"
)

// Role is the authorization tier carried in access tokens.
type Role string

const (
	// RoleUser is an ordinary account.
	RoleUser Role = "USER"
	// RoleAdmin is an administrator.
	RoleAdmin Role = "ADMIN"
	// RoleSuperAdmin is the highest tier.
	RoleSuperAdmin Role = "SUPER_ADMIN"
)

// ParseRole normalizes s into a known Role.
func ParseRole(s string) (Role, bool) {
	switch r := Role(strings.ToUpper(strings.TrimSpace(s))); r {
	case RoleUser, RoleAdmin, RoleSuperAdmin:
		return r, true
	default:
		return "", false
	}
}

// Privileged reports whether r is admin-tier.
func (r Role) Privileged() bool {
	return r == RoleAdmin || r == RoleSuperAdmin
}

// Kind distinguishes access tokens from refresh tokens.
type Kind string

const (
	KindAccess  Kind = "access"
	KindRefresh Kind = "refresh"
)

// Subject is the user identity a token is issued for.
type Subject struct {
	UserID int64
	Email  string
	Name   string
	Role   Role
}

// Claims is the decoded, verified content of a token.
type Claims struct {
	Subject

	TokenID   string
	Kind      Kind
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Reason tags a verification outcome.
type Reason uint8

const (
	ReasonNone Reason = iota
	ReasonMalformed
	ReasonBadSignature
	ReasonExpired
)

func (r Reason) String() string {
	switch r {
	case ReasonNone:
		return "ok"
	case ReasonMalformed:
		return "malformed"
	case ReasonBadSignature:
		return "bad_signature"
	case ReasonExpired:
		return "expired"
	default:
		return "unknown"
	}
}

// Result is the tagged outcome of Verify: either OK with Claims, or a rejection Reason.
type Result struct {
	Claims Claims
	Reason Reason
}

// OK reports whether verification succeeded.
func (r Result) OK() bool { return r.Reason == ReasonNone }

func rejected(reason Reason) Result { return Result{Reason: reason} }
