package edge

import (
	"errors"
	"fmt"
)

// ErrRejected matches every *Rejection via errors.Is.
var ErrRejected = errors.New("edge: token rejected")

// ErrConfig is returned for invalid edge configuration.
var ErrConfig = errors.New("edge: invalid config")

// Reason is why a token was rejected.
type Reason uint8

const (
	ReasonNone Reason = iota
	ReasonMalformed
	ReasonBadSignature
	ReasonExpired
	ReasonBlacklisted
	ReasonWatermarkShadowed
	ReasonStoreUnavailable
	ReasonWrongTokenType
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
	case ReasonBlacklisted:
		return "blacklisted"
	case ReasonWatermarkShadowed:
		return "watermark_shadowed"
	case ReasonStoreUnavailable:
		return "store_unavailable"
	case ReasonWrongTokenType:
		return "wrong_token_type"
	default:
		return "unknown"
	}
}

// Rejection is the error returned by Verifier.Verify.
type Rejection struct {
	Reason Reason
	Err    error
}

func (r *Rejection) Error() string {
	if r.Err != nil {
		return fmt.Sprintf("edge: token rejected (%s): %v", r.Reason, r.Err)
	}
	return fmt.Sprintf("edge: token rejected (%s)", r.Reason)
}

func (r *Rejection) Unwrap() error { return r.Err }

// Is reports true for ErrRejected.
func (r *Rejection) Is(target error) bool { return target == ErrRejected }

// ReasonOf extracts the Reason from err, or ReasonNone.
func ReasonOf(err error) Reason {
	var rej *Rejection
	if errors.As(err, &rej) {
		return rej.Reason
	}
	return ReasonNone
}

func reject(reason Reason, err error) *Rejection {
	return &Rejection{Reason: reason, Err: err}
}
