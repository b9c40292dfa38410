package revocation

import (
	"fmt"
	"strings"
)

// FailureMode decides the outcome of a watermark read that could not be completed
// (store error or undecodable value).
type FailureMode uint8

const (
	// FailOpen treats the user as not invalidated.
	FailOpen FailureMode = iota
	// FailClosed treats the user as invalidated.
	FailClosed
)

func (m FailureMode) String() string {
	if m == FailClosed {
		return "closed"
	}
	return "open"
}

// ParseFailureMode accepts "open" or "closed" (case-insensitive). Blank means FailOpen.
func ParseFailureMode(s string) (FailureMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "open", "fail_open":
		return FailOpen, nil
	case "closed", "fail_closed":
		return FailClosed, nil
	default:
		return FailOpen, fmt.Errorf("%w: failure mode %q", ErrConfig, s)
	}
}
