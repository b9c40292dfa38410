package refresh

import (
	"encoding/json"
	"fmt"
	"time"
)

// Record is the server-side view of a refresh session.
type Record struct {
	UserID     int64     `json:"userId"`
	Email      string    `json:"email"`
	Name       string    `json:"name"`
	IssuedAt   time.Time `json:"issuedAt"`
	ExpiryDate time.Time `json:"expiryDate"`
}

// Expired reports whether the record's own expiry has passed.
func (r Record) Expired(now time.Time) bool {
	return !r.ExpiryDate.After(now)
}

func (r Record) encode() (string, error) {
	r.IssuedAt = r.IssuedAt.UTC()
	r.ExpiryDate = r.ExpiryDate.UTC()
	b, err := json.Marshal(r)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func decodeRecord(raw string) (Record, error) {
	var r Record
	if err := json.Unmarshal([]byte(raw), &r); err != nil {
		return Record{}, fmt.Errorf("%w: %v", ErrMalformedRecord, err)
	}
	if r.UserID <= 0 || r.ExpiryDate.IsZero() {
		return Record{}, ErrMalformedRecord
	}
	return r, nil
}

// Session is the result of Create. Raw must only ever be handed to the
// response that minted it; everything else works with Hash.
type Session struct {
	Raw    string
	Hash   string
	Record Record
}

// SessionInfo is the admin-facing summary of a live session.
type SessionInfo struct {
	TokenHash  string    `json:"tokenHash"`
	IssuedAt   time.Time `json:"issuedAt"`
	ExpiryDate time.Time `json:"expiryDate"`
}
