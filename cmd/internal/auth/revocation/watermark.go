package revocation

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

const (
	// ReasonForceLogout is the only reason currently written.
	ReasonForceLogout = "FORCE_LOGOUT"

	// SystemActor names writes not attributed to an admin (e.g. session takeover).
	SystemActor = "system"
)

// Actor identifies who invalidated a user. A nil *Actor means the system.
type Actor struct {
	AdminUserID *int64
	AdminEmail  string
}

// Watermark is the decoded user-wide invalidation fact.
//
// Two encodings exist on the wire: a legacy bare unix-millis integer and a JSON
// object. Both decode to the same Watermark; Legacy records which one was read.
type Watermark struct {
	Timestamp   time.Time
	AdminUserID *int64
	AdminEmail  string
	Reason      string
	Legacy      bool
}

// Rejects reports whether a token issued at issuedAt is shadowed (issuedAt < Timestamp, millisecond precision).
func (w Watermark) Rejects(issuedAt time.Time) bool {
	return issuedAt.UnixMilli() < w.Timestamp.UnixMilli()
}

type watermarkRecord struct {
	Timestamp   *millis `json:"timestamp"`
	AdminUserID *int64  `json:"adminUserId"`
	AdminEmail  string  `json:"adminEmail"`
	Reason      string  `json:"reason"`
}

// millis accepts a JSON number or a quoted number.
type millis int64

func (m *millis) UnmarshalJSON(b []byte) error {
	b = bytes.Trim(b, `"`)
	n, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil {
		return err
	}
	*m = millis(n)
	return nil
}

// DecodeWatermark resolves either encoding into a Watermark.
func DecodeWatermark(raw string) (Watermark, error) {
	data := bytes.TrimSpace([]byte(raw))
	if len(data) == 0 {
		return Watermark{}, ErrMalformedWatermark
	}

	var legacy int64
	if err := json.Unmarshal(data, &legacy); err == nil {
		return Watermark{
			Timestamp:  time.UnixMilli(legacy).UTC(),
			AdminEmail: SystemActor,
			Reason:     ReasonForceLogout,
			Legacy:     true,
		}, nil
	}

	var rec watermarkRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return Watermark{}, fmt.Errorf("%w: %v", ErrMalformedWatermark, err)
	}
	if rec.Timestamp == nil {
		return Watermark{}, fmt.Errorf("%w: missing timestamp", ErrMalformedWatermark)
	}

	w := Watermark{
		Timestamp:   time.UnixMilli(int64(*rec.Timestamp)).UTC(),
		AdminUserID: rec.AdminUserID,
		AdminEmail:  rec.AdminEmail,
		Reason:      rec.Reason,
	}
	if w.AdminEmail == "" {
		w.AdminEmail = SystemActor
	}
	if w.Reason == "" {
		w.Reason = ReasonForceLogout
	}
	return w, nil
}

// Encode renders the current JSON encoding:
// {"timestamp":<ms>,"adminUserId":<id|null>,"adminEmail":"<email|system>","reason":"FORCE_LOGOUT"}
func (w Watermark) Encode() (string, error) {
	ts := millis(w.Timestamp.UnixMilli())
	rec := watermarkRecord{
		Timestamp:   &ts,
		AdminUserID: w.AdminUserID,
		AdminEmail:  w.AdminEmail,
		Reason:      w.Reason,
	}
	if rec.AdminEmail == "" {
		rec.AdminEmail = SystemActor
	}
	if rec.Reason == "" {
		rec.Reason = ReasonForceLogout
	}
	b, err := json.Marshal(rec)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
