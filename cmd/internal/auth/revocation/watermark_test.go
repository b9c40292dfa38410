package revocation

import (
	"errors"
	"testing"
	"time"
)

func TestDecodeWatermark_LegacyAndJSONAgree(t *testing.T) {
	t.Parallel()

	const ms = int64(1767225600123)

	legacy, err := DecodeWatermark("1767225600123")
	if err != nil {
		t.Fatalf("legacy decode: %v", err)
	}
	current, err := DecodeWatermark(`{"timestamp":1767225600123,"adminUserId":9,"adminEmail":"root@example.com","reason":"FORCE_LOGOUT"}`)
	if err != nil {
		t.Fatalf("json decode: %v", err)
	}

	if !legacy.Timestamp.Equal(current.Timestamp) || legacy.Timestamp.UnixMilli() != ms {
		t.Fatalf("timestamps differ: legacy=%v json=%v", legacy.Timestamp, current.Timestamp)
	}
	if !legacy.Legacy || current.Legacy {
		t.Fatalf("legacy flags: legacy=%v current=%v", legacy.Legacy, current.Legacy)
	}
	if legacy.AdminEmail != SystemActor || legacy.AdminUserID != nil {
		t.Fatalf("legacy actor defaults: %+v", legacy)
	}
	if current.AdminUserID == nil || *current.AdminUserID != 9 || current.AdminEmail != "root@example.com" {
		t.Fatalf("json actor: %+v", current)
	}
}

func TestDecodeWatermark_Variants(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		raw     string
		wantErr bool
		wantMS  int64
	}{
		{name: "legacy with spaces", raw: "  1000 \n", wantMS: 1000},
		{name: "null admin", raw: `{"timestamp":2000,"adminUserId":null,"adminEmail":"system","reason":"FORCE_LOGOUT"}`, wantMS: 2000},
		{name: "quoted timestamp", raw: `{"timestamp":"3000"}`, wantMS: 3000},
		{name: "empty", raw: "", wantErr: true},
		{name: "garbage", raw: "not-a-number", wantErr: true},
		{name: "object without timestamp", raw: `{"adminEmail":"x"}`, wantErr: true},
		{name: "fractional", raw: "12.5", wantErr: true},
	}

	for _, tc := range cases {
		w, err := DecodeWatermark(tc.raw)
		if tc.wantErr {
			if !errors.Is(err, ErrMalformedWatermark) {
				t.Fatalf("%s: expected ErrMalformedWatermark, got %v", tc.name, err)
			}
			continue
		}
		if err != nil {
			t.Fatalf("%s: unexpected err %v", tc.name, err)
		}
		if w.Timestamp.UnixMilli() != tc.wantMS {
			t.Fatalf("%s: ms=%d want=%d", tc.name, w.Timestamp.UnixMilli(), tc.wantMS)
		}
	}
}

func TestWatermark_EncodeFormat(t *testing.T) {
	t.Parallel()

	admin := int64(7)
	at := time.UnixMilli(1767225600123).UTC()

	got, err := Watermark{Timestamp: at, AdminUserID: &admin, AdminEmail: "a@example.com"}.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	want := `{"timestamp":1767225600123,"adminUserId":7,"adminEmail":"a@example.com","reason":"FORCE_LOGOUT"}`
	if got != want {
		t.Fatalf("encode:\n got  %s\n want %s", got, want)
	}

	got, err = Watermark{Timestamp: at}.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	want = `{"timestamp":1767225600123,"adminUserId":null,"adminEmail":"system","reason":"FORCE_LOGOUT"}`
	if got != want {
		t.Fatalf("encode system:\n got  %s\n want %s", got, want)
	}
}

func TestWatermark_RejectsIsStrict(t *testing.T) {
	t.Parallel()

	at := time.UnixMilli(5000)
	w := Watermark{Timestamp: at}

	if !w.Rejects(at.Add(-time.Millisecond)) {
		t.Fatalf("token issued before T must be rejected")
	}
	if w.Rejects(at) {
		t.Fatalf("token issued exactly at T must survive")
	}
	if w.Rejects(at.Add(time.Second)) {
		t.Fatalf("token issued after T must survive")
	}
}

func TestParseFailureMode(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want FailureMode
		err  bool
	}{
		{in: "", want: FailOpen},
		{in: "open", want: FailOpen},
		{in: "CLOSED", want: FailClosed},
		{in: "sometimes", err: true},
	}
	for _, tc := range cases {
		got, err := ParseFailureMode(tc.in)
		if tc.err {
			if !errors.Is(err, ErrConfig) {
				t.Fatalf("ParseFailureMode(%q) err=%v", tc.in, err)
			}
			continue
		}
		if err != nil || got != tc.want {
			t.Fatalf("ParseFailureMode(%q)=%v,%v want %v", tc.in, got, err, tc.want)
		}
	}
}
