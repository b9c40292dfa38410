package token

import (
	"errors"
	"testing"
)

func TestHashSaltedHex_Deterministic(t *testing.T) {
	t.Parallel()

	a := HashSaltedHex("raw-token", "pepper-pepper-pepper")
	b := HashSaltedHex("raw-token", "pepper-pepper-pepper")
	if a != b {
		t.Fatalf("hash not deterministic: %q vs %q", a, b)
	}
	if got := HashSHA256Hex("raw-token" + "pepper-pepper-pepper"); got != a {
		t.Fatalf("salted hash must be sha256(raw+salt): got %q want %q", a, got)
	}
	if !LooksLikeHash(a) {
		t.Fatalf("expected 64-char hex, got %q", a)
	}
}

func TestHashSaltedHex_SaltChangesOutput(t *testing.T) {
	t.Parallel()

	if HashSaltedHex("raw", "salt-one") == HashSaltedHex("raw", "salt-two") {
		t.Fatalf("different salts must produce different hashes")
	}
}

func TestValidateSalt(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		salt string
		min  int
		want error
	}{
		{name: "missing", salt: "   ", min: 16, want: ErrSaltMissing},
		{name: "short", salt: "abc", min: 16, want: ErrSaltTooShort},
		{name: "ok", salt: "0123456789abcdef", min: 16, want: nil},
		{name: "no minimum", salt: "x", min: 0, want: nil},
	}

	for _, tc := range cases {
		err := ValidateSalt(tc.salt, tc.min)
		if !errors.Is(err, tc.want) {
			t.Fatalf("%s: ValidateSalt err=%v want=%v", tc.name, err, tc.want)
		}
	}
}

func TestLooksLikeHash(t *testing.T) {
	t.Parallel()

	valid := HashSHA256Hex("x")
	cases := []struct {
		in   string
		want bool
	}{
		{in: "", want: false},
		{in: "eyJhbGciOiJIUzI1NiJ9.x", want: false},
		{in: valid, want: true},
		{in: "zz" + valid[2:], want: false},
	}
	for _, tc := range cases {
		if got := LooksLikeHash(tc.in); got != tc.want {
			t.Fatalf("LooksLikeHash(%q)=%v want=%v", tc.in, got, tc.want)
		}
	}
}
