package password

import (
	"errors"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

// testConfig keeps the argon2 cost low so the suite stays fast.
func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Params.MemoryKiB = 8 * 1024
	cfg.Params.Iterations = 1
	cfg.Params.Parallelism = 1
	return cfg
}

func TestHashAndVerify(t *testing.T) {
	cfg := testConfig()

	h, err := cfg.Hash("correct horse battery")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}

	ok, err := cfg.Verify(h, "correct horse battery")
	if err != nil || !ok {
		t.Fatalf("Verify match: ok=%v err=%v", ok, err)
	}
	ok, err = cfg.Verify(h, "wrong horse battery")
	if err != nil || ok {
		t.Fatalf("Verify mismatch: ok=%v err=%v", ok, err)
	}
	if cfg.NeedsRehash(h) {
		t.Fatalf("fresh hash must not need rehash")
	}
}

func TestVerify_Bcrypt(t *testing.T) {
	cfg := testConfig()

	legacy, err := bcrypt.GenerateFromPassword([]byte("legacy-secret"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}

	ok, err := cfg.Verify(string(legacy), "legacy-secret")
	if err != nil || !ok {
		t.Fatalf("bcrypt match: ok=%v err=%v", ok, err)
	}
	ok, err = cfg.Verify(string(legacy), "nope-nope")
	if err != nil || ok {
		t.Fatalf("bcrypt mismatch: ok=%v err=%v", ok, err)
	}
	if !cfg.NeedsRehash(string(legacy)) {
		t.Fatalf("bcrypt hash should need rehash")
	}
}

func TestVerify_InvalidHash(t *testing.T) {
	cfg := testConfig()

	for _, h := range []string{"not-a-hash", "$argon2id$v=18$m=1,t=1,p=1$AA$AA", "$2a$short"} {
		ok, err := cfg.Verify(h, "whatever1")
		if !errors.Is(err, ErrInvalidHash) || ok {
			t.Fatalf("%q: ok=%v err=%v", h, ok, err)
		}
	}
}

func TestVerify_RefusesExcessiveCost(t *testing.T) {
	strong := testConfig()
	strong.Params.MemoryKiB = 64 * 1024

	h, err := strong.Hash("correct horse battery")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if _, err := testConfig().Verify(h, "correct horse battery"); !errors.Is(err, ErrInvalidHash) {
		t.Fatalf("expected ErrInvalidHash, got %v", err)
	}
}

func TestCheck(t *testing.T) {
	cfg := testConfig()
	cfg.Policy.RejectVeryWeak = true

	cases := []struct {
		pw   string
		want error
	}{
		{"short", ErrPasswordTooShort},
		{string(make([]rune, 129)), ErrPasswordTooLong},
		{"password", ErrWeakPassword},
		{"11111111", ErrWeakPassword},
		{"aaaaaaaaaa", ErrWeakPassword},
		{"a-very-ok-pass", nil},
	}
	for _, tc := range cases {
		if err := cfg.Check(tc.pw); !errors.Is(err, tc.want) {
			t.Fatalf("Check(%q)=%v want %v", tc.pw, err, tc.want)
		}
	}
}
