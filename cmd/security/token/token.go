package token

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// HashSHA256Hex returns a SHA-256 hex digest of s.
func HashSHA256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// HashSaltedHex returns the cookie-safe hash of a raw refresh token.
// The salt is appended to the raw value before hashing.
func HashSaltedHex(raw, salt string) string {
	return HashSHA256Hex(raw + salt)
}

// ValidateSalt enforces a minimum salt size in bytes.
// A blank salt -> ErrSaltMissing; a short one -> ErrSaltTooShort.
func ValidateSalt(salt string, minBytes int) error {
	s := strings.TrimSpace(salt)
	if s == "" {
		return ErrSaltMissing
	}
	if minBytes > 0 && len(s) < minBytes {
		return ErrSaltTooShort
	}
	return nil
}

// LooksLikeHash reports whether s has the shape of a HashSaltedHex output.
func LooksLikeHash(s string) bool {
	if len(s) != sha256.Size*2 {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}
