// Package token provides refresh-token hashing primitives for warden.
//
// It is the single source of truth for the cookie hash: the value a client ever
// holds in its refresh cookie is SHA-256(raw + salt), hex-encoded (64 chars).
// The raw token is never derivable from the hash.
package token
