// Package codec issues and verifies warden's signed claim sets (HS256 JWT).
//
// The codec is pure: it never consults the revocation store. Verification
// returns a tagged Result instead of an error so that callers can map every
// failure to a uniform outcome.
package codec
