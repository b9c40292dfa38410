// Package edge verifies bearer tokens close to inbound traffic.
//
// The Verifier combines the stateless codec check with the two revocation
// axes (blacklist, user watermark). It never issues tokens and never touches
// refresh sessions. Middleware turns every rejection into the same 401 so
// callers cannot tell a blacklisted token from a malformed one.
package edge
