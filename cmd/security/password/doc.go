// Package password hashes and verifies user passwords.
//
// New hashes are Argon2id in the PHC string format
// ($argon2id$v=19$m=..,t=..,p=..$salt$key). Verify also accepts bcrypt
// hashes ($2a$, $2b$, $2y$) so directories seeded by older tooling keep
// working; those are reported through NeedsRehash.
//
// Hash strings are untrusted input: Verify refuses parameters far above the
// configured cost.
package password
