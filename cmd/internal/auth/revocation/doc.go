// Package revocation holds the two independent revocation axes checked after
// signature verification:
//
//   - a per-token blacklist (jwt:blacklist:<jti>), TTL-bounded to the token's
//     remaining lifetime;
//   - a per-user watermark (jwt:user_invalidate:<userId>) rejecting every token
//     issued strictly before its timestamp, with a fixed 24h TTL.
//
// Blacklist reads fail closed. Watermark read failures follow an explicit
// FailureMode (FailOpen by default): a corrupted or unreadable watermark is
// logged and counted, and the token is NOT rejected. Operators trading
// availability for strictness set FailClosed.
package revocation
