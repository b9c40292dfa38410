// Package kv is the shared, TTL-capable key/value store used by the revocation
// and refresh-session stores.
//
// Two implementations exist: Redis (production, shared by edge and authority)
// and Memory (single-process dev mode and tests). Only per-key atomic operations
// are exposed; there are no multi-key transactions.
package kv
