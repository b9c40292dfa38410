// Package realtime keeps the live admin notification channels of this process.
//
// A Registry maps a user identity to at most one connected Client. The
// WSGateway authenticates the upgrade, registers the client and pumps its
// bounded send queue. Pushes are best effort: revocation correctness never
// depends on delivery.
package realtime
