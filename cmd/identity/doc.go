// Package identity is the user directory: accounts, roles and password
// hashes, with a Postgres store for deployments and a memory store for tests
// and single-node development.
//
// Emails are the login identity and are compared case-insensitively.
package identity
