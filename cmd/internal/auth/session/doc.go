// Package session is the authority side of warden: it logs users in, mints
// access tokens, owns refresh sessions and performs administrative
// revocation.
//
// A privileged login takes over: every earlier token of that user is
// shadowed by a watermark written at the login instant, and the previous
// admin console is told over the realtime channel before it is cut off.
//
// Transport concerns (cookies, status codes) live in the api package.
package session
