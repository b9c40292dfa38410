// Package authapi is the authority's HTTP surface: login, registration,
// refresh and logout under /auth, plus the administrator routes under
// /auth/admin.
//
// Successful responses use the envelope {"success":true,"message":..,"data":..};
// failures use {"error":{"code":..,"message":..}}. The refresh cookie carries
// only the salted hash of the refresh token.
package authapi
