// Package refresh stores the single live refresh session of each user.
//
// A session is written as three linked keys sharing one TTL:
//
//	refresh_token:<raw>                 JSON record
//	user_refresh:<userId>               raw token
//	hash_to_token:<sha256(raw + salt)>  raw token
//
// Only the salted hash ever reaches a client cookie. The keys are written and
// removed one by one; readers treat any missing link as "not found".
package refresh
