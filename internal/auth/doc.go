// Package auth authenticates against the host user database: shadow
// hashes verified in-process where possible, su(1) as a fallback, and
// sudo-group membership as the admin bit. Sessions are HS256 JWTs.
package auth
