// Package refresh stores the single live refresh token of each principal.
//
// # Storage model
//
// One Redis string per principal under refresh:{externalUuid} holding the
// SHA-256 digest of the token. Save overwrites, so concurrent logins leave
// only the most recently issued token valid (single active session).
// Rotate swaps the digest only when the presented token is the stored one,
// in one Lua script.
//
// # Architecture boundaries
//
// This package owns persistence. Token signing and expiry checks belong to
// package jwt; the decision to rotate or reject belongs to the engine flows.
//
// # What this package must NOT do
//
//   - Store plaintext tokens.
//   - Import authcore or jwt.
package refresh
