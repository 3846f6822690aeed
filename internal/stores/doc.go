// Package stores provides the Redis-backed verification code store used by
// the email verification and registration flows.
//
// # Design
//
// One hash per (role, email) under email:verification:code:{role}:{email}
// holds the SHA-256 digest of the code, a verified flag and the issue time.
// Issue and Verify are Lua scripts so the single-outstanding-code and
// single-shot-verify rules hold under concurrent requests. Plaintext codes
// are never stored.
//
// # Architecture boundaries
//
// This package owns persistence of codes. It does NOT generate codes, count
// failed attempts, or deliver codes; those belong to internal/limiters,
// internal and the flow functions in internal/flows.
//
// # What this package must NOT do
//
//   - Import authcore or any sibling internal package.
//   - Log or expose plaintext codes.
package stores
