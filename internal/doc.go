// Package internal contains helper utilities that are intentionally private to
// authcore: numeric code generation and token digests.
//
// # Sub-packages
//
//   - autherr — error sentinels, kinds and policy errors shared by every layer
//   - flows — pure-function orchestrators for every Engine operation
//   - limiters — attempt limiter policy (login lockout, verification blocking)
//   - rate — Redis counter primitive with atomic increment-and-expire
//   - stores — Redis verification code store
//
// # What this package must NOT do
//
//   - Export types that appear in the public authcore API.
//   - Be imported by any package outside the authcore module.
package internal
