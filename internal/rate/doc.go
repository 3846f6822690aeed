// Package rate provides the Redis counter primitive that every attempt
// limiter in authcore is built on.
//
// # Window semantics
//
// Fixed-window counters: INCR and PEXPIRE on the first hit, executed as one
// Lua script so a counter never exists without its TTL. Callers own the key
// namespace; typical prefixes are:
//   - login:fail:{role}:{email}
//   - verify:fail:{role}:{email}
//   - verify:block:{role}:{email}
//
// # Failure semantics
//
// Every Redis error is wrapped with [ErrRedisUnavailable]. A missing key is
// reported through the found flag, never through an error, so callers can
// tell "no failures yet" apart from "store unreachable".
//
// # What this package must NOT do
//
//   - Implement domain-specific policies (those live in internal/limiters).
//   - Be imported outside the authcore module.
package rate
