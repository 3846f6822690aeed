// Package middleware exposes net/http guards built on top of
// authcore.Engine access-token validation.
//
// # Guards
//
//   - [Guard] — any valid access token.
//   - [RequireRole] — a valid access token issued for one role.
//
// Guards read the Authorization header, call ValidateAccess and hand the
// verified [authcore.Claims] to the wrapped [Handler] as an argument. Claims
// are never stored in the request context.
//
// # Architecture boundaries
//
// This package translates HTTP semantics into Engine calls. It does NOT parse
// or create JWTs and does not touch Redis; all decisions are delegated to
// ValidateAccess.
package middleware
