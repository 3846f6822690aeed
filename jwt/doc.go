// Package jwt issues and validates the HS256 access and refresh tokens used
// by authcore.
//
// The subject of every token is the principal's external UUID; emails never
// appear in claims. Validation distinguishes expired tokens from tokens that
// are malformed, carry a bad signature, or have the wrong type, so callers
// can pick silent re-authentication over a hard failure.
package jwt
