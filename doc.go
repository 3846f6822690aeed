// Package authcore issues and validates credentials for users and hosts:
// password login with persistent lockout, short-lived e-mail verification
// codes with attempt blocking, HS256 access and refresh tokens, and a
// registration saga that keeps the local credential record and the remote
// profile consistent through compensation.
//
// Engine methods are safe to call from multiple goroutines after
// initialization through [Builder.Build].
//
// # Architecture boundaries
//
// authcore is the public surface. It exposes [Engine], [Builder], [Config],
// the collaborator interfaces ([CredentialStore], [RemoteProvisioner],
// [Notifier], [BusinessVerifier], [SocialEmailResolver]) and value types.
// Use-case state machines live in internal/flows; Redis counters, limiters
// and the verification code store live under internal/ and are never
// exported.
//
// # Concurrency
//
// There is no in-process coordination between requests. Failure counting
// relies on an atomic Redis increment-with-expiry, and duplicate
// registrations are resolved by the unique index of the credential store.
//
// # What this package must NOT do
//
//   - Expose Redis clients, internal stores, or encoding details in its public API.
//   - Keep the authenticated principal in ambient state. Claims are returned
//     to the caller and passed on explicitly.
//   - Unlock a locked principal. Only an out-of-band administrative action can.
package authcore
