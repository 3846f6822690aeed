// Package flows contains pure-function orchestrators for every Engine operation.
//
// Each flow function (RunLogin, RunVerifyCode, RunRegistration, etc.) accepts
// a typed dependency struct and returns results without side effects beyond
// those dependencies. The Engine builds the dependency structs once and stays
// thin.
//
// # State machines
//
//   - Login: lookup, lock check, password check, failure counting with
//     persistent lock at the limit, session issuance.
//   - Verification: issue (single outstanding code), verify (single shot),
//     redeem (registration), blocking after too many mismatches.
//   - Registration saga: redeem code, persist, provision remotely, compensate
//     by deleting the principal when provisioning fails.
//
// # Architecture boundaries
//
// Flow functions coordinate calls to the credential store, code store,
// attempt limiters, token issuer and refresh store. They do NOT own any of
// these resources; ownership stays with the Engine.
//
// # What this package must NOT do
//
//   - Hold mutable state between calls.
//   - Import authcore (to avoid import cycles).
//   - Perform I/O directly; all I/O is mediated through dependency interfaces.
package flows
