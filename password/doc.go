// Package password hashes and verifies principal passwords.
//
// # Output format
//
// New hashes are Argon2id in PHC string format:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// [Hasher] also verifies bcrypt hashes ($2a$, $2b$, $2y$) carried over from
// earlier deployments and reports them through [Hasher.NeedsRehash].
//
// # Architecture boundaries
//
// This package owns hashing and verification only. Password policy
// (length, character classes) is enforced by the engine's request
// validation.
//
// # What this package must NOT do
//
//   - Store or retrieve passwords.
//   - Import any other authcore package.
//   - Log plaintext passwords.
package password
