// Package credential stores authcore principals in a SQL database through
// bun.
//
// Store implements [authcore.CredentialStore]. Uniqueness of email and
// external UUID is enforced by the schema created with [CreateSchema];
// violations surface as *authcore.DuplicateKeyError on both Postgres (pgx)
// and SQLite.
package credential
