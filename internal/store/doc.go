// Package store provides persistent storage for accounts, identity links and
// delegated calendar credentials using SQLite.
//
// # Architecture
//
// The package is interface-driven. Consumers depend on the narrow interface
// they need:
//
//   - AccountStore: accounts keyed by a case-insensitive email
//   - LinkStore: the mapping from a chat user to an account
//   - CredentialStore: OAuth tokens per email
//   - Store: all of the above plus Ping and Close
//
// SQLiteStore implements Store in a single struct. MockStore is an in-memory
// implementation for tests, with an Err field to simulate failures.
//
// # Data Models
//
//   - Account: email, status (pending_verification, active) and timestamps
//   - IdentityLink: external user id and chat id bound to an account
//   - Credential: access and refresh tokens, expiry, scope and an active flag
//
// # Errors
//
// Lookups return ErrNotFound for missing rows. CreateAccount returns
// ErrDuplicateEmail when the email is already registered, which callers use to
// resolve creation races.
//
// # Schema
//
// The schema is created on open and extended by idempotent column migrations.
// WAL mode, foreign keys and a 5s busy timeout are enabled on every connection.
package store
