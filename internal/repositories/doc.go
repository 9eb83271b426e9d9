// Package repositories implements SQLite persistence for the generator's cache records.
//
// Two stores exist:
//   - [LibraryRepository] : one row per Spotify user holding the complete
//     saved-track set as a JSON document plus the saved-tracks revalidation
//     token. Records are rewritten whole after a fetch pass completes.
//   - [CredentialRepository] : a single-row access-token cache with its
//     absolute expiry timestamp.
//
// Both stores treat missing and corrupt records as empty rather than fatal:
// a cache that cannot be read is simply a cache miss, and the next fetch pass
// repopulates it.
package repositories
