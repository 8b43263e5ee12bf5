// Package cache persists what the client has already fetched: raw envelope
// headers, raw (still encrypted) message bodies and the set of processed
// notification ids.
//
// Entries are keyed by message id, which the agents derive from content, so
// concurrent writers to the same key are not expected. Two backends are
// available: FileStore, a directory of plain files, and SQLiteStore, a
// single SQLite database. Both re-create missing entries by re-fetching; a
// lost cache costs bandwidth, never data.
package cache
