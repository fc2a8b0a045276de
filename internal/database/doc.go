// Package database provides the SQLite run ledger for lorecrawl.
//
// The Ledger stores:
//   - One row per cached document: where it came from, when it was fetched,
//     its size and a SHA3-256 digest of the raw bytes
//   - One row per run: mode, counts, outputs and the error that stopped it
//
// The ledger is bookkeeping. The cache directory is the source of truth for
// document content, and losing the ledger never loses data.
//
// SQLite is accessed through modernc.org/sqlite, so the binary stays
// CGO-free.
package database
