// Package database is the SQLite asset source.
//
// It stores one row per indexed image (identifier, original URL, on-disk
// path, pixel dimensions, detected format, size and timestamps) plus a
// small key/value metadata table. Lookups by URL substitute a placeholder
// asset for anything not indexed, so a batch lookup never fails because of
// a single missing entry.
//
// The database uses WAL mode for concurrent reads while the indexer writes
// in batches.
package database
