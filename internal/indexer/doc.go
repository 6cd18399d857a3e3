// Package indexer keeps the asset source in sync with the library
// directory.
//
// Every image file under the library (by extension, hidden entries
// skipped) is inspected by a small pool of workers: the real format is
// sniffed from the header and the pixel dimensions read with
// image.DecodeConfig, without decoding the image. Records are written to
// the database in batched transactions and assets that were not seen
// during a run are deleted afterwards.
//
// The indexer runs:
//   - an initial index on Start
//   - a periodic full re-index at the configured interval
//   - a cheap change detection poll over the library's top level
//   - on demand through TriggerIndex
//
// Asset identifiers are derived from the absolute path, so they survive
// re-indexing and database rebuilds.
package indexer
