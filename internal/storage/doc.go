// Package storage persists chunk collections in SQLite.
//
// A collection groups the chunks produced from one indexed tree. Each chunk
// row is keyed by its content-addressed ID within the collection, carries an
// optional embedding in a side table and is mirrored into an FTS5 index by
// triggers, so keyword search never drifts from the stored content.
//
// # Build Tags
//
// The default build uses the pure Go modernc.org/sqlite driver. Building with
// the sqlite_cgo tag switches to github.com/mattn/go-sqlite3, which needs
// CGO and the sqlite_fts5 tag for full-text search:
//
//	CGO_ENABLED=1 go build -tags "sqlite_cgo sqlite_fts5" ./...
//
// Vector search is a brute-force cosine scan in Go under both drivers.
package storage
