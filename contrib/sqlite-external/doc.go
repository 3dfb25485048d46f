// Package sqliteexternal links the CGO SQLite driver (github.com/mattn/go-sqlite3).
//
// The package is empty unless built with the cgo_sqlite tag:
//
//	CGO_ENABLED=1 go build -tags cgo_sqlite ./cmd/quranscope
//
// core/sqlite imports it in that mode; the default build uses the pure Go
// modernc.org/sqlite driver and needs no C toolchain. The CGO driver is
// noticeably faster when importing or serving large bundled databases.
package sqliteexternal
