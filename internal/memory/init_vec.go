//go:build sqlite_vec && cgo

package memory

import (
	vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
)

func init() {
	// Register the sqlite-vec extension with the mattn/go-sqlite3 driver so
	// the archive's vec0 ANN path lights up. Without this tag the archive
	// detects the missing extension and scans embeddings instead.
	vec.Auto()
}
