// Package database provides SQLite-based storage for carpart.
//
// This package implements the CatalogDB, which stores:
//   - Part records keyed by SKU (the cumulative catalog)
//   - Compatibility pairs of the current run
//   - Run history for the status command
//
// The registries in memory are write-through persisted here before every
// checkpoint save, so a resumed run can rebuild exactly the state the
// checkpoint refers to.
//
// SQLite is used via modernc.org/sqlite, a CGO-free implementation, so the
// whole catalog is a single file that can be copied or inspected with the
// sqlite3 shell.
package database
