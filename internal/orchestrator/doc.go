// Package orchestrator runs one scrape of the catalog.
//
// A run moves through the states
//
//	IDLE -> HIERARCHY_ENUMERATING -> PAGE_CRAWLING -> DETAIL_FETCHING -> EXPORTING -> DONE
//
// and ends in FAILED when a fatal error or cancellation stops it. Each state
// is one step executed in order. Every step ends with a checkpoint save, so
// the state a resumed run starts from is always on disk before the next
// state begins.
//
// All network I/O is sequential. The registries are plain maps owned by the
// run and are persisted to the catalog database right before every
// checkpoint save.
//
// Unit-level problems (a 404, a malformed hierarchy response, a row without
// a SKU, a record that fails validation, a page that keeps failing) are
// logged, counted in RunStats and skipped. The run stops on cancellation,
// on an empty hierarchy, and when persisting progress or artifacts fails.
package orchestrator
