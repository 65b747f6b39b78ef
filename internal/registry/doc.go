// Package registry holds the in-memory catalog state of a run.
//
// PartRegistry deduplicates part records by SKU. CompatibilityIndex keeps,
// per SKU, the set of distinct vehicle configurations the part fits.
// Both are used from a single goroutine and are not safe for concurrent
// use. Both track which keys changed since the last flush so callers can
// write them through to durable storage before a checkpoint.
package registry
