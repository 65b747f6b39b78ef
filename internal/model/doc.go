// Package model defines the core data structures shared by the scraper:
//   - VehicleConfig: a structural vehicle identity used as a set element
//   - PartRecord: a catalog part keyed by SKU
//   - Listing: one extracted application-page row with the vehicle it fits
//   - Hierarchy: the discovered Make → Year → Model → Application graph
//   - Checkpoint: the durable, resumable progress record
//   - RunStats: the counters reported at the end of a run
//
// The types are JSON-serializable; the persisted forms (checkpoint file,
// catalog database rows) use the same encodings.
package model
