// Package checkpoint persists run progress so an interrupted run can resume.
//
// A Store loads and atomically replaces the single current checkpoint.
// Two stores are provided: FileStore keeps a JSON file replaced through a
// temp file and rename, and BadgerStore keeps the same JSON under one key
// of an embedded Badger database. Manager wraps a store with the
// unit-of-work bookkeeping used by the orchestrator and saves every
// Interval units.
//
// A failed save is fatal for the run: without it resumability cannot be
// guaranteed. Every save error wraps ErrCheckpointWrite.
package checkpoint
