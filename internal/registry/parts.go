package registry

import (
	"slices"
	"strings"

	"github.com/zachatkinson/carpart-scraper-sub000/internal/model"
)

// UpsertResult reports what Upsert did with a record.
type UpsertResult int

const (
	// Created means the SKU was new.
	Created UpsertResult = iota
	// Updated means the stored record was replaced.
	Updated
	// Retained means the stored record was kept and the write discarded.
	Retained
)

// String returns the result name.
func (r UpsertResult) String() string {
	switch r {
	case Created:
		return "created"
	case Updated:
		return "updated"
	case Retained:
		return "retained"
	default:
		return "unknown"
	}
}

// PartRegistry stores one record per SKU with last-write-wins semantics on
// the whole record.
type PartRegistry struct {
	parts map[string]model.PartRecord
	dirty map[string]struct{}

	// preserveDetail keeps a detail-sourced record when a listing-sourced
	// write for the same SKU arrives later.
	preserveDetail bool
}

// PartRegistryOption configures a PartRegistry.
type PartRegistryOption func(*PartRegistry)

// WithPreserveDetail controls whether listing writes may replace detail
// records. It is on by default.
func WithPreserveDetail(preserve bool) PartRegistryOption {
	return func(r *PartRegistry) { r.preserveDetail = preserve }
}

// NewPartRegistry creates an empty registry.
func NewPartRegistry(opts ...PartRegistryOption) *PartRegistry {
	r := &PartRegistry{
		parts:          make(map[string]model.PartRecord),
		dirty:          make(map[string]struct{}),
		preserveDetail: true,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Upsert stores rec under its SKU, replacing any previous record in full.
// With detail preservation on, a listing record never replaces a detail
// record; the stored record is kept and Retained is returned.
func (r *PartRegistry) Upsert(rec model.PartRecord) UpsertResult {
	prev, exists := r.parts[rec.SKU]
	if !exists {
		r.parts[rec.SKU] = rec
		r.dirty[rec.SKU] = struct{}{}
		return Created
	}

	if r.preserveDetail && prev.Source == model.SourceDetail && rec.Source != model.SourceDetail {
		return Retained
	}

	r.parts[rec.SKU] = rec
	r.dirty[rec.SKU] = struct{}{}
	return Updated
}

// Get returns the record for sku.
func (r *PartRegistry) Get(sku string) (model.PartRecord, bool) {
	rec, ok := r.parts[sku]
	return rec, ok
}

// Len returns the number of distinct SKUs.
func (r *PartRegistry) Len() int {
	return len(r.parts)
}

// All returns every record sorted by SKU.
func (r *PartRegistry) All() []model.PartRecord {
	out := make([]model.PartRecord, 0, len(r.parts))
	for _, rec := range r.parts {
		out = append(out, rec)
	}
	slices.SortFunc(out, func(a, b model.PartRecord) int {
		return strings.Compare(a.SKU, b.SKU)
	})
	return out
}

// Dirty returns the records written since the last ClearDirty, sorted by SKU.
func (r *PartRegistry) Dirty() []model.PartRecord {
	out := make([]model.PartRecord, 0, len(r.dirty))
	for sku := range r.dirty {
		out = append(out, r.parts[sku])
	}
	slices.SortFunc(out, func(a, b model.PartRecord) int {
		return strings.Compare(a.SKU, b.SKU)
	})
	return out
}

// ClearDirty marks every record as persisted.
func (r *PartRegistry) ClearDirty() {
	clear(r.dirty)
}

// Restore loads previously persisted records without marking them dirty.
// Later duplicates of a SKU win.
func (r *PartRegistry) Restore(records []model.PartRecord) {
	for _, rec := range records {
		r.parts[rec.SKU] = rec
	}
}
