package registry

import (
	"slices"

	"github.com/zachatkinson/carpart-scraper-sub000/internal/model"
)

// Fitment is one (SKU, vehicle) pair.
type Fitment struct {
	SKU     string
	Vehicle model.VehicleConfig
}

// CompatibilityIndex maps each SKU to the set of vehicle configurations it
// fits. Configurations are compared structurally, so the same vehicle seen
// twice for a SKU is stored once. Sets only grow.
type CompatibilityIndex struct {
	entries map[string]map[model.VehicleConfig]struct{}
	pending []Fitment
	total   int
}

// NewCompatibilityIndex creates an empty index.
func NewCompatibilityIndex() *CompatibilityIndex {
	return &CompatibilityIndex{
		entries: make(map[string]map[model.VehicleConfig]struct{}),
	}
}

// Add records that sku fits vehicle. It reports whether the pair was new.
func (c *CompatibilityIndex) Add(sku string, vehicle model.VehicleConfig) bool {
	if !c.insert(sku, vehicle) {
		return false
	}
	c.pending = append(c.pending, Fitment{SKU: sku, Vehicle: vehicle})
	return true
}

func (c *CompatibilityIndex) insert(sku string, vehicle model.VehicleConfig) bool {
	set, ok := c.entries[sku]
	if !ok {
		set = make(map[model.VehicleConfig]struct{})
		c.entries[sku] = set
	}
	if _, dup := set[vehicle]; dup {
		return false
	}
	set[vehicle] = struct{}{}
	c.total++
	return true
}

// VehiclesFor returns the vehicles sku fits, sorted. It returns nil for an
// unknown SKU.
func (c *CompatibilityIndex) VehiclesFor(sku string) []model.VehicleConfig {
	set, ok := c.entries[sku]
	if !ok {
		return nil
	}
	out := make([]model.VehicleConfig, 0, len(set))
	for v := range set {
		out = append(out, v)
	}
	slices.SortFunc(out, model.CompareVehicles)
	return out
}

// Has reports whether sku has at least one vehicle.
func (c *CompatibilityIndex) Has(sku string) bool {
	return len(c.entries[sku]) > 0
}

// AllEntries returns every SKU with its sorted vehicles.
func (c *CompatibilityIndex) AllEntries() map[string][]model.VehicleConfig {
	out := make(map[string][]model.VehicleConfig, len(c.entries))
	for sku := range c.entries {
		out[sku] = c.VehiclesFor(sku)
	}
	return out
}

// SKUs returns every SKU with at least one vehicle, sorted.
func (c *CompatibilityIndex) SKUs() []string {
	out := make([]string, 0, len(c.entries))
	for sku, set := range c.entries {
		if len(set) > 0 {
			out = append(out, sku)
		}
	}
	slices.Sort(out)
	return out
}

// Len returns the number of SKUs in the index.
func (c *CompatibilityIndex) Len() int {
	return len(c.entries)
}

// Total returns the number of (SKU, vehicle) pairs.
func (c *CompatibilityIndex) Total() int {
	return c.total
}

// Pending returns the pairs added since the last ClearPending, in insertion order.
func (c *CompatibilityIndex) Pending() []Fitment {
	return slices.Clone(c.pending)
}

// ClearPending marks every pair as persisted.
func (c *CompatibilityIndex) ClearPending() {
	c.pending = c.pending[:0]
}

// Restore loads previously persisted pairs without marking them pending.
func (c *CompatibilityIndex) Restore(fitments []Fitment) {
	for _, f := range fitments {
		c.insert(f.SKU, f.Vehicle)
	}
}
