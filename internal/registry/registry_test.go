package registry

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/zachatkinson/carpart-scraper-sub000/internal/model"
)

func part(sku, name string, source model.Source) model.PartRecord {
	return model.PartRecord{
		SKU:          sku,
		Name:         name,
		Category:     "Radiator",
		Manufacturer: "CSF",
		Source:       source,
		ScrapedAt:    time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestPartRegistry_Upsert(t *testing.T) {
	t.Parallel()

	t.Run("last write wins on the whole record", func(t *testing.T) {
		t.Parallel()

		r := NewPartRegistry()
		first := part("3951", "Radiator", model.SourceListing)
		first.Features = []string{"OE fit"}

		if got := r.Upsert(first); got != Created {
			t.Errorf("expected Created, got %v", got)
		}
		second := part("3951", "Radiator (trim 2)", model.SourceListing)
		if got := r.Upsert(second); got != Updated {
			t.Errorf("expected Updated, got %v", got)
		}

		got, ok := r.Get("3951")
		if !ok {
			t.Fatal("expected record")
		}
		if diff := cmp.Diff(second, got); diff != "" {
			t.Errorf("expected full replacement (-want +got):\n%s", diff)
		}
		if r.Len() != 1 {
			t.Errorf("expected 1 record, got %d", r.Len())
		}
	})

	t.Run("detail record survives a later listing sighting", func(t *testing.T) {
		t.Parallel()

		r := NewPartRegistry()
		r.Upsert(part("3951", "Radiator", model.SourceListing))
		detail := part("3951", "3951 Radiator - Honda Accord", model.SourceDetail)
		if got := r.Upsert(detail); got != Updated {
			t.Errorf("expected Updated, got %v", got)
		}
		if got := r.Upsert(part("3951", "Radiator", model.SourceListing)); got != Retained {
			t.Errorf("expected Retained, got %v", got)
		}
		got, _ := r.Get("3951")
		if got.Source != model.SourceDetail || got.Name != detail.Name {
			t.Errorf("expected detail record kept, got %+v", got)
		}
	})

	t.Run("pure last write wins when preservation is off", func(t *testing.T) {
		t.Parallel()

		r := NewPartRegistry(WithPreserveDetail(false))
		r.Upsert(part("3951", "detail", model.SourceDetail))
		if got := r.Upsert(part("3951", "listing", model.SourceListing)); got != Updated {
			t.Errorf("expected Updated, got %v", got)
		}
		got, _ := r.Get("3951")
		if got.Source != model.SourceListing {
			t.Errorf("expected listing record, got %+v", got)
		}
	})

	t.Run("detail replaces detail", func(t *testing.T) {
		t.Parallel()

		r := NewPartRegistry()
		r.Upsert(part("3951", "old", model.SourceDetail))
		if got := r.Upsert(part("3951", "new", model.SourceDetail)); got != Updated {
			t.Errorf("expected Updated, got %v", got)
		}
	})
}

func TestPartRegistry_AllSortedAndUnique(t *testing.T) {
	t.Parallel()

	r := NewPartRegistry()
	for _, sku := range []string{"3985", "3951", "10650", "3951", "3985"} {
		r.Upsert(part(sku, sku, model.SourceListing))
	}

	all := r.All()
	var skus []string
	for _, p := range all {
		skus = append(skus, p.SKU)
	}
	if diff := cmp.Diff([]string{"10650", "3951", "3985"}, skus); diff != "" {
		t.Errorf("unexpected SKUs (-want +got):\n%s", diff)
	}
}

func TestPartRegistry_DirtyAndRestore(t *testing.T) {
	t.Parallel()

	r := NewPartRegistry()
	r.Restore([]model.PartRecord{part("1", "restored", model.SourceDetail)})
	if len(r.Dirty()) != 0 {
		t.Error("restored records must not be dirty")
	}
	if r.Len() != 1 {
		t.Fatalf("expected 1 restored record, got %d", r.Len())
	}

	r.Upsert(part("2", "new", model.SourceListing))
	r.Upsert(part("1", "listing", model.SourceListing))

	dirty := r.Dirty()
	if len(dirty) != 1 || dirty[0].SKU != "2" {
		t.Errorf("expected only SKU 2 dirty, got %+v", dirty)
	}

	r.ClearDirty()
	if len(r.Dirty()) != 0 {
		t.Error("expected dirty set cleared")
	}
}

func TestCompatibilityIndex_Add(t *testing.T) {
	t.Parallel()

	accord := model.VehicleConfig{Make: "Honda", Year: 2025, Model: "Accord"}
	civic := model.VehicleConfig{Make: "Honda", Year: 2025, Model: "Civic"}

	c := NewCompatibilityIndex()
	if !c.Add("3951", accord) {
		t.Error("expected first add to be new")
	}
	if c.Add("3951", model.VehicleConfig{Make: "Honda", Year: 2025, Model: "Accord"}) {
		t.Error("expected structurally equal vehicle to be a duplicate")
	}
	c.Add("3985", accord)
	c.Add("3951", civic)

	if diff := cmp.Diff([]model.VehicleConfig{accord, civic}, c.VehiclesFor("3951")); diff != "" {
		t.Errorf("vehicles mismatch (-want +got):\n%s", diff)
	}
	if c.Len() != 2 || c.Total() != 3 {
		t.Errorf("expected 2 SKUs and 3 pairs, got %d and %d", c.Len(), c.Total())
	}
	if diff := cmp.Diff([]string{"3951", "3985"}, c.SKUs()); diff != "" {
		t.Errorf("skus mismatch (-want +got):\n%s", diff)
	}
	if c.VehiclesFor("missing") != nil {
		t.Error("expected nil for unknown SKU")
	}
	if !c.Has("3985") || c.Has("missing") {
		t.Error("unexpected Has result")
	}

	entries := c.AllEntries()
	if len(entries) != 2 || len(entries["3951"]) != 2 {
		t.Errorf("unexpected entries: %+v", entries)
	}
}

func TestCompatibilityIndex_QualifiersAreDistinct(t *testing.T) {
	t.Parallel()

	c := NewCompatibilityIndex()
	base := model.VehicleConfig{Make: "Honda", Year: 2025, Model: "Accord"}
	c.Add("3951", base)
	c.Add("3951", base.Refine("1.5L L4", "", ""))
	c.Add("3951", base.Refine("1.5L L4", "", ""))

	if got := len(c.VehiclesFor("3951")); got != 2 {
		t.Errorf("expected 2 distinct configs, got %d", got)
	}
}

func TestCompatibilityIndex_PendingAndRestore(t *testing.T) {
	t.Parallel()

	accord := model.VehicleConfig{Make: "Honda", Year: 2025, Model: "Accord"}
	civic := model.VehicleConfig{Make: "Honda", Year: 2025, Model: "Civic"}

	c := NewCompatibilityIndex()
	c.Restore([]Fitment{{SKU: "3951", Vehicle: accord}})
	if len(c.Pending()) != 0 {
		t.Error("restored pairs must not be pending")
	}

	c.Add("3951", accord)
	c.Add("3951", civic)
	want := []Fitment{{SKU: "3951", Vehicle: civic}}
	if diff := cmp.Diff(want, c.Pending()); diff != "" {
		t.Errorf("pending mismatch (-want +got):\n%s", diff)
	}

	c.ClearPending()
	if len(c.Pending()) != 0 {
		t.Error("expected pending cleared")
	}
	if c.Total() != 2 {
		t.Errorf("expected 2 pairs, got %d", c.Total())
	}
}
