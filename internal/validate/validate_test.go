package validate

import (
	"errors"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"

	"github.com/zachatkinson/carpart-scraper-sub000/internal/model"
)

func validRecord() model.PartRecord {
	price := decimal.RequireFromString("249.99")
	return model.PartRecord{
		SKU:          "3951",
		Name:         "Radiator",
		Category:     "Radiator",
		Price:        &price,
		Manufacturer: "CSF",
		Source:       model.SourceListing,
		ScrapedAt:    time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	v := New()

	tests := []struct {
		name      string
		mutate    func(*model.PartRecord)
		wantField string
	}{
		{name: "valid record", mutate: func(*model.PartRecord) {}},
		{name: "sku with dash and dot", mutate: func(r *model.PartRecord) { r.SKU = "CC-3985.1" }},
		{name: "missing sku", mutate: func(r *model.PartRecord) { r.SKU = "  " }, wantField: "PartRecord.SKU"},
		{name: "sku with spaces", mutate: func(r *model.PartRecord) { r.SKU = "39 51" }, wantField: "PartRecord.SKU"},
		{name: "sku starting with dash", mutate: func(r *model.PartRecord) { r.SKU = "-3951" }, wantField: "PartRecord.SKU"},
		{name: "missing name", mutate: func(r *model.PartRecord) { r.Name = "" }, wantField: "PartRecord.Name"},
		{name: "missing category", mutate: func(r *model.PartRecord) { r.Category = "" }, wantField: "PartRecord.Category"},
		{name: "missing manufacturer", mutate: func(r *model.PartRecord) { r.Manufacturer = "" }, wantField: "PartRecord.Manufacturer"},
		{name: "unknown source", mutate: func(r *model.PartRecord) { r.Source = "cache" }, wantField: "PartRecord.Source"},
		{name: "bad detail url", mutate: func(r *model.PartRecord) { r.DetailURL = "not a url" }, wantField: "PartRecord.DetailURL"},
		{
			name: "negative price",
			mutate: func(r *model.PartRecord) {
				p := decimal.NewFromInt(-1)
				r.Price = &p
			},
			wantField: "PartRecord.Price",
		},
		{name: "unknown price is allowed", mutate: func(r *model.PartRecord) { r.Price = nil }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			rec := validRecord()
			tt.mutate(&rec)
			_, err := v.Validate(rec)

			if tt.wantField == "" {
				if err != nil {
					t.Fatalf("expected valid, got %v", err)
				}
				return
			}

			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected *ValidationError, got %v", err)
			}
			if !errors.Is(err, ErrInvalidRecord) {
				t.Error("expected error to wrap ErrInvalidRecord")
			}
			found := false
			for _, f := range verr.Fields {
				if f.Field == tt.wantField {
					found = true
				}
			}
			if !found {
				t.Errorf("expected failure on %s, got %+v", tt.wantField, verr.Fields)
			}
		})
	}
}

func TestNormalize(t *testing.T) {
	t.Parallel()

	in := validRecord()
	in.SKU = " 3951 "
	in.Name = " Radiator  "
	in.Specifications = map[string]string{" Core Rows ": " 1 ", "": "x", "Empty": " "}
	in.Features = []string{"OE fit", " OE fit ", "", "Aluminum"}
	in.Images = []model.Image{
		{URL: "/relative.jpg"},
		{URL: "https://cdn.example.com/a.jpg"},
		{URL: "https://cdn.example.com/b.jpg", IsPrimary: true},
		{URL: "https://cdn.example.com/a.jpg", IsPrimary: true},
		{URL: "https://cdn.example.com/c.jpg", IsPrimary: true},
	}
	in.InterchangeNumbers = []model.Interchange{
		{Type: "OEM", Number: "19010"},
		{Type: " OEM ", Number: "19010"},
		{Type: "", Number: "x"},
	}

	got := Normalize(in)

	if got.SKU != "3951" || got.Name != "Radiator" {
		t.Errorf("expected trimmed fields, got %q %q", got.SKU, got.Name)
	}
	if diff := cmp.Diff(map[string]string{"Core Rows": "1"}, got.Specifications); diff != "" {
		t.Errorf("specs mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"OE fit", "Aluminum"}, got.Features); diff != "" {
		t.Errorf("features mismatch (-want +got):\n%s", diff)
	}
	wantImages := []model.Image{
		{URL: "https://cdn.example.com/a.jpg"},
		{URL: "https://cdn.example.com/b.jpg", IsPrimary: true},
		{URL: "https://cdn.example.com/c.jpg"},
	}
	if diff := cmp.Diff(wantImages, got.Images); diff != "" {
		t.Errorf("images mismatch (-want +got):\n%s", diff)
	}
	if len(got.InterchangeNumbers) != 1 {
		t.Errorf("expected deduplicated interchange numbers, got %+v", got.InterchangeNumbers)
	}

	t.Run("first image becomes primary when none is", func(t *testing.T) {
		t.Parallel()

		rec := validRecord()
		rec.Images = []model.Image{{URL: "https://cdn.example.com/a.jpg"}, {URL: "https://cdn.example.com/b.jpg"}}
		got := Normalize(rec)
		if !got.Images[0].IsPrimary || got.Images[1].IsPrimary {
			t.Errorf("unexpected primary flags: %+v", got.Images)
		}
	})

	t.Run("input is not modified", func(t *testing.T) {
		t.Parallel()

		rec := validRecord()
		rec.Images = []model.Image{{URL: "https://cdn.example.com/a.jpg"}}
		_ = Normalize(rec)
		if rec.Images[0].IsPrimary {
			t.Error("Normalize must not modify the caller's slice")
		}
	})
}

func TestMustRegister_PanicsOnBadRule(t *testing.T) {
	t.Parallel()

	defer func() {
		if recover() == nil {
			t.Error("expected a panic for an empty tag")
		}
	}()
	mustRegister(validator.New(), "", func(validator.FieldLevel) bool { return true })
}
