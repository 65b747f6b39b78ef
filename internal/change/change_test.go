package change

import (
	"testing"

	"github.com/zachatkinson/carpart-scraper-sub000/internal/model"
)

func hondaHierarchy() model.Hierarchy {
	return model.Hierarchy{Makes: []model.Make{{
		Name: "Honda", ID: 3,
		Years: []model.Year{
			{Year: 2025, YearID: 77, Models: []model.Model{
				{Model: "Accord", ApplicationID: 1001},
				{Model: "Civic", ApplicationID: 1002},
			}},
			{Year: 2024, YearID: 76, Models: []model.Model{
				{Model: "Accord", ApplicationID: 901},
			}},
		},
	}}}
}

func TestFingerprint_Stable(t *testing.T) {
	t.Parallel()

	a := hondaHierarchy()

	// Same graph, different discovery order, different node ids, and a
	// repeated edge.
	b := model.Hierarchy{Makes: []model.Make{{
		Name: "Honda", ID: 99,
		Years: []model.Year{
			{Year: 2024, YearID: 1, Models: []model.Model{
				{Model: "Accord", ApplicationID: 901},
			}},
			{Year: 2025, YearID: 2, Models: []model.Model{
				{Model: "Civic", ApplicationID: 1002},
				{Model: "Accord", ApplicationID: 1001},
				{Model: "Civic", ApplicationID: 1002},
			}},
		},
	}}}

	if Fingerprint(a) != Fingerprint(b) {
		t.Error("expected equal fingerprints for value-equal hierarchies")
	}
	if Fingerprint(a) != Fingerprint(hondaHierarchy()) {
		t.Error("expected deterministic fingerprint")
	}
	if got := len(Fingerprint(a)); got != 64 {
		t.Errorf("expected 64 hex characters, got %d", got)
	}
}

func TestFingerprint_Sensitive(t *testing.T) {
	t.Parallel()

	base := Fingerprint(hondaHierarchy())

	tests := []struct {
		name   string
		mutate func(*model.Hierarchy)
	}{
		{
			name: "application added",
			mutate: func(h *model.Hierarchy) {
				h.Makes[0].Years[0].Models = append(h.Makes[0].Years[0].Models, model.Model{Model: "CR-V", ApplicationID: 1003})
			},
		},
		{
			name: "application removed",
			mutate: func(h *model.Hierarchy) {
				h.Makes[0].Years[0].Models = h.Makes[0].Years[0].Models[:1]
			},
		},
		{
			name: "application id changed",
			mutate: func(h *model.Hierarchy) {
				h.Makes[0].Years[1].Models[0].ApplicationID = 902
			},
		},
		{
			name: "model renamed",
			mutate: func(h *model.Hierarchy) {
				h.Makes[0].Years[1].Models[0].Model = "Accord Hybrid"
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			h := hondaHierarchy()
			tt.mutate(&h)
			if Fingerprint(h) == base {
				t.Error("expected fingerprint to change")
			}
		})
	}
}

func TestFingerprint_FieldBoundaries(t *testing.T) {
	t.Parallel()

	a := model.Hierarchy{Makes: []model.Make{{Name: "A|B", Years: []model.Year{{Year: 2025, Models: []model.Model{{Model: "C", ApplicationID: 1}}}}}}}
	b := model.Hierarchy{Makes: []model.Make{{Name: "A", Years: []model.Year{{Year: 2025, Models: []model.Model{{Model: "B|C", ApplicationID: 1}}}}}}}
	if Fingerprint(a) == Fingerprint(b) {
		t.Error("expected field boundaries to be unambiguous")
	}
}

func TestHasChanged(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		previous string
		current  string
		want     bool
	}{
		{name: "no previous run", previous: "", current: "abc", want: true},
		{name: "equal", previous: "abc", current: "abc", want: false},
		{name: "different", previous: "abc", current: "abd", want: true},
	}
	for _, tt := range tests {
		if got := HasChanged(tt.previous, tt.current); got != tt.want {
			t.Errorf("%s: HasChanged = %v, want %v", tt.name, got, tt.want)
		}
	}
}
