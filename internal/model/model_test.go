package model

import (
	"encoding/json"
	"slices"
	"strconv"
	"testing"
	"time"
)

func TestVehicleConfigIdentity(t *testing.T) {
	t.Parallel()

	t.Run("structurally equal configs are one set element", func(t *testing.T) {
		t.Parallel()

		set := map[VehicleConfig]struct{}{}
		set[VehicleConfig{Make: "Honda", Year: 2025, Model: "Accord"}] = struct{}{}
		set[VehicleConfig{Make: "Honda", Year: 2025, Model: "Accord"}] = struct{}{}
		if len(set) != 1 {
			t.Errorf("expected 1 entry, got %d", len(set))
		}
	})

	t.Run("qualifiers distinguish configs", func(t *testing.T) {
		t.Parallel()

		a := VehicleConfig{Make: "Honda", Year: 2025, Model: "Accord", Engine: "1.5L L4"}
		b := VehicleConfig{Make: "Honda", Year: 2025, Model: "Accord", Engine: "2.0L L4"}
		if a == b {
			t.Error("expected configs to differ")
		}
		if a.Key() == b.Key() {
			t.Error("expected keys to differ")
		}
	})

	t.Run("refine ignores empty qualifiers", func(t *testing.T) {
		t.Parallel()

		v := VehicleConfig{Make: "Honda", Year: 2025, Model: "Civic", FuelType: "Gas"}
		got := v.Refine("", "", "Turbocharged")
		if got.FuelType != "Gas" || got.Aspiration != "Turbocharged" {
			t.Errorf("unexpected refinement: %+v", got)
		}
	})
}

func TestCompareVehicles(t *testing.T) {
	t.Parallel()

	vs := []VehicleConfig{
		{Make: "Honda", Year: 2025, Model: "Civic"},
		{Make: "Acura", Year: 2024, Model: "MDX"},
		{Make: "Honda", Year: 2024, Model: "Accord"},
		{Make: "Honda", Year: 2025, Model: "Accord"},
	}
	slices.SortFunc(vs, CompareVehicles)

	want := []string{"Acura MDX 2024", "Honda Accord 2024", "Honda Accord 2025", "Honda Civic 2025"}
	for i, v := range vs {
		got := v.Make + " " + v.Model + " " + strconv.Itoa(v.Year)
		if got != want[i] {
			t.Errorf("position %d: got %q, want %q", i, got, want[i])
		}
	}
}

func TestHierarchyApplications(t *testing.T) {
	t.Parallel()

	h := Hierarchy{Makes: []Make{{
		Name: "Honda", ID: 3,
		Years: []Year{{
			Year: 2025, YearID: 77,
			Models: []Model{
				{Model: "Accord", ApplicationID: 1001},
				{Model: "Civic", ApplicationID: 1002},
				{Model: "Civic Si", ApplicationID: 1002},
			},
		}},
	}}}

	apps := h.Applications()
	if len(apps) != 2 {
		t.Fatalf("expected 2 applications, got %d", len(apps))
	}
	if apps[0].ID != 1001 || apps[0].Vehicle.Model != "Accord" {
		t.Errorf("unexpected first application: %+v", apps[0])
	}
	if !h.ApplicationIDs().Has(1002) {
		t.Error("expected id 1002 in set")
	}
}

func TestCheckpointJSON(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	cp := NewCheckpoint("run-1", now)
	cp.CompletedApplicationIDs.Add(30)
	cp.CompletedApplicationIDs.Add(10)
	cp.CompletedSKUs.Add("3985")
	cp.CompletedSKUs.Add("3951")

	data, err := json.Marshal(cp)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("unmarshal raw: %v", err)
	}
	ids, ok := raw["completed_application_ids"].([]any)
	if !ok || len(ids) != 2 || ids[0].(float64) != 10 {
		t.Errorf("expected sorted ids, got %v", raw["completed_application_ids"])
	}

	t.Run("unknown fields are ignored", func(t *testing.T) {
		t.Parallel()

		in := `{"version":1,"phase":"DETAILS","completed_skus":["a"],"future_field":true}`
		var got Checkpoint
		if err := json.Unmarshal([]byte(in), &got); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		got.Normalize()
		if got.Phase != PhaseDetails || !got.CompletedSKUs.Has("a") {
			t.Errorf("unexpected checkpoint: %+v", got)
		}
		if got.CompletedApplicationIDs == nil {
			t.Error("expected Normalize to allocate sets")
		}
	})
}

func TestCheckpointPruneApplications(t *testing.T) {
	t.Parallel()

	cp := NewCheckpoint("run", time.Now())
	cp.CompletedApplicationIDs.Add(1)
	cp.CompletedApplicationIDs.Add(2)
	cp.FailedApplicationIDs.Add(2)

	valid := IntSet{1: {}}
	if removed := cp.PruneApplications(valid); removed != 1 {
		t.Errorf("expected 1 removed, got %d", removed)
	}
	if cp.CompletedApplicationIDs.Has(2) || cp.FailedApplicationIDs.Has(2) {
		t.Error("expected id 2 to be pruned")
	}
}

func TestStateText(t *testing.T) {
	t.Parallel()

	for st := StateIdle; st <= StateFailed; st++ {
		text, err := st.MarshalText()
		if err != nil {
			t.Fatalf("marshal %d: %v", st, err)
		}
		var got State
		if err := got.UnmarshalText(text); err != nil {
			t.Fatalf("unmarshal %s: %v", text, err)
		}
		if got != st {
			t.Errorf("got %v, want %v", got, st)
		}
	}
	if !StateDone.IsTerminal() || StatePageCrawling.IsTerminal() {
		t.Error("unexpected terminal classification")
	}
}
