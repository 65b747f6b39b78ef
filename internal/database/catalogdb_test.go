package database

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"

	"github.com/zachatkinson/carpart-scraper-sub000/internal/model"
	"github.com/zachatkinson/carpart-scraper-sub000/internal/registry"
)

// setupTestDB creates a temporary database for testing.
func setupTestDB(t *testing.T) *CatalogDB {
	t.Helper()

	db, err := Open(t.TempDir(), DefaultOptions())
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	return db
}

func samplePart(sku string, source model.Source) model.PartRecord {
	price := decimal.RequireFromString("129.99")
	return model.PartRecord{
		SKU:          sku,
		Name:         "Radiator " + sku,
		Category:     "Radiator",
		Price:        &price,
		Manufacturer: "CSF",
		InStock:      true,
		Features:     []string{"OE fit"},
		Images:       []model.Image{{URL: "https://example.com/" + sku + ".jpg", IsPrimary: true}},
		Source:       source,
		ScrapedAt:    time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestOpen(t *testing.T) {
	t.Parallel()

	t.Run("creates database in new directory", func(t *testing.T) {
		t.Parallel()

		dbDir := filepath.Join(t.TempDir(), "newdir", "subdir")
		db, err := Open(dbDir, DefaultOptions())
		if err != nil {
			t.Fatalf("failed to open database: %v", err)
		}
		defer db.Close()

		if _, err := os.Stat(filepath.Join(dbDir, FileName)); os.IsNotExist(err) {
			t.Error("database file was not created")
		}
		if db.Path() != filepath.Join(dbDir, FileName) {
			t.Errorf("Path() = %q", db.Path())
		}
	})

	t.Run("CreateIfNotExists=false fails for missing database", func(t *testing.T) {
		t.Parallel()

		_, err := Open(t.TempDir(), Options{CreateIfNotExists: false})
		if err == nil {
			t.Error("expected error for missing database")
		}
	})

	t.Run("reopens existing database", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		db, err := Open(dir, DefaultOptions())
		if err != nil {
			t.Fatalf("failed to create database: %v", err)
		}
		_ = db.Close()

		db, err = Open(dir, Options{CreateIfNotExists: false, EnableWAL: true})
		if err != nil {
			t.Fatalf("failed to reopen database: %v", err)
		}
		_ = db.Close()
	})
}

func TestParts(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db := setupTestDB(t)

	if err := db.UpsertParts(ctx, []model.PartRecord{
		samplePart("3985", model.SourceListing),
		samplePart("3951", model.SourceListing),
	}); err != nil {
		t.Fatalf("UpsertParts() error = %v", err)
	}

	updated := samplePart("3951", model.SourceDetail)
	updated.Description = "Two row aluminium core"
	if err := db.UpsertParts(ctx, []model.PartRecord{updated}); err != nil {
		t.Fatalf("UpsertParts() error = %v", err)
	}

	got, err := db.LoadParts(ctx)
	if err != nil {
		t.Fatalf("LoadParts() error = %v", err)
	}
	want := []model.PartRecord{updated, samplePart("3985", model.SourceListing)}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("LoadParts() mismatch (-want +got):\n%s", diff)
	}

	count, err := db.CountParts(ctx)
	if err != nil {
		t.Fatalf("CountParts() error = %v", err)
	}
	if count != 2 {
		t.Errorf("CountParts() = %d, want 2", count)
	}

	if err := db.UpsertParts(ctx, nil); err != nil {
		t.Errorf("UpsertParts(nil) error = %v", err)
	}
}

func TestCompatibility(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db := setupTestDB(t)

	accord := model.VehicleConfig{Make: "Honda", Year: 2025, Model: "Accord"}
	civic := model.VehicleConfig{Make: "Honda", Year: 2025, Model: "Civic"}
	hybrid := accord.Refine("2.0L L4", "Hybrid", "")

	fitments := []registry.Fitment{
		{SKU: "3951", Vehicle: civic},
		{SKU: "3951", Vehicle: accord},
		{SKU: "3985", Vehicle: hybrid},
	}
	if err := db.InsertCompatibility(ctx, fitments); err != nil {
		t.Fatalf("InsertCompatibility() error = %v", err)
	}
	// Duplicates are ignored.
	if err := db.InsertCompatibility(ctx, fitments[:1]); err != nil {
		t.Fatalf("InsertCompatibility() duplicate error = %v", err)
	}

	got, err := db.LoadCompatibility(ctx)
	if err != nil {
		t.Fatalf("LoadCompatibility() error = %v", err)
	}
	want := []registry.Fitment{
		{SKU: "3951", Vehicle: accord},
		{SKU: "3951", Vehicle: civic},
		{SKU: "3985", Vehicle: hybrid},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("LoadCompatibility() mismatch (-want +got):\n%s", diff)
	}

	if err := db.ResetCompatibility(ctx); err != nil {
		t.Fatalf("ResetCompatibility() error = %v", err)
	}
	got, err = db.LoadCompatibility(ctx)
	if err != nil {
		t.Fatalf("LoadCompatibility() error = %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected no pairs after reset, got %d", len(got))
	}
}

func TestRuns(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db := setupTestDB(t)

	latest, err := db.LatestRun(ctx)
	if err != nil {
		t.Fatalf("LatestRun() error = %v", err)
	}
	if latest != nil {
		t.Fatalf("expected no run, got %+v", latest)
	}

	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	first := &model.RunStats{
		RunID:     "run-1",
		StartedAt: base,
		State:     model.StatePageCrawling,
	}
	if err := db.SaveRun(ctx, first); err != nil {
		t.Fatalf("SaveRun() error = %v", err)
	}

	first.State = model.StateDone
	first.FinishedAt = base.Add(time.Minute)
	first.Elapsed = time.Minute
	first.UniqueSKUs = 2
	if err := db.SaveRun(ctx, first); err != nil {
		t.Fatalf("SaveRun() update error = %v", err)
	}

	second := &model.RunStats{
		RunID:       "run-2",
		StartedAt:   base.Add(time.Hour),
		FinishedAt:  base.Add(time.Hour),
		State:       model.StateDone,
		Unchanged:   true,
		Fingerprint: "abc123",
	}
	if err := db.SaveRun(ctx, second); err != nil {
		t.Fatalf("SaveRun() error = %v", err)
	}

	runs, err := db.ListRuns(ctx, 0)
	if err != nil {
		t.Fatalf("ListRuns() error = %v", err)
	}
	if diff := cmp.Diff([]*model.RunStats{second, first}, runs); diff != "" {
		t.Errorf("ListRuns() mismatch (-want +got):\n%s", diff)
	}

	runs, err = db.ListRuns(ctx, 1)
	if err != nil {
		t.Fatalf("ListRuns(1) error = %v", err)
	}
	if len(runs) != 1 || runs[0].RunID != "run-2" {
		t.Errorf("ListRuns(1) = %+v", runs)
	}

	latest, err = db.LatestRun(ctx)
	if err != nil {
		t.Fatalf("LatestRun() error = %v", err)
	}
	if latest == nil || latest.RunID != "run-2" || !latest.Unchanged {
		t.Errorf("LatestRun() = %+v", latest)
	}
}
