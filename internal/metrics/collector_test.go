package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/zachatkinson/carpart-scraper-sub000/internal/fetch"
	"github.com/zachatkinson/carpart-scraper-sub000/internal/model"
)

var _ fetch.Observer = (*Collector)(nil)

func TestCollector_Counters(t *testing.T) {
	t.Parallel()

	c := NewCollector()
	c.ObserveRequest(fetch.KindHTTP, 200)
	c.ObserveRequest(fetch.KindHTTP, 200)
	c.ObserveRequest(fetch.KindRender, 429)
	c.ObserveRetry(fetch.ReasonRateLimited)
	c.ObserveUnit(PhaseApplication, OutcomeDone)
	c.ObserveUnit(PhaseApplication, OutcomeNotFound)
	c.ObserveUpsert("created")
	c.ObserveValidationFailure()
	c.ObserveRowsSkipped(3)
	c.ObserveRowsSkipped(0)
	c.ObserveHierarchySkip()

	tests := []struct {
		name string
		got  float64
		want float64
	}{
		{"http 200", testutil.ToFloat64(c.requests.WithLabelValues("http", "200")), 2},
		{"render 429", testutil.ToFloat64(c.requests.WithLabelValues("render", "429")), 1},
		{"rate limited retries", testutil.ToFloat64(c.retries.WithLabelValues("rate_limited")), 1},
		{"applications done", testutil.ToFloat64(c.units.WithLabelValues("application", "done")), 1},
		{"applications not found", testutil.ToFloat64(c.units.WithLabelValues("application", "not_found")), 1},
		{"created", testutil.ToFloat64(c.parts.WithLabelValues("created")), 1},
		{"validation failures", testutil.ToFloat64(c.validationFailures), 1},
		{"rows skipped", testutil.ToFloat64(c.rowsSkipped), 3},
		{"hierarchy skipped", testutil.ToFloat64(c.hierarchySkipped), 1},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s = %v, want %v", tt.name, tt.got, tt.want)
		}
	}
}

func TestCollector_ObserveRun(t *testing.T) {
	t.Parallel()

	c := NewCollector()
	finished := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	c.ObserveRun(&model.RunStats{
		State:                model.StateDone,
		Elapsed:              90 * time.Second,
		FinishedAt:           finished,
		UniqueSKUs:           2,
		CompatibilityEntries: 3,
	})

	if got := testutil.ToFloat64(c.runDuration); got != 90 {
		t.Errorf("duration = %v, want 90", got)
	}
	if got := testutil.ToFloat64(c.runSuccess); got != 1 {
		t.Errorf("success = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.runLastFinished); got != float64(finished.Unix()) {
		t.Errorf("last finished = %v", got)
	}
	if got := testutil.ToFloat64(c.uniqueSKUs); got != 2 {
		t.Errorf("unique skus = %v, want 2", got)
	}

	c.ObserveRun(&model.RunStats{State: model.StateFailed})
	if got := testutil.ToFloat64(c.runSuccess); got != 0 {
		t.Errorf("success after failed run = %v, want 0", got)
	}
}

func TestCollector_Nil(t *testing.T) {
	t.Parallel()

	var c *Collector
	c.ObserveRequest(fetch.KindHTTP, 200)
	c.ObserveRetry(fetch.ReasonTransport)
	c.ObserveUnit(PhaseDetail, OutcomeFailed)
	c.ObserveUpsert("updated")
	c.ObserveValidationFailure()
	c.ObserveRowsSkipped(1)
	c.ObserveHierarchySkip()
	c.ObserveRun(&model.RunStats{})
}

func TestCollector_WriteTextfile(t *testing.T) {
	t.Parallel()

	c := NewCollector()
	c.ObserveRequest(fetch.KindHTTP, 404)

	path := filepath.Join(t.TempDir(), "textfile", "carpart.prom")
	if err := c.WriteTextfile(path); err != nil {
		t.Fatalf("WriteTextfile() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	want := `carpart_fetch_requests_total{kind="http",status="404"} 1`
	if !strings.Contains(string(data), want) {
		t.Errorf("textfile missing %q:\n%s", want, data)
	}
}
