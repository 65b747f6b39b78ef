package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/zachatkinson/carpart-scraper-sub000/internal/model"
)

const namespace = "carpart"

// Unit phases and outcomes reported through ObserveUnit.
const (
	PhaseApplication = "application"
	PhaseDetail      = "detail"

	OutcomeDone     = "done"
	OutcomeNotFound = "not_found"
	OutcomeFailed   = "failed"
	OutcomeSkipped  = "skipped"
)

// Collector holds the counters of one process.
type Collector struct {
	registry *prometheus.Registry

	requests           *prometheus.CounterVec
	retries            *prometheus.CounterVec
	units              *prometheus.CounterVec
	parts              *prometheus.CounterVec
	validationFailures prometheus.Counter
	rowsSkipped        prometheus.Counter
	hierarchySkipped   prometheus.Counter

	runDuration          prometheus.Gauge
	runLastFinished      prometheus.Gauge
	runSuccess           prometheus.Gauge
	uniqueSKUs           prometheus.Gauge
	compatibilityEntries prometheus.Gauge
}

// NewCollector creates a Collector with its own registry.
func NewCollector() *Collector {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Collector{
		registry: reg,

		// Labels: kind (http, render), status (HTTP status code, 0 for transport errors)
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "fetch",
			Name:      "requests_total",
			Help:      "Total page requests by kind and status code",
		}, []string{"kind", "status"}),

		// Labels: reason (rate_limited, server_error, transport)
		retries: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "fetch",
			Name:      "retries_total",
			Help:      "Total request retries by reason",
		}, []string{"reason"}),

		// Labels: phase (application, detail), outcome (done, not_found, failed, skipped)
		units: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "crawl",
			Name:      "units_total",
			Help:      "Total work units by phase and outcome",
		}, []string{"phase", "outcome"}),

		// Labels: result (created, updated, retained)
		parts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "registry",
			Name:      "upserts_total",
			Help:      "Total part registry upserts by result",
		}, []string{"result"}),

		validationFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "crawl",
			Name:      "validation_failures_total",
			Help:      "Total part records rejected by validation",
		}),

		rowsSkipped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "crawl",
			Name:      "rows_skipped_total",
			Help:      "Total listing rows skipped during extraction",
		}),

		hierarchySkipped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "crawl",
			Name:      "hierarchy_nodes_skipped_total",
			Help:      "Total hierarchy nodes skipped because their response could not be used",
		}),

		runDuration: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "run",
			Name:      "duration_seconds",
			Help:      "Duration of the last run in seconds",
		}),

		runLastFinished: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "run",
			Name:      "last_finished_timestamp_seconds",
			Help:      "Unix time the last run finished",
		}),

		runSuccess: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "run",
			Name:      "success",
			Help:      "1 if the last run finished in DONE, 0 otherwise",
		}),

		uniqueSKUs: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "catalog",
			Name:      "unique_skus",
			Help:      "Unique SKUs in the part registry after the last run",
		}),

		compatibilityEntries: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "catalog",
			Name:      "compatibility_entries",
			Help:      "SKU to vehicle pairs in the compatibility index after the last run",
		}),
	}
}

// Registry returns the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// ObserveRequest counts one completed request.
func (c *Collector) ObserveRequest(kind string, status int) {
	if c == nil {
		return
	}
	c.requests.WithLabelValues(kind, strconv.Itoa(status)).Inc()
}

// ObserveRetry counts one retry.
func (c *Collector) ObserveRetry(reason string) {
	if c == nil {
		return
	}
	c.retries.WithLabelValues(reason).Inc()
}

// ObserveUnit counts one finished work unit.
func (c *Collector) ObserveUnit(phase, outcome string) {
	if c == nil {
		return
	}
	c.units.WithLabelValues(phase, outcome).Inc()
}

// ObserveUpsert counts one registry upsert.
func (c *Collector) ObserveUpsert(result string) {
	if c == nil {
		return
	}
	c.parts.WithLabelValues(result).Inc()
}

// ObserveValidationFailure counts one rejected record.
func (c *Collector) ObserveValidationFailure() {
	if c == nil {
		return
	}
	c.validationFailures.Inc()
}

// ObserveRowsSkipped adds n skipped listing rows.
func (c *Collector) ObserveRowsSkipped(n int) {
	if c == nil || n <= 0 {
		return
	}
	c.rowsSkipped.Add(float64(n))
}

// ObserveHierarchySkip counts one skipped hierarchy node.
func (c *Collector) ObserveHierarchySkip() {
	if c == nil {
		return
	}
	c.hierarchySkipped.Inc()
}

// ObserveRun records the outcome of a finished run.
func (c *Collector) ObserveRun(stats *model.RunStats) {
	if c == nil || stats == nil {
		return
	}
	c.runDuration.Set(stats.Elapsed.Seconds())
	if !stats.FinishedAt.IsZero() {
		c.runLastFinished.Set(float64(stats.FinishedAt.Unix()))
	}
	if stats.State == model.StateDone {
		c.runSuccess.Set(1)
	} else {
		c.runSuccess.Set(0)
	}
	c.uniqueSKUs.Set(float64(stats.UniqueSKUs))
	c.compatibilityEntries.Set(float64(stats.CompatibilityEntries))
}

// WriteTextfile writes every metric to path in the text exposition format.
// The file is replaced atomically.
func (c *Collector) WriteTextfile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("failed to create metrics directory: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, c.registry); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}
	return nil
}
