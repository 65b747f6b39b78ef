package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/zachatkinson/carpart-scraper-sub000/internal/checkpoint"
	"github.com/zachatkinson/carpart-scraper-sub000/internal/config"
	"github.com/zachatkinson/carpart-scraper-sub000/internal/crawler"
	"github.com/zachatkinson/carpart-scraper-sub000/internal/fetch"
	"github.com/zachatkinson/carpart-scraper-sub000/internal/log"
	"github.com/zachatkinson/carpart-scraper-sub000/internal/metrics"
	"github.com/zachatkinson/carpart-scraper-sub000/internal/model"
	"github.com/zachatkinson/carpart-scraper-sub000/internal/registry"
	"github.com/zachatkinson/carpart-scraper-sub000/internal/validate"
)

// Fetcher retrieves pages. *fetch.RateLimitedFetcher implements it.
type Fetcher interface {
	Fetch(ctx context.Context, url string, render bool) (*fetch.Document, error)
}

// Catalog persists the registries and the run history.
// *database.CatalogDB implements it.
type Catalog interface {
	UpsertParts(ctx context.Context, parts []model.PartRecord) error
	LoadParts(ctx context.Context) ([]model.PartRecord, error)
	InsertCompatibility(ctx context.Context, fitments []registry.Fitment) error
	LoadCompatibility(ctx context.Context) ([]registry.Fitment, error)
	ResetCompatibility(ctx context.Context) error
	SaveRun(ctx context.Context, stats *model.RunStats) error
}

// Exporter writes the public artifacts. *export.Exporter implements it.
type Exporter interface {
	WriteAll(ctx context.Context, parts []model.PartRecord, entries map[string][]model.VehicleConfig) error
}

// Options controls one run.
type Options struct {
	// CheckChanges finishes the run without crawling when the hierarchy
	// fingerprint equals the one of the last complete run.
	CheckChanges bool

	// FetchDetailsNewOnly limits the detail phase to SKUs whose record has
	// not been built from a detail page yet.
	FetchDetailsNewOnly bool

	// CheckpointInterval is the number of units between checkpoint saves.
	// Values below 1 save after every unit.
	CheckpointInterval int

	// SkipDetails skips the detail phase.
	SkipDetails bool
}

// OptionsFromConfig maps the run configuration onto Options.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		CheckChanges:        cfg.CheckChanges,
		FetchDetailsNewOnly: cfg.FetchDetailsNewOnly,
		CheckpointInterval:  cfg.CheckpointInterval,
		SkipDetails:         cfg.SkipDetails,
	}
}

// Deps are the collaborators of an Orchestrator.
type Deps struct {
	Site      config.Site
	Selectors config.Selectors
	Fetcher   Fetcher
	Store     checkpoint.Store
	Catalog   Catalog
	Exporter  Exporter
}

// Orchestrator drives scrape runs. It is not safe for concurrent use; runs
// are executed one at a time.
type Orchestrator struct {
	site      config.Site
	urls      *crawler.URLBuilder
	fetcher   Fetcher
	extractor *crawler.Extractor
	validator *validate.Validator
	store     checkpoint.Store
	catalog   Catalog
	exporter  Exporter

	metrics        *metrics.Collector
	logger         *slog.Logger
	now            func() time.Time
	newRunID       func() string
	preserveDetail bool
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) { o.logger = logger }
}

// WithClock sets the clock used for timestamps. The extractor shares it.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// WithRunID sets the run id generator.
func WithRunID(fn func() string) Option {
	return func(o *Orchestrator) { o.newRunID = fn }
}

// WithMetrics sets the metrics collector.
func WithMetrics(c *metrics.Collector) Option {
	return func(o *Orchestrator) { o.metrics = c }
}

// WithPreserveDetail controls whether listing data may replace a record
// already enriched from its detail page. The default is true.
func WithPreserveDetail(preserve bool) Option {
	return func(o *Orchestrator) { o.preserveDetail = preserve }
}

// New creates an Orchestrator.
func New(deps Deps, opts ...Option) (*Orchestrator, error) {
	switch {
	case deps.Fetcher == nil:
		return nil, errors.New("orchestrator: fetcher is required")
	case deps.Store == nil:
		return nil, errors.New("orchestrator: checkpoint store is required")
	case deps.Catalog == nil:
		return nil, errors.New("orchestrator: catalog is required")
	case deps.Exporter == nil:
		return nil, errors.New("orchestrator: exporter is required")
	}

	urls, err := crawler.NewURLBuilder(deps.Site)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}

	o := &Orchestrator{
		site:           deps.Site,
		urls:           urls,
		fetcher:        deps.Fetcher,
		validator:      validate.New(),
		store:          deps.Store,
		catalog:        deps.Catalog,
		exporter:       deps.Exporter,
		logger:         log.Discard(),
		now:            time.Now,
		newRunID:       uuid.NewString,
		preserveDetail: true,
	}
	for _, opt := range opts {
		opt(o)
	}

	manufacturer := deps.Site.Manufacturer
	if manufacturer == "" {
		manufacturer = "CSF"
	}
	o.extractor = crawler.NewExtractor(deps.Selectors,
		crawler.WithManufacturer(manufacturer),
		crawler.WithURLBuilder(urls),
		crawler.WithClock(o.now),
		crawler.WithExtractorLogger(o.logger),
	)

	return o, nil
}

// run is the state of one Run call.
type run struct {
	o        *Orchestrator
	opts     Options
	stats    *model.RunStats
	parts    *registry.PartRegistry
	compat   *registry.CompatibilityIndex
	progress *checkpoint.Manager

	hierarchy *model.Hierarchy
	apps      []model.Application

	// stopped ends the run successfully before the remaining steps.
	stopped bool
}

// Run executes one scrape. It always returns the run statistics, also when
// the run failed; the error is non-nil exactly when the final state is
// FAILED. A canceled run can be resumed by calling Run again.
func (o *Orchestrator) Run(ctx context.Context, opts Options) (*model.RunStats, error) {
	r := &run{
		o:    o,
		opts: opts,
		stats: &model.RunStats{
			RunID:     o.newRunID(),
			StartedAt: o.now().UTC(),
			State:     model.StateIdle,
		},
		parts:  registry.NewPartRegistry(registry.WithPreserveDetail(o.preserveDetail)),
		compat: registry.NewCompatibilityIndex(),
	}

	o.logger.Info("run started",
		"run_id", r.stats.RunID,
		"check_changes", opts.CheckChanges,
		"new_only", opts.FetchDetailsNewOnly,
		"skip_details", opts.SkipDetails,
	)

	err := r.execute(ctx, []step{
		hierarchyStep{},
		crawlStep{},
		detailStep{},
		exportStep{},
	})
	r.finish(ctx, err)

	return r.stats, err
}

// execute runs the steps in order.
func (r *run) execute(ctx context.Context, steps []step) error {
	for _, s := range steps {
		if r.stopped {
			break
		}

		if err := ctx.Err(); err != nil {
			r.o.logger.Warn("run cancelled", "step", s.Name(), "reason", err)
			return err
		}

		r.transition(s.State())
		r.o.logger.Debug("executing step", "step", s.Name())

		if err := s.Do(ctx, r); err != nil {
			r.o.logger.Error("step failed", "step", s.Name(), "error", err)
			return err
		}
	}
	return nil
}

func (r *run) transition(state model.State) {
	if r.stats.State == state {
		return
	}
	r.o.logger.Info("state changed", "from", r.stats.State.String(), "to", state.String())
	r.stats.State = state
}

// finish settles the final state, saves what can be saved, and records the
// run in the catalog history.
func (r *run) finish(ctx context.Context, runErr error) {
	// The run record and the final checkpoint must be written even when ctx
	// is already canceled.
	saveCtx := context.WithoutCancel(ctx)

	if runErr != nil {
		if r.progress != nil && !errors.Is(runErr, checkpoint.ErrCheckpointWrite) {
			if err := r.progress.Flush(saveCtx); err != nil {
				r.o.logger.Error("failed to save checkpoint after failure", "error", err)
			}
		}
		r.transition(model.StateFailed)
		r.stats.Error = runErr.Error()
	} else {
		r.transition(model.StateDone)
	}

	r.stats.UniqueSKUs = len(r.compat.SKUs())
	r.stats.CompatibilityEntries = r.compat.Total()
	r.stats.FinishedAt = r.o.now().UTC()
	r.stats.Elapsed = r.stats.FinishedAt.Sub(r.stats.StartedAt)

	if err := r.o.catalog.SaveRun(saveCtx, r.stats); err != nil {
		r.o.logger.Error("failed to record run", "run_id", r.stats.RunID, "error", err)
	}
	r.o.metrics.ObserveRun(r.stats)

	r.o.logger.Info("run finished",
		"run_id", r.stats.RunID,
		"state", r.stats.State.String(),
		"unchanged", r.stats.Unchanged,
		"unique_skus", r.stats.UniqueSKUs,
		"compatibility_entries", r.stats.CompatibilityEntries,
		"skipped", r.stats.Skipped(),
		"elapsed", r.stats.Elapsed,
	)
}

// persist writes registry changes to the catalog. It runs before every
// checkpoint save.
func (r *run) persist(ctx context.Context) error {
	if dirty := r.parts.Dirty(); len(dirty) > 0 {
		if err := r.o.catalog.UpsertParts(ctx, dirty); err != nil {
			return err
		}
		r.parts.ClearDirty()
	}
	if pending := r.compat.Pending(); len(pending) > 0 {
		if err := r.o.catalog.InsertCompatibility(ctx, pending); err != nil {
			return err
		}
		r.compat.ClearPending()
	}
	return nil
}

// ingest validates rec and records it. A non-nil vehicle adds a
// compatibility pair. It reports whether the record was accepted.
func (r *run) ingest(rec model.PartRecord, vehicle *model.VehicleConfig) bool {
	valid, err := r.o.validator.Validate(rec)
	if err != nil {
		r.o.logger.Warn("skipping invalid record", "sku", rec.SKU, "error", err)
		r.stats.ValidationFailures++
		r.o.metrics.ObserveValidationFailure()
		return false
	}

	result := r.parts.Upsert(valid)
	switch result {
	case registry.Created:
		r.stats.PartsCreated++
	case registry.Updated:
		r.stats.PartsUpdated++
	case registry.Retained:
		r.stats.PartsRetained++
	}
	r.o.metrics.ObserveUpsert(result.String())

	if vehicle != nil {
		r.compat.Add(valid.SKU, *vehicle)
	}
	return true
}

// fetchUnit fetches url for one unit of work. A nil document with a nil
// error means the unit must be skipped; the reason has been logged. Only
// cancellation is returned as an error.
func (r *run) fetchUnit(ctx context.Context, url string, render bool, attrs ...any) (*fetch.Document, string, error) {
	doc, err := r.o.fetcher.Fetch(ctx, url, render)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, "", ctxErr
		}
		r.o.logger.Warn("fetch failed, skipping", append(attrs, "url", url, "error", err)...)
		return nil, metrics.OutcomeFailed, nil
	}
	if doc.NotFound {
		r.o.logger.Info("page not found, skipping", append(attrs, "url", url)...)
		return nil, metrics.OutcomeNotFound, nil
	}
	return doc, metrics.OutcomeDone, nil
}
