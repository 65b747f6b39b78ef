package orchestrator

import (
	"context"
	"fmt"

	"github.com/zachatkinson/carpart-scraper-sub000/internal/change"
	"github.com/zachatkinson/carpart-scraper-sub000/internal/checkpoint"
	"github.com/zachatkinson/carpart-scraper-sub000/internal/crawler"
	"github.com/zachatkinson/carpart-scraper-sub000/internal/metrics"
	"github.com/zachatkinson/carpart-scraper-sub000/internal/model"
)

// step is one state of a run.
type step interface {
	// Name returns the step's name for logging purposes.
	Name() string

	// State is the run state while the step executes.
	State() model.State

	// Do executes the step. Unit-level failures are counted and skipped;
	// a returned error fails the run.
	Do(ctx context.Context, r *run) error
}

// hierarchyStep walks the hierarchy, applies the change gate, and starts or
// resumes the checkpointed run.
type hierarchyStep struct{}

func (hierarchyStep) Name() string       { return "hierarchy" }
func (hierarchyStep) State() model.State { return model.StateHierarchyEnumerating }

func (hierarchyStep) Do(ctx context.Context, r *run) error {
	prev, err := r.o.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load checkpoint: %w", err)
	}

	h, err := r.enumerate(ctx)
	if err != nil {
		return err
	}
	r.hierarchy = h
	r.apps = h.Applications()
	r.stats.ApplicationsDiscovered = len(r.apps)

	fp := change.Fingerprint(*h)
	r.stats.Fingerprint = fp

	r.o.logger.Info("hierarchy enumerated",
		"makes", len(h.Makes),
		"applications", len(r.apps),
		"nodes_skipped", r.stats.HierarchyNodesSkipped,
		"fingerprint", fp,
	)

	if len(r.apps) == 0 {
		return ErrEmptyHierarchy
	}

	if r.opts.CheckChanges && prev != nil && prev.IsComplete() &&
		!change.HasChanged(prev.HierarchyFingerprint, fp) {
		r.o.logger.Info("catalog unchanged since last complete run, nothing to crawl",
			"previous_run", prev.RunID,
		)
		r.stats.Unchanged = true
		r.stopped = true
		return nil
	}

	return r.begin(ctx, prev, fp)
}

// begin restores state and saves the first checkpoint of this invocation.
// An incomplete previous checkpoint is resumed; anything else starts a new run.
func (r *run) begin(ctx context.Context, prev *model.Checkpoint, fp string) error {
	parts, err := r.o.catalog.LoadParts(ctx)
	if err != nil {
		return fmt.Errorf("failed to restore parts: %w", err)
	}
	r.parts.Restore(parts)

	var cp *model.Checkpoint
	if prev != nil && !prev.IsComplete() {
		cp = prev
		r.stats.Resumed = true

		fitments, err := r.o.catalog.LoadCompatibility(ctx)
		if err != nil {
			return fmt.Errorf("failed to restore compatibility: %w", err)
		}
		r.compat.Restore(fitments)

		if cp.HierarchyFingerprint != "" && change.HasChanged(cp.HierarchyFingerprint, fp) {
			r.o.logger.Warn("hierarchy changed since the checkpoint was written",
				"checkpoint_fingerprint", cp.HierarchyFingerprint,
			)
		}
		if removed := cp.PruneApplications(r.hierarchy.ApplicationIDs()); removed > 0 {
			r.o.logger.Warn("dropped completed applications no longer in the hierarchy", "count", removed)
		}

		attrs := []any{
			"checkpoint_run", cp.RunID,
			"phase", string(cp.Phase),
			"completed_applications", len(cp.CompletedApplicationIDs),
			"completed_skus", len(cp.CompletedSKUs),
			"parts", r.parts.Len(),
			"compatibility_entries", r.compat.Total(),
		}
		if cp.Cursor != nil {
			attrs = append(attrs, "cursor", model.VehicleConfig{
				Make:  cp.Cursor.Make,
				Year:  cp.Cursor.Year,
				Model: cp.Cursor.Model,
			}.String())
		}
		r.o.logger.Info("resuming run", attrs...)
	} else {
		if err := r.o.catalog.ResetCompatibility(ctx); err != nil {
			return fmt.Errorf("failed to reset compatibility: %w", err)
		}
		cp = model.NewCheckpoint(r.stats.RunID, r.o.now().UTC())
		r.o.logger.Info("starting new run", "catalog_parts", r.parts.Len())
	}

	r.progress = checkpoint.NewManager(r.o.store,
		checkpoint.WithInterval(r.opts.CheckpointInterval),
		checkpoint.WithClock(r.o.now),
		checkpoint.WithBeforeSave(r.persist),
	)
	r.progress.Begin(cp)
	r.progress.SetFingerprint(fp)
	return r.progress.Flush(ctx)
}

// enumerate walks every configured make. Unusable nodes are skipped.
func (r *run) enumerate(ctx context.Context) (*model.Hierarchy, error) {
	h := &model.Hierarchy{}
	for _, ref := range r.o.site.Makes {
		mk := model.Make{Name: ref.Name, ID: ref.ID}

		body, ok, err := r.fetchNode(ctx, r.o.urls.YearsURL(ref.ID), "make", ref.Name)
		if err != nil {
			return nil, err
		}
		if ok {
			years, err := crawler.ParseMakeResponse(body)
			if err != nil {
				r.skipNode(err, "make", ref.Name)
			}
			for _, edge := range years {
				yr, err := r.enumerateYear(ctx, ref.Name, edge)
				if err != nil {
					return nil, err
				}
				mk.Years = append(mk.Years, yr)
			}
		}

		h.Makes = append(h.Makes, mk)
	}
	return h, nil
}

func (r *run) enumerateYear(ctx context.Context, makeName string, edge crawler.YearEdge) (model.Year, error) {
	yr := model.Year{Year: edge.Year, YearID: edge.YearID}

	body, ok, err := r.fetchNode(ctx, r.o.urls.ModelsURL(edge.YearID), "make", makeName, "year", edge.Year)
	if err != nil || !ok {
		return yr, err
	}

	models, err := crawler.ParseModelResponse(body)
	if err != nil {
		r.skipNode(err, "make", makeName, "year", edge.Year)
		return yr, nil
	}
	for _, m := range models {
		yr.Models = append(yr.Models, model.Model{Model: m.Model, ApplicationID: m.ApplicationID})
	}
	return yr, nil
}

// fetchNode fetches one hierarchy response. ok is false when the node was
// skipped.
func (r *run) fetchNode(ctx context.Context, url string, attrs ...any) ([]byte, bool, error) {
	doc, outcome, err := r.fetchUnit(ctx, url, false, attrs...)
	if err != nil {
		return nil, false, err
	}
	if outcome != metrics.OutcomeDone {
		r.stats.HierarchyNodesSkipped++
		r.o.metrics.ObserveHierarchySkip()
		return nil, false, nil
	}
	return doc.Body, true, nil
}

func (r *run) skipNode(err error, attrs ...any) {
	r.o.logger.Warn("skipping malformed hierarchy node", append(attrs, "error", err)...)
	r.stats.HierarchyNodesSkipped++
	r.o.metrics.ObserveHierarchySkip()
}

// crawlStep visits every application page not completed yet.
type crawlStep struct{}

func (crawlStep) Name() string       { return "crawl" }
func (crawlStep) State() model.State { return model.StatePageCrawling }

func (crawlStep) Do(ctx context.Context, r *run) error {
	cp := r.progress.Current()
	pending := 0
	for _, app := range r.apps {
		if !cp.CompletedApplicationIDs.Has(app.ID) {
			pending++
		}
	}
	if pending == 0 && cp.Phase != model.PhaseHierarchy {
		r.o.logger.Info("application pages already crawled", "phase", string(cp.Phase))
		return nil
	}
	if cp.Phase != model.PhaseHierarchy {
		r.o.logger.Warn("hierarchy gained applications, crawling them again",
			"phase", string(cp.Phase),
			"pending_applications", pending,
		)
		if err := r.progress.SetPhase(ctx, model.PhaseHierarchy); err != nil {
			return err
		}
	}

	for i, app := range r.apps {
		if cp.CompletedApplicationIDs.Has(app.ID) {
			r.stats.ApplicationsSkipped++
			r.o.metrics.ObserveUnit(metrics.PhaseApplication, metrics.OutcomeSkipped)
			continue
		}

		r.o.logger.Debug("crawling application",
			"application_id", app.ID,
			"vehicle", app.Vehicle.String(),
			"progress", fmt.Sprintf("%d/%d", i+1, len(r.apps)),
		)
		if err := r.crawlApplication(ctx, app); err != nil {
			return err
		}
	}

	return r.progress.SetPhase(ctx, model.PhaseDetails)
}

func (r *run) crawlApplication(ctx context.Context, app model.Application) error {
	cursor := model.Cursor{Make: app.Vehicle.Make, Year: app.Vehicle.Year, Model: app.Vehicle.Model}

	doc, outcome, err := r.fetchUnit(ctx, r.o.urls.ApplicationURL(app.ID), true,
		"application_id", app.ID,
		"vehicle", app.Vehicle.String(),
	)
	if err != nil {
		return err
	}

	switch outcome {
	case metrics.OutcomeNotFound:
		r.stats.ApplicationsNotFound++
		r.o.metrics.ObserveUnit(metrics.PhaseApplication, outcome)
		return r.progress.MarkApplicationDone(ctx, app.ID, cursor)
	case metrics.OutcomeFailed:
		r.stats.ApplicationsFailed++
		r.o.metrics.ObserveUnit(metrics.PhaseApplication, outcome)
		return r.progress.MarkApplicationFailed(ctx, app.ID, cursor)
	}

	page, err := r.o.extractor.Extract(doc.Body, app.Vehicle)
	if err != nil {
		r.o.logger.Warn("failed to parse application page, skipping",
			"application_id", app.ID,
			"error", err,
		)
		r.stats.ApplicationsFailed++
		r.o.metrics.ObserveUnit(metrics.PhaseApplication, metrics.OutcomeFailed)
		return r.progress.MarkApplicationFailed(ctx, app.ID, cursor)
	}

	r.stats.RowsSkipped += page.SkippedRows
	r.o.metrics.ObserveRowsSkipped(page.SkippedRows)

	for _, listing := range page.Listings {
		r.ingest(listing.Part, &listing.Vehicle)
	}
	r.stats.ApplicationsVisited++
	r.o.metrics.ObserveUnit(metrics.PhaseApplication, metrics.OutcomeDone)

	return r.progress.MarkApplicationDone(ctx, app.ID, cursor)
}

// detailStep enriches the parts seen in this run from their detail pages.
type detailStep struct{}

func (detailStep) Name() string       { return "details" }
func (detailStep) State() model.State { return model.StateDetailFetching }

func (detailStep) Do(ctx context.Context, r *run) error {
	if r.opts.SkipDetails {
		r.o.logger.Info("detail pages skipped")
		return nil
	}

	cp := r.progress.Current()
	for _, sku := range r.compat.SKUs() {
		if cp.CompletedSKUs.Has(sku) {
			r.stats.DetailsSkipped++
			r.o.metrics.ObserveUnit(metrics.PhaseDetail, metrics.OutcomeSkipped)
			continue
		}

		rec, ok := r.parts.Get(sku)
		if !ok {
			continue
		}
		if r.opts.FetchDetailsNewOnly && rec.Source == model.SourceDetail {
			r.stats.DetailsSkipped++
			r.o.metrics.ObserveUnit(metrics.PhaseDetail, metrics.OutcomeSkipped)
			continue
		}

		if err := r.fetchDetail(ctx, rec); err != nil {
			return err
		}
	}

	return r.progress.Flush(ctx)
}

func (r *run) fetchDetail(ctx context.Context, rec model.PartRecord) error {
	url := rec.DetailURL
	if url == "" {
		url = r.o.urls.DetailURL(rec.SKU)
	}

	doc, outcome, err := r.fetchUnit(ctx, url, false, "sku", rec.SKU)
	if err != nil {
		return err
	}

	switch outcome {
	case metrics.OutcomeNotFound:
		r.stats.DetailsNotFound++
		r.o.metrics.ObserveUnit(metrics.PhaseDetail, outcome)
		return r.progress.MarkSKUDone(ctx, rec.SKU)
	case metrics.OutcomeFailed:
		r.stats.DetailsFailed++
		r.o.metrics.ObserveUnit(metrics.PhaseDetail, outcome)
		return r.progress.MarkSKUFailed(ctx, rec.SKU)
	}

	enriched, err := r.o.extractor.ExtractDetail(doc.Body, rec)
	if err != nil {
		r.o.logger.Warn("failed to parse detail page, skipping", "sku", rec.SKU, "error", err)
		r.stats.DetailsFailed++
		r.o.metrics.ObserveUnit(metrics.PhaseDetail, metrics.OutcomeFailed)
		return r.progress.MarkSKUFailed(ctx, rec.SKU)
	}

	// A rejected detail record is counted as a validation failure and the
	// listing record stays in place.
	if !r.ingest(enriched, nil) {
		r.o.metrics.ObserveUnit(metrics.PhaseDetail, metrics.OutcomeFailed)
		return r.progress.MarkSKUFailed(ctx, rec.SKU)
	}

	r.stats.DetailsFetched++
	r.o.metrics.ObserveUnit(metrics.PhaseDetail, metrics.OutcomeDone)
	return r.progress.MarkSKUDone(ctx, rec.SKU)
}

// exportStep writes the artifacts and completes the checkpoint.
type exportStep struct{}

func (exportStep) Name() string       { return "export" }
func (exportStep) State() model.State { return model.StateExporting }

func (exportStep) Do(ctx context.Context, r *run) error {
	if err := r.o.exporter.WriteAll(ctx, r.parts.All(), r.compat.AllEntries()); err != nil {
		return fmt.Errorf("export failed: %w", err)
	}
	return r.progress.SetPhase(ctx, model.PhaseComplete)
}
