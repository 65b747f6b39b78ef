package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/zachatkinson/carpart-scraper-sub000/internal/checkpoint"
	"github.com/zachatkinson/carpart-scraper-sub000/internal/config"
	"github.com/zachatkinson/carpart-scraper-sub000/internal/database"
	"github.com/zachatkinson/carpart-scraper-sub000/internal/export"
	"github.com/zachatkinson/carpart-scraper-sub000/internal/fetch"
	"github.com/zachatkinson/carpart-scraper-sub000/internal/log"
	"github.com/zachatkinson/carpart-scraper-sub000/internal/metrics"
	"github.com/zachatkinson/carpart-scraper-sub000/internal/model"
	"github.com/zachatkinson/carpart-scraper-sub000/internal/orchestrator"
	"github.com/zachatkinson/carpart-scraper-sub000/internal/report"
)

// NewScrapeCmd creates the scrape command.
func NewScrapeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scrape",
		Short: "Scrape the catalog and export parts and compatibility data",
		Long: `Scrape walks the make/year/model hierarchy described in the site file,
extracts parts from every application page, fetches part detail pages, and
writes parts.json and compatibility.json to the output directory.

Progress is checkpointed after every completed unit. An interrupted scrape
resumes from the checkpoint on the next invocation.

Examples:
  # Full scrape with the site file found in the current directory
  carpart scrape

  # Skip the crawl when the catalog hierarchy has not changed
  carpart scrape --check-changes

  # Only fetch detail pages for parts never enriched before
  carpart scrape --new-only

  # Plain HTTP only, Markdown summary written to a file
  carpart scrape --no-browser --markdown -o reports/latest.md`,
		Args: cobra.NoArgs,
		RunE: runScrapeCmd,
	}

	// Site file
	cmd.Flags().StringP("config", "c", "",
		"Site file path (default: .carpart.yaml in current directory or XDG config dir)")

	// Run behavior flags
	cmd.Flags().Bool("check-changes", false,
		"Finish without crawling when the hierarchy matches the last complete run")
	cmd.Flags().Bool("new-only", false,
		"Fetch detail pages only for parts without detail data")
	cmd.Flags().Bool("skip-details", false,
		"Skip the detail page phase")
	cmd.Flags().Bool("preserve-detail", true,
		"Keep detail-enriched records when a listing is seen again")
	cmd.Flags().Int("checkpoint-interval", config.DefaultCheckpointInterval,
		"Completed units between checkpoint saves")
	cmd.Flags().String("checkpoint-backend", config.DefaultCheckpointBackend,
		"Checkpoint storage: file or badger")

	// Locations
	cmd.Flags().String("data-dir", config.XDGDataDir(),
		"Directory for the checkpoint and catalog database")
	cmd.Flags().String("output-dir", config.DefaultOutputDir,
		"Directory for parts.json and compatibility.json")
	cmd.Flags().Bool("incremental", false,
		"Stream artifacts to disk in batches")
	cmd.Flags().Int("export-batch-size", config.DefaultExportBatchSize,
		"Records per batch for incremental export")

	// Fetching
	cmd.Flags().Bool("no-browser", false,
		"Fetch application pages over plain HTTP instead of a headless browser")
	cmd.Flags().String("browser-bin", "",
		"Chromium binary for rendering (default: found or downloaded automatically)")
	cmd.Flags().Duration("min-delay", config.DefaultMinDelay,
		"Minimum politeness delay between requests")
	cmd.Flags().Duration("max-delay", config.DefaultMaxDelay,
		"Maximum politeness delay between requests")
	cmd.Flags().Int("requests-per-minute", config.DefaultRequestsPerMinute,
		"Request ceiling per minute (0 disables the ceiling)")
	cmd.Flags().DurationP("timeout", "t", config.DefaultTimeout,
		"Timeout for each HTTP request")

	// Output flags
	cmd.Flags().BoolP("json", "j", false,
		"Output JSON run summary (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output Markdown run summary (mutually exclusive with --json)")
	cmd.Flags().StringP("output", "o", "",
		"Write the run summary to the specified file path")
	cmd.Flags().String("metrics-file", "",
		"Write Prometheus metrics in textfile format to the specified path")
	cmd.Flags().Bool("log-json", false,
		"Emit logs as JSON")

	return cmd
}

// runScrapeCmd executes the scrape command.
func runScrapeCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := buildConfig(cmd)
	if err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := log.NewLogger(os.Stderr, cfg.Verbose, cfg.JSONLog)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	// Handle interrupt signals; the run stops after the current unit and
	// the checkpoint keeps the progress.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			logger.Info("received shutdown signal, saving progress...")
			cancel()
		case <-ctx.Done():
		}
	}()

	return runScrape(ctx, cfg, logger, cmd.OutOrStdout())
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// buildConfig creates a Config from the site file and cobra command flags.
// Flags given on the command line override the site file's crawl section.
func buildConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.NewConfig()
	flags := cmd.Flags()

	var err error
	cfg.ConfigFilePath, err = flags.GetString("config")
	if err != nil {
		return nil, err
	}

	configPath := config.FindConfigFile(cfg.ConfigFilePath)
	if configPath == "" {
		if cfg.ConfigFilePath != "" {
			return nil, fmt.Errorf("site file not found: %s", cfg.ConfigFilePath)
		}
		return nil, errors.New("no site file found (run \"carpart init\" to create .carpart.yaml)")
	}
	site, err := config.LoadConfigFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load site file %s: %w", configPath, err)
	}
	cfg.ConfigFilePath = configPath
	cfg.ApplyFile(site)

	boolFlags := map[string]*bool{
		"check-changes":   &cfg.CheckChanges,
		"new-only":        &cfg.FetchDetailsNewOnly,
		"skip-details":    &cfg.SkipDetails,
		"preserve-detail": &cfg.PreserveDetail,
		"incremental":     &cfg.Incremental,
		"no-browser":      &cfg.NoBrowser,
		"json":            &cfg.JSONReport,
		"markdown":        &cfg.MarkdownReport,
		"log-json":        &cfg.JSONLog,
	}
	for name, dst := range boolFlags {
		if *dst, err = flags.GetBool(name); err != nil {
			return nil, err
		}
	}

	stringFlags := map[string]*string{
		"checkpoint-backend": &cfg.CheckpointBackend,
		"data-dir":           &cfg.DataDir,
		"output-dir":         &cfg.OutputDir,
		"browser-bin":        &cfg.BrowserBin,
		"output":             &cfg.ReportFile,
		"metrics-file":       &cfg.MetricsFile,
	}
	for name, dst := range stringFlags {
		if *dst, err = flags.GetString(name); err != nil {
			return nil, err
		}
	}

	if cfg.CheckpointInterval, err = flags.GetInt("checkpoint-interval"); err != nil {
		return nil, err
	}
	if cfg.ExportBatchSize, err = flags.GetInt("export-batch-size"); err != nil {
		return nil, err
	}

	// Politeness settings may also come from the site file.
	if flags.Changed("min-delay") {
		if cfg.MinDelay, err = flags.GetDuration("min-delay"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("max-delay") {
		if cfg.MaxDelay, err = flags.GetDuration("max-delay"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("requests-per-minute") {
		if cfg.RequestsPerMinute, err = flags.GetInt("requests-per-minute"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("timeout") {
		if cfg.Timeout, err = flags.GetDuration("timeout"); err != nil {
			return nil, err
		}
	}

	cfg.Verbose = getVerboseFlag(cmd)

	return cfg, nil
}

// runScrape wires the collaborators and executes one run.
func runScrape(ctx context.Context, cfg *config.Config, logger *slog.Logger, out io.Writer) error {
	logger.Info("starting scrape",
		"site", cfg.Site.Site.BaseURL,
		"makes", len(cfg.Site.Site.Makes),
		"dataDir", cfg.DataDir,
		"outputDir", cfg.OutputDir,
		"browser", !cfg.NoBrowser,
	)

	collector := metrics.NewCollector()

	fetcher, err := newFetcher(cfg, logger, collector)
	if err != nil {
		return err
	}
	defer func() {
		if err := fetcher.Close(); err != nil {
			logger.Error("failed to close browser", "error", err)
		}
	}()

	store, err := openCheckpointStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	db, err := database.Open(cfg.DataDir, database.DefaultOptions())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()
	logger.Info("database opened", "path", db.Path())

	exporter := export.NewExporter(cfg.OutputDir,
		export.WithIncremental(cfg.Incremental),
		export.WithBatchSize(cfg.ExportBatchSize),
		export.WithLogger(logger),
	)

	o, err := orchestrator.New(orchestrator.Deps{
		Site:      cfg.Site.Site,
		Selectors: cfg.Site.Selectors,
		Fetcher:   fetcher,
		Store:     store,
		Catalog:   db,
		Exporter:  exporter,
	},
		orchestrator.WithLogger(logger),
		orchestrator.WithMetrics(collector),
		orchestrator.WithPreserveDetail(cfg.PreserveDetail),
	)
	if err != nil {
		return err
	}

	stats, runErr := o.Run(ctx, orchestrator.OptionsFromConfig(cfg))

	if err := outputReport(cfg, stats, out); err != nil {
		logger.Error("report failed", "error", err)
	}

	if cfg.MetricsFile != "" {
		if err := collector.WriteTextfile(cfg.MetricsFile); err != nil {
			logger.Error("failed to write metrics", "path", cfg.MetricsFile, "error", err)
		}
	}

	if runErr != nil {
		if errors.Is(runErr, context.Canceled) {
			return errors.New("scrape interrupted; run again to resume from the checkpoint")
		}
		return fmt.Errorf("scrape failed: %w", runErr)
	}
	return nil
}

// newFetcher creates the fetcher, launching the browser unless disabled.
func newFetcher(cfg *config.Config, logger *slog.Logger, collector *metrics.Collector) (*fetch.RateLimitedFetcher, error) {
	opts := []fetch.Option{
		fetch.WithLogger(logger),
		fetch.WithObserver(collector),
	}

	if !cfg.NoBrowser {
		renderer, err := fetch.NewRodRenderer(cfg.BrowserBin, cfg.RenderTimeout)
		if err != nil {
			return nil, fmt.Errorf("failed to start browser (use --no-browser to fetch without one): %w", err)
		}
		opts = append(opts, fetch.WithRenderer(renderer))
	}

	return fetch.NewFromConfig(cfg, opts...), nil
}

// openCheckpointStore opens the configured checkpoint backend.
func openCheckpointStore(cfg *config.Config) (checkpoint.Store, error) {
	switch cfg.CheckpointBackend {
	case config.BackendBadger:
		store, err := checkpoint.OpenBadgerStore(cfg.BadgerDir())
		if err != nil {
			return nil, fmt.Errorf("failed to open checkpoint store: %w", err)
		}
		return store, nil
	default:
		return checkpoint.NewFileStore(cfg.CheckpointPath()), nil
	}
}

// outputReport writes the run summary in the requested format.
func outputReport(cfg *config.Config, stats *model.RunStats, stdout io.Writer) error {
	output := stdout
	if cfg.ReportFile != "" {
		dir := filepath.Dir(cfg.ReportFile)
		if dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0750); err != nil {
				return fmt.Errorf("failed to create output directory: %w", err)
			}
		}

		f, err := os.OpenFile(cfg.ReportFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		output = f
	}

	_, err := newReportWriter(cfg, output).Write(stats)
	return err
}

// newReportWriter selects the summary format.
func newReportWriter(cfg *config.Config, output io.Writer) report.Writer {
	switch {
	case cfg.JSONReport:
		return report.NewJSONWriter(output, report.WithPrettyPrint(), report.WithVersion(getVersion()))
	case cfg.MarkdownReport:
		return report.NewMarkdownWriter(output)
	default:
		return report.NewSimpleWriter(output, report.WithVerbose(cfg.Verbose))
	}
}
