package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/zachatkinson/carpart-scraper-sub000/internal/checkpoint"
	"github.com/zachatkinson/carpart-scraper-sub000/internal/config"
	"github.com/zachatkinson/carpart-scraper-sub000/internal/database"
	"github.com/zachatkinson/carpart-scraper-sub000/internal/model"
	"github.com/zachatkinson/carpart-scraper-sub000/internal/report"
)

// defaultStatusRuns is the number of runs listed by default.
const defaultStatusRuns = 10

// NewStatusCmd creates the status command.
func NewStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show checkpoint progress and run history",
		Long: `Status prints the stored checkpoint and the most recent runs recorded in
the catalog database.

Examples:
  # Checkpoint and the last 10 runs
  carpart status

  # Last 3 runs as JSON
  carpart status --runs 3 --json`,
		Args: cobra.NoArgs,
		RunE: runStatusCmd,
	}

	cmd.Flags().Int("runs", defaultStatusRuns,
		"Number of recent runs to list (0 lists all)")
	cmd.Flags().BoolP("json", "j", false,
		"Output JSON")
	cmd.Flags().String("data-dir", config.XDGDataDir(),
		"Directory holding the checkpoint and catalog database")
	cmd.Flags().String("checkpoint-backend", config.DefaultCheckpointBackend,
		"Checkpoint storage: file or badger")

	return cmd
}

// statusOutput is the JSON form of the status command.
type statusOutput struct {
	Checkpoint *model.Checkpoint `json:"checkpoint"`
	Runs       []*model.RunStats `json:"runs"`
}

// runStatusCmd executes the status command.
func runStatusCmd(cmd *cobra.Command, _ []string) error {
	cfg := config.NewConfig()
	flags := cmd.Flags()

	var err error
	if cfg.DataDir, err = flags.GetString("data-dir"); err != nil {
		return err
	}
	if cfg.CheckpointBackend, err = flags.GetString("checkpoint-backend"); err != nil {
		return err
	}
	limit, err := flags.GetInt("runs")
	if err != nil {
		return err
	}
	asJSON, err := flags.GetBool("json")
	if err != nil {
		return err
	}

	ctx := cmd.Context()

	cp, err := loadCheckpoint(ctx, cfg)
	if err != nil {
		return err
	}
	runs, err := loadRuns(ctx, cfg.DataDir, limit)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if asJSON {
		if runs == nil {
			runs = []*model.RunStats{}
		}
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")
		return encoder.Encode(statusOutput{Checkpoint: cp, Runs: runs})
	}

	writeCheckpointSummary(out, cp)
	_, err = report.NewSimpleWriter(out).WriteHistory(runs)
	return err
}

// loadCheckpoint reads the checkpoint without creating a store that does
// not exist yet.
func loadCheckpoint(ctx context.Context, cfg *config.Config) (*model.Checkpoint, error) {
	var store checkpoint.Store
	switch cfg.CheckpointBackend {
	case config.BackendBadger:
		if _, err := os.Stat(cfg.BadgerDir()); os.IsNotExist(err) {
			return nil, nil
		}
		badgerStore, err := checkpoint.OpenBadgerStore(cfg.BadgerDir())
		if err != nil {
			return nil, fmt.Errorf("failed to open checkpoint store: %w", err)
		}
		store = badgerStore
	case config.BackendFile:
		store = checkpoint.NewFileStore(cfg.CheckpointPath())
	default:
		return nil, config.ErrInvalidCheckpointBackend
	}
	defer store.Close()

	cp, err := store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load checkpoint: %w", err)
	}
	return cp, nil
}

// loadRuns lists recorded runs, newest first. A missing database means no
// runs have been recorded.
func loadRuns(ctx context.Context, dataDir string, limit int) ([]*model.RunStats, error) {
	if _, err := os.Stat(filepath.Join(dataDir, database.FileName)); os.IsNotExist(err) {
		return nil, nil
	}

	db, err := database.Open(dataDir, database.Options{})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	runs, err := db.ListRuns(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	return runs, nil
}

func writeCheckpointSummary(w io.Writer, cp *model.Checkpoint) {
	var sb strings.Builder
	sb.WriteString("CHECKPOINT\n")
	if cp == nil {
		sb.WriteString("  No checkpoint stored\n\n")
		_, _ = io.WriteString(w, sb.String())
		return
	}

	fmt.Fprintf(&sb, "  Run:          %s\n", cp.RunID)
	fmt.Fprintf(&sb, "  Phase:        %s\n", cp.Phase)
	fmt.Fprintf(&sb, "  Applications: %d completed, %d failed\n",
		len(cp.CompletedApplicationIDs), len(cp.FailedApplicationIDs))
	fmt.Fprintf(&sb, "  Details:      %d completed, %d failed\n",
		len(cp.CompletedSKUs), len(cp.FailedSKUs))
	if cp.Cursor != nil {
		fmt.Fprintf(&sb, "  Cursor:       %s\n", model.VehicleConfig{
			Make:  cp.Cursor.Make,
			Year:  cp.Cursor.Year,
			Model: cp.Cursor.Model,
		}.String())
	}
	fmt.Fprintf(&sb, "  Updated:      %s\n", cp.UpdatedAt.Format(time.RFC3339))
	sb.WriteString("\n")

	_, _ = io.WriteString(w, sb.String())
}
