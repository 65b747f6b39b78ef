package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/zachatkinson/carpart-scraper-sub000/internal/model"
	"github.com/zachatkinson/carpart-scraper-sub000/internal/registry"
)

// FileName is the database file name inside the data directory.
const FileName = "catalog.db"

// CatalogDB provides SQLite-based storage for part records, compatibility
// pairs and run history.
type CatalogDB struct {
	// db is the underlying SQL database connection.
	db *sql.DB

	// dbPath is the path to the SQLite database file.
	dbPath string
}

// Options configures CatalogDB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates a CatalogDB in dbDir.
// If CreateIfNotExists is false and the database doesn't exist, an error is returned.
func Open(dbDir string, opts Options) (*CatalogDB, error) {
	dbPath := filepath.Join(dbDir, FileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s (use CreateIfNotExists option to create)", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else {
		if err := os.MkdirAll(dbDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// mode=rw refuses to create a missing file, mode=rwc allows it.
	dsn := dbPath + "?mode=rw"
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite only supports one writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	cdb := &CatalogDB{
		db:     db,
		dbPath: dbPath,
	}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := cdb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return cdb, nil
}

// Path returns the database file path.
func (cdb *CatalogDB) Path() string {
	return cdb.dbPath
}

// Close closes the database connection.
func (cdb *CatalogDB) Close() error {
	return cdb.db.Close()
}

// createTables creates the database schema if it doesn't exist.
func (cdb *CatalogDB) createTables() error {
	schema := `
	-- Parts hold the cumulative catalog, one row per SKU
	CREATE TABLE IF NOT EXISTS parts (
		sku TEXT PRIMARY KEY,
		source TEXT NOT NULL,
		record_json TEXT NOT NULL,
		scraped_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_parts_source ON parts(source);

	-- Compatibility pairs of the current run
	CREATE TABLE IF NOT EXISTS compatibility (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		sku TEXT NOT NULL,
		vehicle_key TEXT NOT NULL,
		vehicle_json TEXT NOT NULL,
		UNIQUE(sku, vehicle_key)
	);

	CREATE INDEX IF NOT EXISTS idx_compat_sku ON compatibility(sku);

	-- Run history
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		started_at TEXT NOT NULL,
		finished_at TEXT,
		state TEXT NOT NULL,
		fingerprint TEXT,
		unchanged INTEGER NOT NULL DEFAULT 0,
		stats_json TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);
	`

	_, err := cdb.db.ExecContext(context.Background(), schema)
	return err
}

// UpsertParts inserts or replaces part records in one transaction.
func (cdb *CatalogDB) UpsertParts(ctx context.Context, parts []model.PartRecord) (err error) {
	if len(parts) == 0 {
		return nil
	}

	tx, err := cdb.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	stmt, err := tx.PrepareContext(ctx, `
	INSERT INTO parts (sku, source, record_json, scraped_at)
	VALUES (?, ?, ?, ?)
	ON CONFLICT(sku) DO UPDATE SET
		source = excluded.source,
		record_json = excluded.record_json,
		scraped_at = excluded.scraped_at
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare part upsert: %w", err)
	}
	defer stmt.Close()

	for _, p := range parts {
		recordJSON, err := json.Marshal(p)
		if err != nil {
			return fmt.Errorf("failed to serialize part %s: %w", p.SKU, err)
		}
		if _, err := stmt.ExecContext(ctx, p.SKU, string(p.Source), string(recordJSON), formatTimestamp(p.ScrapedAt)); err != nil {
			return fmt.Errorf("failed to upsert part %s: %w", p.SKU, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit parts: %w", err)
	}
	return nil
}

// LoadParts returns every stored part record ordered by SKU.
func (cdb *CatalogDB) LoadParts(ctx context.Context) ([]model.PartRecord, error) {
	rows, err := cdb.db.QueryContext(ctx, `SELECT record_json FROM parts ORDER BY sku`)
	if err != nil {
		return nil, fmt.Errorf("failed to query parts: %w", err)
	}
	defer rows.Close()

	var parts []model.PartRecord
	for rows.Next() {
		var recordJSON string
		if err := rows.Scan(&recordJSON); err != nil {
			return nil, fmt.Errorf("failed to scan part: %w", err)
		}
		var p model.PartRecord
		if err := json.Unmarshal([]byte(recordJSON), &p); err != nil {
			return nil, fmt.Errorf("failed to deserialize part: %w", err)
		}
		parts = append(parts, p)
	}

	return parts, rows.Err()
}

// CountParts returns the number of stored part records.
func (cdb *CatalogDB) CountParts(ctx context.Context) (int, error) {
	var count int
	if err := cdb.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM parts`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count parts: %w", err)
	}
	return count, nil
}

// InsertCompatibility stores compatibility pairs. Pairs already present are ignored.
func (cdb *CatalogDB) InsertCompatibility(ctx context.Context, fitments []registry.Fitment) (err error) {
	if len(fitments) == 0 {
		return nil
	}

	tx, err := cdb.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	stmt, err := tx.PrepareContext(ctx, `
	INSERT INTO compatibility (sku, vehicle_key, vehicle_json)
	VALUES (?, ?, ?)
	ON CONFLICT(sku, vehicle_key) DO NOTHING
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare compatibility insert: %w", err)
	}
	defer stmt.Close()

	for _, f := range fitments {
		vehicleJSON, err := json.Marshal(f.Vehicle)
		if err != nil {
			return fmt.Errorf("failed to serialize vehicle: %w", err)
		}
		if _, err := stmt.ExecContext(ctx, f.SKU, f.Vehicle.Key(), string(vehicleJSON)); err != nil {
			return fmt.Errorf("failed to insert compatibility for %s: %w", f.SKU, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit compatibility: %w", err)
	}
	return nil
}

// LoadCompatibility returns every stored pair ordered by SKU and vehicle key.
func (cdb *CatalogDB) LoadCompatibility(ctx context.Context) ([]registry.Fitment, error) {
	rows, err := cdb.db.QueryContext(ctx, `
	SELECT sku, vehicle_json FROM compatibility
	ORDER BY sku, vehicle_key
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query compatibility: %w", err)
	}
	defer rows.Close()

	var fitments []registry.Fitment
	for rows.Next() {
		var (
			sku         string
			vehicleJSON string
		)
		if err := rows.Scan(&sku, &vehicleJSON); err != nil {
			return nil, fmt.Errorf("failed to scan compatibility: %w", err)
		}
		f := registry.Fitment{SKU: sku}
		if err := json.Unmarshal([]byte(vehicleJSON), &f.Vehicle); err != nil {
			return nil, fmt.Errorf("failed to deserialize vehicle: %w", err)
		}
		fitments = append(fitments, f)
	}

	return fitments, rows.Err()
}

// ResetCompatibility deletes every stored pair. A new run rebuilds the
// index from scratch.
func (cdb *CatalogDB) ResetCompatibility(ctx context.Context) error {
	if _, err := cdb.db.ExecContext(ctx, `DELETE FROM compatibility`); err != nil {
		return fmt.Errorf("failed to reset compatibility: %w", err)
	}
	return nil
}

// SaveRun inserts or updates a run history record.
func (cdb *CatalogDB) SaveRun(ctx context.Context, stats *model.RunStats) error {
	statsJSON, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("failed to serialize run stats: %w", err)
	}

	var finishedAt sql.NullString
	if !stats.FinishedAt.IsZero() {
		finishedAt = sql.NullString{String: formatTimestamp(stats.FinishedAt), Valid: true}
	}

	query := `
	INSERT INTO runs (id, started_at, finished_at, state, fingerprint, unchanged, stats_json)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		finished_at = excluded.finished_at,
		state = excluded.state,
		fingerprint = excluded.fingerprint,
		unchanged = excluded.unchanged,
		stats_json = excluded.stats_json
	`

	_, err = cdb.db.ExecContext(ctx, query,
		stats.RunID,
		formatTimestamp(stats.StartedAt),
		finishedAt,
		stats.State.String(),
		stats.Fingerprint,
		stats.Unchanged,
		string(statsJSON),
	)
	if err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}

	return nil
}

// ListRuns returns up to limit runs, newest first. A limit of zero or less
// returns every run.
func (cdb *CatalogDB) ListRuns(ctx context.Context, limit int) ([]*model.RunStats, error) {
	if limit <= 0 {
		limit = -1 // SQLite treats a negative LIMIT as no limit
	}

	rows, err := cdb.db.QueryContext(ctx, `
	SELECT stats_json FROM runs
	ORDER BY started_at DESC, rowid DESC
	LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []*model.RunStats
	for rows.Next() {
		var statsJSON string
		if err := rows.Scan(&statsJSON); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		var stats model.RunStats
		if err := json.Unmarshal([]byte(statsJSON), &stats); err != nil {
			return nil, fmt.Errorf("failed to deserialize run: %w", err)
		}
		runs = append(runs, &stats)
	}

	return runs, rows.Err()
}

// LatestRun returns the most recently started run.
// Returns nil, nil when no run has been recorded.
func (cdb *CatalogDB) LatestRun(ctx context.Context) (*model.RunStats, error) {
	var statsJSON string
	err := cdb.db.QueryRowContext(ctx, `
	SELECT stats_json FROM runs
	ORDER BY started_at DESC, rowid DESC
	LIMIT 1
	`).Scan(&statsJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest run: %w", err)
	}

	var stats model.RunStats
	if err := json.Unmarshal([]byte(statsJSON), &stats); err != nil {
		return nil, fmt.Errorf("failed to deserialize run: %w", err)
	}
	return &stats, nil
}

// formatTimestamp stores times as sortable UTC text.
func formatTimestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000000000Z")
}
