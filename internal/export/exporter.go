package export

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/zachatkinson/carpart-scraper-sub000/internal/model"
)

const (
	// PartsFile is the file name of the parts artifact.
	PartsFile = "parts.json"
	// CompatibilityFile is the file name of the compatibility artifact.
	CompatibilityFile = "compatibility.json"
	// DefaultBatchSize is the number of records encoded per batch in incremental mode.
	DefaultBatchSize = 500
)

// ErrExportWrite is returned when an artifact cannot be written.
var ErrExportWrite = errors.New("failed to write export")

// Exporter writes parts.json and compatibility.json.
type Exporter struct {
	outputDir   string
	incremental bool
	batchSize   int
	now         func() time.Time
	logger      *slog.Logger
}

// Option configures an Exporter.
type Option func(*Exporter)

// WithIncremental makes WriteAll stream records in batches.
func WithIncremental(incremental bool) Option {
	return func(e *Exporter) { e.incremental = incremental }
}

// WithBatchSize sets the incremental batch size. Values below 1 keep the default.
func WithBatchSize(n int) Option {
	return func(e *Exporter) {
		if n > 0 {
			e.batchSize = n
		}
	}
}

// WithClock sets the clock used for export_date.
func WithClock(now func() time.Time) Option {
	return func(e *Exporter) { e.now = now }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Exporter) { e.logger = logger }
}

// NewExporter creates an Exporter writing into outputDir.
func NewExporter(outputDir string, opts ...Option) *Exporter {
	e := &Exporter{
		outputDir: outputDir,
		batchSize: DefaultBatchSize,
		now:       time.Now,
		logger:    slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// PartsPath returns the path of parts.json.
func (e *Exporter) PartsPath() string {
	return filepath.Join(e.outputDir, PartsFile)
}

// CompatibilityPath returns the path of compatibility.json.
func (e *Exporter) CompatibilityPath() string {
	return filepath.Join(e.outputDir, CompatibilityFile)
}

// ExportParts writes parts to path, sorted by SKU.
func (e *Exporter) ExportParts(parts []model.PartRecord, path string, incremental bool) error {
	return e.exportParts(parts, path, incremental, e.now())
}

// ExportCompatibility writes entries to path. SKUs without vehicles are left out.
func (e *Exporter) ExportCompatibility(entries map[string][]model.VehicleConfig, path string, incremental bool) error {
	return e.exportCompatibility(entries, path, incremental, e.now())
}

// WriteAll writes both artifacts concurrently into the output directory.
// Only parts that have compatibility entries are exported, and both files
// carry the same export_date.
func (e *Exporter) WriteAll(ctx context.Context, parts []model.PartRecord, entries map[string][]model.VehicleConfig) error {
	at := e.now()

	exported := make([]model.PartRecord, 0, len(parts))
	for _, p := range parts {
		if len(entries[p.SKU]) > 0 {
			exported = append(exported, p)
		}
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := ctx.Err(); err != nil {
			return err
		}
		return e.exportParts(exported, e.PartsPath(), e.incremental, at)
	})
	g.Go(func() error {
		if err := ctx.Err(); err != nil {
			return err
		}
		return e.exportCompatibility(entries, e.CompatibilityPath(), e.incremental, at)
	})
	if err := g.Wait(); err != nil {
		return err
	}

	e.logger.Info("export written",
		"parts", len(exported),
		"compatibility", len(entries),
		"dir", e.outputDir,
	)
	return nil
}

func (e *Exporter) exportParts(parts []model.PartRecord, path string, incremental bool, at time.Time) error {
	sorted := sortedParts(parts)
	meta := PartsMetadata{
		ExportDate: formatTime(at),
		TotalParts: len(sorted),
		Version:    FormatVersion,
	}

	var write func(w io.Writer) error
	if incremental {
		write = func(w io.Writer) error {
			return streamDocument(w, "metadata", meta, "parts", len(sorted), e.batchSize, func(i int) any {
				return toPart(sorted[i])
			})
		}
	} else {
		doc := PartsDocument{Metadata: meta, Parts: make([]Part, 0, len(sorted))}
		for _, p := range sorted {
			doc.Parts = append(doc.Parts, toPart(p))
		}
		write = func(w io.Writer) error { return encodeDocument(w, doc) }
	}

	if err := writeFileAtomic(path, write); err != nil {
		return fmt.Errorf("%w %s: %w", ErrExportWrite, path, err)
	}
	e.logger.Debug("parts exported", "path", path, "parts", len(sorted), "incremental", incremental)
	return nil
}

func (e *Exporter) exportCompatibility(entries map[string][]model.VehicleConfig, path string, incremental bool, at time.Time) error {
	flat := sortedEntries(entries)
	meta := CompatibilityMetadata{
		ExportDate:    formatTime(at),
		TotalParts:    len(flat),
		TotalVehicles: distinctVehicles(entries),
		Version:       FormatVersion,
	}

	var write func(w io.Writer) error
	if incremental {
		write = func(w io.Writer) error {
			return streamDocument(w, "metadata", meta, "compatibility", len(flat), e.batchSize, func(i int) any {
				return flat[i]
			})
		}
	} else {
		doc := CompatibilityDocument{Metadata: meta, Compatibility: flat}
		write = func(w io.Writer) error { return encodeDocument(w, doc) }
	}

	if err := writeFileAtomic(path, write); err != nil {
		return fmt.Errorf("%w %s: %w", ErrExportWrite, path, err)
	}
	e.logger.Debug("compatibility exported", "path", path, "parts", len(flat), "incremental", incremental)
	return nil
}

func encodeDocument(w io.Writer, doc any) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	_, err = w.Write(data)
	return err
}

// streamDocument writes a two-key object {metaKey: meta, listKey: [...]} in
// the exact layout json.MarshalIndent with a two-space indent produces.
// Items are encoded batchSize at a time and flushed after every batch.
func streamDocument(w io.Writer, metaKey string, meta any, listKey string, n, batchSize int, item func(i int) any) error {
	bw := bufio.NewWriter(w)

	metaJSON, err := json.MarshalIndent(meta, "  ", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintf(bw, "{\n  %q: %s,\n  %q: ", metaKey, metaJSON, listKey)

	if n == 0 {
		bw.WriteString("[]\n}\n")
		return bw.Flush()
	}

	bw.WriteString("[\n")
	for start := 0; start < n; start += batchSize {
		end := min(start+batchSize, n)
		for i := start; i < end; i++ {
			data, err := json.MarshalIndent(item(i), "    ", "  ")
			if err != nil {
				return err
			}
			bw.WriteString("    ")
			bw.Write(data)
			if i < n-1 {
				bw.WriteByte(',')
			}
			bw.WriteByte('\n')
		}
		if err := bw.Flush(); err != nil {
			return err
		}
	}
	bw.WriteString("  ]\n}\n")
	return bw.Flush()
}

func writeFileAtomic(path string, write func(w io.Writer) error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		if tmpName != "" {
			_ = os.Remove(tmpName)
		}
	}()

	// Artifacts are read by other tools.
	if err := tmp.Chmod(0o644); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := write(tmp); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		return err
	}
	tmpName = ""
	return nil
}
