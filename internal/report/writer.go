package report

import (
	"io"
	"strconv"
	"time"

	"github.com/zachatkinson/carpart-scraper-sub000/internal/model"
)

// Writer defines the interface for report output.
type Writer interface {
	// Write outputs the summary of one run.
	// Returns the number of bytes written and any error encountered.
	Write(stats *model.RunStats) (int, error)

	// WriteHistory outputs a list of past runs, newest first.
	WriteHistory(runs []*model.RunStats) (int, error)
}

// MultiWriter writes to multiple Writers simultaneously.
// This is useful for outputting to both terminal and file.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter creates a Writer that writes to all provided Writers.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// Write outputs the run summary to all configured Writers.
// Stops on first error encountered.
func (m *MultiWriter) Write(stats *model.RunStats) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.Write(stats)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// WriteHistory outputs the run history to all configured Writers.
func (m *MultiWriter) WriteHistory(runs []*model.RunStats) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.WriteHistory(runs)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// baseWriter provides common functionality for report writers.
type baseWriter struct {
	output io.Writer
}

// newBaseWriter creates a baseWriter with the given output destination.
func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}

const timeLayout = "2006-01-02 15:04:05 MST"

// statusText describes how a run ended.
func statusText(stats *model.RunStats) string {
	switch {
	case stats.State == model.StateFailed && stats.Error != "":
		return "FAILED - " + stats.Error
	case stats.State == model.StateFailed:
		return "FAILED"
	case stats.Unchanged:
		return "Unchanged (catalog hierarchy identical to last complete run)"
	case stats.State == model.StateDone && stats.Resumed:
		return "Complete (resumed)"
	case stats.State == model.StateDone:
		return "Complete"
	default:
		return stats.State.String()
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format(timeLayout)
}

func formatElapsed(d time.Duration) string {
	return d.Round(time.Second).String()
}

func shortFingerprint(fp string) string {
	if fp == "" {
		return "-"
	}
	if len(fp) > 12 {
		return fp[:12]
	}
	return fp
}

// counter is one labelled statistic.
type counter struct {
	label string
	value int
}

// section is a named group of counters.
type section struct {
	title    string
	counters []counter
}

func (s section) empty() bool {
	for _, c := range s.counters {
		if c.value != 0 {
			return false
		}
	}
	return true
}

// sections groups the run counters the same way for every writer.
func sections(stats *model.RunStats) []section {
	return []section{
		{
			title: "Hierarchy",
			counters: []counter{
				{"Applications discovered", stats.ApplicationsDiscovered},
				{"Nodes skipped", stats.HierarchyNodesSkipped},
			},
		},
		{
			title: "Application pages",
			counters: []counter{
				{"Visited", stats.ApplicationsVisited},
				{"Skipped (already done)", stats.ApplicationsSkipped},
				{"Not found", stats.ApplicationsNotFound},
				{"Failed", stats.ApplicationsFailed},
				{"Rows skipped", stats.RowsSkipped},
				{"Validation failures", stats.ValidationFailures},
			},
		},
		{
			title: "Catalog",
			counters: []counter{
				{"Parts created", stats.PartsCreated},
				{"Parts updated", stats.PartsUpdated},
				{"Parts retained", stats.PartsRetained},
				{"Unique SKUs", stats.UniqueSKUs},
				{"Compatibility entries", stats.CompatibilityEntries},
			},
		},
		{
			title: "Detail pages",
			counters: []counter{
				{"Fetched", stats.DetailsFetched},
				{"Skipped (already done)", stats.DetailsSkipped},
				{"Not found", stats.DetailsNotFound},
				{"Failed", stats.DetailsFailed},
			},
		},
	}
}

func historyRow(stats *model.RunStats) []string {
	return []string{
		stats.RunID,
		formatTime(stats.StartedAt),
		formatElapsed(stats.Elapsed),
		stats.State.String(),
		strconv.FormatBool(stats.Unchanged),
		strconv.Itoa(stats.UniqueSKUs),
		strconv.Itoa(stats.Skipped()),
	}
}

var historyHeader = []string{"Run", "Started", "Elapsed", "State", "Unchanged", "SKUs", "Skipped"}
