package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/zachatkinson/carpart-scraper-sub000/internal/model"
)

// SimpleWriter outputs human-readable text reports for terminal display.
type SimpleWriter struct {
	baseWriter

	// showEmpty controls whether sections whose counters are all zero are shown.
	showEmpty bool

	// verbose adds the fingerprint and counters that are zero.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithShowEmpty configures the writer to show empty sections.
func WithShowEmpty(show bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.showEmpty = show
	}
}

// WithVerbose enables verbose output with additional details.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{
		baseWriter: newBaseWriter(output),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Write outputs the run summary in human-readable format.
func (w *SimpleWriter) Write(stats *model.RunStats) (int, error) {
	var sb strings.Builder

	w.writeHeader(&sb, stats)

	for _, sec := range sections(stats) {
		w.writeSection(&sb, sec)
	}

	w.writeFooter(&sb)

	return io.WriteString(w.output, sb.String())
}

// WriteHistory outputs past runs as an aligned table.
func (w *SimpleWriter) WriteHistory(runs []*model.RunStats) (int, error) {
	var sb strings.Builder

	if len(runs) == 0 {
		sb.WriteString("No runs recorded\n")
		return io.WriteString(w.output, sb.String())
	}

	rows := make([][]string, 0, len(runs)+1)
	rows = append(rows, historyHeader)
	for _, run := range runs {
		rows = append(rows, historyRow(run))
	}

	widths := make([]int, len(historyHeader))
	for _, row := range rows {
		for i, cell := range row {
			widths[i] = max(widths[i], len(cell))
		}
	}

	for _, row := range rows {
		for i, cell := range row {
			if i > 0 {
				sb.WriteString("  ")
			}
			if i == len(row)-1 {
				sb.WriteString(cell)
				continue
			}
			fmt.Fprintf(&sb, "%-*s", widths[i], cell)
		}
		sb.WriteString("\n")
	}

	return io.WriteString(w.output, sb.String())
}

// writeHeader writes the report header with run information.
func (w *SimpleWriter) writeHeader(sb *strings.Builder, stats *model.RunStats) {
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("                        CARPART RUN REPORT\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n\n")

	fmt.Fprintf(sb, "Run ID:   %s\n", stats.RunID)
	fmt.Fprintf(sb, "Started:  %s\n", formatTime(stats.StartedAt))
	fmt.Fprintf(sb, "Elapsed:  %s\n", formatElapsed(stats.Elapsed))
	fmt.Fprintf(sb, "Status:   %s\n", statusText(stats))
	if w.verbose {
		fmt.Fprintf(sb, "Hierarchy fingerprint: %s\n", shortFingerprint(stats.Fingerprint))
	}
	sb.WriteString("\n")
}

// writeSection writes one group of counters.
func (w *SimpleWriter) writeSection(sb *strings.Builder, sec section) {
	if sec.empty() && !w.showEmpty {
		return
	}

	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString(strings.ToUpper(sec.title))
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")

	for _, c := range sec.counters {
		if c.value == 0 && !w.verbose {
			continue
		}
		fmt.Fprintf(sb, "  %-26s %d\n", c.label+":", c.value)
	}
	sb.WriteString("\n")
}

// writeFooter writes the report footer.
func (w *SimpleWriter) writeFooter(sb *strings.Builder) {
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
}
