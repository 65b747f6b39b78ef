package report

import (
	"io"
	"strconv"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"

	"github.com/zachatkinson/carpart-scraper-sub000/internal/model"
)

// MarkdownWriter outputs reports in Markdown format.
// This format is designed for documentation and sharing.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// Write outputs the run summary in Markdown format.
func (w *MarkdownWriter) Write(stats *model.RunStats) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, stats)
	w.writeAlert(md, stats)

	for _, sec := range sections(stats) {
		w.writeSection(md, sec)
	}

	w.writeUpsertChart(md, stats)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// WriteHistory outputs past runs as a Markdown table.
func (w *MarkdownWriter) WriteHistory(runs []*model.RunStats) (int, error) {
	md := markdown.NewMarkdown(w.output)

	md.H1("carpart Run History")
	md.PlainText("")

	if len(runs) == 0 {
		md.PlainText("No runs recorded.")
		return len(md.String()), md.Build()
	}

	rows := make([][]string, len(runs))
	for i, run := range runs {
		row := historyRow(run)
		row[0] = "`" + row[0] + "`"
		rows[i] = row
	}
	md.Table(markdown.TableSet{
		Header: historyHeader,
		Rows:   rows,
	})

	return len(md.String()), md.Build()
}

// writeHeader writes the report header with run information.
func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, stats *model.RunStats) {
	md.H1("carpart Run Report")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Run ID", "`" + stats.RunID + "`"},
			{"Started", formatTime(stats.StartedAt)},
			{"Finished", formatTime(stats.FinishedAt)},
			{"Elapsed", formatElapsed(stats.Elapsed)},
			{"Status", w.getStatusText(stats)},
			{"Hierarchy fingerprint", "`" + shortFingerprint(stats.Fingerprint) + "`"},
		},
	})
	md.PlainText("")
}

// getStatusText returns the status text with an indicator.
func (w *MarkdownWriter) getStatusText(stats *model.RunStats) string {
	switch {
	case stats.State == model.StateFailed:
		return "❌ " + statusText(stats)
	case stats.Skipped() > 0:
		return "⚠️ " + statusText(stats)
	default:
		return "✅ " + statusText(stats)
	}
}

// writeAlert writes an alert that summarises the outcome.
func (w *MarkdownWriter) writeAlert(md *markdown.Markdown, stats *model.RunStats) {
	switch {
	case stats.State == model.StateFailed:
		md.Cautionf("The run failed: %s. Run scrape again to resume from the last checkpoint.", stats.Error)
	case stats.Skipped() > 0:
		md.Warningf("%d unit(s) or record(s) were skipped. See the counters below.", stats.Skipped())
	case stats.Unchanged:
		md.Note("The catalog hierarchy is unchanged since the last complete run. No pages were crawled.")
	default:
		md.Tip("Every discovered unit was processed.")
	}
	md.PlainText("")
}

// writeSection writes one group of counters as a table.
func (w *MarkdownWriter) writeSection(md *markdown.Markdown, sec section) {
	if sec.empty() {
		return
	}

	md.H2(sec.title)
	md.PlainText("")

	rows := make([][]string, 0, len(sec.counters))
	for _, c := range sec.counters {
		rows = append(rows, []string{c.label, strconv.Itoa(c.value)})
	}
	md.Table(markdown.TableSet{
		Header: []string{"Metric", "Count"},
		Rows:   rows,
	})
	md.PlainText("")
}

// writeUpsertChart writes a mermaid pie chart of registry outcomes.
func (w *MarkdownWriter) writeUpsertChart(md *markdown.Markdown, stats *model.RunStats) {
	if stats.PartsCreated+stats.PartsUpdated+stats.PartsRetained == 0 {
		return
	}

	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Part Registry Upserts"),
		piechart.WithShowData(true),
	)

	if stats.PartsCreated > 0 {
		chart.LabelAndIntValue("Created", uint64(stats.PartsCreated))
	}
	if stats.PartsUpdated > 0 {
		chart.LabelAndIntValue("Updated", uint64(stats.PartsUpdated))
	}
	if stats.PartsRetained > 0 {
		chart.LabelAndIntValue("Retained", uint64(stats.PartsRetained))
	}

	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

// writeFooter writes the report footer.
func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainText("*Report generated by carpart*")
}
