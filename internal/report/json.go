package report

import (
	"encoding/json"
	"io"

	"github.com/zachatkinson/carpart-scraper-sub000/internal/model"
)

// JSONWriter outputs reports in JSON format for tool integration.
type JSONWriter struct {
	baseWriter

	// indent enables pretty-printed JSON output.
	// When false, output is compact (no extra whitespace).
	indent bool

	// indentPrefix is the prefix for each line in indented output.
	indentPrefix string

	// indentString is the indentation string (typically "  " or "\t").
	indentString string

	// version is the carpart version recorded in the output.
	version string
}

// JSONWriterOption configures a JSONWriter.
type JSONWriterOption func(*JSONWriter)

// WithIndent enables pretty-printed JSON output.
// The prefix is prepended to each line, and indent is used for each level.
func WithIndent(prefix, indent string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.indent = true
		w.indentPrefix = prefix
		w.indentString = indent
	}
}

// WithPrettyPrint enables pretty-printed JSON with default indentation.
func WithPrettyPrint() JSONWriterOption {
	return WithIndent("", "  ")
}

// WithVersion records the tool version in every document.
func WithVersion(version string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.version = version
	}
}

// NewJSONWriter creates a JSONWriter that outputs to the given writer.
func NewJSONWriter(output io.Writer, opts ...JSONWriterOption) *JSONWriter {
	w := &JSONWriter{
		baseWriter: newBaseWriter(output),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// JSONReport wraps one run summary with output metadata.
type JSONReport struct {
	Version string          `json:"version,omitempty"`
	Status  string          `json:"status"`
	Skipped int             `json:"skipped"`
	Run     *model.RunStats `json:"run"`
}

// JSONHistory wraps a run list with output metadata.
type JSONHistory struct {
	Version string            `json:"version,omitempty"`
	Runs    []*model.RunStats `json:"runs"`
}

// Write outputs the run summary in JSON format.
func (w *JSONWriter) Write(stats *model.RunStats) (int, error) {
	return w.writeJSON(JSONReport{
		Version: w.version,
		Status:  statusText(stats),
		Skipped: stats.Skipped(),
		Run:     stats,
	})
}

// WriteHistory outputs the run list in JSON format.
func (w *JSONWriter) WriteHistory(runs []*model.RunStats) (int, error) {
	if runs == nil {
		runs = []*model.RunStats{}
	}
	return w.writeJSON(JSONHistory{Version: w.version, Runs: runs})
}

// writeJSON marshals the given value to JSON and writes it to the output.
func (w *JSONWriter) writeJSON(v any) (int, error) {
	var data []byte
	var err error

	if w.indent {
		data, err = json.MarshalIndent(v, w.indentPrefix, w.indentString)
	} else {
		data, err = json.Marshal(v)
	}

	if err != nil {
		return 0, err
	}

	// Add trailing newline for better terminal output
	data = append(data, '\n')

	return w.output.Write(data)
}
