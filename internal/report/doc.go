// Package report renders run summaries and run history.
//
// This package contains writers for different output formats:
//   - SimpleWriter: Human-readable text output for terminal display
//   - JSONWriter: Structured JSON output for tool integration
//   - MarkdownWriter: Markdown for sharing in issues and wikis
//
// Report data lives in model.RunStats; writers only format it.
// Writers implement the Writer interface, allowing them to be used
// interchangeably and composed for multi-format output.
package report
