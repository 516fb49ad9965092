package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/Raam977/citius-scraper/internal/model"
)

// Writer defines the interface for report output.
type Writer interface {
	// Write outputs the result to the configured destination.
	// Returns the number of bytes written and any error encountered.
	Write(result *model.SearchResult) (int, error)
}

// Format names an output format.
type Format string

// Supported formats.
const (
	FormatCSV      Format = "csv"
	FormatJSON     Format = "json"
	FormatMarkdown Format = "markdown"
	FormatText     Format = "text"
)

// Formats lists the supported formats in display order.
func Formats() []Format {
	return []Format{FormatCSV, FormatJSON, FormatMarkdown, FormatText}
}

// ParseFormat returns the Format named by s. "md" is accepted for markdown.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatCSV, FormatJSON, FormatMarkdown, FormatText:
		return f, nil
	case "md":
		return FormatMarkdown, nil
	default:
		return "", fmt.Errorf("unknown format %q (want one of csv, json, markdown, text)", s)
	}
}

// NewWriter creates the Writer for format. version is embedded in the full
// JSON report.
func NewWriter(format Format, output io.Writer, version string) (Writer, error) {
	switch format {
	case FormatCSV:
		return NewCSVWriter(output), nil
	case FormatJSON:
		return NewFullJSONWriter(output, version, WithPrettyPrint()), nil
	case FormatMarkdown:
		return NewMarkdownWriter(output), nil
	case FormatText:
		return NewSimpleWriter(output), nil
	default:
		return nil, fmt.Errorf("unknown format %q", format)
	}
}

// MultiWriter writes the same result to several Writers, such as the CSV
// export and its sibling JSON file.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter creates a Writer that writes to all provided Writers.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// Write outputs the result to all configured Writers.
// Returns the total bytes written across all writers.
// Stops on first error encountered.
func (m *MultiWriter) Write(result *model.SearchResult) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.Write(result)
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

// statusText summarises how a run ended.
func statusText(result *model.SearchResult) string {
	switch {
	case result.Error != "":
		return "Error - " + result.Error
	case result.Diagnostics.Termination == model.TerminationCancelled:
		return "Cancelled (partial results)"
	case result.Diagnostics.Termination == model.TerminationPageCeiling:
		return "Page limit reached (more results may exist)"
	case result.Diagnostics.Termination == model.TerminationLoopGuard:
		return "Complete (pagination stopped on a repeated page)"
	case result.Diagnostics.Termination == model.TerminationUnparsablePage:
		return "Incomplete (a result page could not be read)"
	default:
		return "Complete"
	}
}

// dateRange renders the criteria's date filter.
func dateRange(c model.SearchCriteria) string {
	switch {
	case c.DateStart == "" && c.DateEnd == "":
		return "any"
	case c.DateEnd == "":
		return "from " + c.DateStart
	case c.DateStart == "":
		return "until " + c.DateEnd
	default:
		return c.DateStart + " to " + c.DateEnd
	}
}

// orDash returns s, or "-" when s is empty.
func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// truncateString truncates a string to maxLen runes with ellipsis.
func truncateString(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}
