package report

import (
	"bytes"
	"encoding/json"
	"io"
	"time"

	"github.com/Raam977/citius-scraper/internal/model"
)

// JSONWriter outputs the records as a JSON array. Each record keeps the
// portal's Portuguese field names and its nested Credores list, so the
// output decodes back into []model.Record without loss.
type JSONWriter struct {
	baseWriter

	// indent enables pretty-printed JSON output.
	// When false, output is compact (no extra whitespace).
	indent bool

	// indentPrefix is the prefix for each line in indented output.
	indentPrefix string

	// indentString is the indentation string (typically "  " or "\t").
	indentString string
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
// This is a convenience wrapper for WithIndent("", "  ").
func WithPrettyPrint() JSONWriterOption {
	return WithIndent("", "  ")
}

// NewJSONWriter creates a JSONWriter that outputs to the given writer.
func NewJSONWriter(output io.Writer, opts ...JSONWriterOption) *JSONWriter {
	w := &JSONWriter{baseWriter: newBaseWriter(output)}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Write outputs the result's records as a JSON array.
func (w *JSONWriter) Write(result *model.SearchResult) (int, error) {
	records := result.Records
	if records == nil {
		records = make([]model.Record, 0)
	}
	return w.writeJSON(records)
}

// writeJSON encodes v and writes it to the output. HTML characters such as
// "&" in company names are kept as is.
func (w *JSONWriter) writeJSON(v any) (int, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if w.indent {
		enc.SetIndent(w.indentPrefix, w.indentString)
	}
	if err := enc.Encode(v); err != nil {
		return 0, err
	}
	return w.output.Write(buf.Bytes())
}

// JSONReport is the full result wrapped with metadata.
type JSONReport struct {
	// Version is the citius version that generated this report.
	Version string `json:"version"`

	// GeneratedAt is when the report was written.
	GeneratedAt time.Time `json:"generated_at"`

	// Result is the search result.
	Result *model.SearchResult `json:"result"`
}

// NewJSONReport creates a JSONReport wrapper with version information.
func NewJSONReport(result *model.SearchResult, version string) *JSONReport {
	return &JSONReport{
		Version:     version,
		GeneratedAt: time.Now().UTC(),
		Result:      result,
	}
}

// FullJSONWriter outputs complete results with criteria, diagnostics and a
// metadata wrapper.
type FullJSONWriter struct {
	*JSONWriter

	// version is the citius version string.
	version string
}

// NewFullJSONWriter creates a writer for complete results with metadata.
func NewFullJSONWriter(output io.Writer, version string, opts ...JSONWriterOption) *FullJSONWriter {
	return &FullJSONWriter{
		JSONWriter: NewJSONWriter(output, opts...),
		version:    version,
	}
}

// Write outputs the full result wrapped with metadata.
func (w *FullJSONWriter) Write(result *model.SearchResult) (int, error) {
	return w.writeJSON(NewJSONReport(result, w.version))
}
