package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/Raam977/citius-scraper/internal/model"
)

// SimpleWriter outputs a human-readable summary for terminal display.
// Records are laid out as a go-pretty table.
type SimpleWriter struct {
	baseWriter

	// showEmpty controls whether empty sections are shown.
	showEmpty bool

	// verbose lists every creditor under the records table.
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

// WithVerbose enables verbose output with every creditor listed.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{baseWriter: newBaseWriter(output)}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Write outputs the result in human-readable format.
func (w *SimpleWriter) Write(result *model.SearchResult) (int, error) {
	var sb strings.Builder

	w.writeHeader(&sb, result)
	w.writeRecords(&sb, result)
	w.writeCreditors(&sb, result)
	w.writeDiagnostics(&sb, result)
	w.writeFooter(&sb)

	return w.output.Write([]byte(sb.String()))
}

// writeHeader writes the search parameters and totals.
func (w *SimpleWriter) writeHeader(sb *strings.Builder, result *model.SearchResult) {
	c := result.Criteria
	d := result.Diagnostics

	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("                     CITIUS INSOLVENCY SEARCH\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n\n")

	fmt.Fprintf(sb, "Query:          %s (%s)\n", c.Query(), c.Type())
	fmt.Fprintf(sb, "Dates:          %s\n", dateRange(c))
	if label := c.Court.Label(); label != "" {
		fmt.Fprintf(sb, "Courts:         %s\n", label)
	}
	fmt.Fprintf(sb, "Search Date:    %s\n", result.StartedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(sb, "Pages Visited:  %d\n", d.PagesVisited)
	if d.TotalHint > 0 {
		fmt.Fprintf(sb, "Records:        %d of %d announced\n", len(result.Records), d.TotalHint)
	} else {
		fmt.Fprintf(sb, "Records:        %d\n", len(result.Records))
	}
	fmt.Fprintf(sb, "Creditors:      %d\n", result.CreditorCount())
	fmt.Fprintf(sb, "Status:         %s\n", statusText(result))
	sb.WriteString("\n")
}

// writeRecords writes the records table.
func (w *SimpleWriter) writeRecords(sb *strings.Builder, result *model.SearchResult) {
	if len(result.Records) == 0 {
		if w.showEmpty {
			w.writeSection(sb, "RECORDS")
			sb.WriteString("  No records found\n\n")
		}
		return
	}

	w.writeSection(sb, "RECORDS")

	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"#", "Referência", "Processo", "Data", "Insolvente", "NIF/NIPC", "Credores"})
	for i := range result.Records {
		r := &result.Records[i]
		t.AppendRow(table.Row{
			i + 1,
			orDash(r.Reference),
			orDash(r.CaseNumber),
			orDash(r.Date),
			truncateString(orDash(r.InsolventParty), 36),
			orDash(r.InsolventIdentifier),
			len(r.Creditors),
		})
	}
	sb.WriteString(t.Render())
	sb.WriteString("\n\n")
}

// writeCreditors lists every creditor per record in verbose mode.
func (w *SimpleWriter) writeCreditors(sb *strings.Builder, result *model.SearchResult) {
	if !w.verbose || len(result.Records) == 0 {
		return
	}

	w.writeSection(sb, "CREDITORS")
	for i := range result.Records {
		r := &result.Records[i]
		fmt.Fprintf(sb, "[%d] %s - %s\n", i+1, r.Key(), orDash(r.InsolventParty))
		switch {
		case len(r.Creditors) > 0:
			for _, c := range r.Creditors {
				fmt.Fprintf(sb, "  * %s\n", c)
			}
		case r.SingleCreditorFallback != "":
			c := model.Creditor{Name: r.SingleCreditorFallback, Identifier: r.SingleCreditorFallbackIdentifier}
			fmt.Fprintf(sb, "  * %s (inline)\n", c)
		default:
			sb.WriteString("  No creditors listed\n")
		}
	}
	sb.WriteString("\n")
}

// writeDiagnostics lists non-fatal issues.
func (w *SimpleWriter) writeDiagnostics(sb *strings.Builder, result *model.SearchResult) {
	d := result.Diagnostics
	empty := d.SkippedRowCount() == 0 && d.ExpansionFailureCount() == 0 && d.PageParseFailures == 0 && d.SessionRestarts == 0
	if empty && !w.showEmpty {
		return
	}

	w.writeSection(sb, "DIAGNOSTICS")
	if empty {
		sb.WriteString("  No issues\n\n")
		return
	}
	for _, s := range d.SkippedRows {
		fmt.Fprintf(sb, "  [-] page %d row %d skipped: %s\n", s.Page, s.Row, s.Reason)
	}
	for _, f := range d.ExpansionFailures {
		fmt.Fprintf(sb, "  [!] creditors of %s unavailable: %s\n", f.Reference, f.Reason)
	}
	if d.PageParseFailures > 0 {
		fmt.Fprintf(sb, "  [!] %d result page(s) could not be read\n", d.PageParseFailures)
	}
	if d.SessionRestarts > 0 {
		fmt.Fprintf(sb, "  [i] session restarted %d time(s)\n", d.SessionRestarts)
	}
	sb.WriteString("\n")
}

// writeSection writes a section banner.
func (w *SimpleWriter) writeSection(sb *strings.Builder, title string) {
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString(title)
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")
}

// writeFooter writes the report footer.
func (w *SimpleWriter) writeFooter(sb *strings.Builder) {
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("Source: https://www.citius.mj.pt/portal/consultas/ConsultasCire.aspx\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
}
