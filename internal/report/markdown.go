package report

import (
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"

	"github.com/Raam977/citius-scraper/internal/model"
)

// MarkdownWriter outputs results in Markdown format.
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

// Write outputs the result in Markdown format.
func (w *MarkdownWriter) Write(result *model.SearchResult) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, result)
	w.writeAlert(md, result)
	w.writeCourts(md, result)
	w.writeRecords(md, result)
	w.writeDiagnostics(md, result)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// writeHeader writes the search parameters and totals.
func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, result *model.SearchResult) {
	c := result.Criteria
	md.H1("Citius Insolvency Search")
	md.PlainText("")

	rows := [][]string{
		{"Query", "`" + c.Query() + "`"},
		{"Search Type", c.Type().String()},
		{"Dates", dateRange(c)},
	}
	if label := c.Court.Label(); label != "" {
		rows = append(rows, []string{"Courts", label})
	}
	if c.ActGroup != "" {
		rows = append(rows, []string{"Act Group", c.ActGroup})
	}
	if c.Act != "" {
		rows = append(rows, []string{"Act", c.Act})
	}
	rows = append(rows,
		[]string{"Search Date", result.StartedAt.Format("2006-01-02 15:04:05 MST")},
		[]string{"Pages Visited", strconv.Itoa(result.Diagnostics.PagesVisited)},
		[]string{"Records", strconv.Itoa(len(result.Records))},
		[]string{"Creditors", strconv.Itoa(result.CreditorCount())},
		[]string{"Status", statusText(result)},
	)

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows:   rows,
	})
	md.PlainText("")
}

// writeAlert writes an alert describing how complete the result is.
func (w *MarkdownWriter) writeAlert(md *markdown.Markdown, result *model.SearchResult) {
	d := result.Diagnostics
	switch {
	case result.Error != "":
		md.Cautionf("The search failed: %s. %d record(s) collected before the failure are listed below.",
			result.Error, len(result.Records))
	case d.Termination == model.TerminationCancelled:
		md.Warningf("The search was cancelled. %d record(s) collected so far are listed below.", len(result.Records))
	case d.ExpansionFailureCount() > 0:
		md.Importantf("%d creditor list(s) could not be loaded; those records show only their inline creditor.",
			d.ExpansionFailureCount())
	case len(result.Records) == 0:
		md.Note("The portal returned no records for this search.")
	default:
		md.Tip("All result pages were read.")
	}
	md.PlainText("")
}

// writeCourts writes a pie chart of records per court.
func (w *MarkdownWriter) writeCourts(md *markdown.Markdown, result *model.SearchResult) {
	counts := make(map[string]int)
	for i := range result.Records {
		counts[orDash(result.Records[i].Court)]++
	}
	if len(counts) < 2 {
		return
	}

	courts := make([]string, 0, len(counts))
	for court := range counts {
		courts = append(courts, court)
	}
	sort.Strings(courts)

	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Records by Court"),
		piechart.WithShowData(true),
	)
	for _, court := range courts {
		chart.LabelAndIntValue(court, uint64(counts[court]))
	}

	md.H2("Courts")
	md.PlainText("")
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

// writeRecords writes the records table and each record's creditors.
func (w *MarkdownWriter) writeRecords(md *markdown.Markdown, result *model.SearchResult) {
	md.H2("Records")
	md.PlainText("")

	if len(result.Records) == 0 {
		md.PlainText("No records found.")
		md.PlainText("")
		return
	}

	rows := make([][]string, len(result.Records))
	for i := range result.Records {
		r := &result.Records[i]
		rows[i] = []string{
			orDash(r.Reference),
			orDash(r.CaseNumber),
			orDash(r.Date),
			truncateString(orDash(r.ActType), 40),
			truncateString(orDash(r.InsolventParty), 40),
			orDash(r.InsolventIdentifier),
			strconv.Itoa(len(r.Creditors)),
		}
	}
	md.Table(markdown.TableSet{
		Header: []string{"Referência", "Processo", "Data", "Ato", "Insolvente", "NIF/NIPC", "Credores"},
		Rows:   rows,
	})
	md.PlainText("")

	for i := range result.Records {
		r := &result.Records[i]
		if len(r.Creditors) == 0 && r.SingleCreditorFallback == "" {
			continue
		}
		md.Details(r.Key()+" - "+orDash(r.InsolventParty), creditorText(r))
	}
	md.PlainText("")
}

// creditorText lists a record's creditors, one per line.
func creditorText(r *model.Record) string {
	if len(r.Creditors) == 0 {
		c := model.Creditor{Name: r.SingleCreditorFallback, Identifier: r.SingleCreditorFallbackIdentifier}
		return c.String()
	}
	lines := make([]string, len(r.Creditors))
	for i, c := range r.Creditors {
		lines[i] = strconv.Itoa(i+1) + ". " + c.String()
	}
	return strings.Join(lines, "\n")
}

// writeDiagnostics lists skipped rows and failed expansions.
func (w *MarkdownWriter) writeDiagnostics(md *markdown.Markdown, result *model.SearchResult) {
	d := result.Diagnostics
	if d.SkippedRowCount() == 0 && d.ExpansionFailureCount() == 0 && d.PageParseFailures == 0 {
		return
	}

	md.H2("Diagnostics")
	md.PlainText("")

	items := make([]string, 0, d.SkippedRowCount()+d.ExpansionFailureCount()+1)
	for _, s := range d.SkippedRows {
		items = append(items, "Page "+strconv.Itoa(s.Page)+", row "+strconv.Itoa(s.Row)+": "+s.Reason)
	}
	for _, f := range d.ExpansionFailures {
		items = append(items, "Creditors of "+f.Reference+" (page "+strconv.Itoa(f.Page)+"): "+f.Reason)
	}
	if d.PageParseFailures > 0 {
		items = append(items, strconv.Itoa(d.PageParseFailures)+" result page(s) could not be read")
	}
	md.BulletList(items...)
	md.PlainText("")
}

// writeFooter writes the report footer.
func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Source: [Citius - Publicidade de Insolvências](https://www.citius.mj.pt/portal/consultas/ConsultasCire.aspx)*")
}
