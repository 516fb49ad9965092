package crawler

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/Raam977/citius-scraper/internal/fetch"
	"github.com/Raam977/citius-scraper/internal/parser"
	"github.com/Raam977/citius-scraper/internal/session"
)

const testBaseURL = "https://www.citius.mj.pt/portal/consultas/ConsultasCire.aspx"

// testState is a continuation state carrying the tokens a postback needs.
var testState = session.New([]session.Field{
	{Name: session.FieldViewState, Value: "vs"},
	{Name: session.FieldViewStateGenerator, Value: "gen"},
	{Name: session.FieldEventValidation, Value: "ev"},
}, "sid")

// scriptedFetcher answers requests through handle and records them.
type scriptedFetcher struct {
	mu       sync.Mutex
	requests []fetch.Request
	handle   func(call int, req fetch.Request) (*fetch.Page, error)
}

func (f *scriptedFetcher) Fetch(ctx context.Context, req fetch.Request, _ session.State) (*fetch.Page, error) {
	f.mu.Lock()
	call := len(f.requests)
	f.requests = append(f.requests, req)
	f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return f.handle(call, req)
}

// steps returns the step of every request in order.
func (f *scriptedFetcher) steps() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	steps := make([]string, 0, len(f.requests))
	for _, r := range f.requests {
		steps = append(steps, r.Step)
	}
	return steps
}

// count returns how many requests used step.
func (f *scriptedFetcher) count(step string) int {
	n := 0
	for _, s := range f.steps() {
		if s == step {
			n++
		}
	}
	return n
}

func page(body []byte) *fetch.Page {
	return &fetch.Page{Body: body, State: testState, StatusCode: 200}
}

// formPage is a search form with no results container.
func formPage() []byte {
	return []byte(`<html><body><form id="aspnetForm"><input type="text" name="ctl00$ContentPlaceHolder1$txtPesquisa" /></form></body></html>`)
}

// resultsPage builds a result page with one row per reference.
func resultsPage(refs []string, next bool) []byte {
	var sb strings.Builder
	sb.WriteString(`<html><body><form id="aspnetForm"><div id="ctl00_ContentPlaceHolder1_divResultados">`)
	for _, ref := range refs {
		fmt.Fprintf(&sb, `<div class="resultadocdital">`+
			`<strong>Referência:</strong> %s<br/>`+
			`<strong>Processo:</strong> %s/24.0T8LSB<br/>`+
			`<strong>Insolvente:</strong> Empresa %s, Lda<br/>`+
			`</div>`, ref, ref, ref)
	}
	sb.WriteString(`</div>`)
	if next {
		sb.WriteString(`<a id="ctl00_ContentPlaceHolder1_lnkNext" href="javascript:__doPostBack('ctl00$ContentPlaceHolder1$lnkNext','')">Seguinte</a>`)
	}
	sb.WriteString(`</form></body></html>`)
	return []byte(sb.String())
}

// expandTarget is the creditor-list control of the row for ref.
func expandTarget(ref string) string {
	return "ctl00$ContentPlaceHolder1$dlResultados$ctl" + ref + "$lnkCredores"
}

// expandablePage builds a result page whose rows hide their creditors
// behind a postback.
func expandablePage(refs []string) []byte {
	var sb strings.Builder
	sb.WriteString(`<html><body><form id="aspnetForm"><span id="ctl00_ContentPlaceHolder1_dlResultados">`)
	for _, ref := range refs {
		fmt.Fprintf(&sb, `<div class="resultadocdital">`+
			`<strong>Referência:</strong> %s<br/>`+
			`<span class="credor">Credor: Primeiro Credor %s</span><br/>`+
			`<a href="javascript:__doPostBack('%s','')">Ver todos os credores</a>`+
			`</div>`, ref, ref, expandTarget(ref))
	}
	sb.WriteString(`</span></form></body></html>`)
	return []byte(sb.String())
}

// creditorPage builds a creditor grid with one row per name.
func creditorPage(names ...string) []byte {
	var sb strings.Builder
	sb.WriteString(`<html><body><table id="ctl00_ContentPlaceHolder1_gvCredores"><tr><th>Credor</th><th>NIF/NIPC</th></tr>`)
	for i, name := range names {
		fmt.Fprintf(&sb, `<tr><td>%s</td><td>50000000%d</td></tr>`, name, i)
	}
	sb.WriteString(`</table></body></html>`)
	return []byte(sb.String())
}

func newTestParser(t *testing.T) *parser.Parser {
	t.Helper()
	p, err := parser.New(testBaseURL, parser.WithLogger(discardLogger()))
	if err != nil {
		t.Fatalf("failed to create parser: %v", err)
	}
	return p
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
