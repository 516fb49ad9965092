package crawler

import (
	"context"
	_ "embed"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/Raam977/citius-scraper/internal/fetch"
	"github.com/Raam977/citius-scraper/internal/model"
	"github.com/Raam977/citius-scraper/internal/parser"
	"github.com/Raam977/citius-scraper/internal/query"
	"github.com/Raam977/citius-scraper/internal/session"
)

var (
	//go:embed testdata/form.html
	formFixture []byte

	//go:embed testdata/results_515755230.html
	resultsFixture []byte

	//go:embed testdata/creditors_515755230.html
	creditorsFixture []byte
)

var byIdentifier = model.SearchCriteria{Identifier: "515755230"}

// pagedFetcher serves the form, then result pages in order for the search
// and every next-page postback.
func pagedFetcher(pages ...[]byte) *scriptedFetcher {
	var served int
	return &scriptedFetcher{
		handle: func(_ int, req fetch.Request) (*fetch.Page, error) {
			if req.Step == stepForm {
				return page(formPage()), nil
			}
			if served >= len(pages) {
				return nil, errors.New("no more pages")
			}
			body := pages[served]
			served++
			return page(body), nil
		},
	}
}

func newTestPaginator(t *testing.T, f PageFetcher, opts ...Option) *Paginator {
	t.Helper()
	opts = append([]Option{WithLogger(discardLogger())}, opts...)
	return NewPaginator(f, newTestParser(t), opts...)
}

// TestRunValidation tests that invalid criteria fail before any request.
func TestRunValidation(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name     string
		criteria model.SearchCriteria
	}{
		{"start after end", model.SearchCriteria{Identifier: "515755230", DateStart: "2024-05-01", DateEnd: "2024-01-01"}},
		{"unparseable date", model.SearchCriteria{Identifier: "515755230", DateStart: "01-05-2024"}},
		{"no identifier or name", model.SearchCriteria{}},
		{"non numeric identifier", model.SearchCriteria{Identifier: "PT515755230"}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			f := pagedFetcher()
			records, diag, err := newTestPaginator(t, f).Run(context.Background(), tc.criteria, Limits{})

			var verr *query.ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			var rerr *RunError
			if !errors.As(err, &rerr) || rerr.Stage != StageValidate {
				t.Errorf("expected validate stage, got %v", err)
			}
			if n := len(f.steps()); n != 0 {
				t.Errorf("expected no requests, got %d", n)
			}
			if len(records) != 0 {
				t.Errorf("expected no records, got %d", len(records))
			}
			if diag.Termination != model.TerminationError {
				t.Errorf("expected error termination, got %s", diag.Termination)
			}
		})
	}
}

// TestRunPagination tests the termination rules of the page walk.
func TestRunPagination(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name        string
		pages       [][]byte
		limits      Limits
		wantRefs    []string
		wantPages   int
		termination model.Termination
	}{
		{
			name:        "single page",
			pages:       [][]byte{resultsPage([]string{"1", "2"}, false)},
			wantRefs:    []string{"1", "2"},
			wantPages:   1,
			termination: model.TerminationNoNextPage,
		},
		{
			name: "follows next page control",
			pages: [][]byte{
				resultsPage([]string{"1", "2"}, true),
				resultsPage([]string{"3", "4"}, true),
				resultsPage([]string{"5"}, false),
			},
			wantRefs:    []string{"1", "2", "3", "4", "5"},
			wantPages:   3,
			termination: model.TerminationNoNextPage,
		},
		{
			name: "repeated page stops the walk",
			pages: [][]byte{
				resultsPage([]string{"1", "2"}, true),
				resultsPage([]string{"3", "4"}, true),
				resultsPage([]string{"3", "4"}, true),
				resultsPage([]string{"5"}, false),
			},
			wantRefs:    []string{"1", "2", "3", "4"},
			wantPages:   2,
			termination: model.TerminationLoopGuard,
		},
		{
			name: "partial overlap stops the walk",
			pages: [][]byte{
				resultsPage([]string{"1", "2"}, true),
				resultsPage([]string{"2", "3"}, true),
			},
			wantRefs:    []string{"1", "2"},
			wantPages:   1,
			termination: model.TerminationLoopGuard,
		},
		{
			name: "page ceiling",
			pages: [][]byte{
				resultsPage([]string{"1"}, true),
				resultsPage([]string{"2"}, true),
				resultsPage([]string{"3"}, true),
				resultsPage([]string{"4"}, true),
			},
			limits:      Limits{MaxPages: 2},
			wantRefs:    []string{"1", "2"},
			wantPages:   2,
			termination: model.TerminationPageCeiling,
		},
		{
			name:        "no results",
			pages:       [][]byte{[]byte(`<html><body><span id="ctl00_ContentPlaceHolder1_lblNoResults">Não foram encontrados resultados.</span></body></html>`)},
			wantRefs:    []string{},
			wantPages:   1,
			termination: model.TerminationNoNextPage,
		},
		{
			name: "unrecognised later page",
			pages: [][]byte{
				resultsPage([]string{"1"}, true),
				[]byte(`<html><body><h1>Serviço indisponível</h1></body></html>`),
			},
			wantRefs:    []string{"1"},
			wantPages:   1,
			termination: model.TerminationUnparsablePage,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			f := pagedFetcher(tc.pages...)
			records, diag, err := newTestPaginator(t, f).Run(context.Background(), byIdentifier, tc.limits)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if diff := cmp.Diff(tc.wantRefs, model.References(records)); diff != "" {
				t.Errorf("references mismatch (-want +got):\n%s", diff)
			}
			if diag.PagesVisited != tc.wantPages {
				t.Errorf("expected %d pages visited, got %d", tc.wantPages, diag.PagesVisited)
			}
			if diag.Termination != tc.termination {
				t.Errorf("expected termination %s, got %s", tc.termination, diag.Termination)
			}
			if tc.limits.MaxPages > 0 && diag.PagesVisited > tc.limits.MaxPages {
				t.Errorf("page ceiling exceeded: %d > %d", diag.PagesVisited, tc.limits.MaxPages)
			}
		})
	}
}

// TestRunSessionExpired tests the single restart on session expiry.
func TestRunSessionExpired(t *testing.T) {
	t.Parallel()

	expired := &fetch.SessionError{Step: stepSearch, Reason: "status 440"}

	t.Run("twice is fatal", func(t *testing.T) {
		t.Parallel()

		f := &scriptedFetcher{
			handle: func(_ int, req fetch.Request) (*fetch.Page, error) {
				if req.Step == stepForm {
					return page(formPage()), nil
				}
				return nil, expired
			},
		}

		_, diag, err := newTestPaginator(t, f).Run(context.Background(), byIdentifier, Limits{})
		if !errors.Is(err, fetch.ErrSessionExpired) {
			t.Fatalf("expected session expired, got %v", err)
		}
		var serr *fetch.SessionError
		if !errors.As(err, &serr) {
			t.Errorf("expected *fetch.SessionError in chain, got %T", err)
		}
		if diag.SessionRestarts != 1 {
			t.Errorf("expected exactly one restart, got %d", diag.SessionRestarts)
		}
		want := []string{stepForm, stepSearch, stepForm, stepSearch}
		if diff := cmp.Diff(want, f.steps()); diff != "" {
			t.Errorf("request sequence mismatch (-want +got):\n%s", diff)
		}
		if diag.Termination != model.TerminationError {
			t.Errorf("expected error termination, got %s", diag.Termination)
		}
	})

	t.Run("restart discards and re-collects", func(t *testing.T) {
		t.Parallel()

		var pageCalls int
		f := &scriptedFetcher{
			handle: func(_ int, req fetch.Request) (*fetch.Page, error) {
				switch req.Step {
				case stepForm:
					return page(formPage()), nil
				case stepSearch:
					return page(resultsPage([]string{"1", "2"}, true)), nil
				default:
					pageCalls++
					if pageCalls == 1 {
						return nil, &fetch.SessionError{Step: stepPage, Reason: "redirected"}
					}
					return page(resultsPage([]string{"3"}, false)), nil
				}
			},
		}

		records, diag, err := newTestPaginator(t, f).Run(context.Background(), byIdentifier, Limits{})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if diff := cmp.Diff([]string{"1", "2", "3"}, model.References(records)); diff != "" {
			t.Errorf("references mismatch (-want +got):\n%s", diff)
		}
		if diag.SessionRestarts != 1 {
			t.Errorf("expected one restart, got %d", diag.SessionRestarts)
		}
		if diag.PagesVisited != 2 {
			t.Errorf("expected pages of the final pass only, got %d", diag.PagesVisited)
		}
	})
}

// TestRunFetchFailure tests that fetch errors keep partial records.
func TestRunFetchFailure(t *testing.T) {
	t.Parallel()

	failure := &fetch.FetchError{Step: stepPage, StatusCode: 503, Class: fetch.ErrorClassServer, Attempts: 3, Err: fetch.ErrRetryExhausted}
	f := &scriptedFetcher{
		handle: func(_ int, req fetch.Request) (*fetch.Page, error) {
			switch req.Step {
			case stepForm:
				return page(formPage()), nil
			case stepSearch:
				return page(resultsPage([]string{"1", "2"}, true)), nil
			default:
				return nil, failure
			}
		},
	}

	records, diag, err := newTestPaginator(t, f).Run(context.Background(), byIdentifier, Limits{})

	var rerr *RunError
	if !errors.As(err, &rerr) {
		t.Fatalf("expected RunError, got %v", err)
	}
	if rerr.Stage != StagePage || rerr.Page != 2 {
		t.Errorf("expected page stage on page 2, got %s on %d", rerr.Stage, rerr.Page)
	}
	if !errors.Is(err, fetch.ErrRetryExhausted) {
		t.Errorf("expected retry exhaustion in chain, got %v", err)
	}
	if got := model.References(records); !cmp.Equal(got, []string{"1", "2"}) {
		t.Errorf("expected partial records, got %v", got)
	}
	if diag.Termination != model.TerminationError {
		t.Errorf("expected error termination, got %s", diag.Termination)
	}
}

// TestRunUnrecognizedFirstPage tests that an unusable first page is fatal.
func TestRunUnrecognizedFirstPage(t *testing.T) {
	t.Parallel()

	f := pagedFetcher([]byte(`<html><body><h1>Manutenção programada</h1></body></html>`))
	_, diag, err := newTestPaginator(t, f).Run(context.Background(), byIdentifier, Limits{})

	var ferr *fetch.FetchError
	if !errors.As(err, &ferr) {
		t.Fatalf("expected FetchError, got %v", err)
	}
	if ferr.Class != fetch.ErrorClassMalformed {
		t.Errorf("expected malformed class, got %s", ferr.Class)
	}
	if !errors.Is(err, parser.ErrUnrecognizedPage) {
		t.Errorf("expected ErrUnrecognizedPage in chain, got %v", err)
	}
	if diag.PageParseFailures != 1 {
		t.Errorf("expected one page parse failure, got %d", diag.PageParseFailures)
	}
}

// TestRunCancelled tests that cancellation returns the records so far.
func TestRunCancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f := &scriptedFetcher{
		handle: func(_ int, req fetch.Request) (*fetch.Page, error) {
			switch req.Step {
			case stepForm:
				return page(formPage()), nil
			case stepSearch:
				return page(resultsPage([]string{"1", "2"}, true)), nil
			default:
				cancel()
				return nil, context.Canceled
			}
		},
	}

	records, diag, err := newTestPaginator(t, f).Run(ctx, byIdentifier, Limits{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if got := model.References(records); !cmp.Equal(got, []string{"1", "2"}) {
		t.Errorf("expected records from page 1, got %v", got)
	}
	if diag.Termination != model.TerminationCancelled {
		t.Errorf("expected cancelled termination, got %s", diag.Termination)
	}
}

// TestRunTimeoutShorterThanDelay tests that a run whose timeout expires
// before the next request may be sent ends as cancelled.
func TestRunTimeoutShorterThanDelay(t *testing.T) {
	t.Parallel()

	portal := &portalServer{t: t, viewStates: make(map[string]string)}
	server := httptest.NewServer(portal)
	defer server.Close()

	client := fetch.NewClient(server.URL,
		fetch.WithMinDelay(5*time.Second),
		fetch.WithLogger(discardLogger()),
	)
	p, err := parser.New(server.URL, parser.WithLogger(discardLogger()))
	if err != nil {
		t.Fatalf("failed to create parser: %v", err)
	}

	start := time.Now()
	_, diag, err := NewPaginator(client, p, WithLogger(discardLogger())).
		Run(context.Background(), byIdentifier, Limits{Timeout: 300 * time.Millisecond})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	var ferr *fetch.FetchError
	if errors.As(err, &ferr) {
		t.Errorf("expected no fetch error, got %v", ferr)
	}
	if diag.Termination != model.TerminationCancelled {
		t.Errorf("expected cancelled termination, got %s", diag.Termination)
	}
	if elapsed := time.Since(start); elapsed > 3*time.Second {
		t.Errorf("expected the run to stop at its timeout, took %s", elapsed)
	}
}

// TestRunDiagnostics tests that skipped rows and total hints are reported.
func TestRunDiagnostics(t *testing.T) {
	t.Parallel()

	body := []byte(`<html><body><div id="ctl00_ContentPlaceHolder1_divResultados">` +
		`<div>12 documentos encontrados</div>` +
		`<div class="resultadocdital"><strong>Referência:</strong> 1<br/></div>` +
		`<div class="resultadocdital"><strong>Tribunal:</strong> Sem referência<br/></div>` +
		`</div></body></html>`)

	records, diag, err := newTestPaginator(t, pagedFetcher(body)).Run(context.Background(), byIdentifier, Limits{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 1 {
		t.Errorf("expected 1 record, got %d", len(records))
	}
	if diag.TotalHint != 12 {
		t.Errorf("expected total hint 12, got %d", diag.TotalHint)
	}
	want := []model.RowIssue{{Page: 1, Row: 1}}
	if diff := cmp.Diff(want, diag.SkippedRows, cmp.FilterPath(func(p cmp.Path) bool {
		return p.Last().String() == ".Reason"
	}, cmp.Ignore())); diff != "" {
		t.Errorf("skipped rows mismatch (-want +got):\n%s", diff)
	}
}

// portalServer mimics the portal for the "515755230" search.
type portalServer struct {
	t  *testing.T
	mu sync.Mutex

	// viewStates records the __VIEWSTATE of every POST by step.
	viewStates map[string]string
}

func (s *portalServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	if r.Method == http.MethodGet {
		http.SetCookie(w, &http.Cookie{Name: session.CookieName, Value: "sess-515"})
		_, _ = w.Write(formFixture)
		return
	}

	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if c, err := r.Cookie(session.CookieName); err != nil || c.Value != "sess-515" {
		s.t.Errorf("expected session cookie on POST, got %v", c)
	}

	step := "search"
	if strings.HasSuffix(r.PostFormValue(session.FieldEventTarget), "lnkCredores") {
		step = "expand"
	}
	s.mu.Lock()
	s.viewStates[step] = r.PostFormValue(session.FieldViewState)
	s.mu.Unlock()

	switch step {
	case "expand":
		_, _ = w.Write(creditorsFixture)
	default:
		if r.PostFormValue(query.FieldSearchText) != "515755230" || r.PostFormValue(query.FieldSearchType) != "NIF/NIPC" {
			http.Error(w, "unexpected search", http.StatusBadRequest)
			return
		}
		_, _ = w.Write(resultsFixture)
	}
}

// TestRunEndToEnd tests a full run against a mock portal.
func TestRunEndToEnd(t *testing.T) {
	t.Parallel()

	portal := &portalServer{t: t, viewStates: make(map[string]string)}
	server := httptest.NewServer(portal)
	defer server.Close()

	client := fetch.NewClient(server.URL,
		fetch.WithMinDelay(0),
		fetch.WithLogger(discardLogger()),
	)
	p, err := parser.New(server.URL, parser.WithLogger(discardLogger()))
	if err != nil {
		t.Fatalf("failed to create parser: %v", err)
	}

	records, diag, err := NewPaginator(client, p, WithLogger(discardLogger())).
		Run(context.Background(), byIdentifier, Limits{MaxPages: 5})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	want := []model.Creditor{
		{Name: "Banco Comercial Português, S.A.", Identifier: "501525882"},
		{Name: "Autoridade Tributária e Aduaneira", Identifier: "600084779"},
	}
	if diff := cmp.Diff(want, records[0].Creditors); diff != "" {
		t.Errorf("creditors mismatch (-want +got):\n%s", diff)
	}
	if records[0].InsolventIdentifier != "515755230" {
		t.Errorf("unexpected identifier %q", records[0].InsolventIdentifier)
	}
	if records[0].SingleCreditorFallback != "Banco Comercial Português, S.A." {
		t.Errorf("expected inline creditor to be kept as fallback, got %q", records[0].SingleCreditorFallback)
	}
	if diag.PagesVisited != 1 {
		t.Errorf("expected 1 page visited, got %d", diag.PagesVisited)
	}
	if diag.Termination != model.TerminationNoNextPage {
		t.Errorf("expected no-next-page termination, got %s", diag.Termination)
	}
	if diag.TotalHint != 1 {
		t.Errorf("expected total hint 1, got %d", diag.TotalHint)
	}

	portal.mu.Lock()
	defer portal.mu.Unlock()
	wantStates := map[string]string{
		"search": "/wEPDwUKformstate",
		"expand": "/wEPDwUKMTUxNTc1NTIzMGRkresults",
	}
	if diff := cmp.Diff(wantStates, portal.viewStates); diff != "" {
		t.Errorf("continuation tokens not threaded (-want +got):\n%s", diff)
	}
}
