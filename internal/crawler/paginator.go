package crawler

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/Raam977/citius-scraper/internal/fetch"
	"github.com/Raam977/citius-scraper/internal/model"
	"github.com/Raam977/citius-scraper/internal/parser"
	"github.com/Raam977/citius-scraper/internal/query"
	"github.com/Raam977/citius-scraper/internal/session"
)

// Request steps, used as fetch labels in logs, metrics and debug dumps.
const (
	stepForm   = "form"
	stepSearch = "search"
	stepPage   = "page"
	stepExpand = "expand"
)

// DefaultMaxPages is the page ceiling used when Limits.MaxPages is zero.
const DefaultMaxPages = 50

// maxSessionRestarts is how many times a run may rebuild its session.
const maxSessionRestarts = 1

// ResultParser reads result pages and creditor-detail pages.
// *parser.Parser implements it.
type ResultParser interface {
	Parse(body []byte) (*parser.Result, error)
	CreditorParser
}

// Limits bounds one run.
type Limits struct {
	// MaxPages is the page ceiling. Zero selects the paginator default.
	MaxPages int

	// Timeout bounds the whole run. Zero means no timeout beyond ctx.
	Timeout time.Duration
}

// Paginator runs a search and walks every result page.
type Paginator struct {
	// fetcher performs every request of the run.
	fetcher PageFetcher

	// parser reads result and creditor pages.
	parser ResultParser

	// expander loads creditor lists. Defaults to a Pool of DefaultWorkers.
	expander Expander

	// maxPages is the ceiling used when Limits.MaxPages is zero.
	maxPages int

	logger *slog.Logger
}

// Option configures a Paginator.
type Option func(*Paginator)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Paginator) {
		p.logger = logger
	}
}

// WithExpander replaces the creditor expander.
func WithExpander(e Expander) Option {
	return func(p *Paginator) {
		p.expander = e
	}
}

// WithMaxPages sets the default page ceiling.
func WithMaxPages(n int) Option {
	return func(p *Paginator) {
		if n > 0 {
			p.maxPages = n
		}
	}
}

// NewPaginator creates a Paginator.
func NewPaginator(fetcher PageFetcher, parser ResultParser, opts ...Option) *Paginator {
	p := &Paginator{
		fetcher:  fetcher,
		parser:   parser,
		maxPages: DefaultMaxPages,
	}

	for _, opt := range opts {
		opt(p)
	}

	if p.logger == nil {
		p.logger = slog.Default()
	}
	if p.expander == nil {
		p.expander = NewPool(fetcher, parser, DefaultWorkers, p.logger)
	}

	return p
}

// Run executes the search described by criteria and returns every record in
// the order the portal listed them.
//
// Invalid criteria fail before any request. When the run ends with an error
// the records collected so far are still returned, together with the
// diagnostics; the error is a *RunError.
func (p *Paginator) Run(ctx context.Context, criteria model.SearchCriteria, limits Limits) ([]model.Record, model.Diagnostics, error) {
	start := time.Now()
	var diag model.Diagnostics

	if err := query.Validate(criteria); err != nil {
		diag.Termination = model.TerminationError
		return make([]model.Record, 0), diag, &RunError{Stage: StageValidate, Err: err}
	}
	if p.fetcher == nil || p.parser == nil {
		diag.Termination = model.TerminationError
		return make([]model.Record, 0), diag, &RunError{Stage: StageInit, Err: ErrNoFetcher}
	}

	if limits.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, limits.Timeout)
		defer cancel()
	}

	maxPages := limits.MaxPages
	if maxPages <= 0 {
		maxPages = p.maxPages
	}

	p.logger.Info("starting search",
		"type", criteria.Type().String(),
		"query", criteria.Query(),
		"max_pages", maxPages,
	)

	var (
		records []model.Record
		err     error
	)
	for restarts := 0; ; restarts++ {
		diag = model.Diagnostics{SessionRestarts: restarts}
		records, err = p.collect(ctx, criteria, maxPages, &diag)
		if err == nil || !fetch.IsSessionError(err) || restarts >= maxSessionRestarts {
			break
		}
		p.logger.Warn("session expired, restarting search",
			"restart", restarts+1,
			"discarded_records", len(records),
			"error", err,
		)
	}

	diag.Elapsed = time.Since(start)

	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			diag.Termination = model.TerminationCancelled
		} else {
			diag.Termination = model.TerminationError
		}
		p.logger.Error("search failed",
			"termination", diag.Termination.String(),
			"records", len(records),
			"pages", diag.PagesVisited,
			"error", err,
		)
		return records, diag, err
	}

	p.logger.Info("search complete",
		"termination", diag.Termination.String(),
		"records", len(records),
		"pages", diag.PagesVisited,
		"skipped_rows", diag.SkippedRowCount(),
		"expansion_failures", diag.ExpansionFailureCount(),
		"elapsed", diag.Elapsed,
	)
	return records, diag, nil
}

// collect performs one pass from the search form to the last page.
func (p *Paginator) collect(ctx context.Context, criteria model.SearchCriteria, maxPages int, diag *model.Diagnostics) ([]model.Record, error) {
	records := make([]model.Record, 0)

	// INIT
	form, err := p.fetcher.Fetch(ctx, fetch.Request{Method: fetch.MethodGet, Step: stepForm}, session.State{})
	if err != nil {
		return records, &RunError{Stage: StageInit, Err: err}
	}
	p.logger.Debug("search form loaded", "state", form.State)

	// SEARCH
	payload, err := query.Search(criteria, form.State)
	if err != nil {
		return records, &RunError{Stage: StageSearch, Err: err}
	}
	page, err := p.fetcher.Fetch(ctx, fetch.Request{Method: fetch.MethodPost, Form: payload, Step: stepSearch}, form.State)
	if err != nil {
		return records, &RunError{Stage: StageSearch, Page: 1, Err: err}
	}

	var visited model.PageState
	for n := 1; ; n++ {
		// RESULTS_PAGE(n)
		result, err := p.parser.Parse(page.Body)
		if err != nil {
			diag.PageParseFailures++
			if diag.PagesVisited == 0 {
				return records, &RunError{Stage: StageParse, Page: n, Err: &fetch.FetchError{
					Step:       stepSearch,
					StatusCode: page.StatusCode,
					Class:      fetch.ErrorClassMalformed,
					Attempts:   1,
					Err:        err,
				}}
			}
			p.logger.Warn("result page not recognised, stopping", "page", n, "error", err)
			diag.Termination = model.TerminationUnparsablePage
			return records, nil
		}

		refs := model.References(result.Records)
		if visited.Repeats(refs) {
			p.logger.Warn("page repeats previous references, stopping", "page", n)
			diag.Termination = model.TerminationLoopGuard
			return records, nil
		}
		visited = visited.Advance(refs)
		diag.PagesVisited++

		if result.Pagination.TotalHint > 0 {
			diag.TotalHint = result.Pagination.TotalHint
		}
		for _, skipped := range result.Skipped {
			diag.SkippedRows = append(diag.SkippedRows, model.RowIssue{Page: n, Row: skipped.Row, Reason: skipped.Reason})
		}

		p.logger.Info("result page parsed",
			"page", n,
			"records", len(result.Records),
			"skipped", len(result.Skipped),
			"has_next", result.Pagination.HasNext,
		)

		// EXPANDING
		expanded, failures, err := p.expander.Expand(ctx, n, result.Records, page.State)
		diag.ExpansionFailures = append(diag.ExpansionFailures, failures...)
		records = append(records, expanded...)
		if err != nil {
			return records, &RunError{Stage: StageExpand, Page: n, Err: err}
		}

		if result.Pagination.Done() {
			diag.Termination = model.TerminationNoNextPage
			return records, nil
		}
		if diag.PagesVisited >= maxPages {
			p.logger.Warn("page ceiling reached", "max_pages", maxPages)
			diag.Termination = model.TerminationPageCeiling
			return records, nil
		}

		if err := ctx.Err(); err != nil {
			return records, &RunError{Stage: StagePage, Page: n + 1, Err: err}
		}

		next := query.Postback(result.Pagination.Next.Target, result.Pagination.Next.Argument, page.State)
		page, err = p.fetcher.Fetch(ctx, fetch.Request{Method: fetch.MethodPost, Form: next, Step: stepPage}, page.State)
		if err != nil {
			return records, &RunError{Stage: StagePage, Page: n + 1, Err: err}
		}
	}
}
