package crawler

import (
	"context"
	"errors"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/Raam977/citius-scraper/internal/fetch"
	"github.com/Raam977/citius-scraper/internal/model"
	"github.com/Raam977/citius-scraper/internal/query"
	"github.com/Raam977/citius-scraper/internal/session"
)

// DefaultWorkers is the default size of the expansion pool.
const DefaultWorkers = 2

// maxWorkers bounds the pool so the portal never sees more than a handful
// of concurrent postbacks from one run.
const maxWorkers = 4

// PageFetcher performs one portal exchange. *fetch.Client implements it.
type PageFetcher interface {
	Fetch(ctx context.Context, req fetch.Request, state session.State) (*fetch.Page, error)
}

// CreditorParser reads a creditor-detail page.
type CreditorParser interface {
	ParseCreditors(body []byte) ([]model.Creditor, error)
}

// Expander loads the creditor lists of the records that need it.
//
// Expand returns a copy of records in the same order, with Creditors filled
// in where the expansion succeeded. Failed expansions are non-fatal and
// reported as ExpansionFailures. Session expiry and cancellation are
// returned as errors together with the records expanded so far.
type Expander interface {
	Expand(ctx context.Context, page int, records []model.Record, state session.State) ([]model.Record, []model.ExpansionFailure, error)
}

// expansion holds what both expanders need to load one creditor list.
type expansion struct {
	fetcher PageFetcher
	parser  CreditorParser
	logger  *slog.Logger
}

// one fetches and parses the creditor list of rec using the page's state.
func (e expansion) one(ctx context.Context, rec model.Record, state session.State) ([]model.Creditor, error) {
	payload := query.Postback(rec.ExpandTarget, rec.ExpandArgument, state)
	page, err := e.fetcher.Fetch(ctx, fetch.Request{Method: fetch.MethodPost, Form: payload, Step: stepExpand}, state)
	if err != nil {
		return nil, err
	}
	return e.parser.ParseCreditors(page.Body)
}

// apply stores the outcome of one expansion in rec. It returns a non-nil
// error only for failures that must stop the run.
func (e expansion) apply(ctx context.Context, page int, rec *model.Record, creditors []model.Creditor, err error) (*model.ExpansionFailure, error) {
	if err == nil {
		rec.Creditors = creditors
		return nil, nil
	}
	if fatalExpansion(ctx, err) {
		return nil, err
	}
	e.logger.Warn("creditor list unavailable",
		"page", page,
		"reference", rec.Key(),
		"error", err,
	)
	return &model.ExpansionFailure{Page: page, Reference: rec.Key(), Reason: err.Error()}, nil
}

// fatalExpansion reports whether err must abort the run rather than be
// recorded against a single record.
func fatalExpansion(ctx context.Context, err error) bool {
	return fetch.IsSessionError(err) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) ||
		ctx.Err() != nil
}

func cloneRecords(records []model.Record) []model.Record {
	out := make([]model.Record, len(records))
	copy(out, records)
	return out
}

// Sequential expands records one after another.
type Sequential struct {
	expansion
}

// NewSequential creates a Sequential expander.
func NewSequential(fetcher PageFetcher, parser CreditorParser, logger *slog.Logger) *Sequential {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sequential{expansion{fetcher: fetcher, parser: parser, logger: logger}}
}

// Expand implements Expander.
func (s *Sequential) Expand(ctx context.Context, page int, records []model.Record, state session.State) ([]model.Record, []model.ExpansionFailure, error) {
	out := cloneRecords(records)
	failures := make([]model.ExpansionFailure, 0)

	for i := range out {
		if !out[i].NeedsExpansion() {
			continue
		}
		creditors, err := s.one(ctx, out[i], state)
		failure, err := s.apply(ctx, page, &out[i], creditors, err)
		if err != nil {
			return out, failures, err
		}
		if failure != nil {
			failures = append(failures, *failure)
		}
	}

	return out, failures, nil
}

// Pool expands records with a bounded number of concurrent workers. All
// workers share the page's state snapshot and the fetcher's minimum delay,
// and results are merged by record index so the output order matches the
// sequential expander.
type Pool struct {
	expansion
	workers int
}

// NewPool creates a Pool with the given number of workers, clamped to
// [1, 4]. Zero selects DefaultWorkers.
func NewPool(fetcher PageFetcher, parser CreditorParser, workers int, logger *slog.Logger) *Pool {
	if logger == nil {
		logger = slog.Default()
	}
	switch {
	case workers == 0:
		workers = DefaultWorkers
	case workers < 1:
		workers = 1
	case workers > maxWorkers:
		workers = maxWorkers
	}
	return &Pool{
		expansion: expansion{fetcher: fetcher, parser: parser, logger: logger},
		workers:   workers,
	}
}

// Workers returns the pool size.
func (p *Pool) Workers() int {
	return p.workers
}

// Expand implements Expander.
func (p *Pool) Expand(ctx context.Context, page int, records []model.Record, state session.State) ([]model.Record, []model.ExpansionFailure, error) {
	out := cloneRecords(records)
	slots := make([]*model.ExpansionFailure, len(out))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)

	for i := range out {
		if !out[i].NeedsExpansion() {
			continue
		}
		g.Go(func() error {
			creditors, err := p.one(gctx, out[i], state)
			failure, err := p.apply(gctx, page, &out[i], creditors, err)
			if err != nil {
				return err
			}
			slots[i] = failure
			return nil
		})
	}

	err := g.Wait()

	failures := make([]model.ExpansionFailure, 0)
	for _, f := range slots {
		if f != nil {
			failures = append(failures, *f)
		}
	}
	return out, failures, err
}
