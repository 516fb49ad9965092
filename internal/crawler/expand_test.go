package crawler

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/Raam977/citius-scraper/internal/fetch"
	"github.com/Raam977/citius-scraper/internal/model"
	"github.com/Raam977/citius-scraper/internal/session"
)

// creditorFetcher answers creditor postbacks by target.
func creditorFetcher(pages map[string][]byte, failures map[string]error) *scriptedFetcher {
	return &scriptedFetcher{
		handle: func(_ int, req fetch.Request) (*fetch.Page, error) {
			target := req.Form[session.FieldEventTarget]
			if err, ok := failures[target]; ok {
				return nil, err
			}
			if body, ok := pages[target]; ok {
				return page(body), nil
			}
			return nil, &fetch.FetchError{Step: req.Step, StatusCode: 404, Class: fetch.ErrorClassClient, Attempts: 1, Err: errors.New("not found")}
		},
	}
}

func parsedRecords(t *testing.T, refs ...string) []model.Record {
	t.Helper()
	result, err := newTestParser(t).Parse(expandablePage(refs))
	if err != nil {
		t.Fatalf("failed to parse page: %v", err)
	}
	if len(result.Records) != len(refs) {
		t.Fatalf("expected %d records, got %d", len(refs), len(result.Records))
	}
	return result.Records
}

// TestExpandersAgree tests that the pooled expander matches the sequential one.
func TestExpandersAgree(t *testing.T) {
	t.Parallel()

	pages := map[string][]byte{
		expandTarget("A"): creditorPage("Banco X", "Banco Y"),
		expandTarget("C"): creditorPage(),
		expandTarget("D"): creditorPage("Fornecedor Z"),
		expandTarget("E"): creditorPage("Banco X", "Banco X", "Banco Y"),
	}
	failures := map[string]error{
		expandTarget("B"): &fetch.FetchError{Step: "expand", StatusCode: 503, Class: fetch.ErrorClassServer, Attempts: 3, Err: fetch.ErrRetryExhausted},
	}

	records := parsedRecords(t, "A", "B", "C", "D", "E")
	p := newTestParser(t)
	ctx := context.Background()

	seqFetcher := creditorFetcher(pages, failures)
	seqRecords, seqFailures, err := NewSequential(seqFetcher, p, discardLogger()).Expand(ctx, 1, records, testState)
	if err != nil {
		t.Fatalf("sequential expander failed: %v", err)
	}

	t.Run("sequential output", func(t *testing.T) {
		t.Parallel()

		got := make(map[string]int)
		for _, r := range seqRecords {
			got[r.Reference] = len(r.Creditors)
		}
		want := map[string]int{"A": 2, "B": 0, "C": 0, "D": 1, "E": 3}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("creditor counts mismatch (-want +got):\n%s", diff)
		}
		if len(seqFailures) != 1 || seqFailures[0].Reference != "B" || seqFailures[0].Page != 1 {
			t.Errorf("expected one failure for B, got %+v", seqFailures)
		}
		if seqRecords[1].SingleCreditorFallback != "Primeiro Credor B" {
			t.Errorf("expected fallback to survive a failed expansion, got %q", seqRecords[1].SingleCreditorFallback)
		}
		if seqRecords[0].SingleCreditorFallback != "Primeiro Credor A" {
			t.Errorf("expected fallback to coexist with expanded list, got %q", seqRecords[0].SingleCreditorFallback)
		}
	})

	for _, workers := range []int{1, 2, 4} {
		t.Run(fmt.Sprintf("pool with %d workers", workers), func(t *testing.T) {
			t.Parallel()

			poolFetcher := creditorFetcher(pages, failures)
			poolRecords, poolFailures, err := NewPool(poolFetcher, p, workers, discardLogger()).Expand(ctx, 1, records, testState)
			if err != nil {
				t.Fatalf("pool expander failed: %v", err)
			}
			if diff := cmp.Diff(seqRecords, poolRecords); diff != "" {
				t.Errorf("records differ with %d workers (-sequential +pool):\n%s", workers, diff)
			}
			if diff := cmp.Diff(seqFailures, poolFailures); diff != "" {
				t.Errorf("failures differ with %d workers (-sequential +pool):\n%s", workers, diff)
			}
			if got := poolFetcher.count(stepExpand); got != 5 {
				t.Errorf("expected 5 expansion requests, got %d", got)
			}
		})
	}

	t.Run("input is not modified", func(t *testing.T) {
		t.Parallel()
		for _, r := range records {
			if len(r.Creditors) != 0 {
				t.Errorf("expected input record %s to keep an empty list, got %v", r.Reference, r.Creditors)
			}
		}
	})
}

// TestExpandFatalErrors tests that session expiry and cancellation stop expansion.
func TestExpandFatalErrors(t *testing.T) {
	t.Parallel()

	records := parsedRecords(t, "A", "B")
	p := newTestParser(t)

	expanders := map[string]func(PageFetcher) Expander{
		"sequential": func(f PageFetcher) Expander { return NewSequential(f, p, discardLogger()) },
		"pool":       func(f PageFetcher) Expander { return NewPool(f, p, 2, discardLogger()) },
	}

	for name, newExpander := range expanders {
		t.Run(name+" session expired", func(t *testing.T) {
			t.Parallel()

			f := creditorFetcher(
				map[string][]byte{expandTarget("A"): creditorPage("Banco X")},
				map[string]error{expandTarget("B"): &fetch.SessionError{Step: "expand", Reason: "status 440"}},
			)
			_, failures, err := newExpander(f).Expand(context.Background(), 1, records, testState)
			if !errors.Is(err, fetch.ErrSessionExpired) {
				t.Fatalf("expected session expired, got %v", err)
			}
			if len(failures) != 0 {
				t.Errorf("session expiry must not be recorded as a failure, got %+v", failures)
			}
		})

		t.Run(name+" cancelled", func(t *testing.T) {
			t.Parallel()

			ctx, cancel := context.WithCancel(context.Background())
			cancel()

			f := creditorFetcher(map[string][]byte{expandTarget("A"): creditorPage("Banco X")}, nil)
			out, _, err := newExpander(f).Expand(ctx, 1, records, testState)
			if !errors.Is(err, context.Canceled) {
				t.Fatalf("expected context.Canceled, got %v", err)
			}
			if len(out) != len(records) {
				t.Errorf("expected records to be returned, got %d", len(out))
			}
		})
	}
}

// TestExpandSkipsInlineRecords tests that records without a control are untouched.
func TestExpandSkipsInlineRecords(t *testing.T) {
	t.Parallel()

	records := []model.Record{
		{Reference: "1", Creditors: []model.Creditor{{Name: "Inline"}}},
		{Reference: "2", Creditors: []model.Creditor{}},
	}
	f := creditorFetcher(nil, nil)

	out, failures, err := NewPool(f, newTestParser(t), 2, discardLogger()).Expand(context.Background(), 1, records, testState)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diff := cmp.Diff(records, out); diff != "" {
		t.Errorf("records changed (-want +got):\n%s", diff)
	}
	if len(failures) != 0 || len(f.steps()) != 0 {
		t.Errorf("expected no requests, got %v", f.steps())
	}
}

// TestNewPoolWorkers tests worker clamping.
func TestNewPoolWorkers(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name     string
		workers  int
		expected int
	}{
		{"default", 0, DefaultWorkers},
		{"negative", -3, 1},
		{"within bounds", 3, 3},
		{"above ceiling", 16, 4},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := NewPool(nil, nil, tc.workers, nil).Workers(); got != tc.expected {
				t.Errorf("got %d workers, expected %d", got, tc.expected)
			}
		})
	}
}
