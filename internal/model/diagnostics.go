package model

import "time"

// Termination records why a run stopped walking result pages.
type Termination int

const (
	// TerminationNone means the run has not finished.
	TerminationNone Termination = iota

	// TerminationNoNextPage means the last page had no next-page control,
	// or the search returned no results at all.
	TerminationNoNextPage

	// TerminationLoopGuard means a page repeated the previous page's
	// references and pagination was stopped to avoid looping.
	TerminationLoopGuard

	// TerminationPageCeiling means the configured page limit was reached.
	TerminationPageCeiling

	// TerminationUnparsablePage means a later result page could not be
	// parsed. Records from the earlier pages are kept.
	TerminationUnparsablePage

	// TerminationCancelled means the run's context was cancelled or timed out.
	TerminationCancelled

	// TerminationError means a fatal error ended the run.
	TerminationError
)

// String returns a human-readable representation of the termination reason.
func (t Termination) String() string {
	switch t {
	case TerminationNone:
		return "running"
	case TerminationNoNextPage:
		return "no-next-page"
	case TerminationLoopGuard:
		return "loop-guard"
	case TerminationPageCeiling:
		return "page-ceiling"
	case TerminationUnparsablePage:
		return "unparsable-page"
	case TerminationCancelled:
		return "cancelled"
	case TerminationError:
		return "error"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (t Termination) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *Termination) UnmarshalText(text []byte) error {
	for candidate := TerminationNone; candidate <= TerminationError; candidate++ {
		if candidate.String() == string(text) {
			*t = candidate
			return nil
		}
	}
	*t = TerminationNone
	return nil
}

// RowIssue describes a result row that was skipped because it could not be
// identified.
type RowIssue struct {
	// Page is the 1-based result page the row was on.
	Page int `json:"page"`

	// Row is the 0-based position of the row on the page.
	Row int `json:"row"`

	// Reason explains why the row was skipped.
	Reason string `json:"reason"`
}

// ExpansionFailure describes a record whose creditor list could not be
// fetched. The record itself is kept.
type ExpansionFailure struct {
	Page      int    `json:"page"`
	Reference string `json:"reference"`
	Reason    string `json:"reason"`
}

// Diagnostics collects non-fatal issues and counters for one run.
type Diagnostics struct {
	// PagesVisited counts result pages that were fetched and parsed.
	PagesVisited int `json:"pages_visited"`

	// SkippedRows lists rows dropped by the parser.
	SkippedRows []RowIssue `json:"skipped_rows,omitempty"`

	// PageParseFailures counts pages whose structure was not recognised.
	PageParseFailures int `json:"page_parse_failures,omitempty"`

	// ExpansionFailures lists records whose creditor list is missing.
	ExpansionFailures []ExpansionFailure `json:"expansion_failures,omitempty"`

	// SessionRestarts counts how many times the session was rebuilt.
	SessionRestarts int `json:"session_restarts"`

	// TotalHint is the "N documentos encontrados" count, or 0 if absent.
	TotalHint int `json:"total_hint,omitempty"`

	// Termination is why the run stopped.
	Termination Termination `json:"termination"`

	// Elapsed is the wall-clock duration of the run.
	Elapsed time.Duration `json:"elapsed"`
}

// SkippedRowCount returns the number of skipped rows.
func (d *Diagnostics) SkippedRowCount() int {
	return len(d.SkippedRows)
}

// ExpansionFailureCount returns the number of failed expansions.
func (d *Diagnostics) ExpansionFailureCount() int {
	return len(d.ExpansionFailures)
}
