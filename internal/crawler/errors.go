package crawler

import (
	"errors"
	"fmt"
)

// Stage names the point of the run where a fatal error happened.
type Stage string

const (
	// StageValidate is the criteria check before any request.
	StageValidate Stage = "validate"

	// StageInit is the initial GET of the search form.
	StageInit Stage = "init"

	// StageSearch is the form submission.
	StageSearch Stage = "search"

	// StageParse is the parsing of a result page.
	StageParse Stage = "parse"

	// StageExpand is the loading of creditor lists.
	StageExpand Stage = "expand"

	// StagePage is the postback that loads the next result page.
	StagePage Stage = "page"
)

// ErrNoFetcher is returned by Run when the Paginator has no PageFetcher.
var ErrNoFetcher = errors.New("no page fetcher configured")

// RunError is a fatal error of a run. It identifies where the run stopped;
// the cause is available through errors.Is and errors.As.
type RunError struct {
	// Stage is the step that failed.
	Stage Stage

	// Page is the 1-based result page, or 0 before the first page.
	Page int

	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *RunError) Error() string {
	if e.Page > 0 {
		return fmt.Sprintf("%s failed on page %d: %v", e.Stage, e.Page, e.Err)
	}
	return fmt.Sprintf("%s failed: %v", e.Stage, e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *RunError) Unwrap() error {
	return e.Err
}
