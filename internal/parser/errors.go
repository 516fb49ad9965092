package parser

import (
	"errors"
	"fmt"
)

// ErrUnrecognizedPage is returned when a page is neither a result page, a
// no-results page nor a creditor list.
var ErrUnrecognizedPage = errors.New("unrecognized page structure")

// ParseError describes content that could not be turned into records.
// Row-scoped errors are collected in Result.Skipped and never abort a run.
type ParseError struct {
	// Row is the 0-based row index, or -1 for page-scoped errors.
	Row int

	// Reason describes the problem.
	Reason string

	// Err is the underlying error, if any.
	Err error
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	prefix := "parse page"
	if e.Row >= 0 {
		prefix = fmt.Sprintf("parse row %d", e.Row)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: %s", prefix, e.Reason)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *ParseError) Unwrap() error {
	return e.Err
}
