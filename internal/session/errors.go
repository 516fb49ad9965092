package session

import "errors"

var (
	// ErrMissingToken is returned when a page lacks a required hidden field.
	ErrMissingToken = errors.New("missing continuation token")

	// ErrNoForm is returned when a page contains no hidden fields at all.
	ErrNoForm = errors.New("page carries no continuation tokens")
)
