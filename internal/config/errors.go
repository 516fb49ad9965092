package config

import "errors"

// Configuration validation errors returned by Config.Validate.
var (
	// ErrInvalidTimeout is returned when the per-request timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidRunTimeout is returned when the run timeout is negative.
	// Zero disables the run timeout.
	ErrInvalidRunTimeout = errors.New("invalid run timeout: must be non-negative")

	// ErrInvalidMaxPages is returned when the page ceiling is not positive.
	ErrInvalidMaxPages = errors.New("invalid max pages: must be positive")

	// ErrInvalidWorkers is returned when the expansion worker count is out of range.
	ErrInvalidWorkers = errors.New("invalid workers: must be between 1 and 4")

	// ErrInvalidMinDelay is returned when the delay between requests is negative.
	ErrInvalidMinDelay = errors.New("invalid min delay: must be non-negative")

	// ErrInvalidMaxBodySize is returned when the max body size is negative.
	ErrInvalidMaxBodySize = errors.New("invalid max body size: must be non-negative")

	// ErrInvalidFormat is returned for an unknown report format.
	ErrInvalidFormat = errors.New("invalid format: must be one of csv, json, markdown, text")

	// ErrInvalidLogFormat is returned for an unknown log format.
	ErrInvalidLogFormat = errors.New("invalid log format: must be text or json")
)
