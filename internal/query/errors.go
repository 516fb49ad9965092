package query

import "fmt"

// ValidationError reports malformed or contradictory search criteria.
type ValidationError struct {
	// Field is the criteria field at fault.
	Field string

	// Reason describes the problem.
	Reason string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid search criteria: %s: %s", e.Field, e.Reason)
}

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}
