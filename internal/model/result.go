package model

import "time"

// SearchResult is the complete outcome of one run. It is what the report
// writers render and what the history database stores.
type SearchResult struct {
	// ID identifies a stored run. Empty until the run is saved.
	ID string `json:"id,omitempty"`

	// Criteria is the search that was run.
	Criteria SearchCriteria `json:"criteria"`

	// Records holds every record in the order the portal returned them.
	Records []Record `json:"records"`

	// Diagnostics summarises non-fatal issues.
	Diagnostics Diagnostics `json:"diagnostics"`

	// StartedAt is when the run began.
	StartedAt time.Time `json:"started_at"`

	// Error is the fatal error message, if the run ended with one.
	// Records may still be populated in that case.
	Error string `json:"error,omitempty"`
}

// NewSearchResult creates an empty result for criteria.
func NewSearchResult(criteria SearchCriteria) *SearchResult {
	return &SearchResult{
		Criteria:  criteria,
		Records:   make([]Record, 0),
		StartedAt: time.Now(),
	}
}

// CreditorCount returns the total number of creditors across all records.
func (r *SearchResult) CreditorCount() int {
	n := 0
	for i := range r.Records {
		n += len(r.Records[i].Creditors)
	}
	return n
}

// Partial reports whether the run ended early with an error or a cancel.
func (r *SearchResult) Partial() bool {
	return r.Error != "" || r.Diagnostics.Termination == TerminationCancelled
}
