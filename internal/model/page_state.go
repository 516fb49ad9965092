package model

// PageState is the pagination bookkeeping carried between result pages.
type PageState struct {
	// Index is the 1-based number of the current page.
	Index int

	// TotalPages is the number of pages if the portal told us, 0 otherwise.
	TotalPages int

	// References holds the loop-guard keys of the current page's records.
	References []string
}

// Advance returns the state for the next page with the given references.
func (p PageState) Advance(refs []string) PageState {
	return PageState{
		Index:      p.Index + 1,
		TotalPages: p.TotalPages,
		References: refs,
	}
}

// Repeats reports whether refs overlaps the current page's references.
// An empty current set never repeats, so the first page always passes.
// Empty keys are ignored.
func (p PageState) Repeats(refs []string) bool {
	if len(p.References) == 0 || len(refs) == 0 {
		return false
	}
	seen := make(map[string]struct{}, len(p.References))
	for _, ref := range p.References {
		if ref != "" {
			seen[ref] = struct{}{}
		}
	}
	for _, ref := range refs {
		if _, ok := seen[ref]; ok {
			return true
		}
	}
	return false
}
