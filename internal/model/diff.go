package model

// CreditorChange is a record present in both runs whose creditor list
// changed size.
type CreditorChange struct {
	Key    string `json:"key"`
	Before int    `json:"before"`
	After  int    `json:"after"`
}

// ResultDiff describes how a newer run of a search differs from an older
// one. Records are matched by Key.
type ResultDiff struct {
	// Added holds records only present in the newer run, in its order.
	Added []Record `json:"added"`

	// Removed holds records only present in the older run, in its order.
	Removed []Record `json:"removed"`

	// CreditorChanges lists matched records whose creditor count changed.
	CreditorChanges []CreditorChange `json:"creditor_changes,omitempty"`

	// Unchanged counts matched records.
	Unchanged int `json:"unchanged"`
}

// Empty reports whether the runs returned the same records.
func (d *ResultDiff) Empty() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0 && len(d.CreditorChanges) == 0
}

// occurrence identifies the nth record carrying a key within one run.
type occurrence struct {
	key string
	n   int
}

// CompareResults compares two runs of the same search. A key repeated
// within a run is matched by position: the nth older record with a key
// pairs with the nth newer one, and any surplus on either side is added or
// removed.
func CompareResults(older, newer *SearchResult) ResultDiff {
	diff := ResultDiff{
		Added:   make([]Record, 0),
		Removed: make([]Record, 0),
	}

	before := make(map[occurrence]*Record, len(older.Records))
	seen := make(map[string]int, len(older.Records))
	for i := range older.Records {
		r := &older.Records[i]
		before[occurrence{r.Key(), seen[r.Key()]}] = r
		seen[r.Key()]++
	}

	matched := make(map[occurrence]struct{}, len(newer.Records))
	clear(seen)
	for i := range newer.Records {
		r := &newer.Records[i]
		key := r.Key()
		occ := occurrence{key, seen[key]}
		seen[key]++

		old, ok := before[occ]
		if !ok {
			diff.Added = append(diff.Added, *r)
			continue
		}
		matched[occ] = struct{}{}
		if len(old.Creditors) != len(r.Creditors) {
			diff.CreditorChanges = append(diff.CreditorChanges, CreditorChange{
				Key:    key,
				Before: len(old.Creditors),
				After:  len(r.Creditors),
			})
			continue
		}
		diff.Unchanged++
	}

	clear(seen)
	for i := range older.Records {
		r := &older.Records[i]
		occ := occurrence{r.Key(), seen[r.Key()]}
		seen[r.Key()]++
		if _, ok := matched[occ]; !ok {
			diff.Removed = append(diff.Removed, *r)
		}
	}

	return diff
}
