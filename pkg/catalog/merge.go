package catalog

// Merge folds a fetched page into the master collection. A record is
// appended, in the order received, only when no record in master or earlier
// in page shares its identity key. master is never modified; the returned
// slice does not share a backing array with it.
//
// Merging the same page twice yields inserted == 0 the second time.
func Merge(master, page []Record) (merged []Record, inserted int) {
	seen := make(map[string]struct{}, len(master)+len(page))
	for _, r := range master {
		seen[r.Key()] = struct{}{}
	}

	merged = make([]Record, len(master), len(master)+len(page))
	copy(merged, master)

	for _, r := range page {
		key := r.Key()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		merged = append(merged, r)
		inserted++
	}

	return merged, inserted
}
