package filter

import (
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/Sternrassler/catalog-sync/pkg/catalog"
	"github.com/agnivade/levenshtein"
)

// Suggest returns up to n distinct record names closest to term by edit
// distance, nearest first. Names further than half the term's length (plus
// one) are not offered.
func Suggest(master []catalog.Record, term string, n int) []string {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" || n <= 0 {
		return nil
	}
	limit := utf8.RuneCountInString(term)/2 + 1

	type candidate struct {
		name     string
		distance int
	}
	seen := make(map[string]bool)
	var candidates []candidate
	for _, r := range master {
		name := strings.ToLower(r.Name)
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true

		d := levenshtein.ComputeDistance(term, name)
		if d <= limit {
			candidates = append(candidates, candidate{name: r.Name, distance: d})
		}
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].distance != candidates[j].distance {
			return candidates[i].distance < candidates[j].distance
		}
		return candidates[i].name < candidates[j].name
	})

	if len(candidates) > n {
		candidates = candidates[:n]
	}
	names := make([]string, len(candidates))
	for i, c := range candidates {
		names[i] = c.name
	}
	return names
}
