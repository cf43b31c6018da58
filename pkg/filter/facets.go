package filter

import (
	"sort"

	"github.com/Sternrassler/catalog-sync/pkg/catalog"
)

// Facet is a category and the number of records carrying it.
type Facet struct {
	Category string `json:"category"`
	Count    int    `json:"count"`
}

// Facets counts records per category over master, sorted by category name.
// A record listing the same category twice counts once.
func Facets(master []catalog.Record) []Facet {
	counts := make(map[string]int)
	for _, r := range master {
		seen := make(map[string]bool, len(r.Categories))
		for _, c := range r.Categories {
			if seen[c] {
				continue
			}
			seen[c] = true
			counts[c]++
		}
	}

	facets := make([]Facet, 0, len(counts))
	for c, n := range counts {
		facets = append(facets, Facet{Category: c, Count: n})
	}
	sort.Slice(facets, func(i, j int) bool {
		return facets[i].Category < facets[j].Category
	})
	return facets
}
