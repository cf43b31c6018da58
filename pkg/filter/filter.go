// Package filter derives the filtered view of the master collection. Filters
// are applied locally and never re-query the server.
package filter

import (
	"strings"

	"github.com/Sternrassler/catalog-sync/pkg/catalog"
)

// AllCategories is accepted as a synonym for "no category filter".
const AllCategories = "all"

// Criteria is the active filter: a name substring and a category.
type Criteria struct {
	Search   string `json:"search"`
	Category string `json:"category"`
}

// Normalize trims and lower-cases the category and maps AllCategories to
// empty. Search is kept verbatim: any non-empty term, whitespace included,
// is a substring filter.
func (c Criteria) Normalize() Criteria {
	c.Category = strings.ToLower(strings.TrimSpace(c.Category))
	if c.Category == AllCategories {
		c.Category = ""
	}
	return c
}

// Active reports whether any filter is set.
func (c Criteria) Active() bool {
	n := c.Normalize()
	return n.Search != "" || n.Category != ""
}

// Matches reports whether r passes both filters.
func (c Criteria) Matches(r catalog.Record) bool {
	n := c.Normalize()
	if n.Search != "" && !strings.Contains(strings.ToLower(r.Name), strings.ToLower(n.Search)) {
		return false
	}
	if n.Category != "" && !r.HasCategory(n.Category) {
		return false
	}
	return true
}

// Apply returns the records of master matching c, in master order. The
// result never shares a backing array with master.
func Apply(master []catalog.Record, c Criteria) []catalog.Record {
	n := c.Normalize()
	view := make([]catalog.Record, 0, len(master))
	for _, r := range master {
		if n.Matches(r) {
			view = append(view, r)
		}
	}
	return view
}
