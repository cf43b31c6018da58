package filter

import (
	"testing"

	"github.com/Sternrassler/catalog-sync/pkg/catalog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func record(id int, name string, categories ...string) catalog.Record {
	return catalog.Record{ID: &id, Name: name, Categories: categories}
}

func fixture() []catalog.Record {
	return []catalog.Record{
		record(1, "Bulbasaur", "grass", "poison"),
		record(4, "charmander", "fire"),
		record(25, "pikachu", "electric"),
		record(26, "raichu", "electric"),
		{Categories: []string{"normal"}},
	}
}

func names(records []catalog.Record) []string {
	out := make([]string, 0, len(records))
	for _, r := range records {
		out = append(out, r.Name)
	}
	return out
}

func TestCriteria_Active(t *testing.T) {
	tests := []struct {
		name     string
		criteria Criteria
		want     bool
	}{
		{"empty", Criteria{}, false},
		{"blank category", Criteria{Category: " "}, false},
		{"whitespace search", Criteria{Search: " "}, true},
		{"all categories", Criteria{Category: "All"}, false},
		{"search", Criteria{Search: "chu"}, true},
		{"category", Criteria{Category: "fire"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.criteria.Active())
		})
	}
}

func TestApply(t *testing.T) {
	tests := []struct {
		name     string
		criteria Criteria
		want     []string
	}{
		{"no filter returns everything", Criteria{}, []string{"Bulbasaur", "charmander", "pikachu", "raichu", ""}},
		{"substring", Criteria{Search: "chu"}, []string{"pikachu", "raichu"}},
		{"case insensitive search", Criteria{Search: "CHAR"}, []string{"charmander"}},
		{"case insensitive category", Criteria{Category: "Fire"}, []string{"charmander"}},
		{"search and category", Criteria{Search: "a", Category: "grass"}, []string{"Bulbasaur"}},
		{"no match", Criteria{Search: "zzz"}, []string{}},
		{"whitespace search is a substring", Criteria{Search: " "}, []string{}},
		{"surrounding spaces are kept", Criteria{Search: "chu "}, []string{}},
		{"category without match", Criteria{Category: "dragon"}, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, names(Apply(fixture(), tt.criteria)))
		})
	}
}

func TestApply_DoesNotAliasMaster(t *testing.T) {
	master := fixture()

	view := Apply(master, Criteria{})
	require.Len(t, view, len(master))
	view[0].Name = "changed"

	assert.Equal(t, "Bulbasaur", master[0].Name)
}

func TestApply_NilMaster(t *testing.T) {
	assert.Empty(t, Apply(nil, Criteria{Search: "x"}))
}
