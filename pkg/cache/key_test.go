package cache

import (
	"net/url"
	"testing"
)

func TestKey_String(t *testing.T) {
	tests := []struct {
		name string
		key  Key
		want string
	}{
		{
			name: "path only",
			key:  Key{Path: "/pokemons/"},
			want: "catalog:pokemons",
		},
		{
			name: "page query sorted",
			key: Key{
				Path:  "/pokemons",
				Query: url.Values{"offset": {"100"}, "limit": {"50"}},
			},
			want: "catalog:pokemons:limit=50:offset=100",
		},
		{
			name: "detail record",
			key:  Key{Path: "/pokemons/25"},
			want: "catalog:pokemons/25",
		},
		{
			name: "multi-valued param sorted",
			key: Key{
				Path:  "/items",
				Query: url.Values{"tag": {"b", "a"}},
			},
			want: "catalog:items:tag=a,b",
		},
		{
			name: "empty",
			key:  Key{},
			want: "catalog",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.key.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestKey_StringDoesNotReorderCallerValues(t *testing.T) {
	q := url.Values{"tag": {"b", "a"}}
	_ = Key{Query: q}.String()
	if q["tag"][0] != "b" {
		t.Error("String() mutated the caller's query values")
	}
}
