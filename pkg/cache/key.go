package cache

import (
	"net/url"
	"sort"
	"strings"
)

// KeyPrefix namespaces every cache key.
const KeyPrefix = "catalog"

// Key identifies one cached response.
type Key struct {
	// Path is the request path, e.g. "/pokemons" or "/pokemons/25".
	Path string

	// Query holds the query parameters, e.g. limit and offset.
	Query url.Values
}

// String renders a deterministic key:
//
//	catalog:pokemons:limit=50:offset=100
func (k Key) String() string {
	parts := []string{KeyPrefix}

	if path := strings.Trim(k.Path, "/"); path != "" {
		parts = append(parts, path)
	}

	names := make([]string, 0, len(k.Query))
	for name := range k.Query {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		values := append([]string(nil), k.Query[name]...)
		sort.Strings(values)
		parts = append(parts, name+"="+strings.Join(values, ","))
	}

	return strings.Join(parts, ":")
}
