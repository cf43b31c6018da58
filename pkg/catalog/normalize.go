package catalog

import (
	"encoding/json"
	"math"
	"sort"
	"strings"
)

// NormalizeName maps one reference to its canonical lower-case name. It
// accepts a bare string, an object wrapping {"<wrapper>":{"name":...}} or an
// object carrying "name" directly. Anything else yields Unknown.
func NormalizeName(raw json.RawMessage, wrapper string) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return canonicalName(s)
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil || obj == nil {
		return Unknown
	}

	if wrapper != "" {
		if inner, ok := obj[wrapper]; ok {
			var nested struct {
				Name string `json:"name"`
			}
			if err := json.Unmarshal(inner, &nested); err == nil && nested.Name != "" {
				return canonicalName(nested.Name)
			}
		}
	}

	if name := decodeString(obj["name"]); name != "" {
		return canonicalName(name)
	}
	return Unknown
}

func canonicalName(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return Unknown
	}
	return s
}

// decodeNameList normalizes an array of references. A field that is absent
// or not an array yields nil.
func decodeNameList(raw json.RawMessage, wrapper string) []string {
	var items []json.RawMessage
	if len(raw) == 0 || json.Unmarshal(raw, &items) != nil || len(items) == 0 {
		return nil
	}

	names := make([]string, 0, len(items))
	for _, item := range items {
		names = append(names, NormalizeName(item, wrapper))
	}
	return names
}

// decodeStats accepts either an array of stat objects or an object mapping
// stat name to value. The map form is sorted by name.
func decodeStats(raw json.RawMessage) []Stat {
	if len(raw) == 0 {
		return nil
	}

	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err == nil {
		stats := make([]Stat, 0, len(items))
		for _, item := range items {
			stats = append(stats, decodeStat(item))
		}
		return stats
	}

	var byName map[string]float64
	if err := json.Unmarshal(raw, &byName); err == nil {
		stats := make([]Stat, 0, len(byName))
		for name, value := range byName {
			base, _ := wholeInt(math.Trunc(value))
			stats = append(stats, Stat{Name: canonicalName(name), Base: base})
		}
		sort.Slice(stats, func(i, j int) bool { return stats[i].Name < stats[j].Name })
		return stats
	}

	return nil
}

func decodeStat(raw json.RawMessage) Stat {
	var s struct {
		BaseStat *float64 `json:"base_stat"`
		Value    *float64 `json:"value"`
	}
	_ = json.Unmarshal(raw, &s)

	stat := Stat{Name: NormalizeName(raw, "stat")}
	switch {
	case s.BaseStat != nil:
		stat.Base, _ = wholeInt(math.Trunc(*s.BaseStat))
	case s.Value != nil:
		stat.Base, _ = wholeInt(math.Trunc(*s.Value))
	}
	return stat
}
