package catalog

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Unknown is the placeholder for a reference that matches no known shape.
const Unknown = "unknown"

// Record is one catalog entry.
type Record struct {
	// ID is the numeric identifier, nil when the server did not send one.
	ID *int

	// Name is required for filtering; empty when absent.
	Name string

	// Image is an optional URL.
	Image string

	// Categories are normalized, lower-case category names in server order.
	Categories []string

	// Stats, Abilities and Moves are auxiliary detail fields.
	Stats     []Stat
	Abilities []string
	Moves     []string

	// Raw is the record exactly as received. It is what MarshalJSON emits,
	// so fields this package does not model pass through unmodified.
	Raw json.RawMessage
}

// Stat is one base stat of a record.
type Stat struct {
	Name string `json:"name"`
	Base int    `json:"base_stat"`
}

// Key returns the identity key used for deduplication: the numeric id when
// present, else the name.
func (r Record) Key() string {
	if r.ID != nil {
		return "id:" + strconv.Itoa(*r.ID)
	}
	return "name:" + r.Name
}

// HasCategory reports whether any of the record's categories equals
// category, case-insensitively.
func (r Record) HasCategory(category string) bool {
	for _, c := range r.Categories {
		if strings.EqualFold(c, category) {
			return true
		}
	}
	return false
}

// wireRecord keeps every loosely typed field raw so one malformed field never
// rejects the whole record.
type wireRecord struct {
	ID         json.RawMessage `json:"id"`
	Name       json.RawMessage `json:"name"`
	Image      json.RawMessage `json:"image"`
	Types      json.RawMessage `json:"types"`
	Categories json.RawMessage `json:"categories"`
	Stats      json.RawMessage `json:"stats"`
	Abilities  json.RawMessage `json:"abilities"`
	Moves      json.RawMessage `json:"moves"`
}

// UnmarshalJSON decodes a record object. It fails only when data is not a
// JSON object.
func (r *Record) UnmarshalJSON(data []byte) error {
	var w wireRecord
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	categories := w.Types
	if len(categories) == 0 || bytes.Equal(categories, []byte("null")) {
		categories = w.Categories
	}

	*r = Record{
		ID:         decodeID(w.ID),
		Name:       decodeString(w.Name),
		Image:      decodeString(w.Image),
		Categories: decodeNameList(categories, "type"),
		Stats:      decodeStats(w.Stats),
		Abilities:  decodeNameList(w.Abilities, "ability"),
		Moves:      decodeNameList(w.Moves, "move"),
		Raw:        append(json.RawMessage(nil), data...),
	}
	return nil
}

// MarshalJSON emits the record as received, or a canonical form for records
// built in code.
func (r Record) MarshalJSON() ([]byte, error) {
	if len(r.Raw) > 0 {
		return r.Raw, nil
	}

	type canonical struct {
		ID        *int     `json:"id,omitempty"`
		Name      string   `json:"name"`
		Image     string   `json:"image,omitempty"`
		Types     []string `json:"types,omitempty"`
		Stats     []Stat   `json:"stats,omitempty"`
		Abilities []string `json:"abilities,omitempty"`
		Moves     []string `json:"moves,omitempty"`
	}
	return json.Marshal(canonical{
		ID:        r.ID,
		Name:      r.Name,
		Image:     r.Image,
		Types:     r.Categories,
		Stats:     r.Stats,
		Abilities: r.Abilities,
		Moves:     r.Moves,
	})
}

// decodeID accepts a JSON number or a numeric string. null, fractions and
// values outside the int range yield nil.
func decodeID(raw json.RawMessage) *int {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}

	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		id, ok := wholeInt(f)
		if !ok {
			return nil
		}
		return &id
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if id, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return &id
		}
	}
	return nil
}

// wholeInt converts f when it is integral and fits in an int.
func wholeInt(f float64) (int, bool) {
	if f != math.Trunc(f) || f < math.MinInt || f >= math.MaxInt {
		return 0, false
	}
	return int(f), true
}

func decodeString(raw json.RawMessage) string {
	var s string
	if len(raw) == 0 || json.Unmarshal(raw, &s) != nil {
		return ""
	}
	return s
}
