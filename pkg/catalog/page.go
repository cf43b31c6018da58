package catalog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
)

// ListFields are the envelope fields that may carry a page's records,
// in lookup order.
var ListFields = []string{"results", "pokemons", "data", "items"}

// TotalFields are the envelope fields that may carry the server-reported
// total count, in lookup order.
var TotalFields = []string{"count", "total", "totalCount", "total_count"}

// Page is one normalized page of the remote list endpoint.
type Page struct {
	Records []Record

	// TotalCount is advisory; nil when the server did not report one.
	TotalCount *int

	// Unrecognized marks a body that matched no known shape and was treated
	// as an empty page.
	Unrecognized bool
}

// ShapeError reports a response body that matches none of the known shapes.
type ShapeError struct {
	Reason string
	Err    error
}

// Error implements the error interface.
func (e *ShapeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("unrecognized response shape: %s: %v", e.Reason, e.Err)
	}
	return "unrecognized response shape: " + e.Reason
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *ShapeError) Unwrap() error {
	return e.Err
}

// DecodePage normalizes a list response body. It accepts a bare array of
// records or an object carrying the array under one of ListFields, with an
// optional total under one of TotalFields. Array elements that are not
// objects are skipped. Any other body yields a *ShapeError.
func DecodePage(body []byte) (Page, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return Page{}, &ShapeError{Reason: "empty body"}
	}

	switch body[0] {
	case '[':
		records, err := decodeRecords(body)
		if err != nil {
			return Page{}, &ShapeError{Reason: "malformed array", Err: err}
		}
		return Page{Records: records}, nil

	case '{':
		var envelope map[string]json.RawMessage
		if err := json.Unmarshal(body, &envelope); err != nil {
			return Page{}, &ShapeError{Reason: "malformed object", Err: err}
		}

		for _, field := range ListFields {
			raw, ok := envelope[field]
			if !ok || !isArray(raw) {
				continue
			}
			records, err := decodeRecords(raw)
			if err != nil {
				return Page{}, &ShapeError{Reason: "malformed " + field, Err: err}
			}
			return Page{Records: records, TotalCount: decodeTotal(envelope)}, nil
		}
		return Page{}, &ShapeError{Reason: "no record list field"}

	default:
		return Page{}, &ShapeError{Reason: "body is neither array nor object"}
	}
}

// DecodeRecord normalizes a single-record response body.
func DecodeRecord(body []byte) (Record, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 || body[0] != '{' {
		return Record{}, &ShapeError{Reason: "record is not an object"}
	}

	var r Record
	if err := json.Unmarshal(body, &r); err != nil {
		return Record{}, &ShapeError{Reason: "malformed record", Err: err}
	}
	return r, nil
}

func decodeRecords(raw json.RawMessage) ([]Record, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, err
	}

	records := make([]Record, 0, len(items))
	for _, item := range items {
		item = bytes.TrimSpace(item)
		if len(item) == 0 || item[0] != '{' {
			continue
		}
		var r Record
		if err := json.Unmarshal(item, &r); err != nil {
			continue
		}
		records = append(records, r)
	}
	return records, nil
}

func decodeTotal(envelope map[string]json.RawMessage) *int {
	for _, field := range TotalFields {
		raw, ok := envelope[field]
		if !ok {
			continue
		}
		var f float64
		if err := json.Unmarshal(raw, &f); err != nil || f < 0 || f != math.Trunc(f) {
			continue
		}
		total := int(f)
		return &total
	}
	return nil
}

func isArray(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && raw[0] == '['
}
