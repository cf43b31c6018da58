// Package testutil provides a configurable in-process catalog server for
// tests.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Envelope selects the list response shape served by MockCatalog.
type Envelope string

const (
	// EnvelopeArray serves a bare JSON array.
	EnvelopeArray Envelope = "array"
	// EnvelopeResults serves {"count": n, "results": [...]}.
	EnvelopeResults Envelope = "results"
	// EnvelopeData serves {"total": n, "data": [...]}.
	EnvelopeData Envelope = "data"
	// EnvelopeUnknown serves an object with no recognized list field.
	EnvelopeUnknown Envelope = "unknown"
)

// MockRecord is one record served by MockCatalog.
type MockRecord struct {
	ID    int      `json:"id"`
	Name  string   `json:"name"`
	Image string   `json:"image,omitempty"`
	Types []string `json:"types,omitempty"`
}

// MockCatalog is an httptest server imitating the remote list and detail
// endpoints.
type MockCatalog struct {
	server *httptest.Server
	path   string

	mu        sync.Mutex
	records   []MockRecord
	envelope  Envelope
	failures  []int
	delay     time.Duration
	headers   map[string]string
	etag      string
	requests  int
	notMod    int
	offsets   []int
	lastQuery string
}

var mockTypes = []string{"grass", "fire", "water", "electric", "normal"}

// NewMockCatalog starts a server at path (e.g. "/items") holding n
// generated records with ids 1..n.
func NewMockCatalog(path string, n int) *MockCatalog {
	m := &MockCatalog{
		path:     "/" + strings.Trim(path, "/"),
		envelope: EnvelopeArray,
		headers:  map[string]string{},
	}
	for i := 1; i <= n; i++ {
		m.records = append(m.records, MockRecord{
			ID:    i,
			Name:  fmt.Sprintf("record-%03d", i),
			Image: fmt.Sprintf("https://img.example.test/%d.png", i),
			Types: []string{mockTypes[i%len(mockTypes)]},
		})
	}

	m.server = httptest.NewServer(http.HandlerFunc(m.serve))
	return m
}

// URL returns the server's base URL.
func (m *MockCatalog) URL() string { return m.server.URL }

// Close shuts the server down.
func (m *MockCatalog) Close() { m.server.Close() }

// SetRecords replaces the served records.
func (m *MockCatalog) SetRecords(records []MockRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = records
}

// SetEnvelope selects the list response shape.
func (m *MockCatalog) SetEnvelope(e Envelope) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.envelope = e
}

// FailNext makes the next len(statuses) requests answer with the given
// status codes, in order.
func (m *MockCatalog) FailNext(statuses ...int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures = append(m.failures, statuses...)
}

// SetDelay delays every response.
func (m *MockCatalog) SetDelay(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = d
}

// SetHeader adds a header to every response.
func (m *MockCatalog) SetHeader(key, value string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.headers[key] = value
}

// SetETag makes responses carry etag and answers requests whose
// If-None-Match matches it with 304 Not Modified.
func (m *MockCatalog) SetETag(etag string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.etag = etag
}

// NotModifiedCount returns the number of 304 responses served.
func (m *MockCatalog) NotModifiedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.notMod
}

// RequestCount returns the number of requests served.
func (m *MockCatalog) RequestCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.requests
}

// Offsets returns the offsets of list requests in arrival order, including
// requests answered with an injected failure or 304.
func (m *MockCatalog) Offsets() []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]int(nil), m.offsets...)
}

// LastQuery returns the raw query of the last list request.
func (m *MockCatalog) LastQuery() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastQuery
}

func (m *MockCatalog) serve(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	m.requests++
	if r.URL.Path == m.path {
		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
		m.offsets = append(m.offsets, offset)
		m.lastQuery = r.URL.RawQuery
	}
	delay := m.delay
	for k, v := range m.headers {
		w.Header().Set(k, v)
	}
	var status int
	if len(m.failures) > 0 {
		status, m.failures = m.failures[0], m.failures[1:]
	}
	etag := m.etag
	notModified := status == 0 && etag != "" && r.Header.Get("If-None-Match") == etag
	if notModified {
		m.notMod++
	}
	m.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-r.Context().Done():
			return
		}
	}

	if notModified {
		w.Header().Set("ETag", etag)
		w.WriteHeader(http.StatusNotModified)
		return
	}
	if etag != "" {
		w.Header().Set("ETag", etag)
	}

	if status != 0 {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write([]byte(`{"error":"injected failure"}`))
		return
	}

	switch {
	case r.URL.Path == m.path:
		m.serveList(w, r)
	case strings.HasPrefix(r.URL.Path, m.path+"/"):
		m.serveRecord(w, strings.TrimPrefix(r.URL.Path, m.path+"/"))
	default:
		http.NotFound(w, r)
	}
}

func (m *MockCatalog) serveList(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	m.mu.Lock()
	envelope := m.envelope
	total := len(m.records)
	start := min(max(offset, 0), total)
	end := min(start+max(limit, 0), total)
	page := append([]MockRecord{}, m.records[start:end]...)
	m.mu.Unlock()

	var body any
	switch envelope {
	case EnvelopeResults:
		body = map[string]any{"count": total, "results": page}
	case EnvelopeData:
		body = map[string]any{"total": total, "data": page}
	case EnvelopeUnknown:
		body = map[string]any{"message": "ok"}
	default:
		body = page
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(body)
}

func (m *MockCatalog) serveRecord(w http.ResponseWriter, idOrName string) {
	m.mu.Lock()
	var found *MockRecord
	for i := range m.records {
		if strconv.Itoa(m.records[i].ID) == idOrName || m.records[i].Name == idOrName {
			rec := m.records[i]
			found = &rec
			break
		}
	}
	m.mu.Unlock()

	if found == nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":"not found"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(found)
}
