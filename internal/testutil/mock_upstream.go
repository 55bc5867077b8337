// Package testutil provides testing utilities for the presupuesto client.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
)

// MockUpstreamResponse defines a canned upstream response.
type MockUpstreamResponse struct {
	StatusCode int
	Body       string
}

// PageFunc returns the response for a decoded upstream query.
type PageFunc func(q url.Values) MockUpstreamResponse

// MockUpstream is a configurable mock of the presupuesto_detalle web service.
type MockUpstream struct {
	server *httptest.Server
	mu     sync.RWMutex
	pages  PageFunc

	// Tracking
	requests []url.Values
}

// NewMockUpstream creates a new mock upstream. Until SetPages is called it
// answers every request with an empty page.
func NewMockUpstream() *MockUpstream {
	mock := &MockUpstream{
		pages: func(url.Values) MockUpstreamResponse {
			return NewRowsResponse(nil)
		},
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		mock.mu.Lock()
		mock.requests = append(mock.requests, q)
		pages := mock.pages
		mock.mu.Unlock()

		resp := pages(q)
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(resp.StatusCode)
		if resp.Body != "" {
			w.Write([]byte(resp.Body))
		}
	}))

	return mock
}

// URL returns the mock server URL.
func (m *MockUpstream) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockUpstream) Close() {
	m.server.Close()
}

// Reset clears recorded requests.
func (m *MockUpstream) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = nil
}

// SetPages installs the function answering every request.
func (m *MockUpstream) SetPages(fn PageFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pages = fn
}

// SetResponse answers every request with the same response.
func (m *MockUpstream) SetResponse(resp MockUpstreamResponse) {
	m.SetPages(func(url.Values) MockUpstreamResponse { return resp })
}

// Requests returns a copy of the recorded queries in arrival order.
func (m *MockUpstream) Requests() []url.Values {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]url.Values, len(m.requests))
	copy(out, m.requests)
	return out
}

// Cursors returns the "desde" value of every recorded request ("" when absent).
func (m *MockUpstream) Cursors() []string {
	reqs := m.Requests()
	out := make([]string, len(reqs))
	for i, q := range reqs {
		out[i] = q.Get("desde")
	}
	return out
}

// GetRequestCount returns the number of requests served.
func (m *MockUpstream) GetRequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.requests)
}

// NewRowsResponse creates a 200 OK {"data": rows} response.
func NewRowsResponse(rows []map[string]any) MockUpstreamResponse {
	if rows == nil {
		rows = []map[string]any{}
	}
	body, err := json.Marshal(map[string]any{"data": rows})
	if err != nil {
		panic(fmt.Sprintf("marshal mock rows: %v", err))
	}
	return MockUpstreamResponse{StatusCode: http.StatusOK, Body: string(body)}
}

// NewServerErrorResponse creates a 500 Internal Server Error response.
func NewServerErrorResponse() MockUpstreamResponse {
	return MockUpstreamResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       `{"error": "Internal server error"}`,
	}
}

// NewMalformedResponse creates a 200 OK response with a truncated JSON body.
func NewMalformedResponse() MockUpstreamResponse {
	return MockUpstreamResponse{
		StatusCode: http.StatusOK,
		Body:       `{"data": [{"id": "F0000`,
	}
}

// Row builds one upstream row.
func Row(id string, item int, fecha string) map[string]any {
	return map[string]any{
		"id":                   id,
		"item":                 item,
		"fecha":                fecha,
		"comprobante":          "PRE-" + id,
		"estado":               "A",
		"cliente_id":           "C1",
		"cliente_descripcion":  "Cliente Uno",
		"vendedor_id":          "V1",
		"vendedor_descripcion": "Vendedor Uno",
		"articulo_id":          "ART1",
		"articulo_descripcion": "Articulo Uno",
		"cantidad":             1,
		"precio":               100,
		"importe_item":         100,
		"importe_total":        100,
		"costo":                60,
	}
}

// SequentialRows builds count single-item rows with ids prefix+%06d
// starting at first, all dated fecha.
func SequentialRows(prefix string, first, count int, fecha string) []map[string]any {
	rows := make([]map[string]any, 0, count)
	for i := 0; i < count; i++ {
		rows = append(rows, Row(fmt.Sprintf("%s%06d", prefix, first+i), 1, fecha))
	}
	return rows
}
