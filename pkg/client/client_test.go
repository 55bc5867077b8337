package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"
)

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name        string
		config      Config
		expectError bool
		errorMsg    string
	}{
		{
			name:        "valid config",
			config:      DefaultConfig(),
			expectError: false,
		},
		{
			name:        "empty base url",
			config:      Config{},
			expectError: true,
			errorMsg:    "base url is required",
		},
		{
			name:        "unsupported scheme",
			config:      Config{BaseURL: "ftp://example.com/ws"},
			expectError: true,
			errorMsg:    `base url must be http or https (got "ftp://example.com/ws")`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := New(tt.config)

			if tt.expectError {
				if err == nil {
					t.Fatal("Expected error but got nil")
				}
				if tt.errorMsg != "" && err.Error() != tt.errorMsg {
					t.Errorf("Error message = %q, want %q", err.Error(), tt.errorMsg)
				}
				return
			}

			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if client == nil {
				t.Error("Client is nil")
			}
		})
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.BaseURL == "" {
		t.Error("BaseURL should have a default")
	}
	if cfg.Timeout <= 0 {
		t.Errorf("Timeout = %v, should be > 0", cfg.Timeout)
	}
}

func TestClient_URL(t *testing.T) {
	c, err := New(Config{BaseURL: "http://example.com/s/ws"})
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	got := c.URL(Query{
		FechaDesde: "2024-01-01",
		FechaHasta: "2024-01-31",
		Cantidad:   2000,
		Cursor:     "A000123",
		Extra:      map[string]string{"vendedor": "7", "estado": ""},
	})

	parsed, err := url.Parse(got)
	if err != nil {
		t.Fatalf("URL() returned unparsable url %q: %v", got, err)
	}
	if parsed.Path != "/s/ws" {
		t.Errorf("path = %q, want /s/ws", parsed.Path)
	}

	q := parsed.Query()
	want := map[string]string{
		"servicio":    "presupuesto_detalle",
		"fecha_desde": "2024-01-01",
		"fecha_hasta": "2024-01-31",
		"cantidad":    "2000",
		"desde":       "A000123",
		"vendedor":    "7",
	}
	for key, value := range want {
		if q.Get(key) != value {
			t.Errorf("query %s = %q, want %q", key, q.Get(key), value)
		}
	}
	if q.Has("estado") {
		t.Error("empty extra params should be skipped")
	}
}

func TestClient_URL_ExtraCannotOverrideReserved(t *testing.T) {
	c, _ := New(Config{BaseURL: "http://example.com/s/ws"})

	got := c.URL(Query{
		FechaDesde: "2024-01-01",
		FechaHasta: "2024-01-31",
		Cantidad:   10,
		Cursor:     "F000010",
		Extra: map[string]string{
			"servicio":    "otro",
			"fecha_desde": "2000-01-01",
			"fecha_hasta": "2099-12-31",
			"cantidad":    "99999",
			"desde":       "Z999999",
			"vendedor":    "7",
		},
	})

	q, _ := url.ParseQuery(strings.SplitN(got, "?", 2)[1])
	want := map[string]string{
		"servicio":    "presupuesto_detalle",
		"fecha_desde": "2024-01-01",
		"fecha_hasta": "2024-01-31",
		"cantidad":    "10",
		"desde":       "F000010",
		"vendedor":    "7",
	}
	for key, value := range want {
		if q.Get(key) != value {
			t.Errorf("query %s = %q, want %q", key, q.Get(key), value)
		}
	}

	noCursor := c.URL(Query{
		FechaDesde: "2024-01-01",
		FechaHasta: "2024-01-01",
		Cantidad:   10,
		Extra:      map[string]string{"desde": "Z999999"},
	})
	parsed, _ := url.Parse(noCursor)
	if parsed.Query().Has("desde") {
		t.Errorf("URL() = %q should not take the cursor from extra params", noCursor)
	}
}

func TestClient_URL_NoCursor(t *testing.T) {
	c, _ := New(Config{BaseURL: "http://example.com/s/ws"})

	got := c.URL(Query{FechaDesde: "2024-01-01", FechaHasta: "2024-01-01", Cantidad: 10})
	if !strings.Contains(got, "servicio=presupuesto_detalle") {
		t.Errorf("URL() = %q should select the presupuesto_detalle service", got)
	}
	parsed, _ := url.Parse(got)
	if parsed.Query().Has("desde") {
		t.Errorf("URL() = %q should not carry a cursor", got)
	}
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	c, err := New(Config{BaseURL: server.URL, UserAgent: "test/1.0", Timeout: 5 * time.Second})
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	return c
}

func TestFetchPage(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		wantRows  int
		wantClass ErrorClass
	}{
		{
			name:     "rows",
			status:   http.StatusOK,
			body:     `{"data":[{"id":"A1","item":"1","fecha":"2024-01-01"},{"id":"A1","item":"2","fecha":"2024-01-01"}]}`,
			wantRows: 2,
		},
		{
			name:     "data not an array",
			status:   http.StatusOK,
			body:     `{"data":"nothing"}`,
			wantRows: 0,
		},
		{
			name:     "data missing",
			status:   http.StatusOK,
			body:     `{"status":"ok"}`,
			wantRows: 0,
		},
		{
			name:     "empty body",
			status:   http.StatusOK,
			body:     "",
			wantRows: 0,
		},
		{
			name:     "non-object elements keep page length",
			status:   http.StatusOK,
			body:     `{"data":[1,"x",{"id":"A1"}]}`,
			wantRows: 3,
		},
		{
			name:      "malformed json",
			status:    http.StatusOK,
			body:      `{"data":[{"id":`,
			wantClass: ErrorClassDecode,
		},
		{
			name:     "top level array",
			status:   http.StatusOK,
			body:     `[]`,
			wantRows: 0,
		},
		{
			name:      "null document",
			status:    http.StatusOK,
			body:      `null`,
			wantClass: ErrorClassDecode,
		},
		{
			name:      "number document",
			status:    http.StatusOK,
			body:      `42`,
			wantClass: ErrorClassDecode,
		},
		{
			name:      "string document",
			status:    http.StatusOK,
			body:      `"oops"`,
			wantClass: ErrorClassDecode,
		},
		{
			name:      "server error",
			status:    http.StatusInternalServerError,
			body:      `boom`,
			wantClass: ErrorClassStatus,
		},
		{
			name:      "not found",
			status:    http.StatusNotFound,
			body:      `missing`,
			wantClass: ErrorClassStatus,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			})

			rows, err := c.FetchPage(context.Background(), Query{
				FechaDesde: "2024-01-01",
				FechaHasta: "2024-01-01",
				Cantidad:   10,
			})

			if tt.wantClass != "" {
				var upErr *UpstreamError
				if !errors.As(err, &upErr) {
					t.Fatalf("expected UpstreamError, got %v", err)
				}
				if upErr.ErrorClass != tt.wantClass {
					t.Errorf("ErrorClass = %q, want %q", upErr.ErrorClass, tt.wantClass)
				}
				if upErr.StatusCode != tt.status {
					t.Errorf("StatusCode = %d, want %d", upErr.StatusCode, tt.status)
				}
				if upErr.Body != tt.body {
					t.Errorf("Body = %q, want %q", upErr.Body, tt.body)
				}
				return
			}

			if err != nil {
				t.Fatalf("FetchPage() failed: %v", err)
			}
			if len(rows) != tt.wantRows {
				t.Errorf("len(rows) = %d, want %d", len(rows), tt.wantRows)
			}
		})
	}
}

func TestFetchPage_Headers(t *testing.T) {
	var userAgent, accept string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		userAgent = r.Header.Get("User-Agent")
		accept = r.Header.Get("Accept")
		w.Write([]byte(`{"data":[]}`))
	})

	if _, err := c.FetchPage(context.Background(), Query{FechaDesde: "2024-01-01", FechaHasta: "2024-01-01", Cantidad: 1}); err != nil {
		t.Fatalf("FetchPage() failed: %v", err)
	}

	if userAgent != "test/1.0" {
		t.Errorf("User-Agent = %q, want test/1.0", userAgent)
	}
	if accept != "application/json" {
		t.Errorf("Accept = %q, want application/json", accept)
	}
}

func TestFetchPage_NetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	base := server.URL
	server.Close()

	c, err := New(Config{BaseURL: base, Timeout: time.Second})
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	_, err = c.FetchPage(context.Background(), Query{FechaDesde: "2024-01-01", FechaHasta: "2024-01-01", Cantidad: 1})

	var upErr *UpstreamError
	if !errors.As(err, &upErr) {
		t.Fatalf("expected UpstreamError, got %v", err)
	}
	if upErr.ErrorClass != ErrorClassNetwork {
		t.Errorf("ErrorClass = %q, want network", upErr.ErrorClass)
	}
}

func TestFetchPage_ContextCancelled(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.Write([]byte(`{"data":[]}`))
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.FetchPage(ctx, Query{FechaDesde: "2024-01-01", FechaHasta: "2024-01-01", Cantidad: 1})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
