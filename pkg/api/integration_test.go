//go:build integration

package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Sternrassler/presupuesto-detalle/internal/testutil"
	"github.com/Sternrassler/presupuesto-detalle/pkg/cache"
	"github.com/Sternrassler/presupuesto-detalle/pkg/client"
	"github.com/Sternrassler/presupuesto-detalle/pkg/pagination"
	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupRedis creates a Redis container for integration testing.
func setupRedis(t *testing.T) *redis.Client {
	t.Helper()

	ctx := context.Background()
	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start Redis container: %v", err)
	}

	endpoint, err := container.Endpoint(ctx, "")
	if err != nil {
		t.Fatalf("Failed to get Redis endpoint: %v", err)
	}

	redisClient := redis.NewClient(&redis.Options{Addr: endpoint})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		t.Fatalf("Failed to connect to Redis: %v", err)
	}

	t.Cleanup(func() {
		redisClient.Close()
		container.Terminate(context.Background())
	})
	return redisClient
}

// testTransport redirects every request to the mock upstream.
type testTransport struct {
	mock *testutil.MockUpstream
}

func (t *testTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req.URL.Scheme = "http"
	req.URL.Host = strings.TrimPrefix(t.mock.URL(), "http://")
	return http.DefaultTransport.RoundTrip(req)
}

// newIntegrationServer wires the production base URL through a redirecting
// transport and a real Redis result cache.
func newIntegrationServer(t *testing.T, mock *testutil.MockUpstream, ttl time.Duration) *Server {
	t.Helper()

	c, err := client.New(client.DefaultConfig())
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	c.SetHTTPClient(&http.Client{
		Transport: &testTransport{mock: mock},
		Timeout:   30 * time.Second,
	})

	s := NewServer(pagination.NewFetcher(c, pagination.DefaultConfig()), Config{CacheTTL: ttl})
	s.SetCache(cache.NewManager(setupRedis(t)))
	return s
}

// TestFullRequestFlow tests the complete flow: cache miss → upstream → cache store → cache hit.
func TestFullRequestFlow(t *testing.T) {
	mock := testutil.NewMockUpstream()
	defer mock.Close()
	mock.SetResponse(testutil.NewRowsResponse(testutil.SequentialRows("F", 1, 5, "2024-01-01")))

	s := newIntegrationServer(t, mock, time.Minute)
	target := "/api/presupuesto-detalle?fecha_desde=2024-01-01&fecha_hasta=2024-01-01"

	w1 := serve(s, http.MethodGet, target)
	if w1.Code != http.StatusOK {
		t.Fatalf("Request 1 status = %d: %s", w1.Code, w1.Body.String())
	}
	if mock.GetRequestCount() != 1 {
		t.Errorf("After request 1: upstream requests = %d, want 1", mock.GetRequestCount())
	}
	if got := mock.Requests()[0].Get("servicio"); got != client.Servicio {
		t.Errorf("servicio = %q", got)
	}

	w2 := serve(s, http.MethodGet, target)
	if w2.Code != http.StatusOK {
		t.Fatalf("Request 2 status = %d", w2.Code)
	}
	if mock.GetRequestCount() != 1 {
		t.Errorf("After request 2: upstream requests = %d, want 1 (cache hit)", mock.GetRequestCount())
	}

	var first, second ReportResponse
	decode(t, w1, &first)
	decode(t, w2, &second)
	if len(first.Rows) != 5 || len(second.Rows) != 5 {
		t.Errorf("rows = %d/%d, want 5/5", len(first.Rows), len(second.Rows))
	}
	if len(second.Log) != len(first.Log) {
		t.Errorf("cached log has %d entries, want %d", len(second.Log), len(first.Log))
	}
}

// TestCacheExpiration tests that expired results are fetched again.
func TestCacheExpiration(t *testing.T) {
	mock := testutil.NewMockUpstream()
	defer mock.Close()
	mock.SetResponse(testutil.NewRowsResponse(testutil.SequentialRows("F", 1, 2, "2024-01-01")))

	s := newIntegrationServer(t, mock, time.Second)
	target := "/api/presupuesto_detalle?from=2024-01-01"

	serve(s, http.MethodGet, target)
	time.Sleep(1500 * time.Millisecond)
	serve(s, http.MethodGet, target)

	if mock.GetRequestCount() != 2 {
		t.Errorf("upstream requests = %d, want 2 after expiry", mock.GetRequestCount())
	}
}

// TestUpstreamFailureNotCached tests that a failed fetch is retried by the next request.
func TestUpstreamFailureNotCached(t *testing.T) {
	mock := testutil.NewMockUpstream()
	defer mock.Close()
	mock.SetResponse(testutil.NewServerErrorResponse())

	s := newIntegrationServer(t, mock, time.Minute)
	target := "/api/presupuesto-detalle?fecha_desde=2024-01-01&fecha_hasta=2024-01-01"

	if w := serve(s, http.MethodGet, target); w.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", w.Code)
	}

	mock.SetResponse(testutil.NewRowsResponse(testutil.SequentialRows("F", 1, 1, "2024-01-01")))
	w := serve(s, http.MethodGet, target)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if mock.GetRequestCount() != 2 {
		t.Errorf("upstream requests = %d, want 2", mock.GetRequestCount())
	}

	recorder := httptest.NewRecorder()
	s.Router().ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, target, nil))
	if mock.GetRequestCount() != 2 {
		t.Errorf("upstream requests = %d, want 2 (success now cached)", mock.GetRequestCount())
	}
}
