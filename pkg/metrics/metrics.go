// Package metrics provides the Prometheus registry and /metrics handler.
// All metrics are defined in their respective packages (client, pagination,
// cache, api) to maintain modularity and avoid circular dependencies.
//
// This package provides documentation and reference for all available metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the default Prometheus registry.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Handler serves the metrics of the default gatherer.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Metrics Documentation
//
// Upstream Metrics (pkg/client):
//   - presupuesto_upstream_requests_total{kind, status} (Counter): Requests by kind (page, probe) and HTTP status
//   - presupuesto_upstream_request_duration_seconds{kind} (Histogram): Request duration by kind
//   - presupuesto_upstream_errors_total{class} (Counter): Errors by class (network, status, decode)
//
// Pagination Metrics (pkg/pagination):
//   - presupuesto_pagination_pages_total (Counter): Primary page fetches
//   - presupuesto_pagination_probes_total (Counter): Cursor probe fetches
//   - presupuesto_pagination_stalls_total (Counter): Repeated terminal ids and non-advancing probes
//   - presupuesto_cursor_bumps_total{result} (Counter): Cursor bumps (bumped, noop)
//   - presupuesto_fetch_rows (Histogram): Rows returned per fetch
//   - presupuesto_fetch_duration_seconds (Histogram): Duration of a complete fetch
//
// Cache Metrics (pkg/cache):
//   - presupuesto_cache_hits_total (Counter): Result cache hits
//   - presupuesto_cache_misses_total (Counter): Result cache misses
//   - presupuesto_cache_errors_total{operation} (Counter): Cache operation errors
//
// API Metrics (pkg/api):
//   - presupuesto_api_requests_total{route, status} (Counter): API requests by route template and status
//
// Example Prometheus Queries:
//
//   # Probes per page (1.0 means every page needed a probe)
//   rate(presupuesto_pagination_probes_total[1h]) / rate(presupuesto_pagination_pages_total[1h])
//
//   # Cursor bump rate
//   sum(rate(presupuesto_cursor_bumps_total{result="bumped"}[1h]))
//
//   # Upstream error rate
//   sum by (class) (rate(presupuesto_upstream_errors_total[5m]))
//
//   # P95 fetch latency
//   histogram_quantile(0.95, rate(presupuesto_fetch_duration_seconds_bucket[5m]))
//
//   # Cache Hit Rate
//   rate(presupuesto_cache_hits_total[5m]) /
//   (rate(presupuesto_cache_hits_total[5m]) + rate(presupuesto_cache_misses_total[5m]))
