// Package client provides the HTTP client for the upstream presupuesto_detalle
// web service: query building, response decoding and error classification.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/Sternrassler/presupuesto-detalle/pkg/presupuesto"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Prometheus metrics for upstream calls.
var (
	upstreamRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "presupuesto_upstream_requests_total",
		Help: "Total upstream requests by kind and status",
	}, []string{"kind", "status"})

	upstreamRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "presupuesto_upstream_request_duration_seconds",
		Help:    "Upstream request duration in seconds by kind",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
	}, []string{"kind"})

	upstreamErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "presupuesto_upstream_errors_total",
		Help: "Total upstream errors by class",
	}, []string{"class"})
)

// ErrorClass represents a classification of upstream failures.
type ErrorClass string

const (
	// ErrorClassNetwork represents transport failures (DNS, refused, timeout).
	ErrorClassNetwork ErrorClass = "network"

	// ErrorClassStatus represents non-2xx HTTP responses.
	ErrorClassStatus ErrorClass = "status"

	// ErrorClassDecode represents bodies that are not valid JSON.
	ErrorClassDecode ErrorClass = "decode"
)

// RequestKind labels a request as a primary page fetch or a cursor probe.
type RequestKind string

const (
	KindPage  RequestKind = "page"
	KindProbe RequestKind = "probe"
)

// Servicio is the fixed service selector sent on every request.
const Servicio = "presupuesto_detalle"

// Query describes one upstream request.
type Query struct {
	FechaDesde string
	FechaHasta string
	Cantidad   int

	// Cursor is sent as "desde" when not empty.
	Cursor string

	// Extra filters (vendedor, estado, ...) passed through verbatim.
	// Empty values are skipped.
	Extra map[string]string

	// Kind is only used for logging and metrics.
	Kind RequestKind
}

// reservedParams are owned by the pagination loop and never taken from Extra.
var reservedParams = map[string]bool{
	"servicio":    true,
	"fecha_desde": true,
	"fecha_hasta": true,
	"cantidad":    true,
	"desde":       true,
}

// Values encodes the query parameters.
func (q Query) Values() url.Values {
	v := url.Values{}
	v.Set("servicio", Servicio)
	v.Set("fecha_desde", q.FechaDesde)
	v.Set("fecha_hasta", q.FechaHasta)
	v.Set("cantidad", strconv.Itoa(q.Cantidad))
	if q.Cursor != "" {
		v.Set("desde", q.Cursor)
	}
	for key, value := range q.Extra {
		if value == "" || reservedParams[key] {
			continue
		}
		v.Set(key, value)
	}
	return v
}

// Config holds the client configuration.
type Config struct {
	// BaseURL of the upstream web service, e.g. http://host/s/ws
	BaseURL string

	// UserAgent header sent upstream
	UserAgent string

	// Timeout per upstream request
	Timeout time.Duration
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		BaseURL:   "http://janune.bgs.com.ar/s/ws",
		UserAgent: "presupuesto-detalle/0.1.0",
		Timeout:   30 * time.Second,
	}
}

// Client calls the upstream presupuesto_detalle service.
type Client struct {
	httpClient *http.Client
	baseURL    *url.URL
	config     Config
	logger     zerolog.Logger
}

// New creates a new upstream client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base url is required")
	}

	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("base url must be http or https (got %q)", cfg.BaseURL)
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		baseURL: base,
		config:  cfg,
		logger:  log.With().Str("component", "upstream-client").Logger(),
	}, nil
}

// URL returns the full request URL for q. Query parameters already present
// on the base URL are kept.
func (c *Client) URL(q Query) string {
	u := *c.baseURL
	values := u.Query()
	for key, vals := range q.Values() {
		values[key] = vals
	}
	u.RawQuery = values.Encode()
	return u.String()
}

// FetchPage performs one GET against the upstream service and returns the
// decoded rows. A missing or non-array "data" field yields an empty page.
// Failures are returned as *UpstreamError and are never retried.
func (c *Client) FetchPage(ctx context.Context, q Query) ([]presupuesto.Row, error) {
	kind := string(q.Kind)
	if kind == "" {
		kind = string(KindPage)
	}

	startTime := time.Now()
	defer func() {
		upstreamRequestDuration.WithLabelValues(kind).Observe(time.Since(startTime).Seconds())
	}()

	target := c.URL(q)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if c.config.UserAgent != "" {
		req.Header.Set("User-Agent", c.config.UserAgent)
	}
	req.Header.Set("Accept", "application/json")

	c.logger.Debug().
		Str("kind", kind).
		Str("url", target).
		Msg("Executing upstream request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		upstreamErrorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		upstreamRequestsTotal.WithLabelValues(kind, "network_error").Inc()
		c.logger.Error().Err(err).Str("url", target).Msg("Upstream request failed")
		return nil, &UpstreamError{
			StatusCode: http.StatusBadGateway,
			ErrorClass: ErrorClassNetwork,
			Message:    "could not reach upstream service",
			Err:        err,
		}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		upstreamErrorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		upstreamRequestsTotal.WithLabelValues(kind, "network_error").Inc()
		return nil, &UpstreamError{
			StatusCode: resp.StatusCode,
			ErrorClass: ErrorClassNetwork,
			Message:    "read upstream body",
			Err:        err,
		}
	}

	upstreamRequestsTotal.WithLabelValues(kind, strconv.Itoa(resp.StatusCode)).Inc()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		upstreamErrorsTotal.WithLabelValues(string(ErrorClassStatus)).Inc()
		c.logger.Warn().
			Str("url", target).
			Int("status", resp.StatusCode).
			Msg("Upstream returned non-2xx status")
		return nil, &UpstreamError{
			StatusCode: resp.StatusCode,
			ErrorClass: ErrorClassStatus,
			Message:    fmt.Sprintf("HTTP %d calling upstream service", resp.StatusCode),
			Body:       truncateBody(body),
		}
	}

	rows, err := decodePage(body)
	if err != nil {
		upstreamErrorsTotal.WithLabelValues(string(ErrorClassDecode)).Inc()
		c.logger.Warn().Err(err).Str("url", target).Msg("Invalid upstream response")
		return nil, &UpstreamError{
			StatusCode: resp.StatusCode,
			ErrorClass: ErrorClassDecode,
			Message:    "invalid upstream response",
			Body:       truncateBody(body),
			Err:        err,
		}
	}

	return rows, nil
}

// decodePage parses a {"data": [...]} envelope. A top level array is an
// empty page; null or a scalar is an error. Elements that are not objects
// decode to a zero Row so the page length still matches upstream.
func decodePage(body []byte) ([]presupuesto.Row, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, nil
	}

	if !json.Valid(trimmed) {
		return nil, fmt.Errorf("decode json: body is not a valid JSON document")
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()

	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode json: %w", err)
	}

	var envelope map[string]any
	switch top := doc.(type) {
	case map[string]any:
		envelope = top
	case []any:
		return nil, nil
	case nil:
		return nil, fmt.Errorf("decode json: expected an object, got null")
	default:
		return nil, fmt.Errorf("decode json: expected an object, got %T", top)
	}
	items, ok := envelope["data"].([]any)
	if !ok {
		return nil, nil
	}

	rows := make([]presupuesto.Row, 0, len(items))
	for _, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			rows = append(rows, presupuesto.Row{})
			continue
		}
		rows = append(rows, presupuesto.FromRaw(obj))
	}
	return rows, nil
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}
