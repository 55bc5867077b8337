// Package api exposes the paginated fetch over a local HTTP/JSON surface:
// the raw /api/presupuesto_detalle endpoint and the dashboard report,
// summary and export endpoints under /api/presupuesto-detalle.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/Sternrassler/presupuesto-detalle/pkg/cache"
	"github.com/Sternrassler/presupuesto-detalle/pkg/logging"
	"github.com/Sternrassler/presupuesto-detalle/pkg/pagination"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

var apiRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "presupuesto_api_requests_total",
	Help: "Total API requests by route and status",
}, []string{"route", "status"})

// RequestIDHeader carries the per-request id in both directions.
const RequestIDHeader = "X-Request-ID"

// Fetcher is implemented by *pagination.Fetcher.
type Fetcher interface {
	Fetch(ctx context.Context, req pagination.Request) (*pagination.Result, error)
}

// ResultCache is implemented by *cache.Manager.
type ResultCache interface {
	GetJSON(ctx context.Context, key cache.CacheKey, v any) error
	SetJSON(ctx context.Context, key cache.CacheKey, v any, ttl time.Duration) error
}

// Config holds server configuration.
type Config struct {
	// MaxPages is reported in the report summary line
	MaxPages int

	// CacheTTL enables the result cache when > 0 and a cache is set
	CacheTTL time.Duration
}

// Server serves the API routes.
type Server struct {
	fetcher Fetcher
	cache   ResultCache
	config  Config
	logger  zerolog.Logger
	now     func() time.Time
}

// NewServer creates a server without result cache.
func NewServer(fetcher Fetcher, config Config) *Server {
	if config.MaxPages <= 0 {
		config.MaxPages = pagination.DefaultConfig().MaxPages
	}
	return &Server{
		fetcher: fetcher,
		config:  config,
		logger:  logging.NewLogger("api"),
		now:     time.Now,
	}
}

// SetCache enables the result cache. A nil cache disables it.
func (s *Server) SetCache(c ResultCache) {
	s.cache = c
}

// Register adds the API routes and middleware to router.
func (s *Server) Register(router *mux.Router) {
	api := router.PathPrefix("/api").Subrouter()
	api.Use(s.requestID, s.instrument, cors)

	api.HandleFunc("/presupuesto_detalle", s.handleDetalle)
	api.HandleFunc("/presupuesto-detalle", s.handleReport)
	api.HandleFunc("/presupuesto-detalle/resumen", s.handleSummary)
	api.HandleFunc("/presupuesto-detalle/export.csv", s.handleExportCSV)
	api.HandleFunc("/presupuesto-detalle/export.xlsx", s.handleExportXLSX)
}

// Router returns a new router with the API routes registered.
func (s *Server) Router() *mux.Router {
	router := mux.NewRouter()
	s.Register(router)
	return router
}

// cachedFetch serves the fetch result from the result cache when enabled.
// Cache failures are logged and fall through to a live fetch; failed
// fetches are never cached.
func (s *Server) cachedFetch(ctx context.Context, req pagination.Request, key cache.CacheKey, logger zerolog.Logger) (*pagination.Result, error) {
	enabled := s.cache != nil && s.config.CacheTTL > 0

	if enabled {
		var cached pagination.Result
		err := s.cache.GetJSON(ctx, key, &cached)
		if err == nil {
			logger.Debug().Str("key", key.String()).Msg("Result cache hit")
			return &cached, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			logger.Warn().Err(err).Str("key", key.String()).Msg("Result cache read failed")
		}
	}

	result, err := s.fetcher.Fetch(ctx, req)
	if err != nil {
		return nil, err
	}

	if enabled {
		if err := s.cache.SetJSON(ctx, key, result, s.config.CacheTTL); err != nil {
			logger.Warn().Err(err).Str("key", key.String()).Msg("Result cache write failed")
		}
	}
	return result, nil
}

type ctxKey int

const requestIDKey ctxKey = iota

// RequestIDFromContext returns the id assigned by the request id middleware.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

func (s *Server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.New().String()
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey, id)))
	})
}

// cors allows any origin. Preflight requests get 200 with an empty body.
func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, "+RequestIDHeader)
		w.Header().Set("Access-Control-Expose-Headers", RequestIDHeader+", Content-Disposition")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route := r.URL.Path
		if current := mux.CurrentRoute(r); current != nil {
			if tmpl, err := current.GetPathTemplate(); err == nil {
				route = tmpl
			}
		}

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r)

		apiRequestsTotal.WithLabelValues(route, strconv.Itoa(rec.status)).Inc()
		s.logger.Debug().
			Str("request_id", RequestIDFromContext(r.Context())).
			Str("method", r.Method).
			Str("route", route).
			Int("status", rec.status).
			Dur("duration", time.Since(start)).
			Msg("Request served")
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
