package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/Sternrassler/presupuesto-detalle/pkg/api"
	"github.com/Sternrassler/presupuesto-detalle/pkg/cache"
	"github.com/Sternrassler/presupuesto-detalle/pkg/client"
	"github.com/Sternrassler/presupuesto-detalle/pkg/logging"
	"github.com/Sternrassler/presupuesto-detalle/pkg/metrics"
	"github.com/Sternrassler/presupuesto-detalle/pkg/pagination"
	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// config is the process configuration read from the environment.
type config struct {
	BaseURL     string
	MaxPages    int
	PageSize    int
	PageDelay   time.Duration
	HTTPTimeout time.Duration
	Port        string
	LogLevel    logging.LogLevel
	LogPretty   bool
	RedisURL    string
	CacheTTL    time.Duration
}

func loadConfig() config {
	defaults := pagination.DefaultConfig()
	return config{
		BaseURL:     getEnv("PRESUPUESTOS_BASE_URL", client.DefaultConfig().BaseURL),
		MaxPages:    getEnvInt("PRESUPUESTOS_MAX_PAGES", defaults.MaxPages),
		PageSize:    getEnvInt("PRESUPUESTOS_PAGE_SIZE", defaults.PageSize),
		PageDelay:   getEnvDuration("PRESUPUESTOS_PAGE_DELAY", defaults.PageDelay),
		HTTPTimeout: getEnvDuration("PRESUPUESTOS_HTTP_TIMEOUT", client.DefaultConfig().Timeout),
		Port:        getEnv("PORT", "3000"),
		LogLevel:    logging.ParseLevel(getEnv("LOG_LEVEL", "info")),
		LogPretty:   getEnvBool("LOG_PRETTY", false),
		RedisURL:    getEnv("REDIS_URL", ""),
		CacheTTL:    getEnvDuration("RESULT_CACHE_TTL", 0),
	}
}

func main() {
	// A missing .env is fine; the environment alone is enough.
	envErr := godotenv.Load()

	cfg := loadConfig()

	logCfg := logging.DefaultConfig()
	logCfg.Level = cfg.LogLevel
	logCfg.Pretty = cfg.LogPretty
	logging.Setup(logCfg)

	if envErr != nil {
		log.Debug().Err(envErr).Msg("No .env file loaded")
	}

	upstream, err := client.New(client.Config{
		BaseURL:   cfg.BaseURL,
		UserAgent: client.DefaultConfig().UserAgent,
		Timeout:   cfg.HTTPTimeout,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create upstream client")
	}

	fetcher := pagination.NewFetcher(upstream, pagination.Config{
		MaxPages:  cfg.MaxPages,
		PageSize:  cfg.PageSize,
		PageDelay: cfg.PageDelay,
	})

	server := api.NewServer(fetcher, api.Config{
		MaxPages: fetcher.Config().MaxPages,
		CacheTTL: cfg.CacheTTL,
	})

	var readiness pinger
	if cfg.RedisURL != "" {
		redisClient, err := newRedisClient(cfg.RedisURL)
		if err != nil {
			log.Fatal().Err(err).Msg("Invalid REDIS_URL")
		}
		defer redisClient.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := redisClient.Ping(ctx).Err(); err != nil {
			log.Warn().Err(err).Msg("Redis not reachable at startup, result cache will retry per request")
		}
		cancel()

		manager := cache.NewManager(redisClient)
		server.SetCache(manager)
		readiness = manager
		log.Info().Dur("ttl", cfg.CacheTTL).Msg("Result cache configured")
	}

	router := newRouter(server, readiness)

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Info().
			Str("addr", httpServer.Addr).
			Str("base_url", cfg.BaseURL).
			Int("max_pages", cfg.MaxPages).
			Int("page_size", cfg.PageSize).
			Dur("page_delay", cfg.PageDelay).
			Msg("Starting presupuesto API server")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Graceful shutdown failed")
	}
}

// pinger is satisfied by *cache.Manager.
type pinger interface {
	Ping(ctx context.Context) error
}

func newRouter(server *api.Server, p pinger) *mux.Router {
	router := mux.NewRouter()
	router.HandleFunc("/health", healthHandler).Methods(http.MethodGet)
	router.HandleFunc("/ready", readyHandler(p)).Methods(http.MethodGet)
	router.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)
	server.Register(router)
	return router
}

// newRedisClient accepts a redis:// URL or a bare host:port address.
func newRedisClient(redisURL string) (*redis.Client, error) {
	if strings.Contains(redisURL, "://") {
		opts, err := redis.ParseURL(redisURL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		return redis.NewClient(opts), nil
	}
	return redis.NewClient(&redis.Options{Addr: redisURL}), nil
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "OK")
}

// readyHandler reports 503 when the configured Redis cannot be pinged.
// Without Redis the service is always ready.
func readyHandler(p pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if p != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := p.Ping(ctx); err != nil {
				log.Warn().Err(err).Msg("Readiness check failed")
				http.Error(w, "Redis unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "OK")
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	value := getEnv(key, "")
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil || n <= 0 {
		log.Warn().Str("key", key).Str("value", value).Int("default", defaultValue).Msg("Invalid integer, using default")
		return defaultValue
	}
	return n
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := getEnv(key, "")
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil || d < 0 {
		log.Warn().Str("key", key).Str("value", value).Dur("default", defaultValue).Msg("Invalid duration, using default")
		return defaultValue
	}
	return d
}

func getEnvBool(key string, defaultValue bool) bool {
	value := getEnv(key, "")
	if value == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return b
}
