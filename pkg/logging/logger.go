// Package logging provides structured logging configuration using zerolog.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LogLevel represents the logging level.
type LogLevel string

const (
	// LevelDebug logs debug messages and above. Execution log entries of
	// every fetch are mirrored at this level.
	LevelDebug LogLevel = "debug"

	// LevelInfo logs info messages and above.
	LevelInfo LogLevel = "info"

	// LevelWarn logs warning messages and above.
	LevelWarn LogLevel = "warn"

	// LevelError logs error messages only.
	LevelError LogLevel = "error"
)

// Config holds logger configuration.
type Config struct {
	// Level is the minimum log level to output.
	Level LogLevel

	// Pretty enables human-readable console output (default: false for JSON).
	Pretty bool

	// Output is the writer to output logs to (default: os.Stderr).
	Output io.Writer

	// Service is added as the "service" field when not empty.
	Service string
}

// DefaultConfig returns a default logger configuration.
func DefaultConfig() Config {
	return Config{
		Level:   LevelInfo,
		Pretty:  false,
		Output:  os.Stderr,
		Service: "presupuesto-detalle",
	}
}

// Setup configures the global zerolog logger.
func Setup(cfg Config) zerolog.Logger {
	zerolog.SetGlobalLevel(parseLevel(cfg.Level))

	output := cfg.Output
	if output == nil {
		output = os.Stderr
	}
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{Out: output}
	}

	ctx := zerolog.New(output).With().Timestamp()
	if cfg.Service != "" {
		ctx = ctx.Str("service", cfg.Service)
	}
	logger := ctx.Logger()

	log.Logger = logger

	return logger
}

// ParseLevel converts a LOG_LEVEL value. Unknown values fall back to info.
func ParseLevel(value string) LogLevel {
	level := LogLevel(strings.ToLower(strings.TrimSpace(value)))
	switch level {
	case LevelDebug, LevelInfo, LevelWarn, LevelError:
		return level
	case "warning":
		return LevelWarn
	default:
		return LevelInfo
	}
}

// parseLevel converts LogLevel to zerolog.Level.
func parseLevel(level LogLevel) zerolog.Level {
	switch strings.ToLower(string(level)) {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// NewLogger creates a new logger with the given component name.
func NewLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// WithRequestID returns a child logger tagged with request_id.
func WithRequestID(logger zerolog.Logger, requestID string) zerolog.Logger {
	if requestID == "" {
		return logger
	}
	return logger.With().Str("request_id", requestID).Logger()
}

// Log Level Guidelines:
//
// Debug: Detailed information for debugging
//   - Execution log entries (URL, INFO, PAGE) of every fetch
//   - Upstream request URLs
//   - Cache hit/miss per key
//
// Info: Normal operation events
//   - Completed fetches (rows, pages, probes, elapsed)
//   - Server startup/shutdown
//
// Warn: Warning conditions that don't prevent operation
//   - Non-2xx or malformed upstream responses
//   - Cache errors (request continues without cache)
//   - Invalid environment values replaced by defaults
//
// Error: Error conditions requiring attention
//   - Upstream unreachable
//   - Server failures
//
// Context Fields:
//   - component: emitting package (upstream-client, pagination, api)
//   - request_id: X-Request-ID of the API call
//   - url: upstream request URL
//   - status: upstream HTTP status code
//   - pages, probes, rows: fetch counters
//   - elapsed: fetch duration
