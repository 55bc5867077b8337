package pagination

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Level classifies an execution log entry.
type Level string

const (
	// LevelURL records an upstream request URL.
	LevelURL Level = "URL"

	// LevelInfo records row counts.
	LevelInfo Level = "INFO"

	// LevelPage records pagination decisions: end of data, repeated
	// cursors, cursor bumps.
	LevelPage Level = "PAGE"
)

// LogEntry is one line of the audit trail returned with every fetch.
type LogEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Level     Level     `json:"level"`
	Message   string    `json:"message"`
}

// ExecutionLog collects the entries of a single Fetch call and mirrors them
// to zerolog at debug level.
type ExecutionLog struct {
	entries []LogEntry
	logger  zerolog.Logger
	now     func() time.Time
}

// NewExecutionLog creates an empty log.
func NewExecutionLog(logger zerolog.Logger) *ExecutionLog {
	return &ExecutionLog{
		logger: logger,
		now:    time.Now,
	}
}

// Add appends a formatted entry.
func (l *ExecutionLog) Add(level Level, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	l.entries = append(l.entries, LogEntry{
		Timestamp: l.now().UTC(),
		Level:     level,
		Message:   msg,
	})
	l.logger.Debug().Str("level_tag", string(level)).Msg(msg)
}

// Entries returns the entries in insertion order.
func (l *ExecutionLog) Entries() []LogEntry {
	return l.entries
}
