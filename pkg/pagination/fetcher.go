package pagination

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/Sternrassler/presupuesto-detalle/pkg/client"
	"github.com/Sternrassler/presupuesto-detalle/pkg/presupuesto"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Prometheus metrics for pagination decisions.
var (
	pagesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "presupuesto_pagination_pages_total",
		Help: "Total primary page fetches",
	})

	probesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "presupuesto_pagination_probes_total",
		Help: "Total cursor probe requests",
	})

	stallsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "presupuesto_pagination_stalls_total",
		Help: "Repeated terminal ids and non-advancing probes",
	})

	cursorBumpsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "presupuesto_cursor_bumps_total",
		Help: "Cursor bump attempts by result (bumped, noop)",
	}, []string{"result"})

	fetchRows = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "presupuesto_fetch_rows",
		Help:    "Deduplicated rows returned per fetch",
		Buckets: prometheus.ExponentialBuckets(10, 4, 8),
	})

	fetchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "presupuesto_fetch_duration_seconds",
		Help:    "Duration of a complete paginated fetch",
		Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
	})
)

// Config holds fetcher configuration.
type Config struct {
	// MaxPages bounds the number of primary page fetches per call
	MaxPages int
	// PageSize is sent upstream as "cantidad"
	PageSize int
	// PageDelay throttles the upstream between pages
	PageDelay time.Duration
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		MaxPages:  10,
		PageSize:  2000,
		PageDelay: 120 * time.Millisecond,
	}
}

// PageFetcher is implemented by the upstream client.
type PageFetcher interface {
	// FetchPage returns the raw rows of one upstream page
	FetchPage(ctx context.Context, q client.Query) ([]presupuesto.Row, error)
	// URL renders the request URL for the execution log
	URL(q client.Query) string
}

// Request describes one paginated fetch.
type Request struct {
	// FechaDesde is required (YYYY-MM-DD)
	FechaDesde string
	// FechaHasta defaults to today
	FechaHasta string
	// Extra upstream filters, sent on every request
	Extra map[string]string
	// MaxPages and PageSize override the fetcher config when > 0
	MaxPages int
	PageSize int
	// RequestID is attached to log lines
	RequestID string
}

// Result is the outcome of a successful fetch.
type Result struct {
	Range         presupuesto.DateRange `json:"range"`
	Rows          []presupuesto.Row     `json:"rows"`
	Log           []LogEntry            `json:"log"`
	TotalReceived int                   `json:"totalReceived"`
	Pages         int                   `json:"pages"`
	Probes        int                   `json:"probes"`
	Elapsed       time.Duration         `json:"elapsed"`
}

// ElapsedSeconds returns Elapsed rounded to a tenth of a second.
func (r *Result) ElapsedSeconds() float64 {
	return math.Round(r.Elapsed.Seconds()*10) / 10
}

// Fetcher walks the upstream cursor until the data ends or MaxPages is hit.
type Fetcher struct {
	fetcher PageFetcher
	config  Config
	logger  zerolog.Logger
	now     func() time.Time
	sleep   func(ctx context.Context, d time.Duration) error
}

// NewFetcher creates a new fetcher.
func NewFetcher(fetcher PageFetcher, config Config) *Fetcher {
	defaults := DefaultConfig()
	if config.MaxPages <= 0 {
		config.MaxPages = defaults.MaxPages
	}
	if config.PageSize <= 0 {
		config.PageSize = defaults.PageSize
	}
	if config.PageDelay < 0 {
		config.PageDelay = 0
	}

	return &Fetcher{
		fetcher: fetcher,
		config:  config,
		logger:  log.With().Str("component", "pagination").Logger(),
		now:     time.Now,
		sleep:   sleepContext,
	}
}

// Config returns the effective configuration.
func (f *Fetcher) Config() Config {
	return f.config
}

// state is the accumulator of one Fetch call.
type state struct {
	rng         presupuesto.DateRange
	rows        []presupuesto.Row
	seen        map[string]struct{}
	usedLastIDs map[string]struct{}
	cursor      string
	received    int
	pages       int
	probes      int
	log         *ExecutionLog
}

func newState(rng presupuesto.DateRange, execLog *ExecutionLog) *state {
	return &state{
		rng:         rng,
		seen:        make(map[string]struct{}),
		usedLastIDs: make(map[string]struct{}),
		log:         execLog,
	}
}

// accept filters raw rows by date and appends the unseen ones.
func (s *state) accept(raw []presupuesto.Row) (valid, added int) {
	for _, row := range raw {
		if !s.rng.Contains(row.Fecha) {
			continue
		}
		valid++

		key := row.Key()
		if _, ok := s.seen[key]; ok {
			continue
		}
		s.seen[key] = struct{}{}
		s.rows = append(s.rows, row)
		added++
	}
	return valid, added
}

// markLastID records a terminal id and reports whether it was seen before.
func (s *state) markLastID(id string) bool {
	if _, ok := s.usedLastIDs[id]; ok {
		return true
	}
	s.usedLastIDs[id] = struct{}{}
	return false
}

// Fetch retrieves every row of the requested range. Validation errors are
// returned as *presupuesto.ValidationError and upstream failures as
// *client.UpstreamError; in both cases no partial result is returned.
func (f *Fetcher) Fetch(ctx context.Context, req Request) (*Result, error) {
	start := f.now()

	rng, err := presupuesto.NewDateRange(req.FechaDesde, req.FechaHasta, start)
	if err != nil {
		return nil, err
	}

	maxPages := f.config.MaxPages
	if req.MaxPages > 0 {
		maxPages = req.MaxPages
	}
	pageSize := f.config.PageSize
	if req.PageSize > 0 {
		pageSize = req.PageSize
	}

	logger := f.logger.With().
		Str("request_id", req.RequestID).
		Str("fecha_desde", rng.Desde).
		Str("fecha_hasta", rng.Hasta).
		Logger()

	st := newState(rng, NewExecutionLog(logger))
	base := client.Query{
		FechaDesde: rng.Desde,
		FechaHasta: rng.Hasta,
		Cantidad:   pageSize,
		Extra:      req.Extra,
	}

	for page := 1; page <= maxPages; page++ {
		q := base
		q.Cursor = st.cursor
		q.Kind = client.KindPage

		st.log.Add(LevelURL, "P%d/1 -> %s", page, f.fetcher.URL(q))
		raw, err := f.fetcher.FetchPage(ctx, q)
		if err != nil {
			logger.Error().Err(err).Int("page", page).Msg("Page fetch failed")
			return nil, fmt.Errorf("fetch page %d: %w", page, err)
		}
		st.pages++
		pagesTotal.Inc()
		st.received += len(raw)
		st.log.Add(LevelInfo, "P%d/1 received=%d", page, len(raw))

		valid, added := st.accept(raw)
		st.log.Add(LevelInfo, "P%d/1 valid=%d new=%d accumulated=%d", page, valid, added, len(st.rows))

		if len(raw) < pageSize {
			st.log.Add(LevelPage, "P%d/1 < %d -> end of pagination", page, pageSize)
			break
		}

		lastID := raw[len(raw)-1].ID
		if lastID == "" {
			st.log.Add(LevelPage, "P%d/1 without lastId -> end of pagination", page)
			break
		}

		if st.markLastID(lastID) {
			stallsTotal.Inc()
			logger.Warn().Int("page", page).Str("last_id", lastID).Msg("Upstream repeated a terminal id")
			st.log.Add(LevelPage, "P%d/1 repeated lastId=%s -> trying alternative", page, lastID)
		}

		if page == maxPages {
			st.log.Add(LevelPage, "P%d reached max pages (%d)", page, maxPages)
			break
		}

		next, err := f.nextCursor(ctx, st, base, page, lastID, logger)
		if err != nil {
			return nil, err
		}
		st.cursor = next

		if err := f.sleep(ctx, f.config.PageDelay); err != nil {
			return nil, fmt.Errorf("page delay: %w", err)
		}
	}

	elapsed := f.now().Sub(start)
	fetchRows.Observe(float64(len(st.rows)))
	fetchDuration.Observe(elapsed.Seconds())

	logger.Info().
		Int("pages", st.pages).
		Int("probes", st.probes).
		Int("received", st.received).
		Int("rows", len(st.rows)).
		Dur("duration", elapsed).
		Msg("Fetch complete")

	return &Result{
		Range:         rng,
		Rows:          st.rows,
		Log:           st.log.Entries(),
		TotalReceived: st.received,
		Pages:         st.pages,
		Probes:        st.probes,
		Elapsed:       elapsed,
	}, nil
}

// nextCursor probes lastID and returns the cursor for the next page: lastID
// itself when the upstream advances past it, otherwise its bumped value.
func (f *Fetcher) nextCursor(ctx context.Context, st *state, base client.Query, page int, lastID string, logger zerolog.Logger) (string, error) {
	probe := base
	probe.Cursor = lastID
	probe.Kind = client.KindProbe

	st.log.Add(LevelURL, "P%d/2-test -> %s", page, f.fetcher.URL(probe))
	rows, err := f.fetcher.FetchPage(ctx, probe)
	if err != nil {
		logger.Error().Err(err).Int("page", page).Msg("Cursor probe failed")
		return "", fmt.Errorf("probe page %d: %w", page, err)
	}
	st.probes++
	probesTotal.Inc()
	st.log.Add(LevelInfo, "P%d/2-test received=%d", page, len(rows))

	if len(rows) > 0 && rows[0].ID != lastID {
		return lastID, nil
	}

	stallsTotal.Inc()
	bumped := BumpTrailingNumber(lastID)
	if bumped != lastID {
		cursorBumpsTotal.WithLabelValues("bumped").Inc()
		logger.Warn().Str("last_id", lastID).Str("cursor", bumped).Msg("Cursor not advancing, bumped")
		st.log.Add(LevelPage, "P%d cursor bumped: %s -> %s", page, lastID, bumped)
		return bumped, nil
	}

	cursorBumpsTotal.WithLabelValues("noop").Inc()
	logger.Warn().Str("last_id", lastID).Msg("Cursor not advancing and cannot be bumped")
	st.log.Add(LevelPage, "P%d could not bump %s, continuing with the same cursor (may repeat)", page, lastID)
	return lastID, nil
}

// sleepContext waits for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
