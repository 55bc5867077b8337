package api

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/Sternrassler/presupuesto-detalle/pkg/cache"
	"github.com/Sternrassler/presupuesto-detalle/pkg/client"
	"github.com/Sternrassler/presupuesto-detalle/pkg/logging"
	"github.com/Sternrassler/presupuesto-detalle/pkg/pagination"
	"github.com/Sternrassler/presupuesto-detalle/pkg/presupuesto"
	"github.com/Sternrassler/presupuesto-detalle/pkg/report"
	"github.com/rs/zerolog"
)

// reportCacheEndpoint is shared by the report, summary and export routes,
// which all start from the same fetch.
const reportCacheEndpoint = "/api/presupuesto-detalle"

// ReportResponse is the success body of /api/presupuesto-detalle.
type ReportResponse struct {
	FechaDesde     string                `json:"fechaDesde"`
	FechaHasta     string                `json:"fechaHasta"`
	Resumen        string                `json:"resumen"`
	Metrics        report.Totals         `json:"metrics"`
	Totals         report.Totals         `json:"totals"`
	Rows           []presupuesto.Row     `json:"rows"`
	Log            []pagination.LogEntry `json:"log"`
	TotalRecibidas int                   `json:"totalRecibidas"`
	Elapsed        float64               `json:"elapsed"`
	Filters        report.Filters        `json:"filters"`
	FilterOptions  report.FilterOptions  `json:"filterOptions"`
}

// ErrorResponse is the error body of the report routes.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// reportQuery holds the parsed parameters shared by the report routes.
type reportQuery struct {
	rng     presupuesto.DateRange
	filters report.Filters
}

func (s *Server) parseReportQuery(r *http.Request) (reportQuery, error) {
	q := r.URL.Query()
	rng, err := presupuesto.NewDateRange(q.Get("fecha_desde"), q.Get("fecha_hasta"), s.now())
	if err != nil {
		return reportQuery{}, err
	}
	return reportQuery{
		rng: rng,
		filters: report.Filters{
			Vendedor: strings.TrimSpace(q.Get("vendedor")),
			Estado:   strings.TrimSpace(q.Get("estado")),
			Cliente:  strings.TrimSpace(q.Get("cliente")),
			Articulo: strings.TrimSpace(q.Get("articulo")),
		},
	}, nil
}

// loadReport validates the query and fetches its rows. Vendedor and estado
// are sent upstream; cliente and articulo are local filters only.
func (s *Server) loadReport(w http.ResponseWriter, r *http.Request) (reportQuery, *pagination.Result, bool) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, ErrorResponse{Error: "method not allowed"})
		return reportQuery{}, nil, false
	}

	rq, err := s.parseReportQuery(r)
	if err != nil {
		s.writeReportError(w, err, s.logger)
		return reportQuery{}, nil, false
	}

	requestID := RequestIDFromContext(r.Context())
	req := pagination.Request{
		FechaDesde: rq.rng.Desde,
		FechaHasta: rq.rng.Hasta,
		Extra: map[string]string{
			"vendedor": rq.filters.Vendedor,
			"estado":   rq.filters.Estado,
		},
		RequestID: requestID,
	}
	key := cache.CacheKey{
		Endpoint: reportCacheEndpoint,
		Query: url.Values{
			"fecha_desde": {rq.rng.Desde},
			"fecha_hasta": {rq.rng.Hasta},
			"vendedor":    {rq.filters.Vendedor},
			"estado":      {rq.filters.Estado},
		},
	}

	logger := logging.WithRequestID(s.logger, requestID)
	result, err := s.cachedFetch(r.Context(), req, key, logger)
	if err != nil {
		s.writeReportError(w, err, logger)
		return reportQuery{}, nil, false
	}
	return rq, result, true
}

// writeReportError maps validation errors to 400 and upstream errors to
// 502 with the truncated upstream body as details.
func (s *Server) writeReportError(w http.ResponseWriter, err error, logger zerolog.Logger) {
	var vErr *presupuesto.ValidationError
	if errors.As(err, &vErr) {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: vErr.Message})
		return
	}

	logger.Error().Err(err).Msg("Report fetch failed")

	var upErr *client.UpstreamError
	if errors.As(err, &upErr) {
		writeJSON(w, http.StatusBadGateway, ErrorResponse{Error: upErr.Message, Details: upErr.Body})
		return
	}
	writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	rq, result, ok := s.loadReport(w, r)
	if !ok {
		return
	}

	filtered := report.ApplyFilters(result.Rows, rq.filters)
	if filtered == nil {
		filtered = []presupuesto.Row{}
	}

	writeJSON(w, http.StatusOK, ReportResponse{
		FechaDesde: rq.rng.Desde,
		FechaHasta: rq.rng.Hasta,
		Resumen: fmt.Sprintf("DETALLE | %s → %s | pages<=%d | received=%d | rows=%d | t=%.1fs",
			rq.rng.Desde, rq.rng.Hasta, s.config.MaxPages, result.TotalReceived, len(result.Rows), result.ElapsedSeconds()),
		Metrics:        report.BuildTotals(filtered),
		Totals:         report.BuildTotals(result.Rows),
		Rows:           filtered,
		Log:            result.Log,
		TotalRecibidas: result.TotalReceived,
		Elapsed:        result.ElapsedSeconds(),
		Filters:        rq.filters,
		FilterOptions:  report.BuildFilterOptions(result.Rows),
	})
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	rq, result, ok := s.loadReport(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, report.Summarize(report.ApplyFilters(result.Rows, rq.filters)))
}

func (s *Server) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	rq, result, ok := s.loadReport(w, r)
	if !ok {
		return
	}

	items := report.EnrichAll(report.ApplyFilters(result.Rows, rq.filters))
	buf := &bytes.Buffer{}
	if err := report.WriteCSV(buf, items); err != nil {
		s.writeReportError(w, err, s.logger)
		return
	}
	writeAttachment(w, "text/csv; charset=utf-8", exportFilename(rq.rng, "csv"), buf.Bytes())
}

func (s *Server) handleExportXLSX(w http.ResponseWriter, r *http.Request) {
	rq, result, ok := s.loadReport(w, r)
	if !ok {
		return
	}

	items := report.EnrichAll(report.ApplyFilters(result.Rows, rq.filters))
	buf := &bytes.Buffer{}
	if err := report.WriteXLSX(buf, items, report.BuildHeads(items)); err != nil {
		s.writeReportError(w, err, s.logger)
		return
	}
	writeAttachment(w, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", exportFilename(rq.rng, "xlsx"), buf.Bytes())
}

func exportFilename(rng presupuesto.DateRange, ext string) string {
	return fmt.Sprintf("presupuestos_%s_%s.%s", rng.Desde, rng.Hasta, ext)
}

func writeAttachment(w http.ResponseWriter, contentType, filename string, body []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}
