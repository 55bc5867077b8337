package api

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/Sternrassler/presupuesto-detalle/pkg/cache"
	"github.com/Sternrassler/presupuesto-detalle/pkg/logging"
	"github.com/Sternrassler/presupuesto-detalle/pkg/pagination"
	"github.com/Sternrassler/presupuesto-detalle/pkg/presupuesto"
)

// DetalleResponse is the success body of /api/presupuesto_detalle.
type DetalleResponse struct {
	OK       bool              `json:"ok"`
	From     string            `json:"from"`
	To       string            `json:"to"`
	Received int               `json:"received"`
	Returned int               `json:"returned"`
	Data     []presupuesto.Row `json:"data"`
}

type detalleError struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}

// handleDetalle serves GET /api/presupuesto_detalle?from=&to=[&maxPages=][&pageSize=].
// to defaults to from. Invalid input is a 400, any fetch failure a 500.
func (s *Server) handleDetalle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, detalleError{Error: "method not allowed"})
		return
	}

	q := r.URL.Query()
	rng, err := detalleRange(q.Get("from"), q.Get("to"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, detalleError{Error: err.Error()})
		return
	}

	requestID := RequestIDFromContext(r.Context())
	req := pagination.Request{
		FechaDesde: rng.Desde,
		FechaHasta: rng.Hasta,
		MaxPages:   positiveInt(q.Get("maxPages")),
		PageSize:   positiveInt(q.Get("pageSize")),
		RequestID:  requestID,
	}
	key := cache.CacheKey{
		Endpoint: r.URL.Path,
		Query: url.Values{
			"from":     {rng.Desde},
			"to":       {rng.Hasta},
			"maxPages": {strconv.Itoa(req.MaxPages)},
			"pageSize": {strconv.Itoa(req.PageSize)},
		},
	}

	logger := logging.WithRequestID(s.logger, requestID)
	result, err := s.cachedFetch(r.Context(), req, key, logger)
	if err != nil {
		status := http.StatusInternalServerError
		var vErr *presupuesto.ValidationError
		if errors.As(err, &vErr) {
			status = http.StatusBadRequest
		} else {
			logger.Error().Err(err).Msg("Fetch failed")
		}
		writeJSON(w, status, detalleError{Error: err.Error()})
		return
	}

	rows := result.Rows
	if rows == nil {
		rows = []presupuesto.Row{}
	}
	writeJSON(w, http.StatusOK, DetalleResponse{
		OK:       true,
		From:     result.Range.Desde,
		To:       result.Range.Hasta,
		Received: result.TotalReceived,
		Returned: len(rows),
		Data:     rows,
	})
}

// detalleRange validates the from/to pair of the raw route. to defaults to
// from, and errors name the route's own parameters.
func detalleRange(from, to string) (presupuesto.DateRange, error) {
	if strings.TrimSpace(from) == "" {
		return presupuesto.DateRange{}, &presupuesto.ValidationError{
			Field:   "from",
			Message: `missing required parameter "from" (YYYY-MM-DD)`,
		}
	}
	desde, err := presupuesto.ParseDate(from, "from")
	if err != nil {
		return presupuesto.DateRange{}, err
	}

	hasta := desde
	if strings.TrimSpace(to) != "" {
		hasta, err = presupuesto.ParseDate(to, "to")
		if err != nil {
			return presupuesto.DateRange{}, err
		}
	}

	if desde > hasta {
		return presupuesto.DateRange{}, &presupuesto.ValidationError{
			Field:   "to",
			Message: "from must not be after to",
		}
	}
	return presupuesto.DateRange{Desde: desde, Hasta: hasta}, nil
}

// positiveInt parses a page override. Missing, invalid or non-positive
// values return 0 so the fetcher default applies.
func positiveInt(value string) int {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || n <= 0 {
		return 0
	}
	return n
}
