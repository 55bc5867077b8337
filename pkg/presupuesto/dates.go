package presupuesto

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is the YYYY-MM-DD format used by the upstream service.
const DateLayout = "2006-01-02"

// ValidationError reports a bad or missing input parameter.
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return e.Message
}

// DateRange is an inclusive [Desde, Hasta] range of YYYY-MM-DD dates.
type DateRange struct {
	Desde string `json:"desde"`
	Hasta string `json:"hasta"`
}

// ParseDate validates a YYYY-MM-DD value. An empty value is reported as a
// missing parameter.
func ParseDate(value, field string) (string, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return "", &ValidationError{
			Field:   field,
			Message: fmt.Sprintf("missing required parameter %s", field),
		}
	}

	if len(trimmed) != len(DateLayout) {
		return "", formatError(field)
	}
	if _, err := time.Parse(DateLayout, trimmed); err != nil {
		return "", formatError(field)
	}

	return trimmed, nil
}

// NewDateRange validates desde and hasta. An empty hasta defaults to the
// date of now.
func NewDateRange(desde, hasta string, now time.Time) (DateRange, error) {
	from, err := ParseDate(desde, "fecha_desde")
	if err != nil {
		return DateRange{}, err
	}

	to := now.Format(DateLayout)
	if strings.TrimSpace(hasta) != "" {
		to, err = ParseDate(hasta, "fecha_hasta")
		if err != nil {
			return DateRange{}, err
		}
	}

	if from > to {
		return DateRange{}, &ValidationError{
			Field:   "fecha_hasta",
			Message: "fecha_desde must not be after fecha_hasta",
		}
	}

	return DateRange{Desde: from, Hasta: to}, nil
}

// Contains reports whether fecha lies inside the range. Rows with an empty
// fecha are never inside.
func (r DateRange) Contains(fecha string) bool {
	fecha = strings.TrimSpace(fecha)
	return fecha != "" && fecha >= r.Desde && fecha <= r.Hasta
}

func formatError(field string) error {
	return &ValidationError{
		Field:   field,
		Message: fmt.Sprintf("%s must use the YYYY-MM-DD format", field),
	}
}
