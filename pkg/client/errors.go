package client

import (
	"fmt"
)

// MaxErrorBodyBytes bounds the upstream body kept on an UpstreamError.
const MaxErrorBodyBytes = 800

// UpstreamError represents a failed call to the presupuesto_detalle service:
// a network failure, a non-2xx status or a body that is not valid JSON.
type UpstreamError struct {
	StatusCode int
	ErrorClass ErrorClass
	Message    string
	Body       string
	Err        error
}

// Error implements the error interface.
func (e *UpstreamError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("upstream %s error (status %d): %s: %v",
			e.ErrorClass, e.StatusCode, e.Message, e.Err)
	}
	return fmt.Sprintf("upstream %s error (status %d): %s",
		e.ErrorClass, e.StatusCode, e.Message)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// truncateBody keeps at most MaxErrorBodyBytes of an upstream body.
func truncateBody(body []byte) string {
	if len(body) > MaxErrorBodyBytes {
		return string(body[:MaxErrorBodyBytes])
	}
	return string(body)
}
