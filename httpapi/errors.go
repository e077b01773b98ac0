package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/jonwraymond/cropadvisor/artifact"
	"github.com/jonwraymond/cropadvisor/cache"
	"github.com/jonwraymond/cropadvisor/generate"
	"github.com/jonwraymond/cropadvisor/pipeline"
	"github.com/jonwraymond/cropadvisor/resilience"
)

// ErrInvalidInput indicates a malformed request body or parameter.
var ErrInvalidInput = errors.New("httpapi: invalid input")

// ErrorCode is the machine-readable code in an ErrorDTO.
type ErrorCode string

const (
	CodeInvalidInput     ErrorCode = "invalid_input"
	CodeNotFound         ErrorCode = "not_found"
	CodeGenerationFailed ErrorCode = "generation_failed"
	CodeUnavailable      ErrorCode = "generator_unavailable"
	CodeNotConfigured    ErrorCode = "not_configured"
	CodeCancelled        ErrorCode = "cancelled"
	CodeTimeout          ErrorCode = "timeout"
	CodeInternalError    ErrorCode = "internal_error"
)

// HTTPError pairs an error with its response status and code.
type HTTPError struct {
	StatusCode int
	Code       ErrorCode
	Err        error
}

func (e *HTTPError) Error() string {
	return e.Err.Error()
}

func (e *HTTPError) Unwrap() error {
	return e.Err
}

// MapError maps a pipeline error to an HTTPError. Nil maps to nil.
func MapError(err error) *HTTPError {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, ErrInvalidInput),
		errors.Is(err, artifact.ErrUnknownKind),
		errors.Is(err, artifact.ErrMissingLocation),
		errors.Is(err, artifact.ErrMissingCrop),
		errors.Is(err, artifact.ErrSowingDateRequired),
		errors.Is(err, pipeline.ErrInvalidRetention):
		return &HTTPError{http.StatusBadRequest, CodeInvalidInput, err}

	case errors.Is(err, artifact.ErrRunNotFound):
		return &HTTPError{http.StatusNotFound, CodeNotFound, err}

	case errors.Is(err, cache.ErrNoGenerator),
		errors.Is(err, pipeline.ErrNoMergeGenerator),
		errors.Is(err, pipeline.ErrNoRunStore),
		errors.Is(err, pipeline.ErrPruneUnsupported):
		return &HTTPError{http.StatusNotImplemented, CodeNotConfigured, err}

	// The caller's own cancellation wins over the failure it caused.
	case errors.Is(err, context.Canceled):
		// 499: client closed request
		return &HTTPError{499, CodeCancelled, err}

	// Rejections and timeouts arrive wrapped as generation failures.
	case resilience.IsRejection(err):
		return &HTTPError{http.StatusServiceUnavailable, CodeUnavailable, err}

	case errors.Is(err, resilience.ErrTimeout):
		return &HTTPError{http.StatusGatewayTimeout, CodeTimeout, err}

	case errors.Is(err, generate.ErrGenerationFailed):
		return &HTTPError{http.StatusBadGateway, CodeGenerationFailed, err}

	case errors.Is(err, context.DeadlineExceeded):
		return &HTTPError{http.StatusGatewayTimeout, CodeTimeout, err}

	default:
		return &HTTPError{http.StatusInternalServerError, CodeInternalError, err}
	}
}

// WriteError writes err as an ErrorDTO with its mapped status.
func WriteError(w http.ResponseWriter, err error) {
	httpErr := MapError(err)
	if httpErr == nil {
		return
	}
	writeJSON(w, httpErr.StatusCode, ErrorDTO{
		Code:    string(httpErr.Code),
		Message: httpErr.Error(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
