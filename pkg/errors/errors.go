// Package errors defines the sentinel errors shared across the search service
// and maps them onto HTTP status codes.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrSourceUnavailable means the document source could not be read. The
	// index build that hit it is abandoned; callers may retry later.
	ErrSourceUnavailable = errors.New("document source unavailable")
	// ErrLookupMiss means a document ID did not resolve to any document. IDs
	// always originate from the index, so this is an internal invariant
	// violation rather than a user error.
	ErrLookupMiss     = errors.New("document id not found")
	ErrIndexNotReady  = errors.New("index not ready")
	ErrInvalidInput   = errors.New("invalid input")
	ErrRateLimited    = errors.New("rate limit exceeded")
	ErrTimeout        = errors.New("operation timed out")
	ErrInternal       = errors.New("internal error")
	ErrCacheDisabled  = errors.New("cache disabled")
	ErrReloadInFlight = errors.New("index reload already in progress")
	// ErrIdempotencyConflict means an ingest reused a key for different content.
	ErrIdempotencyConflict = errors.New("idempotency key conflict")
)

type AppError struct {
	Err        error
	Message    string
	StatusCode int
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(sentinel error, statusCode int, message string) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    message,
		StatusCode: statusCode,
	}
}

func Newf(sentinel error, statusCode int, format string, args ...any) *AppError {
	return New(sentinel, statusCode, fmt.Sprintf(format, args...))
}

// Is reports whether any error in err's chain matches target. It is re-exported
// so callers importing this package under the name "errors" keep errors.Is.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As is the re-export of the standard errors.As.
func As(err error, target any) bool {
	return errors.As(err, target)
}

func HTTPStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}

	switch {
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, ErrReloadInFlight), errors.Is(err, ErrIdempotencyConflict):
		return http.StatusConflict
	case errors.Is(err, ErrSourceUnavailable), errors.Is(err, ErrIndexNotReady),
		errors.Is(err, ErrCacheDisabled):
		return http.StatusServiceUnavailable
	case errors.Is(err, ErrTimeout):
		return http.StatusGatewayTimeout
	default:
		// ErrLookupMiss lands here on purpose: it is a server-side bug.
		return http.StatusInternalServerError
	}
}
