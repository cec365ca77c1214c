package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatusCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"invalid input", fmt.Errorf("parsing max_errors: %w", ErrInvalidInput), http.StatusBadRequest},
		{"rate limited", ErrRateLimited, http.StatusTooManyRequests},
		{"source unavailable", fmt.Errorf("reload: %w", ErrSourceUnavailable), http.StatusServiceUnavailable},
		{"index not ready", ErrIndexNotReady, http.StatusServiceUnavailable},
		{"lookup miss is a server bug", fmt.Errorf("id 7: %w", ErrLookupMiss), http.StatusInternalServerError},
		{"timeout", ErrTimeout, http.StatusGatewayTimeout},
		{"reload in flight", ErrReloadInFlight, http.StatusConflict},
		{"idempotency conflict", fmt.Errorf("ingest: %w", ErrIdempotencyConflict), http.StatusConflict},
		{"unknown", fmt.Errorf("boom"), http.StatusInternalServerError},
		{"app error wins", New(ErrLookupMiss, http.StatusTeapot, "odd"), http.StatusTeapot},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatusCode(tt.err))
		})
	}
}

func TestAppErrorUnwrap(t *testing.T) {
	err := Newf(ErrLookupMiss, http.StatusInternalServerError, "document %d", 12)

	assert.Equal(t, "document id not found: document 12", err.Error())
	assert.True(t, Is(err, ErrLookupMiss))
	assert.False(t, Is(err, ErrSourceUnavailable))
}
