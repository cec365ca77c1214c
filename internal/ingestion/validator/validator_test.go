package validator

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/fuzzysearch/internal/ingestion"
)

func TestValidateIngestRequest(t *testing.T) {
	tests := []struct {
		name  string
		req   ingestion.IngestRequest
		field string
	}{
		{"valid", ingestion.IngestRequest{Body: "type 2 diabetes"}, ""},
		{"valid with key", ingestion.IngestRequest{Body: "asthma", IdempotencyKey: "k-1"}, ""},
		{"empty", ingestion.IngestRequest{Body: "   "}, "body"},
		{"multi line", ingestion.IngestRequest{Body: "asthma\nbronchitis"}, "body"},
		{"punctuation only", ingestion.IngestRequest{Body: "-- !! --"}, "body"},
		{"too long", ingestion.IngestRequest{Body: strings.Repeat("a", maxBodyLength+1)}, "body"},
		{"long key", ingestion.IngestRequest{Body: "asthma", IdempotencyKey: strings.Repeat("k", 256)}, "idempotency_key"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateIngestRequest(&tt.req)
			if tt.field == "" {
				assert.NoError(t, err)
				return
			}
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Contains(t, verr.Fields, tt.field)
		})
	}
}

func TestValidationErrorIsSorted(t *testing.T) {
	err := &ValidationError{Fields: map[string]string{"idempotency_key": "too long", "body": "required"}}
	assert.Equal(t, "body: required; idempotency_key: too long", err.Error())
}

func TestTrailingNewlineIsAllowed(t *testing.T) {
	assert.NoError(t, ValidateIngestRequest(&ingestion.IngestRequest{Body: "hypertension\n"}))
}
