// Package validator checks ingest requests before anything is written.
package validator

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/fuzzysearch/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/fuzzysearch/internal/ingestion"
)

const (
	maxBodyLength           = 64 * 1024
	maxIdempotencyKeyLength = 255
)

// ValidationError holds one message per offending field.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	fields := make([]string, 0, len(e.Fields))
	for field := range e.Fields {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	parts := make([]string, 0, len(fields))
	for _, field := range fields {
		parts = append(parts, fmt.Sprintf("%s: %s", field, e.Fields[field]))
	}
	return strings.Join(parts, "; ")
}

// ValidateIngestRequest rejects bodies that are empty, span several lines,
// are too long, or contain nothing the tokenizer would index.
func ValidateIngestRequest(req *ingestion.IngestRequest) error {
	errs := make(map[string]string)

	body := strings.TrimSpace(req.Body)
	switch {
	case body == "":
		errs["body"] = "body is required"
	case len(req.Body) > maxBodyLength:
		errs["body"] = fmt.Sprintf("body must be at most %d bytes", maxBodyLength)
	case strings.ContainsAny(body, "\r\n"):
		errs["body"] = "body must be a single line"
	case len(tokenizer.Tokenize(body)) == 0:
		errs["body"] = "body has no searchable terms"
	}
	if len(req.IdempotencyKey) > maxIdempotencyKeyLength {
		errs["idempotency_key"] = fmt.Sprintf("idempotency key must be at most %d characters", maxIdempotencyKeyLength)
	}
	if len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}
	return nil
}
