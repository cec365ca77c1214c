// Package ingestion appends documents to the PostgreSQL document table and
// asks the search service to rebuild its index from it.
package ingestion

// IngestRequest adds one document. A document is a single line of text.
type IngestRequest struct {
	Body           string `json:"body"`
	IdempotencyKey string `json:"idempotency_key,omitempty"`
}

// Reload outcomes reported in IngestResponse.
const (
	ReloadRequested = "requested"
	ReloadFailed    = "failed"
	ReloadSkipped   = "skipped"
)

// IngestResponse reports the stored row. RowID is the table's primary key;
// the index assigns its own positional IDs on the next rebuild.
type IngestResponse struct {
	RowID     int64  `json:"row_id"`
	Duplicate bool   `json:"duplicate"`
	Reload    string `json:"reload"`
}
