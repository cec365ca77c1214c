// Package analytics records what users search for. Search handlers emit
// events through a collector; an Aggregator folds them into running totals,
// either in-process or on the far side of a Kafka topic.
package analytics

import "time"

type EventType string

const (
	EventSearch       EventType = "search"
	EventIndexRebuilt EventType = "index_rebuilt"
)

type SearchEvent struct {
	Type         EventType `json:"type"`
	Query        string    `json:"query"`
	Mode         string    `json:"mode"`
	Terms        []string  `json:"terms"`
	MaxErrors    int       `json:"max_errors"`
	TotalHits    int       `json:"total_hits"`
	MatchedTerms int       `json:"matched_terms"`
	CacheStatus  string    `json:"cache_status"`
	LatencyMs    float64   `json:"latency_ms"`
	Timestamp    time.Time `json:"timestamp"`
	RequestID    string    `json:"request_id,omitempty"`
}

type IndexRebuiltEvent struct {
	Type       EventType `json:"type"`
	Trigger    string    `json:"trigger"`
	Source     string    `json:"source"`
	Documents  int       `json:"documents"`
	Terms      int       `json:"terms"`
	Postings   int       `json:"postings"`
	DurationMs float64   `json:"duration_ms"`
	Timestamp  time.Time `json:"timestamp"`
}

// envelope is decoded first to pick the concrete event type.
type envelope struct {
	Type EventType `json:"type"`
}
