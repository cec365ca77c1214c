package analytics

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/Adithya-Monish-Kumar-K/fuzzysearch/pkg/logger"
)

// HistoryFunc lists stored snapshots. aggregator.Store.ListSnapshots is
// wrapped into one by the caller, which keeps this package free of the
// store's import.
type HistoryFunc func(ctx context.Context, limit int) (any, error)

// Backlog reports on the collector feeding the aggregator.
// *collector.BatchCollector implements it.
type Backlog interface {
	BufferLen() int
	Dropped() int64
}

type Handler struct {
	aggregator *Aggregator
	history    HistoryFunc
	backlog    Backlog
	logger     *slog.Logger
}

// CollectorStats is the collector's state as seen by this replica.
type CollectorStats struct {
	Buffered int   `json:"buffered"`
	Dropped  int64 `json:"dropped"`
}

type statsResponse struct {
	AggregatedStats
	Collector *CollectorStats `json:"collector,omitempty"`
}

func NewHandler(aggregator *Aggregator) *Handler {
	return &Handler{
		aggregator: aggregator,
		logger:     logger.WithComponent("analytics-handler"),
	}
}

// WithHistory enables the snapshot history endpoint.
func (h *Handler) WithHistory(fn HistoryFunc) *Handler {
	h.history = fn
	return h
}

// WithBacklog adds the collector's buffered and dropped counts to Stats.
func (h *Handler) WithBacklog(b Backlog) *Handler {
	h.backlog = b
	return h
}

// Stats serves the live aggregate.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	resp := statsResponse{AggregatedStats: h.aggregator.Stats()}
	if h.backlog != nil {
		resp.Collector = &CollectorStats{
			Buffered: h.backlog.BufferLen(),
			Dropped:  h.backlog.Dropped(),
		}
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// History serves stored snapshots, newest first. ?limit= defaults to 24.
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		h.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "snapshot storage is disabled"})
		return
	}
	limit := 24
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 1000 {
			h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be between 1 and 1000"})
			return
		}
		limit = n
	}
	snapshots, err := h.history(r.Context(), limit)
	if err != nil {
		h.logger.Error("listing snapshots failed", "error", err)
		h.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "listing snapshots failed"})
		return
	}
	h.writeJSON(w, http.StatusOK, snapshots)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write analytics response", "error", err)
	}
}
