// Package handler exposes the search engine over HTTP.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/Adithya-Monish-Kumar-K/fuzzysearch/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/fuzzysearch/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/fuzzysearch/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/fuzzysearch/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/fuzzysearch/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/fuzzysearch/internal/searcher/query"
	apperrors "github.com/Adithya-Monish-Kumar-K/fuzzysearch/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/fuzzysearch/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/fuzzysearch/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/fuzzysearch/pkg/tracing"
)

type SearchExecutor interface {
	Execute(ctx context.Context, plan *parser.QueryPlan, maxErrors int) (*query.Result, error)
}

// IndexManager is the part of *indexer.Engine the admin endpoints use.
type IndexManager interface {
	LastReload() *indexer.ReloadStatus
	TryReload(ctx context.Context, trigger string) (index.Stats, error)
}

// Tracker receives analytics events. *collector.BatchCollector implements it.
type Tracker interface {
	Track(key string, value any)
}

type Config struct {
	MaxErrors        int
	MaxErrorsCeiling int
	MaxQueryLength   int
}

type Handler struct {
	executor  SearchExecutor
	index     IndexManager
	cfg       Config
	cache     *cache.QueryCache
	collector Tracker
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

type Option func(*Handler)

func WithCache(c *cache.QueryCache) Option {
	return func(h *Handler) { h.cache = c }
}

func WithCollector(t Tracker) Option {
	return func(h *Handler) { h.collector = t }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(h *Handler) { h.metrics = m }
}

func New(exec SearchExecutor, idx IndexManager, cfg Config, opts ...Option) *Handler {
	h := &Handler{
		executor: exec,
		index:    idx,
		cfg:      cfg,
		logger:   logger.WithComponent("search-handler"),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register mounts the search and admin routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/search", h.Search)
	mux.HandleFunc("GET /api/v1/index/stats", h.IndexStats)
	mux.HandleFunc("POST /api/v1/index/reload", h.Reload)
	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", h.CacheInvalidate)
}

type searchResponse struct {
	*query.Result
	Cache     cache.Status `json:"cache"`
	LatencyMs float64      `json:"latency_ms"`
}

// Search answers GET /api/v1/search?q=...&max_errors=N. A missing or blank q
// is an empty query and yields an empty result, not an error.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	raw := r.URL.Query().Get("q")
	if h.cfg.MaxQueryLength > 0 && len(raw) > h.cfg.MaxQueryLength {
		h.writeError(w, apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest,
			"query longer than %d bytes", h.cfg.MaxQueryLength))
		return
	}
	maxErrors, err := h.maxErrors(r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	ctx, span := tracing.StartRoot(r.Context(), "http.search", logger.RequestID(r.Context()))
	log := logger.FromContext(ctx)
	defer func() {
		span.End()
		span.Log(log)
	}()

	plan := parser.Parse(raw)
	var (
		result *query.Result
		status = cache.StatusMiss
	)
	switch {
	case plan.Empty():
		result = emptyResult(plan, maxErrors)
	case h.cache != nil:
		result, status, err = h.cache.GetOrCompute(ctx, plan, maxErrors, func() (*query.Result, error) {
			return h.executor.Execute(ctx, plan, maxErrors)
		})
	default:
		result, err = h.executor.Execute(ctx, plan, maxErrors)
	}
	if err != nil {
		log.Error("search failed", "query", raw, "error", err)
		h.writeError(w, err)
		return
	}

	latency := time.Since(start)
	latencyMs := float64(latency.Microseconds()) / 1000
	span.SetAttr("cache", string(status))
	if h.metrics != nil {
		h.metrics.SearchLatency.WithLabelValues(string(status)).Observe(latency.Seconds())
		h.metrics.SearchResultsCount.Observe(float64(result.TotalHits))
	}
	if h.collector != nil {
		h.collector.Track(raw, analytics.SearchEvent{
			Type:         analytics.EventSearch,
			Query:        raw,
			Mode:         plan.Mode.String(),
			Terms:        plan.Terms,
			MaxErrors:    maxErrors,
			TotalHits:    result.TotalHits,
			MatchedTerms: len(result.MatchedTerms),
			CacheStatus:  string(status),
			LatencyMs:    latencyMs,
			Timestamp:    time.Now().UTC(),
			RequestID:    logger.RequestID(ctx),
		})
	}
	log.Info("search completed",
		"query", raw,
		"mode", plan.Mode.String(),
		"total_hits", result.TotalHits,
		"cache", status,
		"latency", latency,
	)
	h.writeJSON(w, http.StatusOK, searchResponse{Result: result, Cache: status, LatencyMs: latencyMs})
}

func (h *Handler) maxErrors(r *http.Request) (int, error) {
	v := r.URL.Query().Get("max_errors")
	if v == "" {
		return h.cfg.MaxErrors, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 || n > h.cfg.MaxErrorsCeiling {
		return 0, apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest,
			"max_errors must be an integer between 0 and %d", h.cfg.MaxErrorsCeiling)
	}
	return n, nil
}

func emptyResult(plan *parser.QueryPlan, maxErrors int) *query.Result {
	return &query.Result{
		Query:        plan.RawQuery,
		Mode:         plan.Mode,
		Terms:        plan.Terms,
		MaxErrors:    maxErrors,
		MatchedTerms: []string{},
		DocIDs:       []int{},
		Results:      []string{},
	}
}

func (h *Handler) IndexStats(w http.ResponseWriter, r *http.Request) {
	status := h.index.LastReload()
	if status == nil {
		h.writeError(w, apperrors.ErrIndexNotReady)
		return
	}
	h.writeJSON(w, http.StatusOK, status)
}

// Reload rebuilds the index from its source. A reload already running is
// reported as 409 rather than queued.
func (h *Handler) Reload(w http.ResponseWriter, r *http.Request) {
	stats, err := h.index.TryReload(r.Context(), indexer.TriggerAPI)
	if err != nil {
		logger.FromContext(r.Context()).Error("reload via api failed", "error", err)
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"status": "reloaded",
		"stats":  stats,
	})
}

func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}
	h.writeJSON(w, http.StatusOK, h.cache.Stats())
}

func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeError(w, apperrors.ErrCacheDisabled)
		return
	}
	deleted, err := h.cache.Invalidate(r.Context())
	if err != nil {
		h.logger.Error("cache invalidation failed", "error", err)
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"status":     "invalidated",
		"redis_keys": deleted,
	})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

// writeError maps err to a status code. Server-side failures get a generic
// message; the detail stays in the logs.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := apperrors.HTTPStatusCode(err)
	message := err.Error()
	var appErr *apperrors.AppError
	switch {
	case errors.As(err, &appErr):
		message = appErr.Message
	case status >= http.StatusInternalServerError && status != http.StatusServiceUnavailable && status != http.StatusGatewayTimeout:
		message = "search failed"
	}
	h.writeJSON(w, status, map[string]string{"error": message})
}
