// Package indexer owns the lifecycle of the search index: it reads the
// document source, builds an immutable index and publishes it behind an
// atomic pointer so queries always see a complete snapshot.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Adithya-Monish-Kumar-K/fuzzysearch/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/fuzzysearch/internal/indexer/source"
	apperrors "github.com/Adithya-Monish-Kumar-K/fuzzysearch/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/fuzzysearch/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/fuzzysearch/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/fuzzysearch/pkg/resilience"
)

// Reload triggers, used as a metrics label and in logs.
const (
	TriggerStartup  = "startup"
	TriggerWatch    = "watch"
	TriggerAPI      = "api"
	TriggerKafka    = "kafka"
	TriggerInterval = "interval"
	TriggerIngest   = "ingest"
)

// ReloadStatus describes the most recent successful build.
type ReloadStatus struct {
	Source   string        `json:"source"`
	Trigger  string        `json:"trigger"`
	Stats    index.Stats   `json:"stats"`
	Duration time.Duration `json:"duration_ns"`
	At       time.Time     `json:"at"`
}

type Engine struct {
	src      source.Source
	current  atomic.Pointer[index.Index]
	status   atomic.Pointer[ReloadStatus]
	reloadMu sync.Mutex
	retry    resilience.RetryConfig
	metrics  *metrics.Metrics
	onReload []func(context.Context, index.Stats)
	logger   *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithRetry sets how source reads are retried. Only ErrSourceUnavailable
// failures are retried.
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(e *Engine) {
		e.retry = cfg
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// OnReload registers fn to run after every successful swap, before Reload
// returns. The search service uses it to drop cached results.
func OnReload(fn func(ctx context.Context, stats index.Stats)) Option {
	return func(e *Engine) {
		e.onReload = append(e.onReload, fn)
	}
}

func NewEngine(src source.Source, opts ...Option) *Engine {
	e := &Engine{
		src:    src,
		retry:  resilience.RetryConfig{MaxAttempts: 1},
		logger: logger.WithComponent("indexer").With("source", src.Describe()),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.retry.Retryable = func(err error) bool {
		return errors.Is(err, apperrors.ErrSourceUnavailable)
	}
	return e
}

// Snapshot returns the live index, or nil before the first successful build.
// The returned index is immutable and stays valid after later reloads.
func (e *Engine) Snapshot() *index.Index {
	return e.current.Load()
}

// Ready returns the live index or ErrIndexNotReady.
func (e *Engine) Ready() (*index.Index, error) {
	idx := e.current.Load()
	if idx == nil {
		return nil, apperrors.ErrIndexNotReady
	}
	return idx, nil
}

// LastReload returns the status of the last successful build, or nil.
func (e *Engine) LastReload() *ReloadStatus {
	return e.status.Load()
}

// Reload reads the whole source, builds a fresh index and swaps it in. On any
// failure the previous snapshot stays live. Concurrent calls are serialised.
func (e *Engine) Reload(ctx context.Context, trigger string) (index.Stats, error) {
	e.reloadMu.Lock()
	defer e.reloadMu.Unlock()
	return e.reload(ctx, trigger)
}

// TryReload is Reload that returns ErrReloadInFlight instead of waiting for
// a reload already running.
func (e *Engine) TryReload(ctx context.Context, trigger string) (index.Stats, error) {
	if !e.reloadMu.TryLock() {
		return index.Stats{}, apperrors.ErrReloadInFlight
	}
	defer e.reloadMu.Unlock()
	return e.reload(ctx, trigger)
}

func (e *Engine) reload(ctx context.Context, trigger string) (index.Stats, error) {
	start := time.Now()
	var docs []string
	err := resilience.Retry(ctx, "read documents", e.retry, func() error {
		var readErr error
		docs, readErr = e.src.ReadDocuments(ctx)
		return readErr
	})
	if err != nil {
		e.observeReload(trigger, "error", 0)
		e.logger.Error("index reload failed, keeping previous snapshot",
			"trigger", trigger,
			"error", err,
		)
		return index.Stats{}, fmt.Errorf("reloading index: %w", err)
	}

	idx := index.Build(docs)
	e.current.Store(idx)

	elapsed := time.Since(start)
	stats := idx.Stats()
	e.status.Store(&ReloadStatus{
		Source:   e.src.Describe(),
		Trigger:  trigger,
		Stats:    stats,
		Duration: elapsed,
		At:       time.Now().UTC(),
	})
	e.observeReload(trigger, "ok", elapsed)
	if e.metrics != nil {
		e.metrics.IndexDocuments.Set(float64(stats.Documents))
		e.metrics.IndexTerms.Set(float64(stats.Terms))
	}
	e.logger.Info("index rebuilt",
		"trigger", trigger,
		"documents", stats.Documents,
		"terms", stats.Terms,
		"postings", stats.Postings,
		"duration", elapsed,
	)
	for _, fn := range e.onReload {
		fn(ctx, stats)
	}
	return stats, nil
}

func (e *Engine) observeReload(trigger, status string, elapsed time.Duration) {
	if e.metrics == nil {
		return
	}
	e.metrics.IndexReloadsTotal.WithLabelValues(trigger, status).Inc()
	if status == "ok" {
		e.metrics.IndexBuildDuration.Observe(elapsed.Seconds())
	}
}

// StartReloadLoop rebuilds the index every interval until ctx is done.
// Failures are logged; the previous snapshot keeps serving.
func (e *Engine) StartReloadLoop(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				e.logger.Info("reload loop stopping")
				return
			case <-ticker.C:
				if _, err := e.Reload(ctx, TriggerInterval); err != nil {
					e.logger.Warn("periodic reload failed", "error", err)
				}
			}
		}
	}()
	e.logger.Info("reload loop started", "interval", interval)
}
