package analytics

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/Adithya-Monish-Kumar-K/fuzzysearch/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/fuzzysearch/pkg/logger"
)

const (
	defaultTopCapacity = 1000
	latencyWindow      = 10000
	topListSize        = 10
)

type AggregatedStats struct {
	TotalSearches     int64              `json:"total_searches"`
	SearchesByMode    map[string]int64   `json:"searches_by_mode"`
	CacheHits         int64              `json:"cache_hits"`
	CacheMisses       int64              `json:"cache_misses"`
	ZeroResultCount   int64              `json:"zero_result_count"`
	AvgLatencyMs      float64            `json:"avg_latency_ms"`
	P50LatencyMs      float64            `json:"p50_latency_ms"`
	P95LatencyMs      float64            `json:"p95_latency_ms"`
	P99LatencyMs      float64            `json:"p99_latency_ms"`
	TopQueries        []QueryCount       `json:"top_queries"`
	ZeroResultQueries []QueryCount       `json:"zero_result_queries"`
	QueriesPerMinute  float64            `json:"queries_per_minute"`
	IndexRebuilds     int64              `json:"index_rebuilds"`
	LastRebuild       *IndexRebuiltEvent `json:"last_rebuild,omitempty"`
}

type QueryCount struct {
	Query string `json:"query"`
	Count int64  `json:"count"`
}

// Aggregator keeps running search statistics. Per-query counts are held in
// LRU caches, so a long tail of one-off queries cannot grow memory without
// bound; latency percentiles cover the most recent window of searches.
type Aggregator struct {
	mu            sync.Mutex
	totalSearches int64
	byMode        map[string]int64
	cacheHits     int64
	cacheMisses   int64
	zeroResults   int64
	latencies     []float64
	next          int
	queryCounts   *lru.Cache[string, int64]
	zeroQueries   *lru.Cache[string, int64]
	rebuilds      int64
	lastRebuild   *IndexRebuiltEvent
	startTime     time.Time
	now           func() time.Time

	logger *slog.Logger
}

// NewAggregator tracks up to topCapacity distinct queries; zero picks a
// default.
func NewAggregator(topCapacity int) *Aggregator {
	if topCapacity <= 0 {
		topCapacity = defaultTopCapacity
	}
	queryCounts, _ := lru.New[string, int64](topCapacity)
	zeroQueries, _ := lru.New[string, int64](topCapacity)
	return &Aggregator{
		byMode:      make(map[string]int64),
		latencies:   make([]float64, 0, 1024),
		queryCounts: queryCounts,
		zeroQueries: zeroQueries,
		startTime:   time.Now(),
		now:         time.Now,
		logger:      logger.WithComponent("analytics-aggregator"),
	}
}

// Record folds one event in. Unknown values are ignored.
func (a *Aggregator) Record(event any) {
	switch e := event.(type) {
	case SearchEvent:
		a.recordSearch(e)
	case *SearchEvent:
		a.recordSearch(*e)
	case IndexRebuiltEvent:
		a.recordRebuild(e)
	case *IndexRebuiltEvent:
		a.recordRebuild(*e)
	default:
		a.logger.Debug("ignoring unknown analytics event", "type", fmt.Sprintf("%T", event))
	}
}

func (a *Aggregator) recordSearch(e SearchEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.totalSearches++
	a.byMode[e.Mode]++
	switch e.CacheStatus {
	case "local", "redis":
		a.cacheHits++
	default:
		a.cacheMisses++
	}
	if len(a.latencies) < latencyWindow {
		a.latencies = append(a.latencies, e.LatencyMs)
	} else {
		a.latencies[a.next] = e.LatencyMs
		a.next = (a.next + 1) % latencyWindow
	}
	increment(a.queryCounts, e.Query)
	if e.TotalHits == 0 {
		a.zeroResults++
		increment(a.zeroQueries, e.Query)
	}
}

func increment(c *lru.Cache[string, int64], key string) {
	n, _ := c.Peek(key)
	c.Add(key, n+1)
}

func (a *Aggregator) recordRebuild(e IndexRebuiltEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.rebuilds++
	a.lastRebuild = &e
}

func (a *Aggregator) Stats() AggregatedStats {
	a.mu.Lock()
	defer a.mu.Unlock()

	stats := AggregatedStats{
		TotalSearches:     a.totalSearches,
		SearchesByMode:    make(map[string]int64, len(a.byMode)),
		CacheHits:         a.cacheHits,
		CacheMisses:       a.cacheMisses,
		ZeroResultCount:   a.zeroResults,
		TopQueries:        topN(a.queryCounts, topListSize),
		ZeroResultQueries: topN(a.zeroQueries, topListSize),
		IndexRebuilds:     a.rebuilds,
	}
	for mode, n := range a.byMode {
		stats.SearchesByMode[mode] = n
	}
	if a.lastRebuild != nil {
		last := *a.lastRebuild
		stats.LastRebuild = &last
	}
	if len(a.latencies) > 0 {
		sorted := make([]float64, len(a.latencies))
		copy(sorted, a.latencies)
		sort.Float64s(sorted)
		var sum float64
		for _, l := range sorted {
			sum += l
		}
		stats.AvgLatencyMs = sum / float64(len(sorted))
		stats.P50LatencyMs = percentile(sorted, 50)
		stats.P95LatencyMs = percentile(sorted, 95)
		stats.P99LatencyMs = percentile(sorted, 99)
	}
	if elapsed := a.now().Sub(a.startTime).Minutes(); elapsed > 0 {
		stats.QueriesPerMinute = float64(a.totalSearches) / elapsed
	}
	return stats
}

func percentile(sorted []float64, pct int) float64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := (pct * len(sorted)) / 100
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

// topN returns the n most frequent entries, ties broken by query text.
func topN(counts *lru.Cache[string, int64], n int) []QueryCount {
	result := make([]QueryCount, 0, counts.Len())
	for _, q := range counts.Keys() {
		if c, ok := counts.Peek(q); ok {
			result = append(result, QueryCount{Query: q, Count: c})
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Count != result[j].Count {
			return result[i].Count > result[j].Count
		}
		return result[i].Query < result[j].Query
	})
	if len(result) > n {
		result = result[:n]
	}
	return result
}

// HandleEvent adapts the aggregator to a Kafka consumer on the search-events
// topic. Undecodable messages are logged and skipped.
func HandleEvent(agg *Aggregator) kafka.MessageHandler {
	return func(ctx context.Context, key []byte, value []byte) error {
		env, err := kafka.DecodeJSON[envelope](value)
		if err != nil {
			agg.logger.Error("failed to decode analytics event", "error", err)
			return nil
		}
		switch env.Type {
		case EventSearch:
			event, err := kafka.DecodeJSON[SearchEvent](value)
			if err != nil {
				agg.logger.Error("failed to decode search event", "error", err)
				return nil
			}
			agg.recordSearch(event)
		case EventIndexRebuilt:
			event, err := kafka.DecodeJSON[IndexRebuiltEvent](value)
			if err != nil {
				agg.logger.Error("failed to decode rebuild event", "error", err)
				return nil
			}
			agg.recordRebuild(event)
		default:
			agg.logger.Warn("unknown analytics event type", "type", env.Type)
		}
		return nil
	}
}

// Publisher returns a kafka.Publisher that feeds the aggregator directly,
// for deployments without Kafka.
func (a *Aggregator) Publisher() kafka.Publisher {
	return directPublisher{agg: a}
}

type directPublisher struct {
	agg *Aggregator
}

func (p directPublisher) Publish(ctx context.Context, event kafka.Event) error {
	p.agg.Record(event.Value)
	return nil
}

func (p directPublisher) PublishBatch(ctx context.Context, events []kafka.Event) error {
	for _, e := range events {
		p.agg.Record(e.Value)
	}
	return nil
}

func (p directPublisher) Close() error { return nil }
