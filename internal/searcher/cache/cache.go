// Package cache memoizes query results in two tiers: a per-process LRU and,
// when configured, a Redis instance shared by all replicas. Redis calls go
// through a circuit breaker so a dead Redis costs one failed call per reset
// window instead of one per query.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"github.com/Adithya-Monish-Kumar-K/fuzzysearch/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/fuzzysearch/internal/searcher/query"
	apperrors "github.com/Adithya-Monish-Kumar-K/fuzzysearch/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/fuzzysearch/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/fuzzysearch/pkg/metrics"
	pkgredis "github.com/Adithya-Monish-Kumar-K/fuzzysearch/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/fuzzysearch/pkg/resilience"
)

const keyPrefix = "fzs:search:"

// Status says where a result came from. It doubles as the cache_status
// metrics label.
type Status string

const (
	StatusLocal Status = "local"
	StatusRedis Status = "redis"
	StatusMiss  Status = "miss"
)

// Remote is the shared tier. *pkgredis.Client implements it.
type Remote interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	DeletePrefix(ctx context.Context, prefix string) (int64, error)
}

type Options struct {
	LocalSize int
	// Remote may be nil for a local-only cache.
	Remote  Remote
	TTL     time.Duration
	Breaker resilience.CircuitBreakerConfig
	Metrics *metrics.Metrics
}

type QueryCache struct {
	local   *lru.Cache[string, *query.Result]
	remote  Remote
	ttl     time.Duration
	breaker *resilience.CircuitBreaker
	group   singleflight.Group
	metrics *metrics.Metrics
	logger  *slog.Logger

	// generation counts invalidations. A result computed across one is
	// never stored.
	generation atomic.Uint64

	localHits  atomic.Int64
	remoteHits atomic.Int64
	misses     atomic.Int64
}

func New(opts Options) (*QueryCache, error) {
	size := opts.LocalSize
	if size <= 0 {
		size = 1024
	}
	local, err := lru.New[string, *query.Result](size)
	if err != nil {
		return nil, fmt.Errorf("creating local cache: %w", err)
	}
	c := &QueryCache{
		local:   local,
		remote:  opts.Remote,
		ttl:     opts.TTL,
		metrics: opts.Metrics,
		logger:  logger.WithComponent("query-cache"),
	}
	breakerCfg := opts.Breaker
	if breakerCfg.IsSuccessful == nil {
		// A client that hangs up mid-lookup says nothing about Redis.
		breakerCfg.IsSuccessful = func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		}
	}
	if c.metrics != nil {
		breakerCfg.OnStateChange = func(name string, to resilience.State) {
			c.metrics.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
		}
	}
	c.breaker = resilience.NewCircuitBreaker("redis-cache", breakerCfg)
	return c, nil
}

// Key identifies the result of plan under maxErrors. Queries that must
// produce the same IDs share a key: free-text term order and repeats do not
// matter, and neither does punctuation that tokenization drops.
func Key(plan *parser.QueryPlan, maxErrors int) string {
	var norm string
	if plan.Mode == parser.ModeFreeText || len(plan.Terms) > 1 {
		terms := append([]string(nil), plan.Terms...)
		sort.Strings(terms)
		terms = compact(terms)
		norm = "free|" + strings.Join(terms, " ")
	} else {
		norm = "one|" + strings.Join(plan.Terms, " ")
	}
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|e=%d", norm, maxErrors)))
	return fmt.Sprintf("%s%x", keyPrefix, sum[:16])
}

func compact(sorted []string) []string {
	out := sorted[:0]
	for i, s := range sorted {
		if i == 0 || s != sorted[i-1] {
			out = append(out, s)
		}
	}
	return out
}

// Get looks key up in the local tier, then in Redis. A Redis hit is copied
// into the local tier.
func (c *QueryCache) Get(ctx context.Context, key string) (*query.Result, Status) {
	if res, ok := c.local.Get(key); ok {
		c.recordHit(StatusLocal)
		return res, StatusLocal
	}
	if res, ok := c.getRemote(ctx, key); ok {
		c.local.Add(key, res)
		c.recordHit(StatusRedis)
		return res, StatusRedis
	}
	c.misses.Add(1)
	if c.metrics != nil {
		c.metrics.CacheMissesTotal.Inc()
	}
	return nil, StatusMiss
}

func (c *QueryCache) getRemote(ctx context.Context, key string) (*query.Result, bool) {
	if c.remote == nil {
		return nil, false
	}
	var data []byte
	err := c.breaker.Execute(func() error {
		var err error
		data, err = c.remote.Get(ctx, key)
		if pkgredis.IsNil(err) {
			data = nil
			return nil
		}
		return err
	})
	if err != nil {
		c.logger.Warn("redis get failed", "key", key, "error", err)
		return nil, false
	}
	if data == nil {
		return nil, false
	}
	var res query.Result
	if err := json.Unmarshal(data, &res); err != nil {
		c.logger.Error("discarding undecodable cache entry", "key", key, "error", err)
		return nil, false
	}
	return &res, true
}

func (c *QueryCache) recordHit(status Status) {
	if status == StatusLocal {
		c.localHits.Add(1)
	} else {
		c.remoteHits.Add(1)
	}
	if c.metrics != nil {
		c.metrics.CacheHitsTotal.WithLabelValues(string(status)).Inc()
	}
}

// Set stores res in both tiers. Redis failures are logged, not returned.
func (c *QueryCache) Set(ctx context.Context, key string, res *query.Result) {
	c.local.Add(key, res)
	if c.remote == nil {
		return
	}
	data, err := json.Marshal(res)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	err = c.breaker.Execute(func() error {
		return c.remote.Set(ctx, key, data, c.ttl)
	})
	if err != nil {
		c.logger.Warn("redis set failed", "key", key, "error", err)
	}
}

// GetOrCompute returns the cached result for plan or runs compute once per
// key, however many callers ask concurrently. Errors are not cached. The
// returned result echoes plan's raw query even when another query with the
// same key filled the entry. A result whose computation straddled an
// Invalidate is returned to its callers but not stored.
func (c *QueryCache) GetOrCompute(
	ctx context.Context,
	plan *parser.QueryPlan,
	maxErrors int,
	compute func() (*query.Result, error),
) (*query.Result, Status, error) {
	key := Key(plan, maxErrors)
	if res, status := c.Get(ctx, key); res != nil {
		return forPlan(res, plan), status, nil
	}
	gen := c.generation.Load()
	val, err, _ := c.group.Do(fmt.Sprintf("%d/%s", gen, key), func() (any, error) {
		if res, ok := c.local.Get(key); ok {
			return res, nil
		}
		res, err := compute()
		if err != nil {
			return nil, err
		}
		if c.generation.Load() != gen {
			c.logger.Debug("dropping result computed across invalidation", "key", key)
			return res, nil
		}
		c.Set(ctx, key, res)
		return res, nil
	})
	if err != nil {
		return nil, StatusMiss, err
	}
	return forPlan(val.(*query.Result), plan), StatusMiss, nil
}

func forPlan(res *query.Result, plan *parser.QueryPlan) *query.Result {
	if res.Query == plan.RawQuery && res.Mode == plan.Mode {
		return res
	}
	out := *res
	out.Query = plan.RawQuery
	out.Mode = plan.Mode
	out.Terms = plan.Terms
	return &out
}

// Invalidate empties the local tier and deletes this service's keys from
// Redis, returning how many Redis keys were removed.
func (c *QueryCache) Invalidate(ctx context.Context) (int64, error) {
	c.generation.Add(1)
	purged := c.local.Len()
	c.local.Purge()
	if c.remote == nil {
		c.logger.Info("cache invalidated", "local_entries", purged)
		return 0, nil
	}
	var deleted int64
	err := c.breaker.Execute(func() error {
		var err error
		deleted, err = c.remote.DeletePrefix(ctx, keyPrefix)
		return err
	})
	if err != nil {
		return deleted, fmt.Errorf("invalidating redis cache: %w: %w", apperrors.ErrCacheDisabled, err)
	}
	c.logger.Info("cache invalidated", "local_entries", purged, "redis_keys", deleted)
	return deleted, nil
}

type Stats struct {
	LocalHits    int64   `json:"local_hits"`
	RedisHits    int64   `json:"redis_hits"`
	Misses       int64   `json:"misses"`
	Total        int64   `json:"total"`
	HitRate      float64 `json:"hit_rate"`
	LocalEntries int     `json:"local_entries"`
	RedisEnabled bool    `json:"redis_enabled"`
	Breaker      string  `json:"redis_breaker"`

	BreakerCounts resilience.Counts `json:"redis_breaker_counts"`
}

func (c *QueryCache) Stats() Stats {
	s := Stats{
		LocalHits:    c.localHits.Load(),
		RedisHits:    c.remoteHits.Load(),
		Misses:       c.misses.Load(),
		LocalEntries: c.local.Len(),
		RedisEnabled: c.remote != nil,
		Breaker:      c.breaker.GetState().String(),

		BreakerCounts: c.breaker.Counts(),
	}
	s.Total = s.LocalHits + s.RedisHits + s.Misses
	if s.Total > 0 {
		s.HitRate = float64(s.LocalHits+s.RedisHits) / float64(s.Total)
	}
	return s
}
