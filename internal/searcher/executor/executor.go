// Package executor runs parsed queries against the live index snapshot,
// bounded by the configured timeout and traced per phase.
package executor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/fuzzysearch/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/fuzzysearch/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/fuzzysearch/internal/searcher/query"
	"github.com/Adithya-Monish-Kumar-K/fuzzysearch/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/fuzzysearch/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/fuzzysearch/pkg/resilience"
	"github.com/Adithya-Monish-Kumar-K/fuzzysearch/pkg/tracing"
)

// Snapshotter hands out the current index. *indexer.Engine implements it.
type Snapshotter interface {
	Ready() (*index.Index, error)
}

type Executor struct {
	snapshots Snapshotter
	timeout   time.Duration
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// New returns an executor. A zero timeout disables the bound; m may be nil.
func New(snapshots Snapshotter, timeout time.Duration, m *metrics.Metrics) *Executor {
	return &Executor{
		snapshots: snapshots,
		timeout:   timeout,
		metrics:   m,
		logger:    logger.WithComponent("query-executor"),
	}
}

// Execute answers plan with the given edit budget against the snapshot that
// is live when the call starts. A reload during execution does not affect
// the result.
func (e *Executor) Execute(ctx context.Context, plan *parser.QueryPlan, maxErrors int) (*query.Result, error) {
	ctx, span := tracing.Start(ctx, "query.execute")
	defer span.End()
	span.SetAttr("mode", plan.Mode.String())
	span.SetAttr("max_errors", maxErrors)

	idx, err := e.snapshots.Ready()
	if err != nil {
		return nil, err
	}

	var result *query.Result
	err = resilience.WithTimeout(ctx, e.timeout, "query", func(ctx context.Context) error {
		ctx, scan := tracing.Start(ctx, "query.scan")
		defer scan.End()
		res, err := query.New(idx, maxErrors).Execute(ctx, plan)
		if err != nil {
			return err
		}
		scan.SetAttr("comparisons", res.Comparisons)
		scan.SetAttr("matched_terms", len(res.MatchedTerms))
		result = res
		return nil
	})
	if err != nil {
		e.observe(plan, "error", 0)
		return nil, fmt.Errorf("executing %q: %w", plan.RawQuery, err)
	}

	outcome := "hit"
	if result.TotalHits == 0 {
		outcome = "zero_result"
	}
	e.observe(plan, outcome, result.Comparisons)
	span.SetAttr("total_hits", result.TotalHits)

	logger.FromContext(ctx).Debug("query executed",
		"query", plan.RawQuery,
		"mode", plan.Mode.String(),
		"terms", plan.Terms,
		"matched_terms", result.MatchedTerms,
		"total_hits", result.TotalHits,
	)
	return result, nil
}

func (e *Executor) observe(plan *parser.QueryPlan, outcome string, comparisons int) {
	if e.metrics == nil {
		return
	}
	e.metrics.SearchQueriesTotal.WithLabelValues(plan.Mode.String(), outcome).Inc()
	e.metrics.BitapComparisons.Add(float64(comparisons))
}
