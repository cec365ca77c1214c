package main

import (
	"bytes"
	"context"
	"encoding/json"
	"math/rand/v2"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/fuzzysearch/internal/indexer/tokenizer"
)

func TestBuildQueries(t *testing.T) {
	lines := []string{"Diabetes type 2\n", "hypertension\n", "a b\n"}
	queries := buildQueries(lines, 30, rand.New(rand.NewPCG(7, 7)))
	require.Len(t, queries, 30)

	for i, q := range queries {
		words := strings.Fields(q)
		switch i % 3 {
		case 1:
			assert.Len(t, words, 2, q)
		default:
			assert.Len(t, words, 1, q)
		}
		for _, w := range words {
			assert.Equal(t, tokenizer.Tokenize(w), []string{w}, "query words are already normalised")
		}
	}
	assert.Nil(t, buildQueries([]string{"a 2\n"}, 5, rand.New(rand.NewPCG(1, 1))))
}

func TestPercentile(t *testing.T) {
	sorted := []time.Duration{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	assert.Equal(t, time.Duration(5), percentile(sorted, 50))
	assert.Equal(t, time.Duration(10), percentile(sorted, 99))
	assert.Equal(t, time.Duration(1), percentile(sorted, 0))
	assert.Zero(t, percentile(nil, 50))
}

func TestRunLoadTest(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		assert.Equal(t, "/api/v1/search", r.URL.Path)
		assert.Equal(t, "1", r.URL.Query().Get("max_errors"))
		cacheStatus := "miss"
		if n%2 == 0 {
			cacheStatus = "local"
		}
		json.NewEncoder(w).Encode(map[string]any{"total_hits": int(n % 3), "cache": cacheStatus})
	}))
	defer srv.Close()

	cfg := Config{
		BaseURL:     srv.URL,
		Concurrency: 2,
		RPS:         200,
		MaxErrors:   1,
		Queries:     []string{"diabetes", "type 2"},
	}
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	stats := runLoadTest(ctx, cfg, newClient(cfg.Concurrency))

	total := stats.totalRequests.Load()
	require.Positive(t, total)
	assert.Equal(t, total, stats.successCount.Load())
	assert.Positive(t, stats.cacheHits.Load())
	assert.Positive(t, stats.zeroResults.Load())

	var out bytes.Buffer
	assert.Equal(t, total, printReport(&out, stats, time.Second))
	assert.Contains(t, out.String(), "200: ")
}

func TestPrintReportEmpty(t *testing.T) {
	var out bytes.Buffer
	assert.Zero(t, printReport(&out, NewStats(), time.Second))
	assert.Contains(t, out.String(), "No requests completed")
}
