package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/fuzzysearch/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/fuzzysearch/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/fuzzysearch/internal/indexer/source"
	"github.com/Adithya-Monish-Kumar-K/fuzzysearch/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/fuzzysearch/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/fuzzysearch/pkg/metrics"
)

var diagnoses = source.Static{
	"diabetes type 2\n",
	"hypertension\n",
	"type 1 diabetes mellitus\n",
	"cat cat\n",
}

type trackedEvents struct {
	mu     sync.Mutex
	events []any
}

func (t *trackedEvents) Track(key string, value any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.events = append(t.events, value)
}

type fixture struct {
	engine  *indexer.Engine
	mux     *http.ServeMux
	metrics *metrics.Metrics
	tracked *trackedEvents
}

func newFixture(t *testing.T, withCache bool) *fixture {
	t.Helper()
	m := metrics.New(nil)
	engine := indexer.NewEngine(diagnoses, indexer.WithMetrics(m))
	_, err := engine.Reload(context.Background(), indexer.TriggerStartup)
	require.NoError(t, err)

	tracked := &trackedEvents{}
	opts := []Option{WithMetrics(m), WithCollector(tracked)}
	if withCache {
		c, err := cache.New(cache.Options{LocalSize: 16, Metrics: m})
		require.NoError(t, err)
		opts = append(opts, WithCache(c))
	}
	h := New(executor.New(engine, time.Second, m), engine, Config{
		MaxErrors:        0,
		MaxErrorsCeiling: 2,
		MaxQueryLength:   64,
	}, opts...)
	mux := http.NewServeMux()
	h.Register(mux)
	return &fixture{engine: engine, mux: mux, metrics: m, tracked: tracked}
}

func (f *fixture) do(t *testing.T, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	f.mux.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

type response struct {
	Query        string   `json:"query"`
	Mode         string   `json:"mode"`
	MatchedTerms []string `json:"matched_terms"`
	DocIDs       []int    `json:"doc_ids"`
	Results      []string `json:"results"`
	TotalHits    int      `json:"total_hits"`
	MaxErrors    int      `json:"max_errors"`
	Cache        string   `json:"cache"`
}

func (f *fixture) search(t *testing.T, params url.Values) (int, response) {
	t.Helper()
	rec := f.do(t, http.MethodGet, "/api/v1/search?"+params.Encode())
	var resp response
	if rec.Code == http.StatusOK {
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	}
	return rec.Code, resp
}

func TestSearchModes(t *testing.T) {
	f := newFixture(t, false)

	code, resp := f.search(t, url.Values{"q": {"diabetes"}})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "one_word", resp.Mode)
	assert.Equal(t, []int{0, 2}, resp.DocIDs)
	assert.Equal(t, []string{"diabetes type 2\n", "type 1 diabetes mellitus\n"}, resp.Results)

	code, resp = f.search(t, url.Values{"q": {"diabetes hypertension"}})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "free_text", resp.Mode)
	assert.Equal(t, []int{0, 1, 2}, resp.DocIDs)
	assert.Equal(t, []string{"diabetes", "hypertension"}, resp.MatchedTerms)

	// one raw word keeps duplicate postings
	_, resp = f.search(t, url.Values{"q": {"cat!!"}})
	assert.Equal(t, []int{3, 3}, resp.DocIDs)
	_, resp = f.search(t, url.Values{"q": {"cat dog"}})
	assert.Equal(t, []int{3}, resp.DocIDs)
}

func TestSearchEmptyQuery(t *testing.T) {
	f := newFixture(t, false)
	for _, params := range []url.Values{{}, {"q": {""}}, {"q": {"  !! "}}} {
		code, resp := f.search(t, params)
		require.Equal(t, http.StatusOK, code)
		assert.Empty(t, resp.Results)
		assert.NotNil(t, resp.Results)
		assert.Zero(t, resp.TotalHits)
	}
}

func TestSearchMaxErrors(t *testing.T) {
	f := newFixture(t, false)

	_, resp := f.search(t, url.Values{"q": {"diabetis"}})
	assert.Empty(t, resp.DocIDs)

	code, resp := f.search(t, url.Values{"q": {"diabetis"}, "max_errors": {"1"}})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, []int{0, 2}, resp.DocIDs)
	assert.Equal(t, 1, resp.MaxErrors)

	for _, bad := range []string{"-1", "3", "one"} {
		code, _ := f.search(t, url.Values{"q": {"diabetis"}, "max_errors": {bad}})
		assert.Equal(t, http.StatusBadRequest, code, bad)
	}
}

func TestSearchRejectsLongQuery(t *testing.T) {
	f := newFixture(t, false)
	long := make([]byte, 65)
	for i := range long {
		long[i] = 'a'
	}
	code, _ := f.search(t, url.Values{"q": {string(long)}})
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestSearchBeforeIndexReady(t *testing.T) {
	engine := indexer.NewEngine(diagnoses)
	h := New(executor.New(engine, time.Second, nil), engine, Config{MaxErrorsCeiling: 2})
	mux := http.NewServeMux()
	h.Register(mux)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/search?q=diabetes", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/index/stats", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestSearchUsesCache(t *testing.T) {
	f := newFixture(t, true)

	_, first := f.search(t, url.Values{"q": {"diabetes"}})
	_, second := f.search(t, url.Values{"q": {"DIABETES"}})
	assert.Equal(t, "miss", first.Cache)
	assert.Equal(t, "local", second.Cache)
	assert.Equal(t, first.DocIDs, second.DocIDs)
	assert.Equal(t, "DIABETES", second.Query)

	rec := f.do(t, http.MethodGet, "/api/v1/cache/stats")
	require.Equal(t, http.StatusOK, rec.Code)
	var stats cache.Stats
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&stats))
	assert.EqualValues(t, 1, stats.LocalHits)

	rec = f.do(t, http.MethodPost, "/api/v1/cache/invalidate")
	assert.Equal(t, http.StatusOK, rec.Code)
	_, third := f.search(t, url.Values{"q": {"diabetes"}})
	assert.Equal(t, "miss", third.Cache)

	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.CacheHitsTotal.WithLabelValues("local")))
}

func TestCacheEndpointsWithoutCache(t *testing.T) {
	f := newFixture(t, false)

	rec := f.do(t, http.MethodGet, "/api/v1/cache/stats")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"disabled"}`, rec.Body.String())

	rec = f.do(t, http.MethodPost, "/api/v1/cache/invalidate")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestSearchTracksAnalytics(t *testing.T) {
	f := newFixture(t, false)
	f.search(t, url.Values{"q": {"asthma"}})

	require.Len(t, f.tracked.events, 1)
	event, ok := f.tracked.events[0].(analytics.SearchEvent)
	require.True(t, ok)
	assert.Equal(t, "asthma", event.Query)
	assert.Equal(t, "one_word", event.Mode)
	assert.Zero(t, event.TotalHits)
	assert.Equal(t, "miss", event.CacheStatus)
}

func TestIndexStatsAndReload(t *testing.T) {
	f := newFixture(t, false)

	rec := f.do(t, http.MethodGet, "/api/v1/index/stats")
	require.Equal(t, http.StatusOK, rec.Code)
	var status indexer.ReloadStatus
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&status))
	assert.Equal(t, 4, status.Stats.Documents)
	assert.Equal(t, indexer.TriggerStartup, status.Trigger)

	rec = f.do(t, http.MethodPost, "/api/v1/index/reload")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, indexer.TriggerAPI, f.engine.LastReload().Trigger)

	rec = f.do(t, http.MethodGet, "/api/v1/index/reload")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
