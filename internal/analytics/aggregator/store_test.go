package aggregator

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/fuzzysearch/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/fuzzysearch/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/fuzzysearch/pkg/postgres"
)

// testStore needs FZS_TEST_POSTGRES=1 and a reachable database configured
// through the usual FZS_POSTGRES_* variables.
func testStore(t *testing.T) *Store {
	t.Helper()
	if os.Getenv("FZS_TEST_POSTGRES") == "" {
		t.Skip("set FZS_TEST_POSTGRES=1 to run against PostgreSQL")
	}
	cfg := config.Default()
	cfg.Postgres.Enabled = true
	if host := os.Getenv("FZS_POSTGRES_HOST"); host != "" {
		cfg.Postgres.Host = host
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	db, err := postgres.New(ctx, cfg.Postgres)
	if err != nil {
		t.Skipf("postgres not available: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	store := NewStore(db)
	require.NoError(t, store.EnsureSchema(ctx))
	return store
}

func TestSaveAndList(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	agg := analytics.NewAggregator(0)
	agg.Record(analytics.SearchEvent{Type: analytics.EventSearch, Query: "diabetes", Mode: "one_word", TotalHits: 2})
	require.NoError(t, store.SaveSnapshot(ctx, agg.Stats()))

	latest, err := store.LatestSnapshot(ctx)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.GreaterOrEqual(t, latest.Stats.TotalSearches, int64(1))

	list, err := store.ListSnapshots(ctx, 5)
	require.NoError(t, err)
	assert.NotEmpty(t, list)
	assert.LessOrEqual(t, len(list), 5)
}
