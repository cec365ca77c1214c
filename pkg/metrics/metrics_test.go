package metrics

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewUsesIndependentRegistries(t *testing.T) {
	// Two instances must not collide on registration.
	a := New(nil)
	b := New(nil)

	a.SearchQueriesTotal.WithLabelValues("one_word", "hit").Inc()
	assert.Equal(t, 1.0, testutil.ToFloat64(a.SearchQueriesTotal.WithLabelValues("one_word", "hit")))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.SearchQueriesTotal.WithLabelValues("one_word", "hit")))
}

func TestHandlerExposesCollectors(t *testing.T) {
	m := New(nil)
	m.IndexDocuments.Set(3)
	m.BitapComparisons.Add(6)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)

	assert.Contains(t, string(body), "index_documents 3")
	assert.Contains(t, string(body), "search_bitap_comparisons_total 6")
}
