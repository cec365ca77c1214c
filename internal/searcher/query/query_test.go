package query

import (
	"context"
	"fmt"
	"math/rand"
	"slices"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/fuzzysearch/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/fuzzysearch/internal/searcher/parser"
	apperrors "github.com/Adithya-Monish-Kumar-K/fuzzysearch/pkg/errors"
)

var diagnoses = []string{
	"diabetes type 2",
	"hypertension",
	"type 1 diabetes mellitus",
}

func newEngine(docs []string, maxErrors int) *Engine {
	return New(index.Build(docs), maxErrors)
}

func TestDiagnosisScenario(t *testing.T) {
	e := newEngine(diagnoses, 0)

	assert.Equal(t, []int{0, 2}, e.OneWordQuery("diabetes"))
	assert.Equal(t, []int{0, 1, 2}, e.FreeTextQuery("diabetes hypertension"))

	texts, err := e.Handle("diabetes hypertension")
	require.NoError(t, err)
	assert.Equal(t, diagnoses, texts)
}

func TestEmptyQueries(t *testing.T) {
	e := newEngine(diagnoses, 0)
	for _, q := range []string{"", "   ", "!!!", "-- ??"} {
		assert.Empty(t, e.OneWordQuery(q), q)
		assert.NotNil(t, e.OneWordQuery(q), q)
		assert.Empty(t, e.FreeTextQuery(q), q)

		texts, err := e.Handle(q)
		require.NoError(t, err)
		assert.Empty(t, texts)
	}

	texts, err := e.IDToText(nil)
	require.NoError(t, err)
	assert.Empty(t, texts)
}

func TestOneWordKeepsDuplicatesFreeTextDoesNot(t *testing.T) {
	e := newEngine([]string{"cat cat", "a cat", "cats"}, 0)

	// "cat" occurs twice in doc 0 and is contained in "cats".
	assert.Equal(t, []int{0, 0, 1, 2}, e.OneWordQuery("cat"))
	assert.Equal(t, []int{0, 1, 2}, e.FreeTextQuery("cat"))

	texts, err := e.Handle("cat")
	require.NoError(t, err)
	assert.Equal(t, []string{"cat cat", "cat cat", "a cat", "cats"}, texts)
}

func TestMatchesSubstringsOfVocabularyTerms(t *testing.T) {
	e := newEngine([]string{"prediabetes screening", "diabetes"}, 0)
	assert.Equal(t, []int{0, 1}, e.OneWordQuery("diabetes"))
	assert.Equal(t, []int{0}, e.OneWordQuery("screen"))
	assert.Empty(t, e.OneWordQuery("prediabetic"))
}

func TestOneWordWithSeveralTermsIsFreeText(t *testing.T) {
	e := newEngine([]string{"cat dog", "dog", "cat", "cat cat"}, 0)
	for _, q := range []string{"cat dog", "cat-dog", "cat,dog", "dog cat cat"} {
		assert.Equal(t, e.FreeTextQuery(q), e.OneWordQuery(q), q)
	}
}

func TestHandleDispatchesOnRawWords(t *testing.T) {
	e := newEngine([]string{"cat cat"}, 0)

	// one raw word: the one-word path keeps the duplicate
	texts, err := e.Handle("cat!!")
	require.NoError(t, err)
	assert.Equal(t, []string{"cat cat", "cat cat"}, texts)

	// two raw words: the free-text path dedupes
	texts, err = e.Handle("cat dog")
	require.NoError(t, err)
	assert.Equal(t, []string{"cat cat"}, texts)
}

func TestQueriesAreCaseInsensitive(t *testing.T) {
	e := newEngine(diagnoses, 0)
	assert.Equal(t, e.OneWordQuery("diabetes"), e.OneWordQuery("DIABETES"))
	assert.Equal(t, e.FreeTextQuery("type diabetes"), e.FreeTextQuery("Type DiaBetes"))
}

func TestFuzzyBudget(t *testing.T) {
	exact := newEngine(diagnoses, 0)
	fuzzy := newEngine(diagnoses, 1)

	assert.Empty(t, exact.OneWordQuery("diabetis"))
	assert.Equal(t, []int{0, 2}, fuzzy.OneWordQuery("diabetis"))

	assert.Empty(t, exact.OneWordQuery("typo"))
	assert.Equal(t, []int{0, 2}, fuzzy.OneWordQuery("typo"))

	// one edit lets "type" land inside "hypertension"
	assert.Equal(t, []int{0, 1, 2}, fuzzy.OneWordQuery("type"))
	assert.Equal(t, []int{0, 2}, exact.OneWordQuery("type"))
}

func TestIDToText(t *testing.T) {
	e := newEngine(diagnoses, 0)

	texts, err := e.IDToText([]int{2, 0, 2})
	require.NoError(t, err)
	assert.Equal(t, []string{diagnoses[2], diagnoses[0], diagnoses[2]}, texts)

	_, err = e.IDToText([]int{0, 3})
	assert.ErrorIs(t, err, apperrors.ErrLookupMiss)
	_, err = e.IDToText([]int{-1})
	assert.ErrorIs(t, err, apperrors.ErrLookupMiss)
}

func TestHandlePreservesOriginalLines(t *testing.T) {
	docs := []string{"Type 2 Diabetes\n", "Crohn's disease\n"}
	e := newEngine(docs, 0)

	texts, err := e.Handle("crohn's")
	require.NoError(t, err)
	assert.Equal(t, []string{"Crohn's disease\n"}, texts)
}

func TestExecute(t *testing.T) {
	e := newEngine(diagnoses, 0)

	res, err := e.Execute(context.Background(), parser.Parse("diabetes hypertension"))
	require.NoError(t, err)
	assert.Equal(t, parser.ModeFreeText, res.Mode)
	assert.Equal(t, []string{"diabetes", "hypertension"}, res.Terms)
	assert.Equal(t, []string{"diabetes", "hypertension"}, res.MatchedTerms)
	assert.Equal(t, []int{0, 1, 2}, res.DocIDs)
	assert.Equal(t, diagnoses, res.Results)
	assert.Equal(t, 3, res.TotalHits)
	// two query terms, each scanned against all six vocabulary terms
	assert.Equal(t, 12, res.Comparisons)

	res, err = e.Execute(context.Background(), parser.Parse("nothing"))
	require.NoError(t, err)
	assert.Equal(t, parser.ModeOneWord, res.Mode)
	assert.Empty(t, res.DocIDs)
	assert.NotNil(t, res.MatchedTerms)
	assert.Equal(t, 0, res.TotalHits)
}

func TestExecuteAgreesWithHandle(t *testing.T) {
	e := newEngine([]string{"cat cat", "a cat dog", "dog"}, 1)
	for _, q := range []string{"cat", "cat!!", "cat dog", "dgo", ""} {
		want, err := e.Handle(q)
		require.NoError(t, err)
		res, err := e.Execute(context.Background(), parser.Parse(q))
		require.NoError(t, err)
		assert.Equal(t, want, res.Results, q)
		assert.Equal(t, 1, res.MaxErrors)
	}
}

func TestFreeTextIsSortedAndDistinct(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	words := []string{"ab", "ba", "abc", "c", "ca", "b'a", "a1"}
	docs := make([]string, 200)
	for i := range docs {
		n := 1 + rng.Intn(5)
		parts := make([]string, n)
		for j := range parts {
			parts[j] = words[rng.Intn(len(words))]
		}
		docs[i] = strings.Join(parts, " ")
	}
	e := newEngine(docs, 0)

	for _, q := range []string{"ab c", "ba a1", "b'a ca abc"} {
		ids := e.FreeTextQuery(q)
		assert.True(t, slices.IsSorted(ids), q)
		assert.Equal(t, len(slices.Compact(slices.Clone(ids))), len(ids), q)
	}
	for _, q := range []string{"ab", "c", "a"} {
		assert.True(t, slices.IsSorted(e.OneWordQuery(q)), q)
	}
}

func BenchmarkFreeTextQuery(b *testing.B) {
	docs := make([]string, 5000)
	for i := range docs {
		docs[i] = fmt.Sprintf("patient %d presents with type %d diabetes and hypertension stage %d", i, i%3, i%4)
	}
	e := newEngine(docs, 1)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		e.FreeTextQuery("diabetis hypertension")
	}
}

func TestExecuteStopsWhenContextDone(t *testing.T) {
	docs := make([]string, 3*cancelCheckEvery)
	for i := range docs {
		docs[i] = fmt.Sprintf("term%d", i)
	}
	e := newEngine(docs, 2)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	for _, q := range []string{"term7", "term7 term8"} {
		res, err := e.Execute(ctx, parser.Parse(q))
		assert.ErrorIs(t, err, context.Canceled, q)
		assert.Nil(t, res)
	}

	// the context-free entry points still scan everything
	assert.NotEmpty(t, e.OneWordQuery("term7"))
}
