package index

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Adithya-Monish-Kumar-K/fuzzysearch/pkg/errors"
)

var diagnoses = []string{
	"diabetes type 2\n",
	"hypertension\n",
	"type 1 diabetes mellitus\n",
}

func TestBuildAssignsDenseIDsAndKeepsText(t *testing.T) {
	idx := Build(diagnoses)

	require.Equal(t, 3, idx.Len())
	for id, line := range diagnoses {
		text, ok := idx.Text(id)
		require.True(t, ok)
		assert.Equal(t, line, text, "document %d must be verbatim", id)
	}
	_, ok := idx.Text(3)
	assert.False(t, ok)
	_, ok = idx.Text(-1)
	assert.False(t, ok)
}

func TestBuildPostingsInDocumentOrder(t *testing.T) {
	idx := Build(diagnoses)

	assert.Equal(t, PostingList{0, 2}, idx.Postings("diabetes"))
	assert.Equal(t, PostingList{0, 2}, idx.Postings("type"))
	assert.Equal(t, PostingList{1}, idx.Postings("hypertension"))
	assert.Nil(t, idx.Postings("asthma"))
	assert.Equal(t,
		[]string{"diabetes", "type", "2", "hypertension", "1", "mellitus"},
		idx.Vocabulary(),
	)
}

func TestBuildKeepsDuplicatePostings(t *testing.T) {
	idx := Build([]string{"cat cat", "dog", "Cat!"})

	assert.Equal(t, PostingList{0, 0, 2}, idx.Postings("cat"))
	assert.Equal(t, Stats{Documents: 3, Terms: 2, Postings: 4}, idx.Stats())
}

func TestBuildEmptyAndBlankDocuments(t *testing.T) {
	empty := Build(nil)
	assert.Equal(t, 0, empty.Len())
	assert.Empty(t, empty.Vocabulary())

	idx := Build([]string{"\n", "   ", "asthma"})
	assert.Equal(t, 3, idx.Len())
	assert.Equal(t, PostingList{2}, idx.Postings("asthma"))
}

func TestBuildIsDeterministic(t *testing.T) {
	a := Build(diagnoses)
	b := Build(diagnoses)
	assert.Equal(t, a.Entries(), b.Entries())
	assert.Equal(t, a.Stats(), b.Stats())
}

func TestBuilderAddReturnsID(t *testing.T) {
	b := NewBuilder()
	assert.Equal(t, 0, b.Add("first"))
	assert.Equal(t, 1, b.Add("second first"))
	idx := b.Build()
	assert.Equal(t, PostingList{0, 1}, idx.Postings("first"))
}

func TestLookup(t *testing.T) {
	idx := Build(diagnoses)

	texts, err := idx.Lookup([]int{2, 0, 2})
	require.NoError(t, err)
	assert.Equal(t, []string{diagnoses[2], diagnoses[0], diagnoses[2]}, texts)

	texts, err = idx.Lookup(nil)
	require.NoError(t, err)
	assert.Empty(t, texts)

	_, err = idx.Lookup([]int{0, 7})
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrLookupMiss))
}

func BenchmarkBuild(b *testing.B) {
	docs := make([]string, 5000)
	for i := range docs {
		docs[i] = fmt.Sprintf("chronic kidney disease stage %d with hypertension %d\n", i%5, i)
	}
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = Build(docs)
	}
}
