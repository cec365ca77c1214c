// Package index holds the inverted index: term -> posting list, plus the
// reverse lookup from document ID to the verbatim document text.
//
// An Index is built once by a Builder and never mutated afterwards, so any
// number of goroutines may read it without locking. Rebuilding means building
// a new Index and swapping the pointer.
package index

import (
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/fuzzysearch/internal/indexer/tokenizer"
	apperrors "github.com/Adithya-Monish-Kumar-K/fuzzysearch/pkg/errors"
)

// Index is an immutable inverted index over documents 0..N-1.
type Index struct {
	postings   map[string]PostingList
	vocabulary []string
	docs       []string
	numPosting int
}

// Builder accumulates documents. It is not safe for concurrent use.
type Builder struct {
	postings   map[string]PostingList
	vocabulary []string
	docs       []string
	numPosting int
}

func NewBuilder() *Builder {
	return &Builder{
		postings: make(map[string]PostingList),
	}
}

// Add stores line under the next document ID and appends that ID to the
// posting list of every term in it, once per occurrence. It returns the ID.
func (b *Builder) Add(line string) int {
	docID := len(b.docs)
	b.docs = append(b.docs, line)
	for _, term := range tokenizer.Tokenize(line) {
		list, exists := b.postings[term]
		if !exists {
			b.vocabulary = append(b.vocabulary, term)
		}
		b.postings[term] = append(list, docID)
		b.numPosting++
	}
	return docID
}

// Build freezes the builder into an Index. The builder must not be used
// afterwards.
func (b *Builder) Build() *Index {
	idx := &Index{
		postings:   b.postings,
		vocabulary: b.vocabulary,
		docs:       b.docs,
		numPosting: b.numPosting,
	}
	b.postings = nil
	b.vocabulary = nil
	b.docs = nil
	return idx
}

// Build indexes docs in order, assigning IDs 0..len(docs)-1.
func Build(docs []string) *Index {
	b := NewBuilder()
	for _, line := range docs {
		b.Add(line)
	}
	return b.Build()
}

// Postings returns the posting list for term, or nil. Callers must not
// modify the returned slice.
func (idx *Index) Postings(term string) PostingList {
	return idx.postings[term]
}

// Vocabulary returns every distinct term in first-seen order. Callers must
// not modify the returned slice.
func (idx *Index) Vocabulary() []string {
	return idx.vocabulary
}

// Len returns the number of documents.
func (idx *Index) Len() int {
	return len(idx.docs)
}

// Text returns the original text of a document.
func (idx *Index) Text(docID int) (string, bool) {
	if docID < 0 || docID >= len(idx.docs) {
		return "", false
	}
	return idx.docs[docID], true
}

// Lookup maps IDs to document text, preserving order. An unknown ID fails
// the whole lookup with ErrLookupMiss.
func (idx *Index) Lookup(ids []int) ([]string, error) {
	texts := make([]string, 0, len(ids))
	for _, id := range ids {
		text, ok := idx.Text(id)
		if !ok {
			return nil, fmt.Errorf("document %d of %d: %w", id, len(idx.docs), apperrors.ErrLookupMiss)
		}
		texts = append(texts, text)
	}
	return texts, nil
}

// Entries returns every term with its posting list in vocabulary order.
func (idx *Index) Entries() []TermEntry {
	entries := make([]TermEntry, 0, len(idx.vocabulary))
	for _, term := range idx.vocabulary {
		entries = append(entries, TermEntry{Term: term, Postings: idx.postings[term]})
	}
	return entries
}

func (idx *Index) Stats() Stats {
	return Stats{
		Documents: len(idx.docs),
		Terms:     len(idx.vocabulary),
		Postings:  idx.numPosting,
	}
}
