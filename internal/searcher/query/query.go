// Package query answers searches against one immutable index snapshot.
//
// Every query term is compared against every vocabulary term with the bitap
// matcher, the query term being the needle and the vocabulary term the
// haystack. A query term therefore matches any vocabulary term that contains
// it within the error budget: "diabetes" finds "prediabetes".
package query

import (
	"context"
	"sort"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/Adithya-Monish-Kumar-K/fuzzysearch/internal/indexer/bitap"
	"github.com/Adithya-Monish-Kumar-K/fuzzysearch/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/fuzzysearch/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/fuzzysearch/internal/searcher/parser"
)

// Engine holds no mutable state; one value may serve any number of
// goroutines.
type Engine struct {
	idx     *index.Index
	matcher bitap.Matcher
}

// New returns an engine over idx with the given edit budget. Zero keeps
// matching exact.
func New(idx *index.Index, maxErrors int) *Engine {
	return &Engine{
		idx:     idx,
		matcher: bitap.Matcher{MaxErrors: maxErrors},
	}
}

func (e *Engine) MaxErrors() int {
	return e.matcher.MaxErrors
}

// cancelCheckEvery is how many vocabulary terms are compared between checks
// of the caller's context.
const cancelCheckEvery = 512

// scan collects what a query touched, for Execute, and stops the scan once
// ctx is done.
type scan struct {
	ctx         context.Context
	err         error
	comparisons int
	matched     map[string]struct{}
	order       []string
}

// stopped reports whether the scan was abandoned. It polls ctx once every
// cancelCheckEvery comparisons.
func (s *scan) stopped() bool {
	if s == nil || s.ctx == nil {
		return false
	}
	if s.err != nil {
		return true
	}
	if s.comparisons%cancelCheckEvery == 0 {
		s.err = s.ctx.Err()
	}
	return s.err != nil
}

func (s *scan) match(term string) {
	if s == nil {
		return
	}
	if s.matched == nil {
		s.matched = make(map[string]struct{})
	}
	if _, ok := s.matched[term]; ok {
		return
	}
	s.matched[term] = struct{}{}
	s.order = append(s.order, term)
}

// OneWordQuery returns the IDs of documents holding any vocabulary term that
// matches q's single term. A document appears once per occurrence of each
// matching term, so IDs can repeat. Queries that tokenize to several terms
// are answered by FreeTextQuery.
func (e *Engine) OneWordQuery(q string) []int {
	return e.oneWord(q, nil)
}

// FreeTextQuery returns the sorted, distinct IDs of documents matching any of
// q's terms.
func (e *Engine) FreeTextQuery(q string) []int {
	return e.freeText(q, nil)
}

func (e *Engine) oneWord(q string, s *scan) []int {
	terms := tokenizer.Tokenize(q)
	switch len(terms) {
	case 0:
		return []int{}
	case 1:
	default:
		return e.freeText(q, s)
	}
	needle := terms[0]
	ids := []int{}
	for _, term := range e.idx.Vocabulary() {
		if s.stopped() {
			return nil
		}
		if s != nil {
			s.comparisons++
		}
		if !e.matcher.Match(term, needle).Found() {
			continue
		}
		s.match(term)
		ids = append(ids, e.idx.Postings(term)...)
	}
	sort.Ints(ids)
	return ids
}

func (e *Engine) freeText(q string, s *scan) []int {
	terms := tokenizer.Tokenize(q)
	if len(terms) == 0 {
		return []int{}
	}
	set := roaring.New()
	for _, term := range terms {
		for _, id := range e.oneWord(term, s) {
			set.Add(uint32(id))
		}
		if s.stopped() {
			return nil
		}
	}
	ids := make([]int, 0, set.GetCardinality())
	it := set.Iterator()
	for it.HasNext() {
		ids = append(ids, int(it.Next()))
	}
	return ids
}

// IDToText maps IDs to their original lines, in order and keeping repeats.
// An ID outside the index fails with ErrLookupMiss; that only happens if IDs
// from one snapshot are looked up in another.
func (e *Engine) IDToText(ids []int) ([]string, error) {
	return e.idx.Lookup(ids)
}

// Handle runs raw as a one-word query if it is a single whitespace-separated
// word and as a free-text query otherwise, and returns the matching lines.
func (e *Engine) Handle(raw string) ([]string, error) {
	var ids []int
	if parser.Parse(raw).Mode == parser.ModeFreeText {
		ids = e.FreeTextQuery(raw)
	} else {
		ids = e.OneWordQuery(raw)
	}
	return e.IDToText(ids)
}

// Result is a fully answered query.
type Result struct {
	Query        string      `json:"query"`
	Mode         parser.Mode `json:"mode"`
	Terms        []string    `json:"terms"`
	MaxErrors    int         `json:"max_errors"`
	MatchedTerms []string    `json:"matched_terms"`
	DocIDs       []int       `json:"doc_ids"`
	Results      []string    `json:"results"`
	TotalHits    int         `json:"total_hits"`
	Comparisons  int         `json:"comparisons"`
}

// Execute answers plan and reports which vocabulary terms matched. The IDs
// and texts are the same Handle would produce. The vocabulary scan stops
// early with ctx's error once ctx is done.
func (e *Engine) Execute(ctx context.Context, plan *parser.QueryPlan) (*Result, error) {
	s := &scan{ctx: ctx}
	var ids []int
	if plan.Mode == parser.ModeFreeText {
		ids = e.freeText(plan.RawQuery, s)
	} else {
		ids = e.oneWord(plan.RawQuery, s)
	}
	if s.err != nil {
		return nil, s.err
	}
	texts, err := e.IDToText(ids)
	if err != nil {
		return nil, err
	}
	matched := s.order
	if matched == nil {
		matched = []string{}
	}
	return &Result{
		Query:        plan.RawQuery,
		Mode:         plan.Mode,
		Terms:        plan.Terms,
		MaxErrors:    e.matcher.MaxErrors,
		MatchedTerms: matched,
		DocIDs:       ids,
		Results:      texts,
		TotalHits:    len(ids),
		Comparisons:  s.comparisons,
	}, nil
}
