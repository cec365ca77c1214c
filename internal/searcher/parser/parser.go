// Package parser turns a raw query string into a QueryPlan. The only decision
// it makes is the dispatch mode, which depends on how many whitespace-separated
// words the user typed, not on how many terms survive tokenization.
package parser

import (
	"github.com/Adithya-Monish-Kumar-K/fuzzysearch/internal/indexer/tokenizer"
)

type Mode int

const (
	ModeOneWord Mode = iota
	ModeFreeText
)

func (m Mode) String() string {
	switch m {
	case ModeOneWord:
		return "one_word"
	case ModeFreeText:
		return "free_text"
	default:
		return "unknown"
	}
}

// MarshalText lets Mode appear by name in JSON responses and cache entries.
func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *Mode) UnmarshalText(text []byte) error {
	switch string(text) {
	case "free_text":
		*m = ModeFreeText
	default:
		*m = ModeOneWord
	}
	return nil
}

type QueryPlan struct {
	RawQuery string
	Mode     Mode
	// Terms are the tokenized query terms, for logging and analytics.
	// Execution re-tokenizes from RawQuery.
	Terms []string
}

// Parse never fails: an empty or all-punctuation query yields a plan with no
// terms, which executes to an empty result.
func Parse(query string) *QueryPlan {
	plan := &QueryPlan{
		RawQuery: query,
		Mode:     ModeOneWord,
		Terms:    tokenizer.Tokenize(query),
	}
	if tokenizer.WordCount(query) > 1 {
		plan.Mode = ModeFreeText
	}
	return plan
}

// Empty reports whether the plan can only produce an empty result.
func (p *QueryPlan) Empty() bool {
	return len(p.Terms) == 0
}
