// Package bitap implements bit-parallel approximate substring matching (the
// bitap / shift-or algorithm extended with a Levenshtein automaton).
//
// The needle is packed into a single machine word: bit i, counted from the
// most significant of the needle's m bits, tracks needle[i]. A zero bit means
// "the prefix ending here still matches". Each haystack byte shifts the state
// right by one and ORs in that byte's alphabet mask, so the low bit clears
// exactly when the whole needle has been consumed. Error levels are stacked
// rows of the same automaton, each fed by the row below it through the
// insert, delete and replace transitions.
package bitap

// MaxNeedleLen is the longest needle that fits in one automaton word. Longer
// needles never match.
const MaxNeedleLen = 64

// Match is the outcome of a search. A miss is reported as an empty Substring
// with Errors == -1.
type Match struct {
	// Substring is the haystack window that matched. For fuzzy matches the
	// window is widened by one byte on each side, clipped to the haystack.
	Substring string
	// Errors is the number of edits used, or -1 when nothing matched.
	Errors int
}

// NoMatch is the zero-information result returned on a miss.
var NoMatch = Match{Substring: "", Errors: -1}

// Found reports whether the search produced a match.
func (m Match) Found() bool {
	return m.Errors >= 0
}

// Search reports whether needle occurs in haystack with at most maxErrors
// edits. The exact pass runs first and wins if it matches anywhere; otherwise
// each error level is tried in turn and the first level that matches is
// returned. A negative maxErrors is treated as zero.
//
// Empty needles and empty haystacks never match.
func Search(haystack, needle string, maxErrors int) Match {
	m := len(needle)
	n := len(haystack)
	if m == 0 || n == 0 || m > MaxNeedleLen {
		return NoMatch
	}
	if maxErrors < 0 {
		maxErrors = 0
	}

	alphabet := buildAlphabet(haystack, needle)
	empty := emptyColumn(m)

	// Row 0 is the underground sentinel, row k holds error level k.
	levels := maxErrors + 2
	stride := n + 1
	table := make([]uint64, levels*stride)
	for j := 0; j < stride; j++ {
		table[j] = empty
	}

	exact := table[stride : 2*stride]
	exact[0] = empty
	for j := 1; j <= n; j++ {
		col := (exact[j-1] >> 1) | alphabet[haystack[j-1]]
		exact[j] = col
		if col&1 == 0 {
			return Match{Substring: haystack[j-m : j], Errors: 0}
		}
	}

	for k := 2; k < levels; k++ {
		row := table[k*stride : (k+1)*stride]
		below := table[(k-1)*stride : k*stride]
		row[0] = empty
		for j := 1; j <= n; j++ {
			col := (row[j-1] >> 1) | alphabet[haystack[j-1]]
			insert := col & below[j-1]
			del := col & (below[j] >> 1)
			replace := col & (below[j-1] >> 1)
			res := insert & del & replace
			row[j] = res
			if res&1 == 0 {
				start := max(0, j-m-1)
				end := min(j+1, n)
				return Match{Substring: haystack[start:end], Errors: k - 1}
			}
		}
	}
	return NoMatch
}

// Contains is shorthand for Search(haystack, needle, maxErrors).Found().
func Contains(haystack, needle string, maxErrors int) bool {
	return Search(haystack, needle, maxErrors).Found()
}

// buildAlphabet computes the mask for every byte that appears in haystack.
// Bytes absent from the haystack are never looked up, so their slots stay
// zero.
func buildAlphabet(haystack, needle string) *[256]uint64 {
	var alphabet [256]uint64
	var seen [256]bool
	for i := 0; i < len(haystack); i++ {
		c := haystack[i]
		if seen[c] {
			continue
		}
		seen[c] = true
		var mask uint64
		for j := 0; j < len(needle); j++ {
			mask <<= 1
			if needle[j] != c {
				mask |= 1
			}
		}
		alphabet[c] = mask
	}
	return &alphabet
}

// emptyColumn returns the m-bit all-ones state: nothing matched yet.
func emptyColumn(m int) uint64 {
	if m >= 64 {
		return ^uint64(0)
	}
	return uint64(1)<<uint(m) - 1
}

// Matcher carries a fixed error budget so callers can pass matching around as
// a value.
type Matcher struct {
	MaxErrors int
}

// Match runs Search with the matcher's budget.
func (m Matcher) Match(haystack, needle string) Match {
	return Search(haystack, needle, m.MaxErrors)
}
