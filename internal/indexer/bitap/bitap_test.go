package bitap

import (
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearchExact(t *testing.T) {
	tests := []struct {
		haystack, needle string
		want             Match
	}{
		{"diabetes", "diabetes", Match{"diabetes", 0}},
		{"prediabetes", "diabetes", Match{"diabetes", 0}},
		{"diabetes", "diabet", Match{"diabet", 0}},
		{"cats", "cat", Match{"cat", 0}},
		{"a", "a", Match{"a", 0}},
		{"2", "2", Match{"2", 0}},
		{"crohn's", "n's", Match{"n's", 0}},
		{"cat", "cats", NoMatch},
		{"diabetes", "diabetis", NoMatch},
		{"a", "b", NoMatch},
	}
	for _, tt := range tests {
		t.Run(tt.haystack+"/"+tt.needle, func(t *testing.T) {
			assert.Equal(t, tt.want, Search(tt.haystack, tt.needle, 0))
		})
	}
}

func TestSearchFuzzy(t *testing.T) {
	tests := []struct {
		haystack, needle string
		maxErrors        int
		want             Match
	}{
		{"diabetes", "diabetis", 1, Match{"diabetes", 1}},
		{"hypertension", "hypertnsion", 1, Match{"hypertension", 1}},
		{"hypertension", "hypertenshun", 2, Match{"hypertension", 2}},
		{"mellitus", "melitus", 1, Match{"mellitus", 1}},
		{"type", "typo", 1, Match{"type", 1}},
		{"abc", "abd", 1, Match{"abc", 1}},
		{"ab", "ba", 1, Match{"ab", 1}},
		{"a", "b", 1, Match{"a", 1}},
		{"1", "2", 1, Match{"1", 1}},
		{"abc", "xyz", 1, NoMatch},
		{"abc", "xyz", 2, NoMatch},
		{"abc", "xyz", 3, Match{"ab", 3}},
		{"x", "abcdef", 2, NoMatch},
	}
	for _, tt := range tests {
		t.Run(tt.haystack+"/"+tt.needle, func(t *testing.T) {
			assert.Equal(t, tt.want, Search(tt.haystack, tt.needle, tt.maxErrors))
		})
	}
}

func TestSearchKittenSitting(t *testing.T) {
	for budget := 0; budget < 3; budget++ {
		assert.False(t, Search("kitten", "sitting", budget).Found(), "budget %d", budget)
	}
	for budget := 3; budget <= 5; budget++ {
		got := Search("kitten", "sitting", budget)
		require.True(t, got.Found(), "budget %d", budget)
		assert.LessOrEqual(t, got.Errors, 3)
		assert.Equal(t, "kitten", got.Substring)
	}
}

func TestSearchExactPassWinsOverFuzzy(t *testing.T) {
	got := Search("prediabetes", "diabetes", 2)
	assert.Equal(t, Match{"diabetes", 0}, got)
}

func TestSearchBoundaries(t *testing.T) {
	assert.Equal(t, NoMatch, Search("", "", 0))
	assert.Equal(t, NoMatch, Search("diabetes", "", 0))
	assert.Equal(t, NoMatch, Search("diabetes", "", 3))
	assert.Equal(t, NoMatch, Search("", "diabetes", 0))
	assert.Equal(t, NoMatch, Search("", "d", 3))
	// negative budgets behave like zero
	assert.Equal(t, Search("cats", "cat", 0), Search("cats", "cat", -4))
	assert.Equal(t, NoMatch, Search("diabetes", "diabetis", -1))
}

func TestSearchWordSizedNeedle(t *testing.T) {
	needle := strings.Repeat("ab", MaxNeedleLen/2)
	haystack := "zz" + needle + "zz"
	assert.Equal(t, Match{needle, 0}, Search(haystack, needle, 0))

	tooLong := needle + "a"
	assert.Equal(t, NoMatch, Search(tooLong+"zz", tooLong, 0))
}

func TestSearchExactMatchesStringsContains(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	const alphabet = "abc'1"
	randString := func(n int) string {
		var sb strings.Builder
		for i := 0; i < n; i++ {
			sb.WriteByte(alphabet[rng.Intn(len(alphabet))])
		}
		return sb.String()
	}
	for i := 0; i < 2000; i++ {
		haystack := randString(1 + rng.Intn(12))
		needle := randString(1 + rng.Intn(5))
		got := Search(haystack, needle, 0)
		want := strings.Contains(haystack, needle)
		require.Equal(t, want, got.Found(), "haystack=%q needle=%q", haystack, needle)
		if want {
			assert.Equal(t, needle, got.Substring)
			assert.Equal(t, 0, got.Errors)
		}
	}
}

func TestSearchFuzzyNeverExceedsBudget(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	const alphabet = "abcd"
	for i := 0; i < 1000; i++ {
		var hs, nd strings.Builder
		for j := 0; j < 1+rng.Intn(10); j++ {
			hs.WriteByte(alphabet[rng.Intn(len(alphabet))])
		}
		for j := 0; j < 1+rng.Intn(6); j++ {
			nd.WriteByte(alphabet[rng.Intn(len(alphabet))])
		}
		budget := rng.Intn(4)
		got := Search(hs.String(), nd.String(), budget)
		if got.Found() {
			assert.LessOrEqual(t, got.Errors, budget)
			assert.True(t, strings.Contains(hs.String(), got.Substring))
		} else {
			assert.Equal(t, NoMatch, got)
		}
	}
}

func TestMatcher(t *testing.T) {
	strict := Matcher{}
	loose := Matcher{MaxErrors: 1}

	assert.False(t, strict.Match("diabetes", "diabetis").Found())
	assert.Equal(t, Match{"diabetes", 1}, loose.Match("diabetes", "diabetis"))
	assert.True(t, Contains("hypertension", "tension", 0))
}

func BenchmarkSearch(b *testing.B) {
	cases := []struct {
		name      string
		maxErrors int
	}{
		{"exact", 0},
		{"one_error", 1},
		{"two_errors", 2},
	}
	for _, c := range cases {
		b.Run(c.name, func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				_ = Search("gastroesophageal", "esophagitis", c.maxErrors)
			}
		})
	}
}
