// Package tokenizer turns raw text into index terms. It lower-cases the input,
// blanks out every byte that is not an ASCII letter, digit or apostrophe, and
// splits what remains on whitespace. There is no stemming and no stop-word
// removal: every surviving run is a term.
package tokenizer

import "strings"

// isTermByte reports whether b survives normalisation. Upper-case ASCII is
// folded before this check.
func isTermByte(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= '0' && b <= '9') || b == '\''
}

// Normalize lower-cases ASCII letters and replaces every byte outside
// {a-z, 0-9, ', space} with a space. Case mapping is ASCII only: multi-byte
// UTF-8 sequences, upper-case ones included, become one space per byte.
func Normalize(text string) string {
	buf := []byte(text)
	for i, b := range buf {
		if b >= 'A' && b <= 'Z' {
			buf[i] = b + ('a' - 'A')
			continue
		}
		if !isTermByte(b) && b != ' ' {
			buf[i] = ' '
		}
	}
	return string(buf)
}

// Tokenize returns the terms of text in order, repeats included. Blank input
// yields an empty, non-nil slice.
func Tokenize(text string) []string {
	terms := strings.Fields(Normalize(text))
	if terms == nil {
		return []string{}
	}
	return terms
}

// WordCount returns the number of whitespace-separated words in raw, before
// any normalisation. Query dispatch keys off this count, so "cat!!" is one
// word even though "cat dog" is two.
func WordCount(raw string) int {
	return len(strings.Fields(raw))
}
