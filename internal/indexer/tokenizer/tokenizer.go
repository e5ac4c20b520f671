// Package tokenizer turns raw text into the stemmed token stream shared by
// index construction and query resolution. Text is NFKC-folded and
// lower-cased, split on UAX#29 word boundaries, restricted to ASCII
// alphanumeric words, and stemmed with the Snowball English stemmer.
package tokenizer

import (
	"strings"

	"github.com/clipperhouse/uax29/v2/words"
	"github.com/kljensen/snowball/english"
	"golang.org/x/text/unicode/norm"
)

// Tokenize returns the normalized tokens of text in order of appearance.
func Tokenize(text string) []string {
	segs := words.FromString(normalize(text))
	tokens := make([]string, 0, len(text)/6)
	for segs.Next() {
		w := segs.Value()
		if !isASCIIAlnum(w) {
			continue
		}
		tokens = append(tokens, stem(w))
	}
	return tokens
}

func normalize(s string) string {
	return strings.ToLower(norm.NFKC.String(s))
}

func stem(word string) string {
	return english.Stem(word, true)
}

// isASCIIAlnum reports whether w is non-empty and made only of [a-z0-9].
// Input is already lower-cased.
func isASCIIAlnum(w string) bool {
	if w == "" {
		return false
	}
	for i := 0; i < len(w); i++ {
		c := w[i]
		if (c < 'a' || c > 'z') && (c < '0' || c > '9') {
			return false
		}
	}
	return true
}
