package extract

import (
	"strings"
	"unicode"
)

var stopwords = map[string]bool{
	"a": true, "an": true, "and": true, "are": true, "as": true, "at": true, "be": true,
	"by": true, "for": true, "from": true, "has": true, "have": true, "in": true, "is": true,
	"it": true, "its": true, "of": true, "on": true, "or": true, "that": true, "the": true,
	"this": true, "to": true, "was": true, "were": true, "which": true, "with": true,
	"will": true, "not": true, "but": true, "their": true, "they": true, "been": true,
}

// Tokens lowercases text and splits it into letter/digit runs
func Tokens(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// ContentTokens returns the distinct non-stopword tokens of at least three characters
func ContentTokens(text string) map[string]bool {
	set := make(map[string]bool)
	for _, t := range Tokens(text) {
		if len([]rune(t)) < 3 || stopwords[t] {
			continue
		}
		set[t] = true
	}
	return set
}

// SharedTokens counts content tokens present in both texts
func SharedTokens(a, b string) int {
	ta := ContentTokens(a)
	n := 0
	for t := range ContentTokens(b) {
		if ta[t] {
			n++
		}
	}
	return n
}

// SharesRun reports whether a and b share a contiguous run of n tokens
func SharesRun(a, b string, n int) bool {
	ta, tb := Tokens(a), Tokens(b)
	if n <= 0 || len(ta) < n || len(tb) < n {
		return false
	}
	runs := make(map[string]bool, len(tb)-n+1)
	for i := 0; i+n <= len(tb); i++ {
		runs[strings.Join(tb[i:i+n], " ")] = true
	}
	for i := 0; i+n <= len(ta); i++ {
		if runs[strings.Join(ta[i:i+n], " ")] {
			return true
		}
	}
	return false
}

// Normalize collapses whitespace and lowercases text for substring checks
func Normalize(text string) string {
	return strings.ToLower(strings.Join(strings.Fields(text), " "))
}

// WordCount counts whitespace-separated words
func WordCount(text string) int {
	return len(strings.Fields(text))
}
