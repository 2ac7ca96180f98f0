package model

import (
	"sort"
	"strconv"
	"strings"
)

// SortedKeys returns the keys of an int-keyed map in ascending order
func SortedKeys[V any](m map[int]V) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}

// Clamp01 bounds v to [0, 1]
func Clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func itoa(i int) string {
	return strconv.Itoa(i)
}

// RomanToInt converts a lower- or upper-case roman numeral; invalid input yields 0
func RomanToInt(s string) int {
	values := map[rune]int{'i': 1, 'v': 5, 'x': 10, 'l': 50, 'c': 100, 'd': 500, 'm': 1000}
	runes := []rune(strings.ToLower(s))
	total := 0
	for i, r := range runes {
		v, ok := values[r]
		if !ok {
			return 0
		}
		if i+1 < len(runes) && v < values[runes[i+1]] {
			total -= v
		} else {
			total += v
		}
	}
	if total <= 0 || toRoman(total) != string(runes) {
		return 0
	}
	return total
}

func toRoman(n int) string {
	numerals := []struct {
		value  int
		symbol string
	}{
		{1000, "m"}, {900, "cm"}, {500, "d"}, {400, "cd"}, {100, "c"}, {90, "xc"},
		{50, "l"}, {40, "xl"}, {10, "x"}, {9, "ix"}, {5, "v"}, {4, "iv"}, {1, "i"},
	}
	var b strings.Builder
	for _, num := range numerals {
		for n >= num.value {
			b.WriteString(num.symbol)
			n -= num.value
		}
	}
	return b.String()
}

// IsTruncated reports whether footnote text looks cut off at a page boundary
// A trailing , ; or : or more URLs than sentence terminators counts as truncated.
func IsTruncated(text string) bool {
	text = strings.TrimSpace(text)
	if text == "" {
		return false
	}
	switch text[len(text)-1] {
	case ',', ';', ':':
		return true
	}
	urls := strings.Count(strings.ToLower(text), "http")
	terminators := strings.Count(text, ". ") + strings.Count(text, "? ") + strings.Count(text, "! ")
	if strings.HasSuffix(text, ".") || strings.HasSuffix(text, "?") || strings.HasSuffix(text, "!") {
		terminators++
	}
	return urls > terminators
}
