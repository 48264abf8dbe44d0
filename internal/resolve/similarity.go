package resolve

import (
	"sort"
	"strings"
	"unicode"
)

// Normalize lowercases a name, strips punctuation and collapses whitespace
// so that "St. Louis  Cardinals" and "st louis cardinals" compare equal
func Normalize(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	lastSpace := true
	for _, r := range strings.ToLower(name) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastSpace = false
		case unicode.IsSpace(r) || r == '-':
			if !lastSpace {
				b.WriteByte(' ')
				lastSpace = true
			}
		}
		// Other punctuation ('.', ''') is dropped entirely
	}
	return strings.TrimRight(b.String(), " ")
}

// Similarity scores two already-normalized names on a 0-1 scale.
// It takes the better of a plain edit-distance ratio and a token-sort
// ratio, so "Jokic Nikola" still scores high against "Nikola Jokic".
func Similarity(a, b string) float64 {
	if a == b {
		return 1.0
	}
	plain := ratio(a, b)
	sorted := ratio(tokenSort(a), tokenSort(b))
	if sorted > plain {
		return sorted
	}
	return plain
}

// tokenSort rebuilds a name with its whitespace-separated tokens sorted
func tokenSort(s string) string {
	tokens := strings.Fields(s)
	sort.Strings(tokens)
	return strings.Join(tokens, " ")
}

// ratio converts Levenshtein distance to a 0-1 similarity
func ratio(a, b string) float64 {
	if a == b {
		return 1.0
	}
	longest := len(a)
	if len(b) > longest {
		longest = len(b)
	}
	if longest == 0 {
		return 1.0
	}
	return 1.0 - float64(levenshtein(a, b))/float64(longest)
}

// levenshtein computes edit distance with a single-row DP table
func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	row := make([]int, len(rb)+1)
	for j := range row {
		row[j] = j
	}

	for i := 1; i <= len(ra); i++ {
		prev := row[0]
		row[0] = i
		for j := 1; j <= len(rb); j++ {
			cur := row[j]
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			row[j] = min3(row[j]+1, row[j-1]+1, prev+cost)
			prev = cur
		}
	}
	return row[len(rb)]
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}
