package nlu

import (
	"strings"
	"unicode/utf8"

	"github.com/antzucaro/matchr"
)

// FuzzyPenalty scales raw similarity when a pattern only matches by edit
// distance rather than structurally.
const FuzzyPenalty = 0.85

// Levenshtein returns the unit-cost edit distance between a and b.
func Levenshtein(a, b string) int {
	return matchr.Levenshtein(a, b)
}

// Similarity returns 1 - levenshtein(a, b) / max(len(a), len(b)) over the
// trimmed, lowercased strings. Two empty strings are identical.
func Similarity(a, b string) float64 {
	a = strings.ToLower(strings.TrimSpace(a))
	b = strings.ToLower(strings.TrimSpace(b))
	longest := max(utf8.RuneCountInString(a), utf8.RuneCountInString(b))
	if longest == 0 {
		return 1
	}
	sim := 1 - float64(Levenshtein(a, b))/float64(longest)
	return min(max(sim, 0), 1)
}
