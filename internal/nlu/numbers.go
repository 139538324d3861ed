package nlu

import (
	"strconv"
	"strings"
)

var unitWords = map[string]int{
	"zero": 0, "one": 1, "two": 2, "three": 3, "four": 4,
	"five": 5, "six": 6, "seven": 7, "eight": 8, "nine": 9,
	"ten": 10, "eleven": 11, "twelve": 12, "thirteen": 13, "fourteen": 14,
	"fifteen": 15, "sixteen": 16, "seventeen": 17, "eighteen": 18, "nineteen": 19,
}

var tensWords = map[string]int{
	"twenty": 20, "thirty": 30, "forty": 40, "fifty": 50,
	"sixty": 60, "seventy": 70, "eighty": 80, "ninety": 90,
}

// isNumberWord reports whether w is part of the spoken-number vocabulary.
func isNumberWord(w string) bool {
	if _, ok := unitWords[w]; ok {
		return true
	}
	if _, ok := tensWords[w]; ok {
		return true
	}
	return w == "hundred"
}

// numbersFromTokens scans tokens left to right and returns every number it
// finds, in order. Digit literals are parsed directly; spoken numbers may be
// compounds such as "twenty five", "one hundred" or "hundred".
func numbersFromTokens(tokens []string) []int {
	var out []int
	for i := 0; i < len(tokens); {
		if n, err := strconv.Atoi(tokens[i]); err == nil {
			out = append(out, n)
			i++
			continue
		}
		n, used := spokenNumber(tokens[i:])
		if used == 0 {
			i++
			continue
		}
		out = append(out, n)
		i += used
	}
	return out
}

// spokenNumber parses the longest spoken number at the start of tokens and
// returns its value plus the number of tokens consumed. used is 0 when
// tokens does not start with a number word.
func spokenNumber(tokens []string) (value, used int) {
	if len(tokens) == 0 {
		return 0, 0
	}
	first := tokens[0]
	switch {
	case first == "hundred":
		return 100, 1
	case tensWords[first] > 0:
		value, used = tensWords[first], 1
		if len(tokens) > 1 {
			if u, ok := unitWords[tokens[1]]; ok && u > 0 && u < 10 {
				value += u
				used++
			}
		}
		return value, used
	}
	u, ok := unitWords[first]
	if !ok {
		return 0, 0
	}
	if len(tokens) > 1 && tokens[1] == "hundred" {
		return u * 100, 2
	}
	return u, 1
}

// ParseNumber converts a short phrase such as "50", "fifty" or "twenty five"
// to an integer. The whole phrase must be consumed.
func ParseNumber(phrase string) (int, bool) {
	tokens := Tokenize(phrase)
	if len(tokens) == 0 {
		return 0, false
	}
	if len(tokens) == 1 {
		if n, err := strconv.Atoi(tokens[0]); err == nil {
			return n, true
		}
	}
	n, used := spokenNumber(tokens)
	if used == 0 || used != len(tokens) {
		return 0, false
	}
	return n, true
}

// numberWordAlternation is the regexp alternation of every number word,
// longest first so that "seventeen" wins over "seven".
func numberWordAlternation() string {
	words := make([]string, 0, len(unitWords)+len(tensWords)+1)
	for w := range unitWords {
		words = append(words, w)
	}
	for w := range tensWords {
		words = append(words, w)
	}
	words = append(words, "hundred")
	sortLongestFirst(words)
	return strings.Join(words, "|")
}
