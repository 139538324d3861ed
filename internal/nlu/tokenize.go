package nlu

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var punctRe = regexp.MustCompile(`[^\w\s]+`)

// Normalize trims s, lowercases it and folds accented letters to their base
// form ("Café" → "cafe"). Punctuation is preserved so entity patterns such as
// "50%" or "user@example.com" still see it.
func Normalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return s
	}
	return foldAccents(s)
}

// Tokenize lowercases text, replaces every run of punctuation with a single
// space and splits on whitespace. Empty tokens are dropped.
func Tokenize(text string) []string {
	cleaned := punctRe.ReplaceAllString(Normalize(text), " ")
	return strings.Fields(cleaned)
}

// foldAccents strips combining marks after canonical decomposition. When the
// transform fails the input is returned unchanged.
func foldAccents(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}
