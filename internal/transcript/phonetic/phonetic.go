// Package phonetic implements [transcript.PhoneticMatcher] with Double
// Metaphone encoding and Jaro-Winkler similarity.
//
// A vocabulary term is a phonetic candidate when any Double Metaphone code of
// the input shares a code with the term. Candidates are ranked by
// Jaro-Winkler similarity and accepted above the phonetic threshold. When no
// term sounds alike, a term may still be accepted on spelling alone if its
// Jaro-Winkler score clears the stricter fuzzy threshold.
package phonetic

import (
	"strings"

	"github.com/antzucaro/matchr"
)

const (
	defaultPhoneticThreshold = 0.80
	defaultFuzzyThreshold    = 0.90
)

// Option is a functional option for configuring a [Matcher].
type Option func(*Matcher)

// WithPhoneticThreshold sets the minimum Jaro-Winkler score for a term that
// sounds like the input. Default: 0.80.
func WithPhoneticThreshold(threshold float64) Option {
	return func(m *Matcher) {
		m.phoneticThreshold = threshold
	}
}

// WithFuzzyThreshold sets the minimum Jaro-Winkler score for a term accepted
// on spelling alone. Default: 0.90.
func WithFuzzyThreshold(threshold float64) Option {
	return func(m *Matcher) {
		m.fuzzyThreshold = threshold
	}
}

// Matcher is read-only after construction and safe for concurrent use.
type Matcher struct {
	phoneticThreshold float64
	fuzzyThreshold    float64
}

// New returns a [Matcher] configured with opts.
func New(opts ...Option) *Matcher {
	m := &Matcher{
		phoneticThreshold: defaultPhoneticThreshold,
		fuzzyThreshold:    defaultFuzzyThreshold,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// term is a vocabulary entry with its phonetic codes precomputed.
type term struct {
	text   string
	lower  string
	tokens []string
	codes  map[string]struct{}
}

// Prepared is a vocabulary with phonetic codes computed once. Reuse it when
// the same vocabulary is matched against many words.
type Prepared struct {
	terms []term
}

// Prepare precomputes phonetic codes for vocabulary. Blank terms are dropped.
func Prepare(vocabulary []string) *Prepared {
	p := &Prepared{terms: make([]term, 0, len(vocabulary))}
	for _, v := range vocabulary {
		lower := strings.ToLower(strings.TrimSpace(v))
		if lower == "" {
			continue
		}
		tokens := strings.Fields(lower)
		p.terms = append(p.terms, term{text: v, lower: lower, tokens: tokens, codes: codesFor(tokens)})
	}
	return p
}

// Match implements [transcript.PhoneticMatcher].
func (m *Matcher) Match(word string, vocabulary []string) (string, float64, bool) {
	return m.MatchPrepared(word, Prepare(vocabulary))
}

// MatchPrepared is [Matcher.Match] against a prepared vocabulary.
func (m *Matcher) MatchPrepared(word string, vocab *Prepared) (corrected string, confidence float64, matched bool) {
	lower := strings.ToLower(strings.TrimSpace(word))
	if lower == "" || vocab == nil || len(vocab.terms) == 0 {
		return word, 0, false
	}
	tokens := strings.Fields(lower)
	codes := codesFor(tokens)

	var (
		best         string
		bestScore    float64
		bestPhonetic bool
	)
	for _, t := range vocab.terms {
		score := similarity(tokens, t.tokens, lower, t.lower)
		if overlaps(codes, t.codes) {
			if score >= m.phoneticThreshold && (!bestPhonetic || score > bestScore) {
				best, bestScore, bestPhonetic = t.text, score, true
			}
			continue
		}
		if !bestPhonetic && score >= m.fuzzyThreshold && score > bestScore {
			best, bestScore = t.text, score
		}
	}
	if best == "" {
		return word, 0, false
	}
	return best, bestScore, true
}

func codesFor(tokens []string) map[string]struct{} {
	codes := make(map[string]struct{}, len(tokens)*2)
	for _, t := range tokens {
		primary, secondary := matchr.DoubleMetaphone(t)
		if primary != "" {
			codes[primary] = struct{}{}
		}
		if secondary != "" {
			codes[secondary] = struct{}{}
		}
	}
	return codes
}

func overlaps(a, b map[string]struct{}) bool {
	if len(a) > len(b) {
		a, b = b, a
	}
	for code := range a {
		if _, ok := b[code]; ok {
			return true
		}
	}
	return false
}

// similarity is the best Jaro-Winkler score over the full strings, the
// space-stripped strings ("vee es code" vs "vscode") and each word pair.
func similarity(inTokens, termTokens []string, inFull, termFull string) float64 {
	score := matchr.JaroWinkler(inFull, termFull, false)
	if len(inTokens) > 1 || len(termTokens) > 1 {
		score = max(score, matchr.JaroWinkler(strings.Join(inTokens, ""), strings.Join(termTokens, ""), false))
	}
	if len(inTokens) > 1 && len(termTokens) > 1 {
		for _, a := range inTokens {
			for _, b := range termTokens {
				score = max(score, matchr.JaroWinkler(a, b, false))
			}
		}
	}
	return score
}
