package matcher

import (
	"strings"

	"github.com/MrWong99/voxcmd/internal/nlu"
	"github.com/MrWong99/voxcmd/internal/pattern"
)

// Confidence scores how well utterance matches pattern on a 0–1 scale.
//
// Exact equality after case and whitespace normalisation scores 1. Otherwise
// the score is the product of three signals:
//
//   - word overlap: a pattern word is a hit when it is a literal present in
//     the utterance, or a {placeholder} whose entity is in entities. The hit
//     ratio is rescaled to [0.3, 1].
//   - length: 0.7 + 0.3 * min(len)/max(len) over token counts.
//   - order: 0.8 + 0.2 * sameIndex/max(len), where sameIndex counts positions
//     holding the same literal word or a satisfied placeholder.
//
// The result is clamped to 1.
func Confidence(utterance, patternText string, entities nlu.Entities) float64 {
	uWords := strings.Fields(strings.ToLower(utterance))
	pWords := normalizePatternWords(patternText)
	if len(uWords) == 0 || len(pWords) == 0 {
		return 0
	}
	if strings.Join(uWords, " ") == strings.Join(pWords, " ") {
		return 1
	}

	present := make(map[string]struct{}, len(uWords))
	for _, w := range uWords {
		present[w] = struct{}{}
	}
	satisfied := func(word string) bool {
		if name, ok := pattern.IsPlaceholder(word); ok {
			return entities.Has(name)
		}
		_, ok := present[word]
		return ok
	}

	hits := 0
	for _, w := range pWords {
		if satisfied(w) {
			hits++
		}
	}
	base := 0.3 + 0.7*float64(hits)/float64(len(pWords))

	shortest := min(len(uWords), len(pWords))
	longest := max(len(uWords), len(pWords))
	lengthFactor := 0.7 + 0.3*float64(shortest)/float64(longest)

	same := 0
	for i := range shortest {
		w := pWords[i]
		if _, ok := pattern.IsPlaceholder(w); ok {
			if satisfied(w) {
				same++
			}
			continue
		}
		if uWords[i] == w {
			same++
		}
	}
	orderFactor := 0.8 + 0.2*float64(same)/float64(longest)

	return min(base*lengthFactor*orderFactor, 1)
}

// normalizePatternWords lowercases literal words and keeps placeholder names
// intact, since entity names are case-sensitive.
func normalizePatternWords(text string) []string {
	words := strings.Fields(text)
	for i, w := range words {
		if _, ok := pattern.IsPlaceholder(w); !ok {
			words[i] = strings.ToLower(w)
		}
	}
	return words
}
