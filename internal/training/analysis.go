package training

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"github.com/MrWong99/voxcmd/internal/nlu"
)

// Thresholds used by [Trainer.GetRecommendations].
const (
	minSuccessRate       = 0.7
	minAverageConfidence = 0.8
	minUtterances        = 3
	minDistinctWords     = 5
)

const (
	maxReportIntents = 5
	maxReportWords   = 10
)

// GetRecommendations returns coaching hints for intent. When no rule fires a
// single positive message is returned. It fails with [ErrUnknownIntent] when
// the registry does not know the intent.
func (t *Trainer) GetRecommendations(intent string) ([]string, error) {
	if _, ok := t.registry.Get(intent); !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownIntent, intent)
	}

	t.mu.Lock()
	data := t.rec.TrainingData[intent].clone()
	stats, hasStats := t.rec.AccuracyStats[intent]
	t.mu.Unlock()

	var recs []string
	if hasStats && stats.TotalTests > 0 {
		if rate := stats.SuccessRate(); rate < minSuccessRate {
			recs = append(recs, fmt.Sprintf(
				"Only %.0f%% of recognition tests succeed; train the phrasings that failed.", rate*100))
		}
		if stats.AverageConfidence < minAverageConfidence {
			recs = append(recs, fmt.Sprintf(
				"Average confidence is %.2f; add utterances closer to how you naturally say this command.", stats.AverageConfidence))
		}
	}
	if n := len(data.Utterances); n < minUtterances {
		recs = append(recs, fmt.Sprintf(
			"Add more training utterances (%d of at least %d).", n, minUtterances))
	}
	if n := distinctWords(data.Utterances); n < minDistinctWords {
		recs = append(recs, fmt.Sprintf(
			"Vary your wording; the training utterances use only %d distinct words.", n))
	}
	if len(recs) == 0 {
		recs = append(recs, "Training for this command looks good.")
	}
	return recs, nil
}

func distinctWords(us []Utterance) int {
	seen := make(map[string]struct{})
	for _, u := range us {
		for _, w := range nlu.Tokenize(u.Text) {
			seen[w] = struct{}{}
		}
	}
	return len(seen)
}

// IntentCount is an intent with its number of training utterances.
type IntentCount struct {
	Intent     string `json:"intent"`
	Utterances int    `json:"utterances"`
}

// IntentAccuracy is an intent with its recognition statistics.
type IntentAccuracy struct {
	Intent            string  `json:"intent"`
	SuccessRate       float64 `json:"successRate"`
	AverageConfidence float64 `json:"averageConfidence"`
	TotalTests        int     `json:"totalTests"`
}

// WordCount is a word with its number of occurrences.
type WordCount struct {
	Word  string `json:"word"`
	Count int    `json:"count"`
}

// UsageReport summarises the training corpus.
type UsageReport struct {
	TotalIntents       int              `json:"totalIntents"`
	TotalUtterances    int              `json:"totalUtterances"`
	TotalTests         int              `json:"totalTests"`
	OverallSuccessRate float64          `json:"overallSuccessRate"`
	MostTrained        []IntentCount    `json:"mostTrained"`
	LeastAccurate      []IntentAccuracy `json:"leastAccurate"`
	CommonWords        []WordCount      `json:"commonWords"`
}

// AnalyzeUsagePatterns summarises the corpus: totals, the most trained
// intents, the intents with the lowest success rate and the most frequent
// training words. Filler words are not counted. Ties are broken
// alphabetically.
func (t *Trainer) AnalyzeUsagePatterns() UsageReport {
	t.mu.Lock()
	rec := t.rec.Clone()
	t.mu.Unlock()

	fillers := make(map[string]struct{})
	for _, f := range nlu.Fillers {
		if !strings.Contains(f, " ") {
			fillers[f] = struct{}{}
		}
	}

	var report UsageReport
	words := make(map[string]int)
	for intent, data := range rec.TrainingData {
		report.TotalIntents++
		report.TotalUtterances += len(data.Utterances)
		report.MostTrained = append(report.MostTrained, IntentCount{Intent: intent, Utterances: len(data.Utterances)})
		for _, u := range data.Utterances {
			for _, w := range nlu.Tokenize(u.Text) {
				if _, skip := fillers[w]; !skip {
					words[w]++
				}
			}
		}
	}

	successes := 0
	for intent, s := range rec.AccuracyStats {
		if s.TotalTests == 0 {
			continue
		}
		report.TotalTests += s.TotalTests
		successes += s.SuccessfulTests
		report.LeastAccurate = append(report.LeastAccurate, IntentAccuracy{
			Intent:            intent,
			SuccessRate:       s.SuccessRate(),
			AverageConfidence: s.AverageConfidence,
			TotalTests:        s.TotalTests,
		})
	}
	if report.TotalTests > 0 {
		report.OverallSuccessRate = float64(successes) / float64(report.TotalTests)
	}

	slices.SortFunc(report.MostTrained, func(a, b IntentCount) int {
		return cmp.Or(cmp.Compare(b.Utterances, a.Utterances), cmp.Compare(a.Intent, b.Intent))
	})
	slices.SortFunc(report.LeastAccurate, func(a, b IntentAccuracy) int {
		return cmp.Or(cmp.Compare(a.SuccessRate, b.SuccessRate), cmp.Compare(a.Intent, b.Intent))
	})
	for w, n := range words {
		report.CommonWords = append(report.CommonWords, WordCount{Word: w, Count: n})
	}
	slices.SortFunc(report.CommonWords, func(a, b WordCount) int {
		return cmp.Or(cmp.Compare(b.Count, a.Count), cmp.Compare(a.Word, b.Word))
	})

	report.MostTrained = truncate(report.MostTrained, maxReportIntents)
	report.LeastAccurate = truncate(report.LeastAccurate, maxReportIntents)
	report.CommonWords = truncate(report.CommonWords, maxReportWords)
	return report
}

func truncate[T any](s []T, n int) []T {
	if len(s) > n {
		return s[:n]
	}
	return s
}
