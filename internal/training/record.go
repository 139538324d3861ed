// Package training lets users teach the matcher new phrasings.
//
// A [Trainer] keeps a per-intent corpus of training utterances and rolling
// recognition accuracy. Every trained utterance is also appended to the live
// command registry as a pattern, so it is recognised on the very next match.
// The corpus is persisted through a [Store]; storage failures are logged and
// counted but never surface to callers, and the in-memory corpus stays
// authoritative for the life of the process.
package training

import (
	"maps"
	"slices"
	"time"

	"github.com/MrWong99/voxcmd/internal/nlu"
)

// ExportVersion tags exported corpora. Imports with any other version are
// rejected.
const ExportVersion = "1.0"

// Utterance is one training phrase for an intent.
type Utterance struct {
	Text      string       `json:"text"`
	Entities  nlu.Entities `json:"entities"`
	Timestamp time.Time    `json:"timestamp"`
}

// IntentData is the training corpus of a single intent.
type IntentData struct {
	Utterances []Utterance `json:"utterances"`
	TrainedAt  time.Time   `json:"trainedAt"`
}

// AccuracyStats are the rolling recognition statistics of an intent.
type AccuracyStats struct {
	TotalTests        int     `json:"totalTests"`
	SuccessfulTests   int     `json:"successfulTests"`
	AverageConfidence float64 `json:"averageConfidence"`
}

// SuccessRate returns SuccessfulTests / TotalTests, or 0 without tests.
func (s AccuracyStats) SuccessRate() float64 {
	if s.TotalTests == 0 {
		return 0
	}
	return float64(s.SuccessfulTests) / float64(s.TotalTests)
}

// Record is the durable state kept by a [Store].
type Record struct {
	TrainingData  map[string]IntentData    `json:"trainingData"`
	AccuracyStats map[string]AccuracyStats `json:"accuracyStats"`
}

// NewRecord returns an empty record.
func NewRecord() *Record {
	return &Record{
		TrainingData:  make(map[string]IntentData),
		AccuracyStats: make(map[string]AccuracyStats),
	}
}

// Clone returns a deep copy of r. A nil record clones to an empty one.
func (r *Record) Clone() *Record {
	out := NewRecord()
	if r == nil {
		return out
	}
	for intent, d := range r.TrainingData {
		out.TrainingData[intent] = d.clone()
	}
	maps.Copy(out.AccuracyStats, r.AccuracyStats)
	return out
}

func (d IntentData) clone() IntentData {
	out := IntentData{TrainedAt: d.TrainedAt, Utterances: slices.Clone(d.Utterances)}
	for i := range out.Utterances {
		out.Utterances[i].Entities = out.Utterances[i].Entities.Clone()
	}
	return out
}

// Export is the portable form of a corpus.
type Export struct {
	TrainingData  map[string]IntentData    `json:"trainingData"`
	AccuracyStats map[string]AccuracyStats `json:"accuracyStats"`
	ExportedAt    time.Time                `json:"exportedAt"`
	Version       string                   `json:"version"`
}
