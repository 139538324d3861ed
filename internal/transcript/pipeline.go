// Package transcript defines the optional correction stage that runs on raw
// speech-to-text output before it reaches the intent matcher.
//
// Speech recognisers regularly mishear bounded vocabulary such as application
// names ("spotifi", "vee es code"). The [Pipeline] snaps unknown words to the
// closest known vocabulary term by pronunciation, using a [PhoneticMatcher].
//
// Each [Correction] records the substitution and its confidence so callers can
// audit or display what was changed.
//
// Implementations of both interfaces must be safe for concurrent use.
package transcript

import "context"

// Correction captures a single word-level substitution made by the pipeline.
type Correction struct {
	// Original is the word or phrase as produced by speech recognition.
	Original string `json:"original"`

	// Corrected is the replacement selected by the pipeline.
	Corrected string `json:"corrected"`

	// Confidence is the pipeline's confidence in this substitution (0.0–1.0).
	Confidence float64 `json:"confidence"`

	// Method names the correction stage, e.g. "phonetic".
	Method string `json:"method"`
}

// CorrectedText is the output of a [Pipeline.Correct] call.
type CorrectedText struct {
	// Original is the text as received.
	Original string

	// Corrected is the text with all substitutions applied.
	Corrected string

	// Corrections is the ordered list of substitutions applied to produce
	// Corrected. An empty (non-nil) slice means nothing was changed.
	Corrections []Correction
}

// Pipeline corrects misheard vocabulary in an utterance.
type Pipeline interface {
	// Correct returns text with unknown words replaced by the closest entry
	// of vocabulary, when one is close enough. Words that already appear in
	// vocabulary are never changed.
	Correct(ctx context.Context, text string, vocabulary []string) (*CorrectedText, error)
}

// PhoneticMatcher resolves a single word to a vocabulary term based on
// pronunciation similarity. It runs in-process with no network calls.
type PhoneticMatcher interface {
	// Match attempts to find the term from vocabulary that is most
	// phonetically similar to word.
	//
	// When matched is false, corrected must equal word unchanged and
	// confidence must be 0.
	Match(word string, vocabulary []string) (corrected string, confidence float64, matched bool)
}
