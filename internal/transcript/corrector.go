package transcript

import (
	"context"
	"strings"
)

const defaultMinWordLength = 4

// PipelineOption is a functional option for configuring a [CorrectionPipeline].
type PipelineOption func(*CorrectionPipeline)

// WithPhoneticMatcher sets the matcher used to snap words. When nil (the
// default) the pipeline returns its input unchanged.
func WithPhoneticMatcher(m PhoneticMatcher) PipelineOption {
	return func(p *CorrectionPipeline) {
		p.phonetic = m
	}
}

// WithMinWordLength sets the shortest token (in bytes) that may be corrected.
// Short words such as "it" or "the" are too ambiguous to snap. Default: 4.
func WithMinWordLength(n int) PipelineOption {
	return func(p *CorrectionPipeline) {
		p.minWordLength = n
	}
}

// WithProtectedWords adds words that are never corrected, e.g. filler or
// number words that are meaningful without being vocabulary terms.
func WithProtectedWords(words ...string) PipelineOption {
	return func(p *CorrectionPipeline) {
		for _, w := range words {
			p.protected[strings.ToLower(w)] = struct{}{}
		}
	}
}

// CorrectionPipeline is the phonetic implementation of [Pipeline].
//
// CorrectionPipeline is safe for concurrent use.
type CorrectionPipeline struct {
	phonetic      PhoneticMatcher
	minWordLength int
	protected     map[string]struct{}
}

// Ensure CorrectionPipeline satisfies the Pipeline interface at compile time.
var _ Pipeline = (*CorrectionPipeline)(nil)

// NewPipeline constructs a [CorrectionPipeline] with the supplied options.
func NewPipeline(opts ...PipelineOption) *CorrectionPipeline {
	p := &CorrectionPipeline{
		minWordLength: defaultMinWordLength,
		protected:     make(map[string]struct{}),
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Correct implements [Pipeline.Correct].
//
// The text is split on whitespace. At each position the pipeline tries
// windows from the longest vocabulary phrase down to one word and accepts
// the first window the [PhoneticMatcher] resolves. Windows starting with a
// known word, containing a protected word or shorter than the minimum length
// are skipped so correct input is not rewritten.
func (p *CorrectionPipeline) Correct(ctx context.Context, text string, vocabulary []string) (*CorrectedText, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	result := &CorrectedText{
		Original:    text,
		Corrected:   text,
		Corrections: []Correction{},
	}
	tokens := strings.Fields(text)
	if p.phonetic == nil || len(vocabulary) == 0 || len(tokens) == 0 {
		return result, nil
	}

	known := make(map[string]struct{}, len(vocabulary))
	terms := make(map[string]struct{}, len(vocabulary))
	for _, v := range vocabulary {
		terms[strings.Join(strings.Fields(strings.ToLower(v)), " ")] = struct{}{}
		for _, w := range strings.Fields(strings.ToLower(v)) {
			known[w] = struct{}{}
		}
	}
	maxWords := maxWordCount(vocabulary)

	output := make([]string, 0, len(tokens))
	for i := 0; i < len(tokens); {
		maxN := min(maxWords, len(tokens)-i)
		matched := false
		for n := maxN; n >= 1; n-- {
			if !p.correctable(tokens[i:i+n], known, terms) {
				continue
			}
			window := strings.Join(tokens[i:i+n], " ")
			term, conf, ok := p.phonetic.Match(window, vocabulary)
			if !ok {
				continue
			}
			output = append(output, strings.Fields(term)...)
			result.Corrections = append(result.Corrections, Correction{
				Original:   window,
				Corrected:  term,
				Confidence: conf,
				Method:     "phonetic",
			})
			i += n
			matched = true
			break
		}
		if !matched {
			output = append(output, tokens[i])
			i++
		}
	}
	if len(result.Corrections) > 0 {
		result.Corrected = strings.Join(output, " ")
	}
	return result, nil
}

// correctable reports whether window may be handed to the matcher. The
// window must start with an unknown word, must not already be a vocabulary
// term and must not contain protected words.
func (p *CorrectionPipeline) correctable(window []string, known, terms map[string]struct{}) bool {
	joined := strings.ToLower(strings.Join(window, " "))
	if _, ok := terms[joined]; ok {
		return false
	}
	if len(joined) < p.minWordLength {
		return false
	}
	if _, ok := known[strings.ToLower(window[0])]; ok {
		return false
	}
	for _, w := range window {
		if _, ok := p.protected[strings.ToLower(w)]; ok {
			return false
		}
	}
	return true
}

// maxWordCount returns the maximum number of whitespace-separated words in
// any vocabulary term. Returns 1 when vocabulary is empty.
func maxWordCount(vocabulary []string) int {
	longest := 1
	for _, v := range vocabulary {
		longest = max(longest, len(strings.Fields(v)))
	}
	return longest
}
