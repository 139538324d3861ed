package transcript_test

import (
	"context"
	"testing"

	"github.com/MrWong99/voxcmd/internal/transcript"
	"github.com/MrWong99/voxcmd/internal/transcript/phonetic"
)

var vocabulary = []string{"open", "close", "spotify", "terminal", "vscode", "dark", "theme"}

// stubMatcher resolves exactly the words in its table.
type stubMatcher map[string]string

func (s stubMatcher) Match(word string, _ []string) (string, float64, bool) {
	if v, ok := s[word]; ok {
		return v, 0.9, true
	}
	return word, 0, false
}

func TestCorrectionPipeline_Phonetic(t *testing.T) {
	t.Parallel()

	p := transcript.NewPipeline(transcript.WithPhoneticMatcher(phonetic.New()))
	got, err := p.Correct(context.Background(), "open spotifi", vocabulary)
	if err != nil {
		t.Fatalf("Correct: %v", err)
	}
	if got.Corrected != "open spotify" {
		t.Errorf("Corrected = %q, want %q", got.Corrected, "open spotify")
	}
	if len(got.Corrections) != 1 {
		t.Fatalf("len(Corrections) = %d, want 1", len(got.Corrections))
	}
	c := got.Corrections[0]
	if c.Original != "spotifi" || c.Corrected != "spotify" || c.Method != "phonetic" {
		t.Errorf("Correction = %+v", c)
	}
	if got.Original != "open spotifi" {
		t.Errorf("Original = %q", got.Original)
	}
}

func TestCorrectionPipeline_KnownWordsUntouched(t *testing.T) {
	t.Parallel()

	p := transcript.NewPipeline(transcript.WithPhoneticMatcher(stubMatcher{"open": "close"}))
	got, err := p.Correct(context.Background(), "open terminal", vocabulary)
	if err != nil {
		t.Fatal(err)
	}
	if got.Corrected != "open terminal" || len(got.Corrections) != 0 {
		t.Errorf("Correct rewrote known words: %+v", got)
	}
}

func TestCorrectionPipeline_ShortAndProtectedWords(t *testing.T) {
	t.Parallel()

	p := transcript.NewPipeline(
		transcript.WithPhoneticMatcher(stubMatcher{"it": "theme", "please": "close", "thema": "theme"}),
		transcript.WithProtectedWords("please"),
	)
	got, err := p.Correct(context.Background(), "please make it thema", vocabulary)
	if err != nil {
		t.Fatal(err)
	}
	if got.Corrected != "please make it theme" {
		t.Errorf("Corrected = %q, want %q", got.Corrected, "please make it theme")
	}
}

func TestCorrectionPipeline_MultiWordTerm(t *testing.T) {
	t.Parallel()

	p := transcript.NewPipeline(transcript.WithPhoneticMatcher(stubMatcher{"vees code": "vs code"}))
	got, err := p.Correct(context.Background(), "open vees code", []string{"open", "vs code"})
	if err != nil {
		t.Fatal(err)
	}
	if got.Corrected != "open vs code" {
		t.Errorf("Corrected = %q, want %q", got.Corrected, "open vs code")
	}
}

func TestCorrectionPipeline_NoMatcher(t *testing.T) {
	t.Parallel()

	p := transcript.NewPipeline()
	got, err := p.Correct(context.Background(), "open spotifi", vocabulary)
	if err != nil {
		t.Fatal(err)
	}
	if got.Corrected != "open spotifi" {
		t.Errorf("Corrected = %q, want input unchanged", got.Corrected)
	}
	if got.Corrections == nil {
		t.Error("Corrections must be non-nil")
	}
}

func TestCorrectionPipeline_Cancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := transcript.NewPipeline(transcript.WithPhoneticMatcher(phonetic.New()))
	if _, err := p.Correct(ctx, "open spotifi", vocabulary); err == nil {
		t.Error("Correct with cancelled context: want error")
	}
}
