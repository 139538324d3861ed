package phonetic_test

import (
	"testing"

	"github.com/MrWong99/voxcmd/internal/transcript/phonetic"
)

var vocabulary = []string{"spotify", "terminal", "browser", "calculator", "vscode", "Slack"}

func TestMatcher_Misspelling(t *testing.T) {
	t.Parallel()

	m := phonetic.New()
	tests := []struct {
		word string
		want string
	}{
		{"spotifi", "spotify"},
		{"terminel", "terminal"},
		{"calculater", "calculator"},
		{"browzer", "browser"},
	}
	for _, tt := range tests {
		got, conf, ok := m.Match(tt.word, vocabulary)
		if !ok {
			t.Errorf("Match(%q): matched=false, want true", tt.word)
			continue
		}
		if got != tt.want {
			t.Errorf("Match(%q) = %q, want %q", tt.word, got, tt.want)
		}
		if conf < 0.8 {
			t.Errorf("Match(%q) confidence = %f, want >= 0.8", tt.word, conf)
		}
	}
}

func TestMatcher_NoMatch(t *testing.T) {
	t.Parallel()

	m := phonetic.New()
	got, conf, ok := m.Match("bigger", vocabulary)
	if ok {
		t.Fatalf("Match(bigger) = %q, want no match", got)
	}
	if got != "bigger" || conf != 0 {
		t.Errorf("Match(bigger) = (%q, %f), want original word and 0", got, conf)
	}
}

func TestMatcher_PreservesTermCasing(t *testing.T) {
	t.Parallel()

	m := phonetic.New()
	got, _, ok := m.Match("SLACK", vocabulary)
	if !ok || got != "Slack" {
		t.Errorf("Match(SLACK) = %q, %v, want Slack", got, ok)
	}
}

func TestMatcher_ThresholdFiltering(t *testing.T) {
	t.Parallel()

	m := phonetic.New(
		phonetic.WithPhoneticThreshold(0.99),
		phonetic.WithFuzzyThreshold(0.99),
	)
	if _, _, ok := m.Match("spotifi", vocabulary); ok {
		t.Error("Match with threshold=0.99 should reject near matches")
	}
}

func TestMatcher_EmptyInputs(t *testing.T) {
	t.Parallel()

	m := phonetic.New()
	if got, conf, ok := m.Match("", vocabulary); ok || got != "" || conf != 0 {
		t.Errorf("Match(\"\") = (%q, %f, %v)", got, conf, ok)
	}
	if got, _, ok := m.Match("spotifi", nil); ok || got != "spotifi" {
		t.Errorf("Match(spotifi, nil) = (%q, %v)", got, ok)
	}
}

func TestMatchPrepared_SameAsMatch(t *testing.T) {
	t.Parallel()

	m := phonetic.New()
	prepared := phonetic.Prepare(vocabulary)
	for _, w := range []string{"spotifi", "terminel", "bigger", "slak"} {
		a, ac, aok := m.Match(w, vocabulary)
		b, bc, bok := m.MatchPrepared(w, prepared)
		if a != b || ac != bc || aok != bok {
			t.Errorf("%q: Match=(%q,%f,%v) MatchPrepared=(%q,%f,%v)", w, a, ac, aok, b, bc, bok)
		}
	}
}
