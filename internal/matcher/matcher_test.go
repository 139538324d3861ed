package matcher_test

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/MrWong99/voxcmd/internal/command"
	"github.com/MrWong99/voxcmd/internal/matcher"
	"github.com/MrWong99/voxcmd/internal/transcript"
	"github.com/MrWong99/voxcmd/internal/transcript/phonetic"
)

func newDefaultRegistry(t *testing.T) *command.MemRegistry {
	t.Helper()
	cmds, err := command.LoadCommands()
	if err != nil {
		t.Fatalf("LoadCommands: %v", err)
	}
	r, err := command.NewMemRegistry(cmds...)
	if err != nil {
		t.Fatalf("NewMemRegistry: %v", err)
	}
	return r
}

func newDefaultMatcher(t *testing.T, opts ...matcher.Option) *matcher.Matcher {
	t.Helper()
	return matcher.New(newDefaultRegistry(t), opts...)
}

func TestMatch_EmptyUtterance(t *testing.T) {
	t.Parallel()

	m := newDefaultMatcher(t)
	for _, in := range []string{"", "   ", "\t\n"} {
		res := m.Match(context.Background(), in)
		if res.Matched {
			t.Errorf("Match(%q).Matched = true", in)
		}
		if res.Error != "Empty utterance" {
			t.Errorf("Match(%q).Error = %q, want %q", in, res.Error, "Empty utterance")
		}
	}
}

func TestMatch_PoliteOpenTerminal(t *testing.T) {
	t.Parallel()

	m := newDefaultMatcher(t)
	res := m.Match(context.Background(), "please open the terminal now")
	if !res.Matched {
		t.Fatalf("Match: not matched, suggestions=%+v", res.Suggestions)
	}
	if res.Intent != "open_app" {
		t.Errorf("Intent = %q, want open_app", res.Intent)
	}
	if res.Entities["appName"] != "terminal" {
		t.Errorf("appName = %v, want terminal", res.Entities["appName"])
	}
	if res.Confidence < 0.6 {
		t.Errorf("Confidence = %f, want >= 0.6", res.Confidence)
	}
	if res.Pattern != "open {appName}" {
		t.Errorf("Pattern = %q, want %q", res.Pattern, "open {appName}")
	}
	if res.Command == nil || res.Command.Intent != "open_app" {
		t.Errorf("Command = %+v", res.Command)
	}
	if !res.Executable() {
		t.Error("Executable() = false")
	}
}

func TestMatch_Percentage(t *testing.T) {
	t.Parallel()

	m := newDefaultMatcher(t)
	res := m.Match(context.Background(), "set brightness to 50 percent")
	if res.Entities["percentage"] != 50 {
		t.Errorf("percentage = %v (%T), want 50", res.Entities["percentage"], res.Entities["percentage"])
	}
	if res.Intent != "set_brightness" {
		t.Errorf("Intent = %q, want set_brightness", res.Intent)
	}
}

func TestMatch_SynonymVerb(t *testing.T) {
	t.Parallel()

	m := newDefaultMatcher(t)
	res := m.Match(context.Background(), "fire up the editor")
	if !res.Matched || res.Intent != "open_app" {
		t.Fatalf("Match = %+v, want open_app", res)
	}
	if res.Entities["appName"] != "vscode" {
		t.Errorf("appName = %v, want vscode", res.Entities["appName"])
	}
}

func TestMatch_ThemeSwitch(t *testing.T) {
	t.Parallel()

	m := newDefaultMatcher(t)
	res := m.Match(context.Background(), "switch to dark mode")
	if !res.Matched || res.Intent != "change_theme" {
		t.Fatalf("Match = %+v, want change_theme", res)
	}
	if res.Entities["theme"] != "dark" {
		t.Errorf("theme = %v, want dark", res.Entities["theme"])
	}
}

func TestMatch_MissingRequiredEntity(t *testing.T) {
	t.Parallel()

	m := newDefaultMatcher(t)
	res := m.Match(context.Background(), "make it fullscreen")
	if !res.Matched {
		t.Fatal("Matched = false, want true with missing entities")
	}
	if res.Intent != "maximize_window" {
		t.Errorf("Intent = %q, want maximize_window", res.Intent)
	}
	if len(res.MissingEntities) != 1 || res.MissingEntities[0] != "appName" {
		t.Errorf("MissingEntities = %v, want [appName]", res.MissingEntities)
	}
	if !strings.Contains(res.Error, "appName") {
		t.Errorf("Error = %q, want mention of appName", res.Error)
	}
	if res.Executable() {
		t.Error("Executable() = true for missing entities")
	}
	if n := m.Context().Len(); n != 0 {
		t.Errorf("history length = %d, want 0 after partial match", n)
	}
}

func TestMatch_ContextCarryover(t *testing.T) {
	t.Parallel()

	m := newDefaultMatcher(t)
	ctx := context.Background()
	if res := m.Match(ctx, "open terminal"); !res.Executable() {
		t.Fatalf("first Match not executable: %+v", res)
	}
	res := m.Match(ctx, "make it fullscreen")
	if !res.Executable() {
		t.Fatalf("second Match not executable: %+v", res)
	}
	if res.Entities["appName"] != "terminal" {
		t.Errorf("appName = %v, want terminal from context", res.Entities["appName"])
	}
	hist := m.Context().History(10)
	if len(hist) != 2 || hist[0].Intent != "open_app" || hist[1].Intent != "maximize_window" {
		t.Errorf("History = %+v", hist)
	}
}

func TestMatch_EntityDefault(t *testing.T) {
	t.Parallel()

	m := newDefaultMatcher(t)
	res := m.Match(context.Background(), "remind me at 5 pm")
	if res.Intent != "set_reminder" {
		t.Fatalf("Intent = %q, want set_reminder", res.Intent)
	}
	if res.Entities["date"] != "today" {
		t.Errorf("date = %v, want default today", res.Entities["date"])
	}
	if res.Entities["time"] != "5 pm" {
		t.Errorf("time = %v, want 5 pm", res.Entities["time"])
	}
}

func TestMatch_NoMatchSuggestions(t *testing.T) {
	t.Parallel()

	m := newDefaultMatcher(t)
	res := m.Match(context.Background(), "help me")
	if res.Matched {
		t.Fatalf("Matched = true (%s, %f)", res.Intent, res.Confidence)
	}
	if res.Error != "" {
		t.Errorf("Error = %q, want empty for a plain miss", res.Error)
	}
	if len(res.Suggestions) == 0 || len(res.Suggestions) > 3 {
		t.Fatalf("Suggestions = %+v, want 1..3", res.Suggestions)
	}
	if res.Suggestions[0].Intent != "help" {
		t.Errorf("top suggestion = %q, want help", res.Suggestions[0].Intent)
	}
	for i, s := range res.Suggestions {
		if s.Similarity <= 0.4 {
			t.Errorf("Suggestions[%d].Similarity = %f, want > 0.4", i, s.Similarity)
		}
		if i > 0 && s.Similarity > res.Suggestions[i-1].Similarity {
			t.Errorf("Suggestions not sorted: %+v", res.Suggestions)
		}
	}
}

func TestMatch_TiesKeepRegistryOrder(t *testing.T) {
	t.Parallel()

	r, err := command.NewMemRegistry(
		command.Command{Intent: "first", Patterns: []string{"open {appName}"}},
		command.Command{Intent: "second", Patterns: []string{"open {thing}"}, Entities: map[string]command.EntitySpec{"thing": {}}},
		command.Command{Intent: "third", Patterns: []string{"open {name}"}, Entities: map[string]command.EntitySpec{"name": {}}},
		command.Command{Intent: "fourth", Patterns: []string{"open {target}"}, Entities: map[string]command.EntitySpec{"target": {}}},
	)
	if err != nil {
		t.Fatal(err)
	}
	m := matcher.New(r)
	res := m.Match(context.Background(), "open terminal")
	if res.Intent != "first" {
		t.Errorf("Intent = %q, want first", res.Intent)
	}
	if len(res.Alternatives) != 2 {
		t.Fatalf("len(Alternatives) = %d, want 2", len(res.Alternatives))
	}
	if res.Alternatives[0].Intent != "second" || res.Alternatives[1].Intent != "third" {
		t.Errorf("Alternatives = %+v", res.Alternatives)
	}
}

func TestMatch_FreeTextKeepsSpokenWords(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"search for the best way to start a business", "the best way to start a business"},
		{"search how to run a marathon", "how to run a marathon"},
		{"could you look up the weather", "the weather"},
		{"search for cats please", "cats"},
	}
	m := newDefaultMatcher(t)
	for _, tt := range tests {
		res := m.Match(context.Background(), tt.in)
		if res.Intent != "search_web" {
			t.Errorf("Match(%q).Intent = %q, want search_web", tt.in, res.Intent)
			continue
		}
		if got := res.Entities.String("query"); got != tt.want {
			t.Errorf("Match(%q) query = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestMatch_Deterministic(t *testing.T) {
	t.Parallel()

	m := newDefaultMatcher(t)
	ctx := context.Background()
	for _, in := range []string{"set volume to 50 percent", "open the browser", "search for cats", "help me"} {
		a := m.Match(ctx, in)
		b := m.Match(ctx, in)
		if a.Intent != b.Intent || a.Confidence != b.Confidence || len(a.Entities) != len(b.Entities) {
			t.Errorf("Match(%q) not deterministic: %+v vs %+v", in, a, b)
			continue
		}
		for k := range a.Entities {
			if a.Entities.String(k) != b.Entities.String(k) {
				t.Errorf("Match(%q) entity %q: %v vs %v", in, k, a.Entities[k], b.Entities[k])
			}
		}
	}
}

func TestMatch_ThresholdGating(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	inputs := []string{
		"open terminal", "opn terminal", "make it louder", "set volume to 50 percent",
		"open the big terminal", "close", "search for cats", "remind me tomorrow",
	}
	for _, threshold := range []float64{0.3, 0.6, 0.8, 0.95} {
		m := newDefaultMatcher(t, matcher.WithThreshold(threshold))
		for _, in := range inputs {
			res := m.Match(ctx, in)
			if res.Matched && res.Confidence < threshold {
				t.Errorf("threshold %.2f: Match(%q) confidence %f below threshold", threshold, in, res.Confidence)
			}
			for _, alt := range res.Alternatives {
				if alt.Confidence < threshold || alt.Confidence > res.Confidence {
					t.Errorf("threshold %.2f: Match(%q) alternative %+v out of range", threshold, in, alt)
				}
			}
		}
	}
}

func TestMatch_FuzzyFallback(t *testing.T) {
	t.Parallel()

	m := newDefaultMatcher(t)
	res := m.Match(context.Background(), "opn terminal")
	if !res.Matched || res.Intent != "open_app" {
		t.Fatalf("Match(opn terminal) = %+v, want open_app", res)
	}
	if res.Confidence >= 0.85 {
		t.Errorf("fuzzy confidence = %f, want < 0.85 (penalised)", res.Confidence)
	}
}

func TestMatch_LiveTrainingVisible(t *testing.T) {
	t.Parallel()

	r := newDefaultRegistry(t)
	m := matcher.New(r)
	ctx := context.Background()

	if res := m.Match(ctx, "summon the code wizard"); res.Matched && res.Intent == "open_app" {
		t.Fatalf("matched open_app before training: %+v", res)
	}
	if _, err := r.AppendPattern("open_app", "summon the code wizard"); err != nil {
		t.Fatal(err)
	}
	res := m.Match(ctx, "summon the code wizard")
	if res.Intent != "open_app" || res.Confidence < m.Threshold() {
		t.Errorf("after training Match = %+v, want open_app above threshold", res)
	}
}

func TestMatch_PhoneticCorrection(t *testing.T) {
	t.Parallel()

	plain := newDefaultMatcher(t)
	corrected := newDefaultMatcher(t, matcher.WithCorrector(
		transcript.NewPipeline(transcript.WithPhoneticMatcher(phonetic.New())),
	))
	ctx := context.Background()

	if res := plain.Match(ctx, "open spotifi"); res.Executable() && res.Entities["appName"] == "spotify" {
		t.Fatalf("uncorrected match unexpectedly resolved spotify: %+v", res)
	}
	res := corrected.Match(ctx, "open spotifi")
	if !res.Executable() || res.Entities["appName"] != "spotify" {
		t.Fatalf("corrected Match = %+v, want open_app/spotify", res)
	}
	if len(res.Corrections) == 0 || res.Corrections[0].Corrected != "spotify" {
		t.Errorf("Corrections = %+v", res.Corrections)
	}
}

func TestSetThreshold_Clamps(t *testing.T) {
	t.Parallel()

	m := newDefaultMatcher(t)
	if m.Threshold() != matcher.DefaultThreshold {
		t.Errorf("default threshold = %f", m.Threshold())
	}
	m.SetThreshold(1.5)
	if m.Threshold() != 1 {
		t.Errorf("Threshold after SetThreshold(1.5) = %f, want 1", m.Threshold())
	}
	m.SetThreshold(-1)
	if m.Threshold() != 0 {
		t.Errorf("Threshold after SetThreshold(-1) = %f, want 0", m.Threshold())
	}
}

func TestMatch_Concurrent(t *testing.T) {
	t.Parallel()

	r := newDefaultRegistry(t)
	m := matcher.New(r)
	var wg sync.WaitGroup
	for i := range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if i%4 == 0 {
				_, _ = r.AppendPattern("open_app", "bring up my thing number "+strings.Repeat("x", i+1))
			}
			_ = m.Match(context.Background(), "open the browser")
		}()
	}
	wg.Wait()
	if m.Context().Len() == 0 {
		t.Error("no history recorded")
	}
}
