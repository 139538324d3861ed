package pattern_test

import (
	"errors"
	"slices"
	"strings"
	"testing"

	"github.com/MrWong99/voxcmd/internal/pattern"
)

func TestParse(t *testing.T) {
	t.Parallel()

	p, err := pattern.Parse("open {appName} on {date}")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	want := []pattern.Segment{
		{Kind: pattern.Literal, Text: "open "},
		{Kind: pattern.Placeholder, Text: "appName"},
		{Kind: pattern.Literal, Text: " on "},
		{Kind: pattern.Placeholder, Text: "date"},
	}
	if !slices.Equal(p.Segments, want) {
		t.Errorf("Segments = %+v, want %+v", p.Segments, want)
	}
	if got := p.Placeholders(); !slices.Equal(got, []string{"appName", "date"}) {
		t.Errorf("Placeholders() = %v", got)
	}
	if got := p.String(); got != "open {appName} on {date}" {
		t.Errorf("String() = %q", got)
	}
}

func TestParse_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		raw  string
		want error
	}{
		{"", pattern.ErrEmptyPattern},
		{"   ", pattern.ErrEmptyPattern},
		{"open {appName", pattern.ErrUnbalancedBrace},
		{"open appName}", pattern.ErrUnbalancedBrace},
		{"open {app{Name}}", pattern.ErrUnbalancedBrace},
		{"open {}", pattern.ErrInvalidName},
		{"open {app name}", pattern.ErrInvalidName},
		{"open {1app}", pattern.ErrInvalidName},
		{"move {a} to {a}", pattern.ErrDuplicateName},
		{"open {a}{b}", pattern.ErrAdjacentCaptures},
	}
	for _, tt := range tests {
		_, err := pattern.Parse(tt.raw)
		if !errors.Is(err, tt.want) {
			t.Errorf("Parse(%q) error = %v, want %v", tt.raw, err, tt.want)
		}
	}
}

func TestCompiled_Match(t *testing.T) {
	t.Parallel()

	tests := []struct {
		pattern string
		text    string
		want    map[string]string
		ok      bool
	}{
		{"open {appName}", "open terminal", map[string]string{"appName": "terminal"}, true},
		{"open {appName}", "OPEN   Visual Studio Code", map[string]string{"appName": "Visual Studio Code"}, true},
		{"open {appName}", "please open terminal", nil, false},
		{"open {appName}", "open", nil, false},
		{"set volume to {number}", "set volume to 50", map[string]string{"number": "50"}, true},
		{"move {item} to {place}", "move red box to top-left", map[string]string{"item": "red box", "place": "top-left"}, true},
		{"what is 2+2", "what is 2+2", map[string]string{}, true},
		{"what is 2+2", "what is 22", nil, false},
		{"search for {query}", "search for cats.", nil, false},
	}
	for _, tt := range tests {
		p, err := pattern.Parse(tt.pattern)
		if err != nil {
			t.Fatalf("Parse(%q): %v", tt.pattern, err)
		}
		c, err := pattern.Compile(p)
		if err != nil {
			t.Fatalf("Compile(%q): %v", tt.pattern, err)
		}
		got, ok := c.Match(tt.text)
		if ok != tt.ok {
			t.Errorf("%q.Match(%q) ok = %v, want %v (expr %s)", tt.pattern, tt.text, ok, tt.ok, c.Expr())
			continue
		}
		if !ok {
			continue
		}
		if len(got) != len(tt.want) {
			t.Errorf("%q.Match(%q) = %v, want %v", tt.pattern, tt.text, got, tt.want)
		}
		for k, v := range tt.want {
			if got[k] != v {
				t.Errorf("%q.Match(%q)[%q] = %q, want %q", tt.pattern, tt.text, k, got[k], v)
			}
		}
	}
}

func TestCompiled_MatchIndex(t *testing.T) {
	t.Parallel()

	p, err := pattern.Parse("move {item} to {place}")
	if err != nil {
		t.Fatal(err)
	}
	c := pattern.MustCompile(p)
	text := "move  red box   to top-left "
	idx, ok := c.MatchIndex(text)
	if !ok {
		t.Fatalf("MatchIndex(%q) did not match (expr %s)", text, c.Expr())
	}
	for name, want := range map[string]string{"item": "red box", "place": "top-left"} {
		r, ok := idx[name]
		if !ok {
			t.Errorf("MatchIndex missing %q", name)
			continue
		}
		if got := text[r[0]:r[1]]; got != want {
			t.Errorf("MatchIndex[%q] = %q, want %q", name, got, want)
		}
	}
	if _, ok := c.MatchIndex("move red box"); ok {
		t.Error("MatchIndex matched an incomplete utterance")
	}
}

func TestCompile_Expr(t *testing.T) {
	t.Parallel()

	p, err := pattern.Parse("open {appName}")
	if err != nil {
		t.Fatal(err)
	}
	expr := pattern.MustCompile(p).Expr()
	for _, want := range []string{`(?i)`, `^`, `$`, `open\s+`, `(?P<appName>[\w\s-]+?)`} {
		if !strings.Contains(expr, want) {
			t.Errorf("Expr() = %q, missing %q", expr, want)
		}
	}
}

func TestMapLiterals(t *testing.T) {
	t.Parallel()

	p, err := pattern.Parse("please launch {appName} now")
	if err != nil {
		t.Fatal(err)
	}
	drop := map[string]string{"please launch": "open", "now": ""}
	got := p.MapLiterals(func(s string) string {
		if r, ok := drop[s]; ok {
			return r
		}
		return s
	})
	if got.String() != "open {appName} " {
		t.Errorf("MapLiterals() = %q, want %q", got.String(), "open {appName} ")
	}
	if got.Raw != p.Raw {
		t.Errorf("Raw changed: %q", got.Raw)
	}
	if p.String() != "please launch {appName} now" {
		t.Errorf("original mutated: %q", p.String())
	}

	c := pattern.MustCompile(got)
	if caps, ok := c.Match("open terminal"); !ok || caps["appName"] != "terminal" {
		t.Errorf("Match after MapLiterals = %v, %v", caps, ok)
	}
}

func TestMapLiterals_KeepsSeparator(t *testing.T) {
	t.Parallel()

	p, err := pattern.Parse("{item} the {place}")
	if err != nil {
		t.Fatal(err)
	}
	got := p.MapLiterals(func(string) string { return "" })
	c := pattern.MustCompile(got)
	caps, ok := c.Match("box shelf")
	if !ok {
		t.Fatalf("Match failed, expr %s", c.Expr())
	}
	if caps["item"] != "box" || caps["place"] != "shelf" {
		t.Errorf("captures = %v", caps)
	}
}

func TestIsPlaceholder(t *testing.T) {
	t.Parallel()

	if name, ok := pattern.IsPlaceholder("{appName}"); !ok || name != "appName" {
		t.Errorf("IsPlaceholder({appName}) = %q, %v", name, ok)
	}
	for _, w := range []string{"open", "{}", "{x", "x}"} {
		if _, ok := pattern.IsPlaceholder(w); ok {
			t.Errorf("IsPlaceholder(%q) = true", w)
		}
	}
}
