// Package pattern parses command templates such as "open {appName} on
// {date}" into a small typed AST and compiles them into anchored,
// case-insensitive regular expressions with named captures.
//
// Templates are parsed once when the command catalog is loaded so that
// malformed braces and unknown placeholder names surface as load-time errors
// instead of silent non-matches.
package pattern

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

// Sentinel errors returned by [Parse].
var (
	ErrUnbalancedBrace  = errors.New("pattern: unbalanced brace")
	ErrInvalidName      = errors.New("pattern: invalid placeholder name")
	ErrDuplicateName    = errors.New("pattern: duplicate placeholder")
	ErrEmptyPattern     = errors.New("pattern: empty pattern")
	ErrAdjacentCaptures = errors.New("pattern: placeholders must be separated by literal text")
)

// SegmentKind distinguishes literal text from placeholders.
type SegmentKind int

const (
	// Literal is verbatim template text.
	Literal SegmentKind = iota
	// Placeholder is a {name} capture slot.
	Placeholder
)

// Segment is one node of a parsed template.
type Segment struct {
	Kind SegmentKind
	// Text holds the literal text, or the placeholder name.
	Text string
}

// Pattern is a parsed command template.
type Pattern struct {
	Raw      string
	Segments []Segment
}

// Parse splits raw into literal and placeholder segments.
func Parse(raw string) (*Pattern, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, ErrEmptyPattern
	}
	p := &Pattern{Raw: raw}
	seen := make(map[string]struct{})
	var lit strings.Builder
	rest := raw
	for rest != "" {
		open := strings.IndexAny(rest, "{}")
		if open < 0 {
			lit.WriteString(rest)
			break
		}
		if rest[open] == '}' {
			return nil, fmt.Errorf("%w: stray '}' in %q", ErrUnbalancedBrace, raw)
		}
		lit.WriteString(rest[:open])
		end := strings.IndexAny(rest[open+1:], "{}")
		if end < 0 || rest[open+1+end] == '{' {
			return nil, fmt.Errorf("%w: unclosed '{' in %q", ErrUnbalancedBrace, raw)
		}
		name := rest[open+1 : open+1+end]
		if !validName(name) {
			return nil, fmt.Errorf("%w: %q in %q", ErrInvalidName, name, raw)
		}
		if _, dup := seen[name]; dup {
			return nil, fmt.Errorf("%w: %q in %q", ErrDuplicateName, name, raw)
		}
		seen[name] = struct{}{}
		if lit.Len() > 0 {
			p.Segments = append(p.Segments, Segment{Kind: Literal, Text: lit.String()})
			lit.Reset()
		} else if n := len(p.Segments); n > 0 && p.Segments[n-1].Kind == Placeholder {
			return nil, fmt.Errorf("%w: %q", ErrAdjacentCaptures, raw)
		}
		p.Segments = append(p.Segments, Segment{Kind: Placeholder, Text: name})
		rest = rest[open+1+end+1:]
	}
	if lit.Len() > 0 {
		p.Segments = append(p.Segments, Segment{Kind: Literal, Text: lit.String()})
	}
	return p, nil
}

func validName(name string) bool {
	if name == "" {
		return false
	}
	for i, r := range name {
		switch {
		case r == '_' || unicode.IsLetter(r) && r < unicode.MaxASCII:
		case i > 0 && unicode.IsDigit(r) && r < unicode.MaxASCII:
		default:
			return false
		}
	}
	return true
}

// Placeholders returns the placeholder names in template order.
func (p *Pattern) Placeholders() []string {
	var names []string
	for _, s := range p.Segments {
		if s.Kind == Placeholder {
			names = append(names, s.Text)
		}
	}
	return names
}

// MapLiterals returns a copy of p whose literal segments have been rewritten
// by fn. fn sees the trimmed literal; leading and trailing whitespace is kept
// so placeholders stay separated from their neighbours.
func (p *Pattern) MapLiterals(fn func(string) string) *Pattern {
	out := &Pattern{Raw: p.Raw, Segments: make([]Segment, 0, len(p.Segments))}
	for _, s := range p.Segments {
		if s.Kind == Placeholder {
			out.Segments = append(out.Segments, s)
			continue
		}
		lead := strings.TrimLeftFunc(s.Text, unicode.IsSpace) != s.Text
		trail := strings.TrimRightFunc(s.Text, unicode.IsSpace) != s.Text
		core := fn(strings.TrimSpace(s.Text))
		var text string
		switch {
		case core != "":
			if lead {
				text = " "
			}
			text += core
			if trail {
				text += " "
			}
		case lead || trail:
			text = " "
		}
		if text != "" {
			out.Segments = append(out.Segments, Segment{Kind: Literal, Text: text})
		}
	}
	return out
}

// Words returns the template as whitespace-separated words, with every
// placeholder rendered as "{name}".
func (p *Pattern) Words() []string {
	return strings.Fields(p.String())
}

// String renders the template back to text.
func (p *Pattern) String() string {
	var b strings.Builder
	for _, s := range p.Segments {
		if s.Kind == Placeholder {
			b.WriteString("{" + s.Text + "}")
			continue
		}
		b.WriteString(s.Text)
	}
	return b.String()
}

// IsPlaceholder reports whether word is a rendered "{name}" placeholder and
// returns the name.
func IsPlaceholder(word string) (string, bool) {
	if len(word) < 3 || word[0] != '{' || word[len(word)-1] != '}' {
		return "", false
	}
	return word[1 : len(word)-1], true
}

// captureClass matches word characters with internal whitespace or hyphens.
const captureClass = `[\w\s-]+?`

// Compiled is a template compiled to an anchored regular expression.
type Compiled struct {
	Pattern *Pattern
	re      *regexp.Regexp
}

// Compile builds the regular expression for p. Literal text is escaped, runs
// of whitespace become \s+ and each placeholder becomes a named non-greedy
// capture. The expression is anchored and case-insensitive.
func Compile(p *Pattern) (*Compiled, error) {
	var b strings.Builder
	b.WriteString(`(?i)^\s*`)
	last := len(p.Segments) - 1
	for i, s := range p.Segments {
		if s.Kind == Placeholder {
			b.WriteString(`(?P<` + s.Text + `>` + captureClass + `)`)
			continue
		}
		b.WriteString(literalExpr(s.Text, i == 0, i == last))
	}
	b.WriteString(`\s*$`)
	re, err := regexp.Compile(b.String())
	if err != nil {
		return nil, fmt.Errorf("pattern: compile %q: %w", p.Raw, err)
	}
	return &Compiled{Pattern: p, re: re}, nil
}

// MustCompile is like [Compile] but panics on error.
func MustCompile(p *Pattern) *Compiled {
	c, err := Compile(p)
	if err != nil {
		panic(err)
	}
	return c
}

// literalExpr escapes text and relaxes its whitespace. Edge whitespace next
// to a placeholder becomes \s+; at the ends of the template it is dropped
// because the anchors already allow surrounding space.
func literalExpr(text string, first, last bool) string {
	words := strings.Fields(text)
	if len(words) == 0 {
		if first || last {
			return ""
		}
		return `\s+`
	}
	var b strings.Builder
	if !first && strings.TrimLeftFunc(text, unicode.IsSpace) != text {
		b.WriteString(`\s+`)
	}
	for i, w := range words {
		if i > 0 {
			b.WriteString(`\s+`)
		}
		b.WriteString(regexp.QuoteMeta(w))
	}
	if !last && strings.TrimRightFunc(text, unicode.IsSpace) != text {
		b.WriteString(`\s+`)
	}
	return b.String()
}

// Match reports whether the whole of text satisfies the compiled template and
// returns the trimmed placeholder captures.
func (c *Compiled) Match(text string) (map[string]string, bool) {
	idx, ok := c.MatchIndex(text)
	if !ok {
		return nil, false
	}
	captures := make(map[string]string, len(idx))
	for name, r := range idx {
		captures[name] = text[r[0]:r[1]]
	}
	return captures, true
}

// MatchIndex is like [Compiled.Match] but returns the byte range of each
// capture in text, trimmed of surrounding whitespace.
func (c *Compiled) MatchIndex(text string) (map[string][2]int, bool) {
	loc := c.re.FindStringSubmatchIndex(text)
	if loc == nil {
		return nil, false
	}
	out := make(map[string][2]int)
	for i, name := range c.re.SubexpNames() {
		if name == "" || 2*i+1 >= len(loc) || loc[2*i] < 0 {
			continue
		}
		start, end := loc[2*i], loc[2*i+1]
		for start < end && unicode.IsSpace(rune(text[start])) {
			start++
		}
		for end > start && unicode.IsSpace(rune(text[end-1])) {
			end--
		}
		out[name] = [2]int{start, end}
	}
	return out, true
}

// Expr returns the source of the compiled expression.
func (c *Compiled) Expr() string {
	return c.re.String()
}
