package nlu

import "strings"

// SynonymGroup maps verb variants onto one canonical verb. Variants may be
// multi-word phrases such as "fire up".
type SynonymGroup struct {
	Canonical string
	Variants  []string
}

// SynonymGroups is the ordered verb vocabulary. When a variant appears in
// more than one group the earlier group wins.
var SynonymGroups = []SynonymGroup{
	{Canonical: "open", Variants: []string{"launch", "start", "run", "fire up", "boot", "boot up", "load", "bring up", "execute"}},
	{Canonical: "close", Variants: []string{"quit", "exit", "kill", "terminate", "shut down", "dismiss"}},
	{Canonical: "search", Variants: []string{"find", "look up", "look for", "lookup", "google"}},
	{Canonical: "enable", Variants: []string{"activate", "turn on", "switch on"}},
	{Canonical: "disable", Variants: []string{"deactivate", "turn off", "switch off"}},
	{Canonical: "increase", Variants: []string{"raise", "boost", "turn up", "bump up"}},
	{Canonical: "decrease", Variants: []string{"lower", "reduce", "turn down", "dim"}},
	{Canonical: "set", Variants: []string{"change", "adjust", "switch"}},
	{Canonical: "show", Variants: []string{"display", "reveal", "view"}},
	{Canonical: "hide", Variants: []string{"conceal"}},
	{Canonical: "go", Variants: []string{"navigate", "head", "take me"}},
}

// Fillers are politeness and hesitation words that carry no command meaning.
// They are dropped from both utterances and pattern literals.
var Fillers = []string{
	"please", "kindly", "just", "the", "a", "an", "now", "hey", "ok", "okay", "um", "uh",
	"can you", "could you", "would you", "will you", "for me",
	"i want to", "i would like to",
}

// Expander canonicalises verb variants and drops filler words. The zero value
// is not usable; use [NewExpander] or [DefaultExpander].
type Expander struct {
	single    map[string]string
	phrases   map[string]string
	maxPhrase int
}

// DefaultExpander is built from [SynonymGroups] and [Fillers].
var DefaultExpander = NewExpander(SynonymGroups, Fillers)

// NewExpander builds an expander from ordered synonym groups and filler
// phrases. Fillers are mapped to the empty string.
func NewExpander(groups []SynonymGroup, fillers []string) *Expander {
	e := &Expander{
		single:  make(map[string]string),
		phrases: make(map[string]string),
	}
	add := func(variant, canonical string) {
		words := strings.Fields(Normalize(variant))
		if len(words) == 0 {
			return
		}
		key := strings.Join(words, " ")
		target := e.single
		if len(words) > 1 {
			target = e.phrases
			e.maxPhrase = max(e.maxPhrase, len(words))
		}
		if _, exists := target[key]; !exists {
			target[key] = canonical
		}
	}
	for _, f := range fillers {
		add(f, "")
	}
	for _, g := range groups {
		for _, v := range g.Variants {
			add(v, g.Canonical)
		}
	}
	return e
}

// Expand tokenises text and rewrites it token by token: filler words are
// removed, verb variants become their canonical verb and every other token is
// kept. Multi-word variants are matched longest first.
func (e *Expander) Expand(text string) string {
	return strings.Join(e.ExpandTokens(Tokenize(text)), " ")
}

// ExpandTokens is [Expander.Expand] over an already tokenised utterance.
func (e *Expander) ExpandTokens(tokens []string) []string {
	out, _ := e.ExpandSpans(tokens)
	return out
}

// Span is the half-open range of input tokens one expanded token came from.
type Span struct {
	Start, End int
}

// ExpandSpans is [Expander.ExpandTokens] that also reports, for every output
// token, the input tokens it replaced. Dropped fillers belong to no span.
func (e *Expander) ExpandSpans(tokens []string) ([]string, []Span) {
	out := make([]string, 0, len(tokens))
	spans := make([]Span, 0, len(tokens))
	for i := 0; i < len(tokens); {
		n := 1
		repl, ok := e.single[tokens[i]]
		if r, pn := e.phraseAt(tokens[i:]); pn > 0 {
			repl, ok, n = r, true, pn
		}
		switch {
		case !ok:
			out = append(out, tokens[i])
			spans = append(spans, Span{Start: i, End: i + 1})
		case repl != "":
			out = append(out, repl)
			spans = append(spans, Span{Start: i, End: i + n})
		}
		i += n
	}
	return out, spans
}

func (e *Expander) phraseAt(tokens []string) (string, int) {
	for n := min(e.maxPhrase, len(tokens)); n >= 2; n-- {
		if repl, ok := e.phrases[strings.Join(tokens[:n], " ")]; ok {
			return repl, n
		}
	}
	return "", 0
}

// ExpandSynonyms runs [DefaultExpander] over utterance.
func ExpandSynonyms(utterance string) string {
	return DefaultExpander.Expand(utterance)
}
