// Package matcher resolves utterances to command intents.
//
// A [Matcher] reads the command catalog from a [command.Registry] on every
// call, so patterns added by training are recognised immediately. For each
// command it tries every pattern structurally first and falls back to edit
// distance, keeps the best score per command, gates on the confidence
// threshold and resolves the winner against the session's
// [dialog.Context].
package matcher

import (
	"context"
	"fmt"
	"math"
	"slices"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MrWong99/voxcmd/internal/command"
	"github.com/MrWong99/voxcmd/internal/dialog"
	"github.com/MrWong99/voxcmd/internal/nlu"
	"github.com/MrWong99/voxcmd/internal/observe"
	"github.com/MrWong99/voxcmd/internal/pattern"
	"github.com/MrWong99/voxcmd/internal/transcript"
)

const (
	// DefaultThreshold is the minimum confidence for a match.
	DefaultThreshold = 0.6

	suggestionFloor = 0.4
	maxSuggestions  = 3
	maxAlternatives = 2
)

// Option is a functional option for configuring a [Matcher].
type Option func(*Matcher)

// WithThreshold sets the confidence threshold. Default: 0.6.
func WithThreshold(t float64) Option {
	return func(m *Matcher) {
		m.SetThreshold(t)
	}
}

// WithContext attaches an existing conversation context. By default each
// Matcher owns a fresh [dialog.Context].
func WithContext(c *dialog.Context) Option {
	return func(m *Matcher) {
		m.conv = c
	}
}

// WithExpander replaces the synonym expander. Default: [nlu.DefaultExpander].
func WithExpander(e *nlu.Expander) Option {
	return func(m *Matcher) {
		m.expander = e
	}
}

// WithCorrector runs utterances through p before matching. Default: none.
func WithCorrector(p transcript.Pipeline) Option {
	return func(m *Matcher) {
		m.corrector = p
	}
}

// WithMetrics sets the metrics sink. Default: [observe.DefaultMetrics].
func WithMetrics(met *observe.Metrics) Option {
	return func(m *Matcher) {
		m.metrics = met
	}
}

// WithClock overrides the time source for history timestamps.
func WithClock(now func() time.Time) Option {
	return func(m *Matcher) {
		m.now = now
	}
}

// Matcher is the intent matcher for one voice session.
//
// Match may be called concurrently; the registry and context handle their own
// locking and the compiled-pattern cache is guarded internally.
type Matcher struct {
	registry  command.Registry
	conv      *dialog.Context
	expander  *nlu.Expander
	corrector transcript.Pipeline
	metrics   *observe.Metrics
	now       func() time.Time
	threshold atomic.Uint64

	mu          sync.Mutex
	compiled    map[string]*compiledPattern
	compiledAt  uint64
	vocab       []string
	vocabAt     uint64
	vocabLoaded bool
}

// compiledPattern is a registry pattern after synonym expansion.
type compiledPattern struct {
	raw  string
	text string
	re   *pattern.Compiled
}

// New returns a Matcher over registry.
func New(registry command.Registry, opts ...Option) *Matcher {
	m := &Matcher{
		registry: registry,
		expander: nlu.DefaultExpander,
		now:      time.Now,
		compiled: make(map[string]*compiledPattern),
	}
	m.SetThreshold(DefaultThreshold)
	for _, o := range opts {
		o(m)
	}
	if m.conv == nil {
		m.conv = dialog.New(dialog.WithClock(m.now))
	}
	if m.metrics == nil {
		m.metrics = observe.DefaultMetrics()
	}
	return m
}

// Threshold returns the current confidence threshold.
func (m *Matcher) Threshold() float64 {
	return math.Float64frombits(m.threshold.Load())
}

// SetThreshold changes the confidence threshold. Values are clamped to [0, 1].
func (m *Matcher) SetThreshold(t float64) {
	m.threshold.Store(math.Float64bits(min(max(t, 0), 1)))
}

// Context returns the conversation context owned by this matcher.
func (m *Matcher) Context() *dialog.Context {
	return m.conv
}

// Registry returns the registry the matcher reads from.
func (m *Matcher) Registry() command.Registry {
	return m.registry
}

// utterance is one input prepared for matching.
type utterance struct {
	raw        string
	normalized string
	expanded   string
	entities   nlu.Entities

	tokens  []string   // tokens of normalized
	spans   []nlu.Span // per expanded token, its range in tokens
	offsets []int      // per expanded token, its byte offset in expanded
}

func newUtterance(raw, normalized string, e *nlu.Expander) utterance {
	tokens := nlu.Tokenize(normalized)
	out, spans := e.ExpandSpans(tokens)
	offsets := make([]int, len(out))
	pos := 0
	for i, w := range out {
		offsets[i] = pos
		pos += len(w) + 1
	}
	return utterance{
		raw:        raw,
		normalized: normalized,
		expanded:   strings.Join(out, " "),
		entities:   nlu.ExtractEntities(normalized),
		tokens:     tokens,
		spans:      spans,
		offsets:    offsets,
	}
}

// source returns the spoken words behind the byte range r of the expanded
// text. Fillers dropped directly before the range are included; verb
// variants appear as they were said.
func (u utterance) source(r [2]int) string {
	if r[0] >= r[1] || len(u.offsets) == 0 {
		return ""
	}
	first := sort.Search(len(u.offsets), func(i int) bool { return u.offsets[i] > r[0] }) - 1
	last := sort.Search(len(u.offsets), func(i int) bool { return u.offsets[i] >= r[1] }) - 1
	if first < 0 || last < first {
		return u.expanded[r[0]:r[1]]
	}
	start := u.spans[first].Start
	if first > 0 {
		start = u.spans[first-1].End
	}
	return strings.Join(u.tokens[start:u.spans[last].End], " ")
}

// captures reads placeholder values for a structural match. Built-in entity
// types are canonicalised later and read from the expanded text; free-text
// placeholders keep the words the user spoke.
func (u utterance) captures(idx map[string][2]int) map[string]string {
	out := make(map[string]string, len(idx))
	for name, r := range idx {
		if nlu.IsBuiltin(name) {
			out[name] = u.expanded[r[0]:r[1]]
			continue
		}
		out[name] = u.source(r)
	}
	return out
}

// candidate is the best scoring pattern of one command.
type candidate struct {
	cmd        command.Command
	pattern    string
	confidence float64
	entities   nlu.Entities
}

// Match resolves utterance against the registry. It never returns nil.
//
// The conversation context is only modified when the result is fully
// executable; calling Match twice with the same input adds two history
// entries.
func (m *Matcher) Match(ctx context.Context, text string) *Result {
	start := time.Now()
	ctx, span := observe.StartSpan(ctx, "matcher.Match")
	defer span.End()

	res := m.match(ctx, text)

	outcome := observe.OutcomeMatched
	switch {
	case res.Error == ErrEmptyUtterance:
		outcome = observe.OutcomeInvalid
	case !res.Matched:
		outcome = observe.OutcomeNoMatch
	case len(res.MissingEntities) > 0:
		outcome = observe.OutcomeMissing
	}
	m.metrics.RecordMatch(ctx, time.Since(start).Seconds(), outcome, res.Confidence)
	observe.AnnotateMatch(span, outcome, res.Intent, res.Confidence)
	observe.Logger(ctx).Debug("matcher: match complete",
		"outcome", outcome,
		"intent", res.Intent,
		"confidence", res.Confidence,
		"suggestions", len(res.Suggestions),
	)
	return res
}

func (m *Matcher) match(ctx context.Context, text string) *Result {
	normalized := nlu.Normalize(text)
	res := &Result{Utterance: text}
	if normalized == "" {
		res.Error = ErrEmptyUtterance
		return res
	}

	if m.corrector != nil {
		ct, err := m.corrector.Correct(ctx, normalized, m.vocabulary())
		if err != nil {
			observe.Logger(ctx).Warn("matcher: correction failed, matching raw utterance", "err", err)
		} else if len(ct.Corrections) > 0 {
			normalized = nlu.Normalize(ct.Corrected)
			res.Corrections = ct.Corrections
		}
	}

	u := newUtterance(text, normalized, m.expander)

	version := m.registry.Version()
	commands := m.registry.All()
	m.pruneCompiled(version, commands)
	threshold := m.Threshold()
	var ranked []candidate
	for _, cmd := range commands {
		c, ok := m.scoreCommand(u, cmd)
		if ok && c.confidence >= threshold {
			ranked = append(ranked, c)
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].confidence > ranked[j].confidence
	})

	if len(ranked) == 0 {
		res.Suggestions = suggest(u.normalized, commands)
		return res
	}

	top := ranked[0]
	entities := m.conv.EnrichEntities(top.entities)
	applyDefaults(entities, top.cmd)

	cmd := top.cmd
	res.Matched = true
	res.Confidence = top.confidence
	res.Intent = cmd.Intent
	res.Command = &cmd
	res.Entities = entities
	res.Pattern = top.pattern
	for _, alt := range ranked[1:min(len(ranked), 1+maxAlternatives)] {
		res.Alternatives = append(res.Alternatives, Alternative{
			Intent:     alt.cmd.Intent,
			Confidence: alt.confidence,
			Pattern:    alt.pattern,
			Entities:   alt.entities,
		})
	}

	if missing := missingEntities(entities, cmd); len(missing) > 0 {
		res.MissingEntities = missing
		res.Error = "Missing required entities: " + strings.Join(missing, ", ")
		return res
	}

	m.conv.AddUtterance(dialog.Turn{
		Utterance:  text,
		Intent:     cmd.Intent,
		Entities:   entities,
		Confidence: top.confidence,
		Timestamp:  m.now(),
	})
	return res
}

// scoreCommand returns the best scoring pattern of cmd. ok is false when the
// command has no patterns or the utterance expands to nothing.
func (m *Matcher) scoreCommand(u utterance, cmd command.Command) (candidate, bool) {
	if u.expanded == "" {
		return candidate{}, false
	}
	var best candidate
	found := false
	for _, raw := range cmd.Patterns {
		cp := m.compile(raw)
		var (
			conf     float64
			entities nlu.Entities
		)
		if idx, ok := cp.re.MatchIndex(u.expanded); ok {
			var scoring nlu.Entities
			entities, scoring = mergeCaptures(u.entities, u.captures(idx))
			conf = Confidence(u.expanded, cp.text, scoring)
		} else {
			conf = nlu.Similarity(u.expanded, renderPattern(cp.re.Pattern, u.entities)) * nlu.FuzzyPenalty
			entities = u.entities.Clone()
		}
		if !found || conf > best.confidence {
			best = candidate{cmd: cmd, pattern: raw, confidence: conf, entities: entities}
			found = true
		}
	}
	return best, found
}

// mergeCaptures overlays pattern captures on the globally extracted entities.
// Captures win on collision unless they are invalid for a built-in type and
// the global extraction has a value. scoring holds only the entities that
// count as satisfied placeholders.
func mergeCaptures(global nlu.Entities, captures map[string]string) (merged, scoring nlu.Entities) {
	merged = global.Clone()
	scoring = global.Clone()
	for name, raw := range captures {
		v, valid := nlu.CanonicalValue(name, raw, global)
		switch {
		case valid:
			merged[name] = v
			scoring[name] = v
		case !global.Has(name):
			merged[name] = raw
		}
	}
	return merged, scoring
}

// renderPattern substitutes placeholders with extracted values so that the
// fuzzy comparison sees "open terminal" instead of "open {appName}".
func renderPattern(p *pattern.Pattern, entities nlu.Entities) string {
	var b strings.Builder
	for _, s := range p.Segments {
		if s.Kind == pattern.Placeholder && entities.Has(s.Text) {
			b.WriteString(entities.String(s.Text))
			continue
		}
		if s.Kind == pattern.Placeholder {
			b.WriteString("{" + s.Text + "}")
			continue
		}
		b.WriteString(s.Text)
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// compile returns the cached expansion of raw, building it on first use.
// Patterns are validated when they enter the registry, so a failure here is
// a programming error.
func (m *Matcher) compile(raw string) *compiledPattern {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cp, ok := m.compiled[raw]; ok {
		return cp
	}
	p, err := pattern.Parse(raw)
	if err != nil {
		panic(fmt.Sprintf("matcher: registry holds invalid pattern: %v", err))
	}
	expanded := p.MapLiterals(m.expander.Expand)
	cp := &compiledPattern{
		raw:  raw,
		text: strings.Join(expanded.Words(), " "),
		re:   pattern.MustCompile(expanded),
	}
	m.compiled[raw] = cp
	return cp
}

// pruneCompiled drops cached patterns that are no longer in the registry. It
// only scans when the registry version moved since the last prune.
func (m *Matcher) pruneCompiled(version uint64, commands []command.Command) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.compiledAt == version {
		return
	}
	live := make(map[string]struct{})
	for _, cmd := range commands {
		for _, raw := range cmd.Patterns {
			live[raw] = struct{}{}
		}
	}
	for raw := range m.compiled {
		if _, ok := live[raw]; !ok {
			delete(m.compiled, raw)
		}
	}
	m.compiledAt = version
}

// vocabulary returns the words phonetic correction may snap to: the built-in
// app, theme and verb tables plus every literal word of every pattern. It is
// rebuilt when the registry version changes.
func (m *Matcher) vocabulary() []string {
	version := m.registry.Version()
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.vocabLoaded && m.vocabAt == version {
		return m.vocab
	}
	seen := make(map[string]struct{})
	var vocab []string
	add := func(w string) {
		if _, ok := seen[w]; ok {
			return
		}
		seen[w] = struct{}{}
		vocab = append(vocab, w)
	}
	for _, w := range nlu.Vocabulary() {
		add(w)
	}
	for _, cmd := range m.registry.All() {
		for _, raw := range cmd.Patterns {
			p, err := pattern.Parse(raw)
			if err != nil {
				continue
			}
			for _, s := range p.Segments {
				if s.Kind == pattern.Literal {
					for _, w := range nlu.Tokenize(s.Text) {
						add(w)
					}
				}
			}
		}
	}
	m.vocab, m.vocabAt, m.vocabLoaded = vocab, version, true
	return vocab
}

func applyDefaults(entities nlu.Entities, cmd command.Command) {
	for name, spec := range cmd.Entities {
		if spec.Default != nil && !entities.Has(name) {
			entities[name] = spec.Default
		}
	}
}

func missingEntities(entities nlu.Entities, cmd command.Command) []string {
	var missing []string
	for _, name := range cmd.RequiredEntities() {
		if !entities.Has(name) {
			missing = append(missing, name)
		}
	}
	return missing
}

// suggest ranks commands by their closest example or pattern. Commands whose
// best similarity exceeds 0.4 are kept, at most three.
func suggest(normalized string, commands []command.Command) []Suggestion {
	var out []Suggestion
	for _, cmd := range commands {
		best := Suggestion{Intent: cmd.Intent, Description: cmd.Description}
		for _, text := range slices.Concat(cmd.Examples, cmd.Patterns) {
			if sim := nlu.Similarity(normalized, text); sim > best.Similarity {
				best.Similarity = sim
				best.Example = text
			}
		}
		if best.Similarity > suggestionFloor {
			out = append(out, best)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Similarity > out[j].Similarity
	})
	if len(out) > maxSuggestions {
		out = out[:maxSuggestions]
	}
	return out
}
