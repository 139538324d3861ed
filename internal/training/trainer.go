package training

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/MrWong99/voxcmd/internal/command"
	"github.com/MrWong99/voxcmd/internal/matcher"
	"github.com/MrWong99/voxcmd/internal/nlu"
	"github.com/MrWong99/voxcmd/internal/observe"
)

// Sentinel errors returned by [Trainer] operations.
var (
	ErrUnknownIntent     = errors.New("training: unknown intent")
	ErrUtteranceNotFound = errors.New("training: utterance not found")
	ErrVersionMismatch   = errors.New("training: export version mismatch")
	ErrEmptyUtterance    = errors.New("training: empty utterance")
	ErrInvalidUtterance  = errors.New("training: utterance is not a valid pattern")
)

// SuccessConfidence is the confidence a recognition test must reach to count
// as successful.
const SuccessConfidence = 0.7

// Recognizer resolves an utterance. [*matcher.Matcher] implements it.
type Recognizer interface {
	Match(ctx context.Context, utterance string) *matcher.Result
}

// Option is a functional option for configuring a [Trainer].
type Option func(*Trainer)

// WithMetrics sets the metrics sink. Default: [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(t *Trainer) {
		t.metrics = m
	}
}

// WithClock overrides the time source for timestamps.
func WithClock(now func() time.Time) Option {
	return func(t *Trainer) {
		t.now = now
	}
}

// WithBackendName labels store error metrics and logs. Default: "store".
func WithBackendName(name string) Option {
	return func(t *Trainer) {
		t.backend = name
	}
}

// Trainer owns the training corpus and keeps the registry in sync with it.
//
// All methods are safe for concurrent use. Store calls are made while the
// trainer lock is held so that saves reach the store in mutation order.
type Trainer struct {
	registry command.Registry
	store    Store
	metrics  *observe.Metrics
	now      func() time.Time
	backend  string

	mu  sync.Mutex
	rec *Record
	// owned holds the patterns training added to the registry, per intent.
	// Patterns the catalog already had are never removed by training.
	owned map[string]map[string]struct{}
	// ownedAt is the registry version owned was last known to be accurate at.
	ownedAt uint64
}

// New loads the corpus from store and replays it into registry. A load
// failure is logged and the trainer starts with an empty corpus.
func New(ctx context.Context, registry command.Registry, store Store, opts ...Option) *Trainer {
	t := &Trainer{
		registry: registry,
		store:    store,
		now:      time.Now,
		backend:  "store",
	}
	for _, o := range opts {
		o(t)
	}
	if t.metrics == nil {
		t.metrics = observe.DefaultMetrics()
	}

	rec, err := store.Load(ctx)
	switch {
	case err != nil:
		t.storeError(ctx, "load", err)
		rec = nil
	case rec != nil:
		observe.Logger(ctx).Info("training: corpus loaded", "backend", t.backend, "intents", len(rec.TrainingData))
	}
	t.rec = rec.Clone()
	t.replayLocked(ctx)
	return t
}

// TrainCommand records utterance for intent and appends it to the intent's
// patterns. Entities extracted from the utterance are merged with the
// supplied ones, which win on collision. Training the same text twice is a
// no-op that returns the existing entry.
//
// The utterance may contain {placeholders}; it must then be a valid pattern
// for the command.
func (t *Trainer) TrainCommand(ctx context.Context, intent, utterance string, entities nlu.Entities) (Utterance, error) {
	u, err := t.trainCommand(ctx, intent, utterance, entities)
	t.recordOp(ctx, "train", err)
	return u, err
}

func (t *Trainer) trainCommand(ctx context.Context, intent, utterance string, entities nlu.Entities) (Utterance, error) {
	text := strings.TrimSpace(utterance)
	if text == "" {
		return Utterance{}, ErrEmptyUtterance
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.registry.Get(intent); !ok {
		return Utterance{}, fmt.Errorf("%w: %q", ErrUnknownIntent, intent)
	}
	data := t.rec.TrainingData[intent]
	if i := indexOf(data.Utterances, text); i >= 0 {
		return data.Utterances[i], nil
	}

	added, err := t.registry.AppendPattern(intent, text)
	if err != nil {
		if errors.Is(err, command.ErrNotFound) {
			return Utterance{}, fmt.Errorf("%w: %q", ErrUnknownIntent, intent)
		}
		return Utterance{}, fmt.Errorf("%w: %w", ErrInvalidUtterance, err)
	}
	if added {
		t.own(intent, text)
	}
	t.ownedAt = t.registry.Version()

	merged := nlu.ExtractEntities(text)
	merged.Merge(entities)
	u := Utterance{Text: text, Entities: merged, Timestamp: t.now()}
	data.Utterances = append(data.Utterances, u)
	data.TrainedAt = u.Timestamp
	t.rec.TrainingData[intent] = data

	observe.Logger(ctx).Info("training: utterance trained", "intent", intent, "utterance", text)
	t.persistLocked(ctx)
	return u, nil
}

// RemoveTrainingUtterance deletes the exact utterance text from the corpus
// and, when training added it, from the intent's patterns. An intent left without utterances is
// dropped from the corpus; its accuracy statistics are kept.
func (t *Trainer) RemoveTrainingUtterance(ctx context.Context, intent, utterance string) error {
	err := t.removeTrainingUtterance(ctx, intent, strings.TrimSpace(utterance))
	t.recordOp(ctx, "remove", err)
	return err
}

func (t *Trainer) removeTrainingUtterance(ctx context.Context, intent, text string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	data, ok := t.rec.TrainingData[intent]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownIntent, intent)
	}
	i := indexOf(data.Utterances, text)
	if i < 0 {
		return fmt.Errorf("%w: %q", ErrUtteranceNotFound, text)
	}
	data.Utterances = slices.Delete(data.Utterances, i, i+1)
	if len(data.Utterances) == 0 {
		delete(t.rec.TrainingData, intent)
	} else {
		t.rec.TrainingData[intent] = data
	}
	t.releasePattern(ctx, intent, text)

	t.persistLocked(ctx)
	return nil
}

// TestResult is the outcome of [Trainer.TestRecognition].
type TestResult struct {
	Result  *matcher.Result `json:"result"`
	Success bool            `json:"success"`

	// Stats are the updated statistics of the resolved intent. Nil when the
	// utterance did not resolve to any intent.
	Stats *AccuracyStats `json:"stats,omitempty"`
}

// TestRecognition runs utterance through r and folds the outcome into the
// resolved intent's accuracy statistics. A test succeeds when the utterance
// matched with at least [SuccessConfidence].
func (t *Trainer) TestRecognition(ctx context.Context, utterance string, r Recognizer) (*TestResult, error) {
	if strings.TrimSpace(utterance) == "" {
		t.recordOp(ctx, "test", ErrEmptyUtterance)
		return nil, ErrEmptyUtterance
	}
	res := r.Match(ctx, utterance)
	out := &TestResult{
		Result:  res,
		Success: res.Matched && res.Confidence >= SuccessConfidence,
	}
	t.metrics.RecordRecognitionTest(ctx, res.Intent, out.Success)
	t.recordOp(ctx, "test", nil)
	if res.Intent == "" {
		return out, nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	s := t.rec.AccuracyStats[res.Intent]
	s.TotalTests++
	if out.Success {
		s.SuccessfulTests++
	}
	s.AverageConfidence += (res.Confidence - s.AverageConfidence) / float64(s.TotalTests)
	t.rec.AccuracyStats[res.Intent] = s
	out.Stats = &s

	t.persistLocked(ctx)
	return out, nil
}

// GetAccuracyStats returns the statistics of intent.
func (t *Trainer) GetAccuracyStats(intent string) (AccuracyStats, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.rec.AccuracyStats[intent]
	return s, ok
}

// GetAllAccuracyStats returns a copy of every intent's statistics.
func (t *Trainer) GetAllAccuracyStats() map[string]AccuracyStats {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.rec.Clone().AccuracyStats
}

// GetTrainingData returns the corpus of intent.
func (t *Trainer) GetTrainingData(intent string) (IntentData, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	d, ok := t.rec.TrainingData[intent]
	if !ok {
		return IntentData{}, false
	}
	return d.clone(), true
}

// GetAllTrainingData returns a copy of the whole corpus.
func (t *Trainer) GetAllTrainingData() map[string]IntentData {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.rec.Clone().TrainingData
}

// Export returns the portable form of the corpus.
func (t *Trainer) Export() Export {
	t.mu.Lock()
	rec := t.rec.Clone()
	t.mu.Unlock()
	return Export{
		TrainingData:  rec.TrainingData,
		AccuracyStats: rec.AccuracyStats,
		ExportedAt:    t.now(),
		Version:       ExportVersion,
	}
}

// ExportJSON returns [Trainer.Export] encoded as indented JSON.
func (t *Trainer) ExportJSON() ([]byte, error) {
	data, err := json.MarshalIndent(t.Export(), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("training: encode export: %w", err)
	}
	return data, nil
}

// Import replaces the corpus with e and replays every imported utterance
// into the registry. Nothing changes when the version does not match
// [ExportVersion]. Utterances for intents the registry does not know are
// kept in the corpus but not replayed.
func (t *Trainer) Import(ctx context.Context, e Export) error {
	err := t.importExport(ctx, e)
	t.recordOp(ctx, "import", err)
	return err
}

func (t *Trainer) importExport(ctx context.Context, e Export) error {
	if e.Version != ExportVersion {
		return fmt.Errorf("%w: got %q, want %q", ErrVersionMismatch, e.Version, ExportVersion)
	}
	rec := (&Record{TrainingData: e.TrainingData, AccuracyStats: e.AccuracyStats}).Clone()

	t.mu.Lock()
	defer t.mu.Unlock()
	t.releaseAllPatterns(ctx)
	t.rec = rec
	applied := t.replayLocked(ctx)
	observe.Logger(ctx).Info("training: corpus imported",
		"intents", len(rec.TrainingData),
		"patterns_added", applied,
	)
	t.persistLocked(ctx)
	return nil
}

// ImportJSON validates data against the export schema, decodes it and
// calls [Trainer.Import].
func (t *Trainer) ImportJSON(ctx context.Context, data []byte) error {
	if err := ValidateExportJSON(data); err != nil {
		t.recordOp(ctx, "import", err)
		return err
	}
	var e Export
	if err := json.Unmarshal(data, &e); err != nil {
		err = fmt.Errorf("%w: %w", ErrInvalidExport, err)
		t.recordOp(ctx, "import", err)
		return err
	}
	return t.Import(ctx, e)
}

// ClearTrainingData deletes the corpus and statistics of intent, or of every
// intent when intent is empty, and removes the trained patterns from the
// registry.
func (t *Trainer) ClearTrainingData(ctx context.Context, intent string) error {
	err := t.clearTrainingData(ctx, intent)
	t.recordOp(ctx, "clear", err)
	return err
}

func (t *Trainer) clearTrainingData(ctx context.Context, intent string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if intent == "" {
		t.releaseAllPatterns(ctx)
		t.rec = NewRecord()
		t.persistLocked(ctx)
		return nil
	}

	data, hasData := t.rec.TrainingData[intent]
	_, hasStats := t.rec.AccuracyStats[intent]
	if !hasData && !hasStats {
		return fmt.Errorf("%w: %q", ErrUnknownIntent, intent)
	}
	for _, u := range data.Utterances {
		t.releasePattern(ctx, intent, u.Text)
	}
	delete(t.rec.TrainingData, intent)
	delete(t.rec.AccuracyStats, intent)
	t.persistLocked(ctx)
	return nil
}

// Replay appends every trained utterance to the registry again. Call it after
// the registry has been reloaded from the catalog. It returns the number of
// patterns that were missing and got added.
func (t *Trainer) Replay(ctx context.Context) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.replayLocked(ctx)
}

// replayLocked forgets pattern ownership when the registry changed behind the
// trainer's back, since a reloaded catalog may now hold those patterns itself.
func (t *Trainer) replayLocked(ctx context.Context) int {
	if t.registry.Version() != t.ownedAt {
		t.owned = nil
	}
	applied := 0
	for _, intent := range slices.Sorted(maps.Keys(t.rec.TrainingData)) {
		for _, u := range t.rec.TrainingData[intent].Utterances {
			added, err := t.registry.AppendPattern(intent, u.Text)
			if err != nil {
				observe.Logger(ctx).Warn("training: cannot replay utterance",
					"intent", intent, "utterance", u.Text, "err", err)
				continue
			}
			if added {
				t.own(intent, strings.TrimSpace(u.Text))
				applied++
			}
		}
	}
	t.ownedAt = t.registry.Version()
	return applied
}

// Reload replaces the registry catalog with cmds and the trained corpus in a
// single swap, so no match sees the new catalog without its trained patterns.
// It returns the number of trained patterns added. On error the registry is
// unchanged.
func (t *Trainer) Reload(ctx context.Context, cmds []command.Command) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	merged := make([]command.Command, len(cmds))
	index := make(map[string]int, len(cmds))
	for i, c := range cmds {
		merged[i] = c.Clone()
		index[c.Intent] = i
	}

	var owned map[string]map[string]struct{}
	applied := 0
	for _, intent := range slices.Sorted(maps.Keys(t.rec.TrainingData)) {
		i, ok := index[intent]
		if !ok {
			observe.Logger(ctx).Warn("training: catalog has no command for trained intent", "intent", intent)
			continue
		}
		c := &merged[i]
		for _, u := range t.rec.TrainingData[intent].Utterances {
			text := strings.TrimSpace(u.Text)
			if slices.Contains(c.Patterns, text) {
				continue
			}
			if err := command.ValidatePattern(*c, text); err != nil {
				observe.Logger(ctx).Warn("training: cannot replay utterance",
					"intent", intent, "utterance", text, "err", err)
				continue
			}
			c.Patterns = append(c.Patterns, text)
			owned = addOwned(owned, intent, text)
			applied++
		}
	}

	if err := t.registry.Replace(merged); err != nil {
		return 0, err
	}
	t.owned = owned
	t.ownedAt = t.registry.Version()
	return applied, nil
}

// Ping reports whether the backing store is reachable. Stores that do not
// implement [Pinger] are always considered reachable.
func (t *Trainer) Ping(ctx context.Context) error {
	if p, ok := t.store.(Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

func (t *Trainer) own(intent, text string) {
	t.owned = addOwned(t.owned, intent, text)
}

func addOwned(owned map[string]map[string]struct{}, intent, text string) map[string]map[string]struct{} {
	if owned == nil {
		owned = make(map[string]map[string]struct{})
	}
	if owned[intent] == nil {
		owned[intent] = make(map[string]struct{})
	}
	owned[intent][text] = struct{}{}
	return owned
}

// releasePattern removes text from the registry if training added it.
func (t *Trainer) releasePattern(ctx context.Context, intent, text string) {
	if _, ok := t.owned[intent][text]; !ok {
		return
	}
	delete(t.owned[intent], text)
	t.removePattern(ctx, intent, text)
	t.ownedAt = t.registry.Version()
}

// releaseAllPatterns removes every pattern training added.
func (t *Trainer) releaseAllPatterns(ctx context.Context) {
	for intent, texts := range t.owned {
		for text := range texts {
			t.removePattern(ctx, intent, text)
		}
	}
	t.owned = nil
	t.ownedAt = t.registry.Version()
}

func (t *Trainer) removePattern(ctx context.Context, intent, text string) {
	if _, err := t.registry.RemovePattern(intent, text); err != nil && !errors.Is(err, command.ErrNotFound) {
		observe.Logger(ctx).Warn("training: cannot remove pattern", "intent", intent, "utterance", text, "err", err)
	}
}

// persistLocked saves a snapshot of the corpus. Failures are logged and
// counted only. Must be called with t.mu held.
func (t *Trainer) persistLocked(ctx context.Context) {
	if err := t.store.Save(ctx, t.rec.Clone()); err != nil {
		t.storeError(ctx, "save", err)
	}
}

func (t *Trainer) storeError(ctx context.Context, op string, err error) {
	t.metrics.RecordStoreError(ctx, t.backend, op)
	observe.Logger(ctx).Warn("training: store "+op+" failed, continuing in memory",
		"backend", t.backend, "err", err)
}

func (t *Trainer) recordOp(ctx context.Context, op string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	t.metrics.RecordTrainingOp(ctx, op, status)
}

func indexOf(us []Utterance, text string) int {
	return slices.IndexFunc(us, func(u Utterance) bool { return u.Text == text })
}
