// Package session keeps the registry of live voice sessions. Every session
// owns its own [matcher.Matcher] and conversation context, so entities
// carried over from one speaker never leak into another session.
package session

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MrWong99/voxcmd/internal/command"
	"github.com/MrWong99/voxcmd/internal/dialog"
	"github.com/MrWong99/voxcmd/internal/matcher"
	"github.com/MrWong99/voxcmd/internal/observe"
	"github.com/MrWong99/voxcmd/internal/transcript"
)

var (
	// ErrNotFound is returned when a session ID is unknown.
	ErrNotFound = errors.New("session: not found")

	// ErrLimitReached is returned by [Manager.Create] when MaxSessions
	// sessions are already live.
	ErrLimitReached = errors.New("session: session limit reached")
)

// Info describes a live session.
type Info struct {
	ID        string    `json:"id"`
	Label     string    `json:"label,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	LastUsed  time.Time `json:"lastUsed"`
}

// Session is one voice session.
type Session struct {
	id        string
	label     string
	createdAt time.Time
	matcher   *matcher.Matcher
	now       func() time.Time

	mu       sync.Mutex
	lastUsed time.Time
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Matcher returns the session's matcher.
func (s *Session) Matcher() *matcher.Matcher { return s.matcher }

// Context returns the session's conversation context.
func (s *Session) Context() *dialog.Context { return s.matcher.Context() }

// Match runs the session's matcher on text and marks the session as used.
func (s *Session) Match(ctx context.Context, text string) *matcher.Result {
	s.touch()
	return s.matcher.Match(ctx, text)
}

// Info returns a snapshot of the session metadata.
func (s *Session) Info() Info {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Info{ID: s.id, Label: s.label, CreatedAt: s.createdAt, LastUsed: s.lastUsed}
}

func (s *Session) touch() {
	s.mu.Lock()
	s.lastUsed = s.now()
	s.mu.Unlock()
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastUsed
}

// Config holds the dependencies shared by every session of a [Manager].
type Config struct {
	// Registry is the command registry all sessions match against.
	Registry command.Registry

	// Threshold is the initial confidence threshold for new sessions.
	// Zero keeps the matcher default.
	Threshold float64

	// HistorySize bounds each session's conversation history.
	HistorySize int

	// Corrector, when set, is applied to every utterance before matching.
	Corrector transcript.Pipeline

	// MaxSessions caps the number of live sessions. Zero means unlimited.
	MaxSessions int

	// Metrics records match and session metrics. Defaults to
	// [observe.DefaultMetrics].
	Metrics *observe.Metrics

	// Now overrides the clock. Defaults to [time.Now].
	Now func() time.Time
}

// Manager creates, looks up and ends sessions.
//
// All methods are safe for concurrent use.
type Manager struct {
	cfg Config

	mu        sync.RWMutex
	sessions  map[string]*Session
	threshold float64
}

// NewManager returns an empty [Manager].
func NewManager(cfg Config) *Manager {
	if cfg.Metrics == nil {
		cfg.Metrics = observe.DefaultMetrics()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Manager{
		cfg:       cfg,
		sessions:  make(map[string]*Session),
		threshold: cfg.Threshold,
	}
}

// Create starts a new session with a fresh matcher and conversation context.
func (m *Manager) Create(ctx context.Context, label string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cfg.MaxSessions > 0 && len(m.sessions) >= m.cfg.MaxSessions {
		return nil, ErrLimitReached
	}

	opts := []matcher.Option{
		matcher.WithContext(dialog.New(dialog.WithHistorySize(m.cfg.HistorySize), dialog.WithClock(m.cfg.Now))),
		matcher.WithMetrics(m.cfg.Metrics),
		matcher.WithClock(m.cfg.Now),
	}
	if m.threshold > 0 {
		opts = append(opts, matcher.WithThreshold(m.threshold))
	}
	if m.cfg.Corrector != nil {
		opts = append(opts, matcher.WithCorrector(m.cfg.Corrector))
	}

	now := m.cfg.Now()
	s := &Session{
		id:        uuid.NewString(),
		label:     label,
		createdAt: now,
		lastUsed:  now,
		matcher:   matcher.New(m.cfg.Registry, opts...),
		now:       m.cfg.Now,
	}
	m.sessions[s.id] = s
	m.cfg.Metrics.ActiveSessions.Add(ctx, 1)

	slog.Info("session: started", "session_id", s.id, "label", label)
	return s, nil
}

// Get returns the session with the given ID.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return s, nil
}

// Delete ends the session with the given ID.
func (m *Manager) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	_, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()

	if !ok {
		return ErrNotFound
	}
	m.cfg.Metrics.ActiveSessions.Add(ctx, -1)
	slog.Info("session: ended", "session_id", id)
	return nil
}

// List returns the metadata of all live sessions, oldest first.
func (m *Manager) List() []Info {
	m.mu.RLock()
	out := make([]Info, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s.Info())
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// SetThreshold changes the confidence threshold of every live session and
// of sessions created afterwards.
func (m *Manager) SetThreshold(t float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.threshold = t
	for _, s := range m.sessions {
		s.matcher.SetThreshold(t)
	}
}

// EndIdle ends every session that has not matched an utterance since
// before cutoff and returns their IDs.
func (m *Manager) EndIdle(ctx context.Context, cutoff time.Time) []string {
	m.mu.Lock()
	var ended []string
	for id, s := range m.sessions {
		if s.idleSince().Before(cutoff) {
			delete(m.sessions, id)
			ended = append(ended, id)
		}
	}
	m.mu.Unlock()

	sort.Strings(ended)
	for _, id := range ended {
		m.cfg.Metrics.ActiveSessions.Add(ctx, -1)
		slog.Info("session: ended idle session", "session_id", id)
	}
	return ended
}

// CloseAll ends every live session.
func (m *Manager) CloseAll(ctx context.Context) {
	m.mu.Lock()
	n := len(m.sessions)
	clear(m.sessions)
	m.mu.Unlock()

	if n > 0 {
		m.cfg.Metrics.ActiveSessions.Add(ctx, int64(-n))
		slog.Info("session: ended all sessions", "count", n)
	}
}
