// Package dialog keeps the short-term conversational state of one voice
// session: a bounded history of resolved utterances and a flat key/value map
// that lets follow-up utterances such as "make it fullscreen" inherit the
// app, theme or number from earlier turns.
package dialog

import (
	"maps"
	"sync"
	"time"

	"github.com/MrWong99/voxcmd/internal/nlu"
)

// DefaultHistorySize is the number of turns retained when no size is given.
const DefaultHistorySize = 10

// Well-known context keys written by [Context.AddUtterance].
const (
	KeyLastIntent    = "lastIntent"
	KeyLastTimestamp = "lastTimestamp"
)

// carryover lists the entities that [Context.EnrichEntities] fills in.
var carryover = []string{nlu.EntityAppName, nlu.EntityTheme, nlu.EntityNumber}

// Turn is one successfully resolved utterance.
type Turn struct {
	Utterance  string       `json:"utterance"`
	Intent     string       `json:"intent"`
	Entities   nlu.Entities `json:"entities"`
	Confidence float64      `json:"confidence"`
	Timestamp  time.Time    `json:"timestamp"`
}

// Option is a functional option for configuring a [Context].
type Option func(*Context)

// WithHistorySize sets the maximum number of turns kept. Values below 1 are
// ignored. Default: 10.
func WithHistorySize(n int) Option {
	return func(c *Context) {
		if n > 0 {
			c.maxSize = n
		}
	}
}

// WithClock overrides the time source used for turns without a timestamp.
func WithClock(now func() time.Time) Option {
	return func(c *Context) {
		c.now = now
	}
}

// Context is the conversation state owned by a single matcher. Turns are
// kept in FIFO order and the oldest is evicted once the history is full.
//
// All methods are safe for concurrent use.
type Context struct {
	mu      sync.RWMutex
	history []Turn
	values  map[string]any
	maxSize int
	now     func() time.Time
}

// New returns an empty [Context].
func New(opts ...Option) *Context {
	c := &Context{
		values:  make(map[string]any),
		maxSize: DefaultHistorySize,
		now:     time.Now,
	}
	for _, o := range opts {
		o(c)
	}
	c.history = make([]Turn, 0, c.maxSize)
	return c
}

// AddUtterance appends turn to the history and merges its entities, intent
// and timestamp into the context map. Newer values overwrite older ones.
func (c *Context) AddUtterance(turn Turn) {
	if turn.Timestamp.IsZero() {
		turn.Timestamp = c.now()
	}
	turn.Entities = turn.Entities.Clone()

	c.mu.Lock()
	defer c.mu.Unlock()

	c.history = append(c.history, turn)
	if len(c.history) > c.maxSize {
		// Copy survivors so evicted turns do not pin the old backing array.
		keep := make([]Turn, c.maxSize)
		copy(keep, c.history[len(c.history)-c.maxSize:])
		c.history = keep
	}

	for k, v := range turn.Entities {
		c.values[k] = v
	}
	c.values[KeyLastIntent] = turn.Intent
	c.values[KeyLastTimestamp] = turn.Timestamp
}

// EnrichEntities returns a copy of entities in which appName, theme and
// number are filled from the context when they are absent. Present values
// are never overwritten.
func (c *Context) EnrichEntities(entities nlu.Entities) nlu.Entities {
	out := entities.Clone()

	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, key := range carryover {
		if out.Has(key) {
			continue
		}
		if v, ok := c.values[key]; ok && v != nil {
			out[key] = v
		}
	}
	return out
}

// History returns the last n turns, oldest first. n larger than the history
// returns everything; n < 1 returns nil.
func (c *Context) History(n int) []Turn {
	if n < 1 {
		return nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	start := max(len(c.history)-n, 0)
	out := make([]Turn, len(c.history)-start)
	copy(out, c.history[start:])
	return out
}

// Values returns a copy of the context map.
func (c *Context) Values() map[string]any {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return maps.Clone(c.values)
}

// Get returns the context value for key.
func (c *Context) Get(key string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.values[key]
	return v, ok
}

// Set stores value under key, replacing any previous value.
func (c *Context) Set(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[key] = value
}

// Clear drops the history and every context value.
func (c *Context) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.history = make([]Turn, 0, c.maxSize)
	c.values = make(map[string]any)
}

// Len returns the number of turns currently held.
func (c *Context) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.history)
}
