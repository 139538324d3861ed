package command

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
)

// ErrNotFound is returned when no command with the requested intent exists.
var ErrNotFound = errors.New("command: intent not found")

// ErrDuplicateIntent is returned by Add when the intent is already registered.
var ErrDuplicateIntent = errors.New("command: intent already registered")

// Registry is the command catalog consumed by the matcher and mutated by
// training.
//
// All implementations must be safe for concurrent use.
type Registry interface {
	// All returns every command in registration order. The returned values
	// are copies; mutating them does not affect the registry.
	All() []Command

	// Get returns the command for intent.
	Get(intent string) (Command, bool)

	// AppendPattern adds pattern to the command's pattern list. It returns
	// false without error when the pattern is already present.
	// Returns [ErrNotFound] for an unknown intent and a validation error when
	// the pattern does not parse.
	AppendPattern(intent, pattern string) (bool, error)

	// RemovePattern removes an exact pattern. It returns false without error
	// when the pattern was not present.
	RemovePattern(intent, pattern string) (bool, error)

	// Replace swaps the whole catalog in one step. On error nothing changes.
	Replace(cmds []Command) error

	// Version increases every time the catalog changes.
	Version() uint64
}

// Compile-time assertion that MemRegistry satisfies the Registry interface.
var _ Registry = (*MemRegistry)(nil)

// MemRegistry is a thread-safe, in-memory [Registry]. The zero value is ready
// to use.
type MemRegistry struct {
	mu       sync.RWMutex
	order    []string
	commands map[string]*Command
	version  uint64
}

// NewMemRegistry returns a registry pre-populated with cmds. Every command is
// validated; all validation errors are returned together.
func NewMemRegistry(cmds ...Command) (*MemRegistry, error) {
	r := &MemRegistry{}
	var errs []error
	for _, c := range cmds {
		if err := r.Add(c); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return r, nil
}

// Add registers a new command after validating it.
func (r *MemRegistry) Add(c Command) error {
	if err := Validate(c); err != nil {
		return fmt.Errorf("command: %q: %w", c.Intent, err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.commands == nil {
		r.commands = make(map[string]*Command)
	}
	if _, exists := r.commands[c.Intent]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateIntent, c.Intent)
	}
	cp := c.Clone()
	r.commands[c.Intent] = &cp
	r.order = append(r.order, c.Intent)
	r.version++
	return nil
}

// Replace swaps the whole catalog atomically. Nothing changes when any
// command fails validation.
func (r *MemRegistry) Replace(cmds []Command) error {
	next, err := NewMemRegistry(cmds...)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.order = next.order
	r.commands = next.commands
	r.version++
	return nil
}

// All implements [Registry.All].
func (r *MemRegistry) All() []Command {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Command, 0, len(r.order))
	for _, intent := range r.order {
		out = append(out, r.commands[intent].Clone())
	}
	return out
}

// Get implements [Registry.Get].
func (r *MemRegistry) Get(intent string) (Command, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.commands[intent]
	if !ok {
		return Command{}, false
	}
	return c.Clone(), true
}

// AppendPattern implements [Registry.AppendPattern].
func (r *MemRegistry) AppendPattern(intent, pattern string) (bool, error) {
	pattern = strings.TrimSpace(pattern)
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.commands[intent]
	if !ok {
		return false, fmt.Errorf("%w: %q", ErrNotFound, intent)
	}
	if err := ValidatePattern(*c, pattern); err != nil {
		return false, err
	}
	if slices.Contains(c.Patterns, pattern) {
		return false, nil
	}
	c.Patterns = append(c.Patterns, pattern)
	r.version++
	return true, nil
}

// RemovePattern implements [Registry.RemovePattern].
func (r *MemRegistry) RemovePattern(intent, pattern string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.commands[intent]
	if !ok {
		return false, fmt.Errorf("%w: %q", ErrNotFound, intent)
	}
	i := slices.Index(c.Patterns, strings.TrimSpace(pattern))
	if i < 0 {
		return false, nil
	}
	c.Patterns = slices.Delete(c.Patterns, i, i+1)
	r.version++
	return true, nil
}

// Version implements [Registry.Version].
func (r *MemRegistry) Version() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.version
}
