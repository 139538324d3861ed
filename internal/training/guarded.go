package training

import (
	"context"
	"fmt"

	"github.com/MrWong99/voxcmd/internal/resilience"
)

// NamedStore labels a [Store] for logs, metrics and breaker names.
type NamedStore struct {
	Name  string
	Store Store
}

// GuardedStore puts every backing store behind its own circuit breaker.
// Calls go to the primary; when its breaker is open or the call fails they
// fall through to the fallbacks in order.
type GuardedStore struct {
	primary NamedStore
	group   *resilience.FallbackGroup[Store]
}

var (
	_ Store  = (*GuardedStore)(nil)
	_ Pinger = (*GuardedStore)(nil)
)

// NewGuardedStore wraps primary and optional fallbacks. cfg is applied to
// every entry's breaker.
func NewGuardedStore(primary NamedStore, cfg resilience.CircuitBreakerConfig, fallbacks ...NamedStore) *GuardedStore {
	g := &GuardedStore{
		primary: primary,
		group:   resilience.NewFallbackGroup(primary.Store, primary.Name, cfg),
	}
	for _, fb := range fallbacks {
		g.group.AddFallback(fb.Name, fb.Store)
	}
	return g
}

// Load implements [Store.Load].
func (g *GuardedStore) Load(ctx context.Context) (*Record, error) {
	return resilience.ExecuteWithResult(ctx, g.group, func(ctx context.Context, s Store) (*Record, error) {
		return s.Load(ctx)
	})
}

// Save implements [Store.Save].
func (g *GuardedStore) Save(ctx context.Context, rec *Record) error {
	return g.group.Execute(ctx, func(ctx context.Context, s Store) error {
		return s.Save(ctx, rec)
	})
}

// Ping reports the primary as unready while its breaker is open, and
// otherwise pings it when it supports [Pinger].
func (g *GuardedStore) Ping(ctx context.Context) error {
	if st := g.group.Breakers()[0].State(); st == resilience.StateOpen {
		return fmt.Errorf("training: store %q: %w", g.primary.Name, resilience.ErrCircuitOpen)
	}
	if p, ok := g.primary.Store.(Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

// Breakers exposes the per-store breakers, primary first.
func (g *GuardedStore) Breakers() []*resilience.CircuitBreaker {
	return g.group.Breakers()
}
