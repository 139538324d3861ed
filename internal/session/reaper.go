package session

import (
	"context"
	"sync"
	"time"
)

// defaultReapInterval is the default period between idle checks.
const defaultReapInterval = time.Minute

// Reaper periodically ends sessions that have been idle for longer than a
// timeout, so clients that disappear without deleting their session do not
// accumulate conversation state.
type Reaper struct {
	mgr      *Manager
	timeout  time.Duration
	interval time.Duration
	now      func() time.Time

	done     chan struct{}
	stopOnce sync.Once
}

// ReaperConfig configures a [Reaper].
type ReaperConfig struct {
	// IdleTimeout is how long a session may go without a match.
	IdleTimeout time.Duration

	// Interval is how often to check. Defaults to one minute, or the idle
	// timeout when that is shorter.
	Interval time.Duration

	// Now overrides the clock. Defaults to [time.Now].
	Now func() time.Time
}

// NewReaper creates a [Reaper] for mgr.
func NewReaper(mgr *Manager, cfg ReaperConfig) *Reaper {
	interval := cfg.Interval
	if interval <= 0 {
		interval = min(defaultReapInterval, cfg.IdleTimeout)
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Reaper{
		mgr:      mgr,
		timeout:  cfg.IdleTimeout,
		interval: interval,
		now:      now,
		done:     make(chan struct{}),
	}
}

// Run checks for idle sessions until ctx is cancelled or [Reaper.Stop] is
// called. It always returns nil.
func (r *Reaper) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-r.done:
			return nil
		case <-ticker.C:
			r.ReapNow(ctx)
		}
	}
}

// ReapNow ends the sessions that are idle right now and returns their IDs.
func (r *Reaper) ReapNow(ctx context.Context) []string {
	return r.mgr.EndIdle(ctx, r.now().Add(-r.timeout))
}

// Stop halts [Reaper.Run]. Safe to call multiple times.
func (r *Reaper) Stop() {
	r.stopOnce.Do(func() {
		close(r.done)
	})
}
