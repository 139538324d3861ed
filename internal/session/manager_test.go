package session_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/MrWong99/voxcmd/internal/command"
	"github.com/MrWong99/voxcmd/internal/observe"
	"github.com/MrWong99/voxcmd/internal/session"
)

// clock is a manually advanced time source.
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *clock {
	return &clock{now: time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)}
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newManager(t *testing.T, mutate func(*session.Config)) (*session.Manager, *sdkmetric.ManualReader) {
	t.Helper()
	cmds, err := command.LoadCommands()
	if err != nil {
		t.Fatalf("LoadCommands: %v", err)
	}
	reg, err := command.NewMemRegistry(cmds...)
	if err != nil {
		t.Fatalf("NewMemRegistry: %v", err)
	}

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	met, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}

	cfg := session.Config{Registry: reg, HistorySize: 5, Metrics: met}
	if mutate != nil {
		mutate(&cfg)
	}
	return session.NewManager(cfg), reader
}

func activeSessions(t *testing.T, reader *sdkmetric.ManualReader) int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != "voxcmd.active_sessions" {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				t.Fatalf("active_sessions is %T, want Sum[int64]", m.Data)
			}
			var total int64
			for _, dp := range sum.DataPoints {
				total += dp.Value
			}
			return total
		}
	}
	return 0
}

func TestManager_CreateGetDelete(t *testing.T) {
	t.Parallel()
	mgr, reader := newManager(t, nil)
	ctx := context.Background()

	s, err := mgr.Create(ctx, "kitchen")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if s.ID() == "" {
		t.Fatal("session ID is empty")
	}
	got, err := mgr.Get(s.ID())
	if err != nil || got != s {
		t.Fatalf("Get(%q) = %v, %v", s.ID(), got, err)
	}
	if n := activeSessions(t, reader); n != 1 {
		t.Errorf("active sessions = %d, want 1", n)
	}

	if err := mgr.Delete(ctx, s.ID()); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := mgr.Get(s.ID()); !errors.Is(err, session.ErrNotFound) {
		t.Errorf("Get after Delete: err = %v, want ErrNotFound", err)
	}
	if err := mgr.Delete(ctx, s.ID()); !errors.Is(err, session.ErrNotFound) {
		t.Errorf("second Delete: err = %v, want ErrNotFound", err)
	}
	if n := activeSessions(t, reader); n != 0 {
		t.Errorf("active sessions = %d, want 0", n)
	}
}

func TestManager_SessionsAreIsolated(t *testing.T) {
	t.Parallel()
	mgr, _ := newManager(t, nil)
	ctx := context.Background()

	a, _ := mgr.Create(ctx, "a")
	b, _ := mgr.Create(ctx, "b")

	if res := a.Match(ctx, "open terminal"); !res.Executable() {
		t.Fatalf("session a: open terminal not executable: %+v", res)
	}

	// Session b has no conversation to carry appName over from.
	res := b.Match(ctx, "make it fullscreen")
	if len(res.MissingEntities) != 1 || res.MissingEntities[0] != "appName" {
		t.Errorf("session b: MissingEntities = %v, want [appName]", res.MissingEntities)
	}

	res = a.Match(ctx, "make it fullscreen")
	if !res.Executable() || res.Entities["appName"] != "terminal" {
		t.Errorf("session a: carryover failed: %+v", res)
	}
	if b.Context().Len() != 0 {
		t.Errorf("session b history len = %d, want 0", b.Context().Len())
	}
}

func TestManager_LimitReached(t *testing.T) {
	t.Parallel()
	mgr, _ := newManager(t, func(c *session.Config) { c.MaxSessions = 1 })
	ctx := context.Background()

	if _, err := mgr.Create(ctx, ""); err != nil {
		t.Fatalf("first Create: %v", err)
	}
	if _, err := mgr.Create(ctx, ""); !errors.Is(err, session.ErrLimitReached) {
		t.Errorf("second Create: err = %v, want ErrLimitReached", err)
	}
}

func TestManager_SetThreshold(t *testing.T) {
	t.Parallel()
	mgr, _ := newManager(t, func(c *session.Config) { c.Threshold = 0.7 })
	ctx := context.Background()

	before, _ := mgr.Create(ctx, "")
	if got := before.Matcher().Threshold(); got != 0.7 {
		t.Fatalf("initial threshold = %v, want 0.7", got)
	}

	mgr.SetThreshold(0.9)
	after, _ := mgr.Create(ctx, "")
	for _, s := range []*session.Session{before, after} {
		if got := s.Matcher().Threshold(); got != 0.9 {
			t.Errorf("threshold = %v, want 0.9", got)
		}
	}
}

func TestManager_List(t *testing.T) {
	t.Parallel()
	clk := newClock()
	mgr, _ := newManager(t, func(c *session.Config) { c.Now = clk.Now })
	ctx := context.Background()

	first, _ := mgr.Create(ctx, "first")
	clk.Advance(time.Second)
	second, _ := mgr.Create(ctx, "second")

	list := mgr.List()
	if len(list) != 2 {
		t.Fatalf("List len = %d, want 2", len(list))
	}
	if list[0].ID != first.ID() || list[1].ID != second.ID() {
		t.Errorf("List order = %+v", list)
	}
	if list[0].Label != "first" {
		t.Errorf("Label = %q, want first", list[0].Label)
	}
}

func TestReaper_EndsIdleSessions(t *testing.T) {
	t.Parallel()
	clk := newClock()
	mgr, reader := newManager(t, func(c *session.Config) { c.Now = clk.Now })
	ctx := context.Background()

	idle, _ := mgr.Create(ctx, "idle")
	busy, _ := mgr.Create(ctx, "busy")

	r := session.NewReaper(mgr, session.ReaperConfig{IdleTimeout: 10 * time.Minute, Now: clk.Now})

	clk.Advance(8 * time.Minute)
	busy.Match(ctx, "open terminal")
	clk.Advance(5 * time.Minute)

	ended := r.ReapNow(ctx)
	if len(ended) != 1 || ended[0] != idle.ID() {
		t.Fatalf("ReapNow = %v, want [%s]", ended, idle.ID())
	}
	if _, err := mgr.Get(busy.ID()); err != nil {
		t.Errorf("busy session was reaped: %v", err)
	}
	if n := activeSessions(t, reader); n != 1 {
		t.Errorf("active sessions = %d, want 1", n)
	}
}

func TestReaper_RunStops(t *testing.T) {
	t.Parallel()
	mgr, _ := newManager(t, nil)
	r := session.NewReaper(mgr, session.ReaperConfig{IdleTimeout: time.Hour, Interval: 10 * time.Millisecond})

	done := make(chan error, 1)
	go func() { done <- r.Run(context.Background()) }()

	r.Stop()
	r.Stop()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run returned %v, want nil", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after Stop")
	}
}

func TestManager_CloseAll(t *testing.T) {
	t.Parallel()
	mgr, reader := newManager(t, nil)
	ctx := context.Background()
	for range 3 {
		if _, err := mgr.Create(ctx, ""); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}
	mgr.CloseAll(ctx)
	if mgr.Len() != 0 {
		t.Errorf("Len = %d, want 0", mgr.Len())
	}
	if n := activeSessions(t, reader); n != 0 {
		t.Errorf("active sessions = %d, want 0", n)
	}
}
