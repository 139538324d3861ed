// Package app wires all voxcmd subsystems into a running server.
//
// The App struct owns the full lifecycle: New builds the command registry,
// training store, trainer, session manager and HTTP surface; Run serves
// until the context is cancelled; Shutdown tears everything down in order.
//
// For testing, inject doubles via functional options (WithStore,
// WithMetrics). When an option is not provided, New creates real
// implementations from the config.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/MrWong99/voxcmd/internal/api"
	"github.com/MrWong99/voxcmd/internal/command"
	"github.com/MrWong99/voxcmd/internal/config"
	"github.com/MrWong99/voxcmd/internal/health"
	"github.com/MrWong99/voxcmd/internal/matcher"
	"github.com/MrWong99/voxcmd/internal/observe"
	"github.com/MrWong99/voxcmd/internal/session"
	"github.com/MrWong99/voxcmd/internal/training"
	"github.com/MrWong99/voxcmd/internal/transcript"
	"github.com/MrWong99/voxcmd/internal/transcript/phonetic"
)

// App owns all subsystem lifetimes.
type App struct {
	cfg        *config.Config
	configPath string
	level      *slog.LevelVar

	// Subsystems, initialised in New and torn down in Shutdown.
	provider  *observe.Provider
	metrics   *observe.Metrics
	registry  *command.MemRegistry
	store     training.Store
	trainer   *training.Trainer
	corrector transcript.Pipeline
	sessions  *session.Manager
	reaper    *session.Reaper
	server    *api.Server
	httpSrv   *http.Server

	// reloadMu serialises catalog reloads.
	reloadMu sync.Mutex

	// closers are called in order during Shutdown.
	closers []func() error

	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithStore injects a training store instead of creating one from config.
// The injected store is still wrapped in the circuit breaker.
func WithStore(s training.Store) Option {
	return func(a *App) { a.store = s }
}

// WithMetrics injects metric instruments. When set, New does not install
// the global Prometheus-backed provider and /metrics is not served.
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithLevelVar lets hot reloads adjust the log level of the caller's
// handler.
func WithLevelVar(v *slog.LevelVar) Option {
	return func(a *App) { a.level = v }
}

// WithConfigPath enables hot reloading of the config file at path and the
// catalog files it names while [App.Run] is running.
func WithConfigPath(path string) Option {
	return func(a *App) { a.configPath = path }
}

// ─── New ─────────────────────────────────────────────────────────────────────

// New creates an App by wiring all subsystems together.
//
// New performs all initialisation synchronously: telemetry, catalog loading,
// store connection, corpus replay, and HTTP routing. A store that cannot be
// reached at startup is not fatal; the trainer starts with an empty corpus.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*App, error) {
	a := &App{cfg: cfg}
	for _, o := range opts {
		o(a)
	}
	if a.level == nil {
		a.level = new(slog.LevelVar)
		a.level.Set(cfg.Server.LogLevel.SlogLevel())
	}

	// ── 1. Telemetry ─────────────────────────────────────────────────────
	if err := a.initTelemetry(ctx); err != nil {
		return nil, fmt.Errorf("app: init telemetry: %w", err)
	}

	// ── 2. Command registry ──────────────────────────────────────────────
	cmds, err := command.LoadCommands(cfg.Catalog.Files...)
	if err != nil {
		return nil, fmt.Errorf("app: load catalog: %w", err)
	}
	if a.registry, err = command.NewMemRegistry(cmds...); err != nil {
		return nil, fmt.Errorf("app: build registry: %w", err)
	}
	slog.Info("app: catalog loaded", "commands", len(cmds), "files", len(cfg.Catalog.Files))

	// ── 3. Training store + trainer ──────────────────────────────────────
	store, backend, err := a.initStore(ctx)
	if err != nil {
		return nil, fmt.Errorf("app: init training store: %w", err)
	}
	a.trainer = training.New(ctx, a.registry, store,
		training.WithMetrics(a.metrics),
		training.WithBackendName(backend),
	)

	// ── 4. Transcript correction ─────────────────────────────────────────
	if cfg.Matcher.PhoneticCorrection {
		a.corrector = transcript.NewPipeline(transcript.WithPhoneticMatcher(phonetic.New()))
	}

	// ── 5. Sessions ──────────────────────────────────────────────────────
	a.sessions = session.NewManager(session.Config{
		Registry:    a.registry,
		Threshold:   cfg.Matcher.ConfidenceThreshold,
		HistorySize: cfg.Matcher.HistorySize,
		Corrector:   a.corrector,
		MaxSessions: cfg.Sessions.MaxSessions,
		Metrics:     a.metrics,
	})
	if cfg.Sessions.IdleTimeout > 0 {
		a.reaper = session.NewReaper(a.sessions, session.ReaperConfig{IdleTimeout: cfg.Sessions.IdleTimeout})
	}

	// ── 6. HTTP surface ──────────────────────────────────────────────────
	apiCfg := api.Config{
		Sessions:   a.sessions,
		Trainer:    a.trainer,
		Registry:   a.registry,
		Recognizer: a.newRecognizer,
		Health:     health.New(health.PingChecker("training_store", a.trainer)),
		Metrics:    a.metrics,
	}
	if a.provider != nil {
		apiCfg.MetricsHandler = a.provider.MetricsHandler
	}
	a.server = api.New(apiCfg)
	a.httpSrv = &http.Server{
		Addr:    cfg.Server.ListenAddr,
		Handler: a.server.Handler(),
	}

	return a, nil
}

// ─── Init helpers ────────────────────────────────────────────────────────────

// initTelemetry installs the OTel providers and the Prometheus bridge unless
// metrics were injected.
func (a *App) initTelemetry(ctx context.Context) error {
	if a.metrics != nil {
		return nil
	}
	p, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName: a.cfg.Telemetry.ServiceName,
	})
	if err != nil {
		return err
	}
	a.provider = p
	a.closers = append(a.closers, func() error {
		return p.Shutdown(context.Background())
	})

	if a.metrics, err = observe.NewMetrics(p.MeterProvider); err != nil {
		return fmt.Errorf("create metrics: %w", err)
	}
	return nil
}

// newRecognizer returns a stateless matcher for training tests that do not
// name a session.
func (a *App) newRecognizer() training.Recognizer {
	opts := []matcher.Option{
		matcher.WithThreshold(a.threshold()),
		matcher.WithMetrics(a.metrics),
	}
	if a.corrector != nil {
		opts = append(opts, matcher.WithCorrector(a.corrector))
	}
	return matcher.New(a.registry, opts...)
}

func (a *App) threshold() float64 {
	a.reloadMu.Lock()
	defer a.reloadMu.Unlock()
	return a.cfg.Matcher.ConfidenceThreshold
}

// ─── Accessors ───────────────────────────────────────────────────────────────

// Handler returns the root HTTP handler.
func (a *App) Handler() http.Handler { return a.httpSrv.Handler }

// Sessions returns the session manager.
func (a *App) Sessions() *session.Manager { return a.sessions }

// Trainer returns the trainer.
func (a *App) Trainer() *training.Trainer { return a.trainer }

// Registry returns the command registry.
func (a *App) Registry() *command.MemRegistry { return a.registry }

// ─── Shutdown ────────────────────────────────────────────────────────────────

// Shutdown ends all sessions and tears down subsystems in order. It respects
// the context deadline: if ctx expires before all closers finish, remaining
// closers are skipped and the context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("app: shutting down", "closers", len(a.closers))

		if a.reaper != nil {
			a.reaper.Stop()
		}
		a.sessions.CloseAll(ctx)

		for i, closer := range a.closers {
			select {
			case <-ctx.Done():
				slog.Warn("app: shutdown deadline exceeded", "remaining", len(a.closers)-i)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := closer(); err != nil {
				slog.Warn("app: closer error", "index", i, "err", err)
			}
		}

		slog.Info("app: shutdown complete")
	})
	return shutdownErr
}
