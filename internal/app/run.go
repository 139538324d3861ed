package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/voxcmd/internal/command"
	"github.com/MrWong99/voxcmd/internal/config"
)

// shutdownGrace bounds how long in-flight HTTP requests may take once Run
// is cancelled.
const shutdownGrace = 10 * time.Second

// ─── Run ─────────────────────────────────────────────────────────────────────

// Run serves HTTP on the configured listen address until ctx is cancelled.
// It also runs the idle session reaper and, when a config path was given,
// the config watcher. Run returns nil after a clean shutdown.
func (a *App) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", a.httpSrv.Addr)
	if err != nil {
		return fmt.Errorf("app: listen %s: %w", a.httpSrv.Addr, err)
	}
	return a.Serve(ctx, ln)
}

// Serve is like [App.Run] but accepts connections on ln.
func (a *App) Serve(ctx context.Context, ln net.Listener) error {
	g, gctx := errgroup.WithContext(ctx)

	var w *config.Watcher
	if a.configPath != "" {
		var err error
		w, err = config.NewWatcher(a.configPath, func(old, new *config.Config) {
			a.ApplyConfig(gctx, old, new)
		})
		if err != nil {
			_ = ln.Close()
			return fmt.Errorf("app: start config watcher: %w", err)
		}
	}

	g.Go(func() error {
		slog.Info("app: http server listening", "addr", ln.Addr().String())
		if err := a.httpSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("app: http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		return a.httpSrv.Shutdown(shutdownCtx)
	})

	if a.reaper != nil {
		g.Go(func() error { return a.reaper.Run(gctx) })
	}

	if w != nil {
		g.Go(func() error {
			<-gctx.Done()
			w.Stop()
			return nil
		})
	}

	slog.Info("app: running", "commands", len(a.registry.All()))
	return g.Wait()
}

// ─── Hot reload ──────────────────────────────────────────────────────────────

// ApplyConfig applies the hot-reloadable differences between old and new
// and reloads the catalog. Settings that need a restart are logged.
func (a *App) ApplyConfig(ctx context.Context, old, new *config.Config) {
	d := config.Diff(old, new)

	a.reloadMu.Lock()
	a.cfg = new
	a.reloadMu.Unlock()

	if d.LogLevelChanged {
		a.level.Set(d.NewLogLevel.SlogLevel())
		slog.Info("app: log level changed", "level", d.NewLogLevel)
	}
	if d.ThresholdChanged {
		a.sessions.SetThreshold(d.NewThreshold)
		slog.Info("app: confidence threshold changed", "threshold", d.NewThreshold)
	}
	if len(d.RestartRequired) > 0 {
		slog.Warn("app: changed settings take effect after a restart", "settings", d.RestartRequired)
	}

	// Catalog file contents may have changed even when the list did not.
	if err := a.ReloadCatalog(ctx, new.Catalog.Files); err != nil {
		slog.Error("app: catalog reload failed, keeping previous commands", "err", err)
	}
}

// ReloadCatalog replaces the registry contents with the commands of files
// (the embedded catalog when empty) with the training corpus already applied.
// On error the registry is left unchanged.
func (a *App) ReloadCatalog(ctx context.Context, files []string) error {
	cmds, err := command.LoadCommands(files...)
	if err != nil {
		return err
	}

	a.reloadMu.Lock()
	defer a.reloadMu.Unlock()
	replayed, err := a.trainer.Reload(ctx, cmds)
	if err != nil {
		return err
	}
	slog.Info("app: catalog reloaded", "commands", len(cmds), "trained_patterns", replayed)
	return nil
}
