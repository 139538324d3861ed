// Command voxcmd is the entry point for the voice command understanding
// server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MrWong99/voxcmd/internal/app"
	"github.com/MrWong99/voxcmd/internal/config"
)

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	watch := flag.Bool("watch", true, "hot-reload the config and catalog files while running")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, loadedFrom, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "voxcmd: %v\n", err)
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	level := new(slog.LevelVar)
	level.Set(cfg.Server.LogLevel.SlogLevel())
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	slog.Info("voxcmd starting",
		"config", loadedFrom,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
		"training_backend", cfg.Training.Backend,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	printStartupSummary(cfg)

	opts := []app.Option{app.WithLevelVar(level)}
	if *watch && loadedFrom != "" {
		opts = append(opts, app.WithConfigPath(loadedFrom))
	}
	application, err := app.New(ctx, cfg, opts...)
	if err != nil {
		slog.Error("failed to initialise application", "err", err)
		return 1
	}

	slog.Info("server ready, press Ctrl+C to shut down")

	runErr := application.Run(ctx)
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		slog.Error("run error", "err", runErr)
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := application.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
		return 1
	}
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// loadConfig reads path. A missing file at the default location falls back
// to the built-in defaults; an explicitly named missing file is an error.
func loadConfig(path string) (*config.Config, string, error) {
	cfg, err := config.Load(path)
	if err == nil {
		return cfg, path, nil
	}
	if errors.Is(err, os.ErrNotExist) && !flagSet("config") {
		return config.Default(), "", nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return nil, "", fmt.Errorf("config file %q not found, copy configs/config.yaml to get started", path)
	}
	return nil, "", err
}

func flagSet(name string) bool {
	set := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == name {
			set = true
		}
	})
	return set
}

func printStartupSummary(cfg *config.Config) {
	catalog := "(embedded default)"
	if n := len(cfg.Catalog.Files); n > 0 {
		catalog = fmt.Sprintf("%d file(s)", n)
	}
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║         voxcmd · startup summary      ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	fmt.Printf("║  Listen addr     : %-19s ║\n", cfg.Server.ListenAddr)
	fmt.Printf("║  Catalog         : %-19s ║\n", catalog)
	fmt.Printf("║  Threshold       : %-19.2f ║\n", cfg.Matcher.ConfidenceThreshold)
	fmt.Printf("║  Phonetic fix    : %-19t ║\n", cfg.Matcher.PhoneticCorrection)
	fmt.Printf("║  Training store  : %-19s ║\n", cfg.Training.Backend)
	fmt.Println("╚═══════════════════════════════════════╝")
}
