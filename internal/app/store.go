package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/MrWong99/voxcmd/internal/config"
	"github.com/MrWong99/voxcmd/internal/resilience"
	"github.com/MrWong99/voxcmd/internal/training"
	"github.com/MrWong99/voxcmd/internal/training/postgres"
	"github.com/MrWong99/voxcmd/internal/training/redisstore"
)

// initStore builds the configured training store, or takes the injected
// one, and wraps it together with the optional fallback file in a
// [training.GuardedStore]. It returns the store and the backend name used in
// metrics.
func (a *App) initStore(ctx context.Context) (training.Store, string, error) {
	tc := a.cfg.Training
	backend := string(tc.Backend)

	primary := a.store
	if primary == nil {
		s, err := a.openBackend(ctx, tc)
		if err != nil {
			return nil, "", err
		}
		primary = s
	} else {
		backend = "injected"
	}

	var fallbacks []training.NamedStore
	if tc.FallbackFilePath != "" && tc.Backend != config.BackendMemory {
		fallbacks = append(fallbacks, training.NamedStore{
			Name:  "file-fallback",
			Store: training.NewFileStore(tc.FallbackFilePath),
		})
	}

	guarded := training.NewGuardedStore(
		training.NamedStore{Name: backend, Store: primary},
		resilience.CircuitBreakerConfig{
			MaxFailures:  tc.Breaker.MaxFailures,
			ResetTimeout: tc.Breaker.ResetTimeout,
			OnStateChange: func(name string, from, to resilience.State) {
				slog.Warn("app: training store breaker changed state",
					"store", name, "from", from.String(), "to", to.String())
			},
		},
		fallbacks...,
	)
	a.store = guarded
	slog.Info("app: training store ready", "backend", backend, "fallbacks", len(fallbacks))
	return guarded, backend, nil
}

// openBackend connects the store selected by tc.Backend and registers its
// closer.
func (a *App) openBackend(ctx context.Context, tc config.TrainingConfig) (training.Store, error) {
	switch tc.Backend {
	case config.BackendMemory, "":
		return &training.MemStore{}, nil

	case config.BackendFile:
		return training.NewFileStore(tc.FilePath), nil

	case config.BackendPostgres:
		s, err := postgres.NewStore(ctx, tc.PostgresDSN, tc.RecordName)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() error {
			s.Close()
			return nil
		})
		return s, nil

	case config.BackendRedis:
		s, err := redisstore.New(ctx, redisstore.Config{
			Addr:     tc.Redis.Addr,
			Password: tc.Redis.Password,
			DB:       tc.Redis.DB,
		}, tc.RecordName)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, s.Close)
		return s, nil

	default:
		return nil, fmt.Errorf("unknown training backend %q", tc.Backend)
	}
}
