package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"
)

// Load reads the YAML configuration file at path and returns a validated
// [Config] with defaults applied.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies defaults and
// validates the result. An empty document yields the default config.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	cfg.ApplyDefaults()
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	// Matcher
	if t := cfg.Matcher.ConfidenceThreshold; t < 0 || t > 1 {
		errs = append(errs, fmt.Errorf("matcher.confidence_threshold %.2f is out of range [0, 1]", t))
	}
	if cfg.Matcher.HistorySize < 0 {
		errs = append(errs, fmt.Errorf("matcher.history_size %d must not be negative", cfg.Matcher.HistorySize))
	}

	// Catalog
	for i, f := range cfg.Catalog.Files {
		if f == "" {
			errs = append(errs, fmt.Errorf("catalog.files[%d] is empty", i))
		}
	}

	// Sessions
	if cfg.Sessions.MaxSessions < 0 {
		errs = append(errs, fmt.Errorf("sessions.max_sessions %d must not be negative", cfg.Sessions.MaxSessions))
	}
	if cfg.Sessions.IdleTimeout < 0 {
		errs = append(errs, fmt.Errorf("sessions.idle_timeout %s must not be negative", cfg.Sessions.IdleTimeout))
	}

	// Training
	tc := cfg.Training
	switch {
	case tc.Backend == "":
	case !tc.Backend.IsValid():
		errs = append(errs, fmt.Errorf("training.backend %q is invalid; valid values: memory, file, postgres, redis", tc.Backend))
	case tc.Backend == BackendFile && tc.FilePath == "":
		errs = append(errs, errors.New("training.file_path is required when backend is file"))
	case tc.Backend == BackendPostgres && tc.PostgresDSN == "":
		errs = append(errs, errors.New("training.postgres_dsn is required when backend is postgres"))
	case tc.Backend == BackendRedis && tc.Redis.Addr == "":
		errs = append(errs, errors.New("training.redis.addr is required when backend is redis"))
	}
	if tc.Backend == BackendMemory {
		slog.Warn("config: training.backend is memory; trained utterances will not survive a restart")
		if tc.FallbackFilePath != "" {
			slog.Warn("config: training.fallback_file_path is ignored for the memory backend")
		}
	}
	if tc.Breaker.MaxFailures < 0 {
		errs = append(errs, fmt.Errorf("training.breaker.max_failures %d must not be negative", tc.Breaker.MaxFailures))
	}
	if tc.Breaker.ResetTimeout < 0 {
		errs = append(errs, fmt.Errorf("training.breaker.reset_timeout %s must not be negative", tc.Breaker.ResetTimeout))
	}

	return errors.Join(errs...)
}
