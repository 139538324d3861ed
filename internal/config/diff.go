package config

import "slices"

// ConfigDiff describes what changed between two configs.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	ThresholdChanged bool
	NewThreshold     float64

	// CatalogChanged is true when the list of catalog files differs.
	// Content changes of the same files are detected by the [Watcher].
	CatalogChanged bool

	// RestartRequired lists changed settings that only take effect after a
	// restart.
	RestartRequired []string
}

// Changed reports whether any hot-reloadable setting changed.
func (d ConfigDiff) Changed() bool {
	return d.LogLevelChanged || d.ThresholdChanged || d.CatalogChanged
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}
	if old.Matcher.ConfidenceThreshold != new.Matcher.ConfidenceThreshold {
		d.ThresholdChanged = true
		d.NewThreshold = new.Matcher.ConfidenceThreshold
	}
	if !slices.Equal(old.Catalog.Files, new.Catalog.Files) {
		d.CatalogChanged = true
	}

	if old.Server.ListenAddr != new.Server.ListenAddr {
		d.RestartRequired = append(d.RestartRequired, "server.listen_addr")
	}
	if old.Matcher.HistorySize != new.Matcher.HistorySize {
		d.RestartRequired = append(d.RestartRequired, "matcher.history_size")
	}
	if old.Matcher.PhoneticCorrection != new.Matcher.PhoneticCorrection {
		d.RestartRequired = append(d.RestartRequired, "matcher.phonetic_correction")
	}
	if old.Sessions != new.Sessions {
		d.RestartRequired = append(d.RestartRequired, "sessions")
	}
	if old.Training != new.Training {
		d.RestartRequired = append(d.RestartRequired, "training")
	}
	if old.Telemetry != new.Telemetry {
		d.RestartRequired = append(d.RestartRequired, "telemetry")
	}
	return d
}
