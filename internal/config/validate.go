package config

import (
	"fmt"
	"time"
)

var allowedLogLevels = map[string]struct{}{
	"debug": {},
	"info":  {},
	"warn":  {},
	"error": {},
}

var allowedLogFormats = map[string]struct{}{
	"text": {},
	"json": {},
}

func Validate(cfg Config) error {
	if cfg.Version != SchemaVersion {
		return fmt.Errorf("DOC_CONFIG_VERSION: unsupported version %d", cfg.Version)
	}
	if cfg.Storage.Root == "" {
		return fmt.Errorf("DOC_CONFIG_STORAGE: missing storage root")
	}
	if _, ok := allowedLogLevels[cfg.Logging.Level]; !ok {
		return fmt.Errorf("DOC_CONFIG_LOGGING: invalid log level %q", cfg.Logging.Level)
	}
	if _, ok := allowedLogFormats[cfg.Logging.Format]; !ok {
		return fmt.Errorf("DOC_CONFIG_LOGGING: invalid log format %q", cfg.Logging.Format)
	}
	if cfg.Analysis.PluginThreshold < 0 {
		return fmt.Errorf("DOC_CONFIG_ANALYSIS: plugin_threshold must not be negative")
	}
	if cfg.Analysis.Workers < 1 || cfg.Analysis.Workers > 64 {
		return fmt.Errorf("DOC_CONFIG_ANALYSIS: workers must be between 1 and 64, got %d", cfg.Analysis.Workers)
	}
	if _, err := positiveDuration(cfg.Analysis.CacheTTL); err != nil {
		return fmt.Errorf("DOC_CONFIG_ANALYSIS: cache_ttl: %w", err)
	}
	if _, err := positiveDuration(cfg.Store.LockTimeout); err != nil {
		return fmt.Errorf("DOC_CONFIG_STORE: lock_timeout: %w", err)
	}
	seen := map[string]struct{}{}
	for _, op := range cfg.Access.Operators {
		if _, ok := seen[op]; ok {
			return fmt.Errorf("DOC_CONFIG_ACCESS: duplicate operator %q", op)
		}
		seen[op] = struct{}{}
	}
	return nil
}

func positiveDuration(s string) (time.Duration, error) {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("duration must be positive, got %s", s)
	}
	return d, nil
}

// CacheTTL returns the parsed analysis cache lifetime.
func (c Config) CacheTTL() time.Duration {
	d, err := positiveDuration(c.Analysis.CacheTTL)
	if err != nil {
		return time.Hour
	}
	return d
}

// LockTimeout returns the parsed store writer wait bound.
func (c Config) LockTimeout() time.Duration {
	d, err := positiveDuration(c.Store.LockTimeout)
	if err != nil {
		return 5 * time.Second
	}
	return d
}
