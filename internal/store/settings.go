package store

import (
	"context"
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"

	"assetguard/internal/fault"
	"assetguard/internal/fsutil"
)

const (
	ModeBalanced    = "balanced"
	ModePerformance = "performance"
	ModeSafe        = "safe"
)

var allowedPerformanceModes = map[string]struct{}{
	ModeBalanced:    {},
	ModePerformance: {},
	ModeSafe:        {},
}

// Settings is the single global settings record.
type Settings struct {
	AutoOptimize      bool   `toml:"auto_optimize" json:"autoOptimize"`
	MonitoringEnabled bool   `toml:"monitoring_enabled" json:"monitoringEnabled"`
	ResourceLimit     int    `toml:"resource_limit" json:"resourceLimit"`
	PerformanceMode   string `toml:"performance_mode" json:"performanceMode"`
}

func DefaultSettings() Settings {
	return Settings{
		AutoOptimize:      false,
		MonitoringEnabled: true,
		ResourceLimit:     50,
		PerformanceMode:   ModeBalanced,
	}
}

func (s Settings) Validate() error {
	if s.ResourceLimit < 0 {
		return fmt.Errorf("OPT_SETTINGS_LIMIT: resource limit must not be negative, got %d", s.ResourceLimit)
	}
	if _, ok := allowedPerformanceModes[s.PerformanceMode]; !ok {
		return fmt.Errorf("OPT_SETTINGS_MODE: unsupported performance mode %q", s.PerformanceMode)
	}
	return nil
}

// LoadSettings reads the settings record; a missing file yields defaults.
func LoadSettings(root string) (Settings, error) {
	blob, err := os.ReadFile(SettingsPath(root))
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultSettings(), nil
		}
		return Settings{}, err
	}
	st := DefaultSettings()
	if err := toml.Unmarshal(blob, &st); err != nil {
		return Settings{}, fmt.Errorf("OPT_SETTINGS_PARSE: %w", err)
	}
	if st.PerformanceMode == "" {
		st.PerformanceMode = ModeBalanced
	}
	if err := st.Validate(); err != nil {
		return Settings{}, err
	}
	return st, nil
}

func SaveSettings(root string, st Settings) error {
	if err := st.Validate(); err != nil {
		return err
	}
	blob, err := toml.Marshal(st)
	if err != nil {
		return fmt.Errorf("OPT_SETTINGS_ENCODE: %w", err)
	}
	return fsutil.AtomicWrite(SettingsPath(root), blob, 0o644)
}

// Settings returns the persisted settings record.
func (s *Store) Settings() (Settings, error) {
	st, err := LoadSettings(s.root)
	if err != nil {
		return Settings{}, fault.StorageUnavailable("OPT_SETTINGS_READ", err)
	}
	return st, nil
}

// UpdateSettings applies fn to the persisted settings under the writer lock.
// An invalid result is rejected and nothing is written.
func (s *Store) UpdateSettings(ctx context.Context, fn func(*Settings) error) (Settings, error) {
	if err := ctx.Err(); err != nil {
		return Settings{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	release, err := acquireLock(ctx, LockPath(s.root), s.lockTimeout)
	if err != nil {
		if ctx.Err() != nil {
			return Settings{}, err
		}
		return Settings{}, fault.StorageUnavailable("OPT_STORE_LOCK", err)
	}
	defer release()

	st, err := LoadSettings(s.root)
	if err != nil {
		return Settings{}, fault.StorageUnavailable("OPT_SETTINGS_READ", err)
	}
	if err := fn(&st); err != nil {
		return Settings{}, err
	}
	if err := st.Validate(); err != nil {
		return Settings{}, err
	}
	if err := SaveSettings(s.root, st); err != nil {
		return Settings{}, fault.StorageUnavailable("OPT_SETTINGS_WRITE", err)
	}
	return st, nil
}
