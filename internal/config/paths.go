package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
)

const maxAncestorSearch = 32

// hostPluginsDir is where the host keeps plugins, relative to its install root.
var hostPluginsDir = filepath.Join("wp-content", "plugins")

func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".assetguard/config.toml"
	}
	return filepath.Join(home, ".assetguard", "config.toml")
}

func ExpandPath(path string) (string, error) {
	if path == "" {
		return "", errors.New("empty path")
	}
	if path == "~" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return home, nil
	}
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, strings.TrimPrefix(path, "~/")), nil
	}
	return path, nil
}

func ResolveStorageRoot(cfg Config) (string, error) {
	expanded, err := ExpandPath(cfg.Storage.Root)
	if err != nil {
		return "", err
	}
	return filepath.Clean(expanded), nil
}

// FindHostRoot walks up from startDir looking for the host's plugin folder.
// Returns (hostRoot, true) if found, or ("", false) if not.
func FindHostRoot(startDir string) (string, bool) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", false
	}
	for i := 0; i < maxAncestorSearch; i++ {
		if info, err := os.Stat(filepath.Join(dir, hostPluginsDir)); err == nil && info.IsDir() {
			return dir, true
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", false
}

// ResolvePluginsDir returns the configured plugin directory, or the one
// discovered above cwd when none is configured.
func ResolvePluginsDir(cfg Config, cwd string) (string, error) {
	if cfg.Host.PluginsDir != "" {
		expanded, err := ExpandPath(cfg.Host.PluginsDir)
		if err != nil {
			return "", err
		}
		return filepath.Clean(expanded), nil
	}
	root, found := FindHostRoot(cwd)
	if !found {
		return "", errors.New("HOST_NOT_FOUND: no plugin directory configured and none found above the working directory; set host.plugins_dir")
	}
	return filepath.Join(root, hostPluginsDir), nil
}
