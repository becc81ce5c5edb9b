package store

import (
	"os"
	"path/filepath"
)

func OptimizationsPath(root string) string {
	return filepath.Join(root, "optimizations.toml")
}

func SettingsPath(root string) string {
	return filepath.Join(root, "settings.toml")
}

func LockPath(root string) string {
	return filepath.Join(root, "store.lock")
}

func CachePath(root string) string {
	return filepath.Join(root, "analysis-cache.json")
}

func AuditPath(root string) string {
	return filepath.Join(root, "audit.log")
}

func EnsureLayout(root string) error {
	return os.MkdirAll(root, 0o755)
}
