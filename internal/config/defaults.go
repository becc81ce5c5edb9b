package config

const (
	SchemaVersion = 1
)

// Build metadata, set through -ldflags.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// DefaultConfig returns a fully-populated v1 config document.
func DefaultConfig() Config {
	return Config{
		Version: SchemaVersion,
		Storage: StorageConfig{
			Root: "~/.assetguard",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Analysis: AnalysisConfig{
			PluginThreshold: 30,
			Workers:         4,
			CacheTTL:        "1h",
		},
		Access: AccessConfig{
			Operators: []string{},
		},
		Store: StoreConfig{
			LockTimeout: "5s",
		},
	}
}
