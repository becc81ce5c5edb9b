package config

// Config is the v1 global schema.
type Config struct {
	Version  int            `toml:"version"`
	Storage  StorageConfig  `toml:"storage"`
	Logging  LoggingConfig  `toml:"logging"`
	Host     HostConfig     `toml:"host"`
	Analysis AnalysisConfig `toml:"analysis"`
	Access   AccessConfig   `toml:"access"`
	Store    StoreConfig    `toml:"store"`
}

type StorageConfig struct {
	Root string `toml:"root"`
}

type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// HostConfig locates the host application's plugin directory. An empty
// PluginsDir is discovered from the working directory.
type HostConfig struct {
	PluginsDir string `toml:"plugins_dir,omitempty" json:"pluginsDir,omitempty"`
}

type AnalysisConfig struct {
	PluginThreshold int    `toml:"plugin_threshold" json:"pluginThreshold"`
	Workers         int    `toml:"workers" json:"workers"`
	CacheTTL        string `toml:"cache_ttl" json:"cacheTTL"`
}

// AccessConfig lists the principals allowed to change optimization state.
// An empty list allows everyone.
type AccessConfig struct {
	Operators []string `toml:"operators" json:"operators"`
}

type StoreConfig struct {
	LockTimeout string `toml:"lock_timeout" json:"lockTimeout"`
}
