package config

import "strings"

func Normalize(cfg Config) Config {
	if cfg.Version == 0 {
		cfg.Version = SchemaVersion
	}
	if cfg.Storage.Root == "" {
		cfg.Storage.Root = "~/.assetguard"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}
	cfg.Logging.Level = strings.ToLower(cfg.Logging.Level)
	cfg.Logging.Format = strings.ToLower(cfg.Logging.Format)
	if cfg.Analysis.PluginThreshold == 0 {
		cfg.Analysis.PluginThreshold = 30
	}
	if cfg.Analysis.Workers == 0 {
		cfg.Analysis.Workers = 4
	}
	if cfg.Analysis.CacheTTL == "" {
		cfg.Analysis.CacheTTL = "1h"
	}
	if cfg.Store.LockTimeout == "" {
		cfg.Store.LockTimeout = "5s"
	}
	if cfg.Access.Operators == nil {
		cfg.Access.Operators = []string{}
	}
	ops := cfg.Access.Operators[:0]
	for _, op := range cfg.Access.Operators {
		if op = strings.TrimSpace(op); op != "" {
			ops = append(ops, op)
		}
	}
	cfg.Access.Operators = ops
	return cfg
}
