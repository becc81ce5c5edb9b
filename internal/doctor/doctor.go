package doctor

import (
	"fmt"
	"os"

	"assetguard/internal/analysis"
	"assetguard/internal/config"
	"assetguard/internal/store"
)

type Finding struct {
	Code    string `json:"code"`
	Level   string `json:"level"`
	Message string `json:"message"`
}

type Report struct {
	Healthy  bool      `json:"healthy"`
	Findings []Finding `json:"findings"`
	Records  int       `json:"records"`
	Stale    []string  `json:"stale,omitempty"`
}

type Service struct {
	ConfigPath string
	StateRoot  string
	PluginsDir string
	Cache      *analysis.Cache
}

// Run inspects configuration and persisted state without changing either.
func (s *Service) Run() Report {
	findings := []Finding{}
	if _, err := os.Stat(s.ConfigPath); err != nil {
		findings = append(findings, Finding{Code: "DOC_CONFIG_MISSING", Level: "error", Message: err.Error()})
	} else if _, err := config.Load(s.ConfigPath); err != nil {
		findings = append(findings, Finding{Code: "DOC_CONFIG_INVALID", Level: "error", Message: err.Error()})
	}

	st, err := store.LoadState(store.OptimizationsPath(s.StateRoot))
	if err != nil {
		findings = append(findings, Finding{Code: "DOC_STATE_INVALID", Level: "error", Message: err.Error()})
	}
	if _, err := store.LoadSettings(s.StateRoot); err != nil {
		findings = append(findings, Finding{Code: "DOC_SETTINGS_INVALID", Level: "error", Message: err.Error()})
	}

	if s.PluginsDir == "" {
		findings = append(findings, Finding{Code: "DOC_PLUGINS_UNSET", Level: "warn", Message: "plugin directory not configured and not discovered"})
	} else if info, err := os.Stat(s.PluginsDir); err != nil || !info.IsDir() {
		findings = append(findings, Finding{Code: "DOC_PLUGINS_MISSING", Level: "error", Message: s.PluginsDir + " is not a readable directory"})
	}

	var stale []string
	if report, ok := s.Cache.Peek(); ok {
		seen := map[string]struct{}{}
		for _, p := range report.Plugins {
			for _, d := range p.Resources {
				seen[d.String()] = struct{}{}
			}
		}
		for _, rec := range st.Records {
			key := string(rec.Kind) + ":" + rec.Handle
			if _, ok := seen[key]; !ok {
				stale = append(stale, rec.ID)
				findings = append(findings, Finding{
					Code:    "DOC_RECORD_STALE",
					Level:   "warn",
					Message: fmt.Sprintf("record %s (%s) is not declared by any analyzed plugin", rec.ID, key),
				})
			}
		}
	}

	healthy := true
	for _, f := range findings {
		if f.Level == "error" {
			healthy = false
			break
		}
	}
	return Report{Healthy: healthy, Findings: findings, Records: len(st.Records), Stale: stale}
}
