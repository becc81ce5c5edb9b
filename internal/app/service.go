package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"assetguard/internal/access"
	"assetguard/internal/analysis"
	"assetguard/internal/audit"
	"assetguard/internal/config"
	"assetguard/internal/doctor"
	"assetguard/internal/extract"
	"assetguard/internal/gate"
	"assetguard/internal/host"
	"assetguard/internal/store"
	"assetguard/pkg/hostapi"
)

type Options struct {
	ConfigPath string
	// Principal is who the caller acts as; it is checked against the
	// configured operators before any mutation.
	Principal string
	// Source overrides the plugin directory from config.
	Source hostapi.PluginSource
	// LogWriter receives diagnostic logs. Defaults to stderr.
	LogWriter io.Writer
	Now       func() time.Time
}

type Service struct {
	ConfigPath string
	Config     config.Config
	StateRoot  string
	PluginsDir string
	Principal  string

	Store    *store.Store
	Cache    *analysis.Cache
	Analyzer *analysis.Analyzer
	Doctor   *doctor.Service
	Audit    *audit.Logger
	Policy   access.Policy
	Logger   *slog.Logger

	sourceErr error
	now       func() time.Time
}

func New(opts Options) (*Service, error) {
	configPath := opts.ConfigPath
	if configPath == "" {
		configPath = config.DefaultConfigPath()
	}
	cfg, err := config.Ensure(configPath)
	if err != nil {
		return nil, err
	}
	stateRoot, err := config.ResolveStorageRoot(cfg)
	if err != nil {
		return nil, err
	}
	now := opts.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	logW := opts.LogWriter
	if logW == nil {
		logW = os.Stderr
	}
	logger := newLogger(cfg.Logging.Level, cfg.Logging.Format, logW)

	st, err := store.Open(stateRoot, store.Options{LockTimeout: cfg.LockTimeout(), Now: now})
	if err != nil {
		return nil, err
	}

	// A missing plugin directory only matters to analysis, so it is kept
	// and reported there rather than failing every command.
	var pluginsDir string
	var sourceErr error
	src := opts.Source
	if src == nil {
		cwd, cwdErr := os.Getwd()
		if cwdErr != nil {
			cwd = "."
		}
		pluginsDir, sourceErr = config.ResolvePluginsDir(cfg, cwd)
		if sourceErr == nil {
			src = host.NewDirSource(pluginsDir)
		}
	}

	cache := &analysis.Cache{Path: store.CachePath(stateRoot), TTL: cfg.CacheTTL()}
	return &Service{
		ConfigPath: configPath,
		Config:     cfg,
		StateRoot:  stateRoot,
		PluginsDir: pluginsDir,
		Principal:  opts.Principal,
		Store:      st,
		Cache:      cache,
		Analyzer: &analysis.Analyzer{
			Source: src,
			Opts: analysis.Options{
				PluginThreshold: cfg.Analysis.PluginThreshold,
				Workers:         cfg.Analysis.Workers,
			},
			Logger: logger,
			Now:    now,
		},
		Doctor:    &doctor.Service{ConfigPath: configPath, StateRoot: stateRoot, PluginsDir: pluginsDir, Cache: cache},
		Audit:     audit.New(store.AuditPath(stateRoot)),
		Policy:    access.NewPolicy(cfg.Access.Operators),
		Logger:    logger,
		sourceErr: sourceErr,
		now:       now,
	}, nil
}

// authorize gates a mutation. Denials are audited like any other outcome.
func (s *Service) authorize(op string) error {
	if err := s.Policy.Authorize(s.Principal, op); err != nil {
		s.record(op, err, nil)
		return err
	}
	return nil
}

func (s *Service) record(op string, err error, fields map[string]string) {
	if logErr := s.Audit.Record(op, s.Principal, err, fields); logErr != nil {
		s.Logger.Warn("audit write failed", "op", op, "err", logErr)
	}
}

type AnalysisResult struct {
	Report analysis.Report `json:"report"`
	Cached bool            `json:"cached"`
	// Seeded counts optimization records created from this pass.
	Seeded int `json:"seeded"`
	// Diff compares the previous cached report to a fresh one. Empty when
	// nothing changed or there was no previous report.
	Diff string `json:"diff,omitempty"`
}

// RunAnalysis returns the cached report while it is fresh, unless refresh
// is set. A fresh pass seeds a record for every duplicated resource; records
// that already exist keep their state.
func (s *Service) RunAnalysis(ctx context.Context, refresh bool) (AnalysisResult, error) {
	now := s.now()
	if !refresh {
		if cached, ok := s.Cache.Get(now); ok {
			s.Logger.Debug("analysis served from cache", "generated_at", cached.GeneratedAt)
			return AnalysisResult{Report: cached, Cached: true}, nil
		}
	}
	if s.sourceErr != nil {
		return AnalysisResult{}, s.sourceErr
	}
	prev, hadPrev := s.Cache.Peek()
	report, err := s.Analyzer.Run(ctx)
	if err != nil {
		return AnalysisResult{}, err
	}

	groups := analysis.DuplicateGroups(report)
	seeds := make([]store.Seed, 0, len(groups))
	for _, g := range groups {
		seeds = append(seeds, store.Seed{
			Kind:         g.Resource.Kind,
			Handle:       g.Resource.Handle,
			OwningPlugin: g.Owner,
			Rule:         "duplicate: " + strings.Join(g.Plugins, ", "),
		})
	}
	seeded, err := s.Store.UpsertMany(ctx, seeds)
	if err != nil {
		return AnalysisResult{}, err
	}
	if err := s.Cache.Put(now, report); err != nil {
		s.Logger.Warn("analysis cache not written", "err", err)
	}

	res := AnalysisResult{Report: report, Seeded: seeded}
	if hadPrev {
		diff, err := analysis.Diff(prev, report)
		if err != nil {
			s.Logger.Warn("analysis diff failed", "err", err)
		}
		res.Diff = diff
	}
	return res, nil
}

func (s *Service) ClearCache() error {
	const op = "cache.clear"
	if err := s.authorize(op); err != nil {
		return err
	}
	err := s.Cache.Clear()
	s.record(op, err, nil)
	return err
}

func (s *Service) ListOptimizations() []store.Record {
	return s.Store.List()
}

// ToggleOptimization flips one record and returns it as stored.
func (s *Service) ToggleOptimization(ctx context.Context, id string) (store.Record, error) {
	const op = "opt.toggle"
	if err := s.authorize(op); err != nil {
		return store.Record{}, err
	}
	active, err := s.Store.Toggle(ctx, id)
	s.record(op, err, map[string]string{"id": id, "active": strconv.FormatBool(active)})
	if err != nil {
		return store.Record{}, err
	}
	rec, _ := s.Store.Get(id)
	rec.IsActive = active
	return rec, nil
}

type ApplyResult struct {
	AppliedCount int `json:"appliedCount"`
}

// ApplyOptimizations deactivates the given records. With no ids nothing
// is applied.
func (s *Service) ApplyOptimizations(ctx context.Context, ids ...string) (ApplyResult, error) {
	const op = "opt.apply"
	if err := s.authorize(op); err != nil {
		return ApplyResult{}, err
	}
	n, err := s.Store.BulkApply(ctx, ids...)
	s.record(op, err, map[string]string{"ids": strings.Join(ids, ","), "applied": strconv.Itoa(n)})
	if err != nil {
		return ApplyResult{}, err
	}
	return ApplyResult{AppliedCount: n}, nil
}

func (s *Service) ClearOptimizations(ctx context.Context) (int, error) {
	const op = "opt.clear"
	if err := s.authorize(op); err != nil {
		return 0, err
	}
	n, err := s.Store.Clear(ctx)
	s.record(op, err, map[string]string{"removed": strconv.Itoa(n)})
	return n, err
}

func (s *Service) Settings() (store.Settings, error) {
	return s.Store.Settings()
}

// settingKeys are the names accepted by UpdateSettings.
var settingKeys = []string{"auto_optimize", "monitoring_enabled", "performance_mode", "resource_limit"}

// UpdateSettings applies key=value style changes atomically. An unknown key
// or a bad value rejects the whole change.
func (s *Service) UpdateSettings(ctx context.Context, changes map[string]string) (store.Settings, error) {
	const op = "settings.set"
	if err := s.authorize(op); err != nil {
		return store.Settings{}, err
	}
	if len(changes) == 0 {
		return store.Settings{}, fmt.Errorf("OPT_SETTINGS_KEY: no settings given (known: %s)", strings.Join(settingKeys, ", "))
	}
	keys := make([]string, 0, len(changes))
	for k := range changes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	updated, err := s.Store.UpdateSettings(ctx, func(st *store.Settings) error {
		for _, k := range keys {
			if err := applySetting(st, k, changes[k]); err != nil {
				return err
			}
		}
		return nil
	})
	fields := map[string]string{}
	for _, k := range keys {
		fields[k] = changes[k]
	}
	s.record(op, err, fields)
	return updated, err
}

func applySetting(st *store.Settings, key, value string) error {
	value = strings.TrimSpace(value)
	switch key {
	case "auto_optimize", "monitoring_enabled":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("OPT_SETTINGS_VALUE: %s expects true or false, got %q", key, value)
		}
		if key == "auto_optimize" {
			st.AutoOptimize = b
		} else {
			st.MonitoringEnabled = b
		}
	case "resource_limit":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("OPT_SETTINGS_VALUE: resource_limit expects an integer, got %q", value)
		}
		st.ResourceLimit = n
	case "performance_mode":
		st.PerformanceMode = strings.ToLower(value)
	default:
		return fmt.Errorf("OPT_SETTINGS_KEY: unknown setting %q (known: %s)", key, strings.Join(settingKeys, ", "))
	}
	return nil
}

// Render runs the page's resource queue through the gate. Enforcement
// follows the auto_optimize setting; if settings cannot be read the gate
// runs in report-only mode so the page is never broken by it.
func (s *Service) Render(queue []extract.Descriptor) gate.Decision {
	enforce := false
	if st, err := s.Store.Settings(); err != nil {
		s.Logger.Warn("settings unreadable, gate not enforcing", "err", err)
	} else {
		enforce = st.AutoOptimize
	}
	d := gate.New(s.Store, enforce).Render(queue)
	if len(d.Suppressed) > 0 {
		s.Logger.Debug("resources suppressed", "count", len(d.Suppressed))
	}
	return d
}

// BeforeEmit implements hostapi.RenderHook.
func (s *Service) BeforeEmit(ctx context.Context, queue []hostapi.Resource) ([]hostapi.Resource, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	descs := make([]extract.Descriptor, 0, len(queue))
	for _, r := range queue {
		descs = append(descs, extract.Descriptor{Handle: r.Handle, Kind: extract.Kind(r.Kind)})
	}
	d := s.Render(descs)
	out := make([]hostapi.Resource, 0, len(d.Emitted))
	for _, e := range d.Emitted {
		out = append(out, hostapi.Resource{Handle: e.Handle, Kind: string(e.Kind)})
	}
	return out, nil
}

func (s *Service) DoctorRun() doctor.Report {
	return s.Doctor.Run()
}

// History returns the most recent audit events, oldest first.
func (s *Service) History(limit int) ([]audit.Event, error) {
	return s.Audit.Tail(limit)
}

var _ hostapi.RenderHook = (*Service)(nil)
