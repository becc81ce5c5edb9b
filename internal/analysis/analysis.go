// Package analysis runs one pass over the host's active plugins: read each
// plugin, extract its resources and fold them into a registry.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"assetguard/internal/extract"
	"assetguard/internal/fault"
	"assetguard/internal/host"
	"assetguard/internal/registry"
	"assetguard/pkg/hostapi"
)

const DefaultWorkers = 4

// Report is the result of one pass. It is never persisted except as a
// cached copy.
type Report struct {
	GeneratedAt time.Time            `json:"generatedAt"`
	Plugins     []registry.Plugin    `json:"plugins"`
	Duplicates  []registry.Duplicate `json:"duplicates"`
	Issues      []string             `json:"issues"`
	Summary     registry.Summary     `json:"summary"`
}

type Options struct {
	PluginThreshold int
	Workers         int
}

type Analyzer struct {
	Source hostapi.PluginSource
	Opts   Options
	Logger *slog.Logger
	Now    func() time.Time
}

// Run performs a full pass. A plugin that cannot be read stays in the
// report with no resources and a note. Cancellation aborts the pass and no
// report is returned.
func (a *Analyzer) Run(ctx context.Context) (Report, error) {
	if a.Source == nil {
		return Report{}, errors.New("ANA_SETUP: plugin source not configured")
	}
	logger := a.Logger
	if logger == nil {
		logger = slog.Default()
	}
	refs, err := a.Source.ActivePlugins(ctx)
	if err != nil {
		return Report{}, err
	}
	workers := a.Opts.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}

	plugins := make([]registry.Plugin, len(refs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, ref := range refs {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			plugins[i] = a.analyzePlugin(gctx, logger, ref)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Report{}, err
	}
	if err := ctx.Err(); err != nil {
		return Report{}, err
	}

	res := registry.Build(plugins, registry.Options{PluginThreshold: a.Opts.PluginThreshold})
	now := time.Now().UTC()
	if a.Now != nil {
		now = a.Now()
	}
	logger.Info("analysis complete",
		"plugins", res.Summary.TotalPlugins,
		"resources", res.Summary.TotalResources,
		"duplicates", res.Summary.DuplicateCount,
		"issues", res.Summary.IssuesCount)
	return Report{
		GeneratedAt: now,
		Plugins:     plugins,
		Duplicates:  res.Duplicates,
		Issues:      res.Issues,
		Summary:     res.Summary,
	}, nil
}

func (a *Analyzer) analyzePlugin(ctx context.Context, logger *slog.Logger, ref hostapi.PluginRef) registry.Plugin {
	p := registry.Plugin{Name: ref.ID, SourceRef: ref.ID, Resources: []extract.Descriptor{}}
	blob, err := a.Source.Read(ctx, ref)
	if err != nil {
		if ctx.Err() == nil {
			logger.Warn("plugin source unreadable", "plugin", ref.ID, "err", err)
			if !errors.Is(err, fault.ErrIOUnreadable) {
				err = fault.Unreadable("ANA_PLUGIN_READ", ref.ID, err)
			}
			p.Notes = append(p.Notes, err.Error())
		}
		return p
	}
	hdr := host.ParseHeader(blob)
	if hdr.Name != "" {
		p.Name = hdr.Name
	}
	p.Version = hdr.Version
	if hdr.Version != "" && host.NormalizeSemver(hdr.Version) == "" {
		p.Notes = append(p.Notes, fmt.Sprintf("version %q is not a semantic version", hdr.Version))
	}
	p.Resources = extract.Extract(string(blob))
	logger.Debug("plugin analyzed", "plugin", p.Name, "resources", len(p.Resources))
	return p
}
