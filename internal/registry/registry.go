package registry

import (
	"fmt"

	"assetguard/internal/extract"
)

// DefaultPluginThreshold is the active plugin count above which a pass
// reports an issue.
const DefaultPluginThreshold = 30

// Plugin is one analyzed plugin. It lives for a single analysis pass.
type Plugin struct {
	Name      string               `json:"name"`
	Version   string               `json:"version"`
	SourceRef string               `json:"file"`
	Resources []extract.Descriptor `json:"resources"`
	Notes     []string             `json:"notes,omitempty"`
}

// Key identifies a resource across plugins. The same handle under two kinds
// is two keys.
type Key struct {
	Handle string       `json:"handle"`
	Kind   extract.Kind `json:"type"`
}

func KeyOf(d extract.Descriptor) Key { return Key{Handle: d.Handle, Kind: d.Kind} }

func (k Key) String() string { return string(k.Kind) + ":" + k.Handle }

// Entry records every plugin that declared a key. Occurrences is never empty.
type Entry struct {
	Key         Key      `json:"key"`
	FirstOwner  string   `json:"firstOwner"`
	Occurrences []string `json:"occurrences"`
}

func (e Entry) IsDuplicate() bool { return len(e.Occurrences) > 1 }

// Duplicate pairs a later sighting of a resource with its original owner.
type Duplicate struct {
	Resource extract.Descriptor `json:"resource"`
	Plugins  []string           `json:"plugins"`
}

type Summary struct {
	TotalPlugins   int `json:"total_plugins"`
	TotalResources int `json:"total_resources"`
	DuplicateCount int `json:"duplicate_count"`
	IssuesCount    int `json:"issues_count"`
}

type Options struct {
	PluginThreshold int
}

// Registry is the deduplicated set of keys in first-sighting order.
type Registry struct {
	order   []Key
	entries map[Key]*Entry
}

func (r *Registry) Len() int { return len(r.order) }

func (r *Registry) Get(k Key) (Entry, bool) {
	e, ok := r.entries[k]
	if !ok {
		return Entry{}, false
	}
	return copyEntry(*e), true
}

// Entries returns copies of all entries in first-sighting order.
func (r *Registry) Entries() []Entry {
	out := make([]Entry, 0, len(r.order))
	for _, k := range r.order {
		out = append(out, copyEntry(*r.entries[k]))
	}
	return out
}

func copyEntry(e Entry) Entry {
	e.Occurrences = append([]string(nil), e.Occurrences...)
	return e
}

type Result struct {
	Registry   *Registry
	Duplicates []Duplicate
	Issues     []string
	Summary    Summary
}

// Build folds the plugins' resources into a registry. Plugins and the
// resources inside each plugin are visited in the order given, so the same
// input always yields the same duplicates and issues.
func Build(plugins []Plugin, opts Options) Result {
	threshold := opts.PluginThreshold
	if threshold <= 0 {
		threshold = DefaultPluginThreshold
	}
	reg := &Registry{entries: map[Key]*Entry{}}
	duplicates := []Duplicate{}
	for _, p := range plugins {
		for _, res := range p.Resources {
			k := KeyOf(res)
			if e, ok := reg.entries[k]; ok {
				e.Occurrences = append(e.Occurrences, p.Name)
				duplicates = append(duplicates, Duplicate{
					Resource: res,
					Plugins:  []string{e.FirstOwner, p.Name},
				})
				continue
			}
			reg.entries[k] = &Entry{Key: k, FirstOwner: p.Name, Occurrences: []string{p.Name}}
			reg.order = append(reg.order, k)
		}
	}

	issues := []string{}
	if len(plugins) > threshold {
		issues = append(issues, fmt.Sprintf("Too many active plugins (%d). Consider deactivating the non-essential ones.", len(plugins)))
	}
	if len(duplicates) > 0 {
		issues = append(issues, fmt.Sprintf("Detected %d duplicate resources that can be optimized.", len(duplicates)))
	}

	return Result{
		Registry:   reg,
		Duplicates: duplicates,
		Issues:     issues,
		Summary: Summary{
			TotalPlugins:   len(plugins),
			TotalResources: reg.Len(),
			DuplicateCount: len(duplicates),
			IssuesCount:    len(issues),
		},
	}
}

// DuplicatedEntries returns only the entries declared by more than one plugin.
func (r *Registry) DuplicatedEntries() []Entry {
	var out []Entry
	for _, k := range r.order {
		if e := r.entries[k]; e.IsDuplicate() {
			out = append(out, copyEntry(*e))
		}
	}
	return out
}
