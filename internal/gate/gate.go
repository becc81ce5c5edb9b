// Package gate decides, at emission time, which queued resources reach the
// page.
//
// The host calls Render once per page, after every plugin has registered its
// resources and before any of them is written out. The gate has no hooks of
// its own; where it runs in the page pipeline is the host's call.
package gate

import (
	"assetguard/internal/extract"
	"assetguard/internal/store"
)

// Lookup resolves the decision record for a resource. store.Store and
// store.View both satisfy it.
type Lookup interface {
	Lookup(kind extract.Kind, handle string) (store.Record, bool)
}

// Viewer hands out a consistent view for the duration of one render.
type Viewer interface {
	View() store.View
}

// FilterActive reports whether the resource should be emitted. Resources
// without a record are always emitted.
func FilterActive(l Lookup, kind extract.Kind, handle string) bool {
	rec, ok := l.Lookup(kind, handle)
	if !ok {
		return true
	}
	return rec.IsActive
}

type Gate struct {
	records Viewer
	// Enforce turns suppression on. Without it Render emits everything and
	// only reports what it would have dropped.
	Enforce bool
}

func New(records Viewer, enforce bool) *Gate {
	return &Gate{records: records, Enforce: enforce}
}

// Decision is the outcome of one render.
type Decision struct {
	Emitted    []extract.Descriptor `json:"emitted"`
	Suppressed []extract.Descriptor `json:"suppressed"`
	// WouldSuppress lists what enforcement would have dropped while it is off.
	WouldSuppress []extract.Descriptor `json:"wouldSuppress,omitempty"`
	Enforced      bool                 `json:"enforced"`
}

// FilterActive answers for a single resource against the latest records.
func (g *Gate) FilterActive(kind extract.Kind, handle string) bool {
	return FilterActive(g.records.View(), kind, handle)
}

// Render partitions the page's resource queue. Every lookup in one call
// sees the same records.
func (g *Gate) Render(queue []extract.Descriptor) Decision {
	view := g.records.View()
	d := Decision{
		Emitted:    make([]extract.Descriptor, 0, len(queue)),
		Suppressed: []extract.Descriptor{},
		Enforced:   g.Enforce,
	}
	for _, res := range queue {
		if FilterActive(view, res.Kind, res.Handle) {
			d.Emitted = append(d.Emitted, res)
			continue
		}
		if g.Enforce {
			d.Suppressed = append(d.Suppressed, res)
			continue
		}
		d.WouldSuppress = append(d.WouldSuppress, res)
		d.Emitted = append(d.Emitted, res)
	}
	return d
}
