// Package hostapi is the narrow contract between assetguard and the host
// application it analyzes.
package hostapi

import "context"

// PluginRef identifies one active plugin as the host knows it.
type PluginRef struct {
	ID   string `json:"id"`
	Path string `json:"path"`
}

// PluginSource enumerates active plugins and hands out their source.
type PluginSource interface {
	ActivePlugins(ctx context.Context) ([]PluginRef, error)
	Read(ctx context.Context, ref PluginRef) ([]byte, error)
}

// Resource is one entry of the queue the host is about to emit.
type Resource struct {
	Handle string `json:"handle"`
	Kind   string `json:"type"`
}

// RenderHook is invoked by the host once per page render, after all
// registrations and before emission. It returns the resources to emit.
type RenderHook interface {
	BeforeEmit(ctx context.Context, queue []Resource) ([]Resource, error)
}
