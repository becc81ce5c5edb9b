// Package host reads plugins from a host application's plugin directory.
package host

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"assetguard/internal/fault"
	"assetguard/pkg/hostapi"
)

// ActiveListName is the file listing active plugins, one "dir/main.php"
// entry per line. Blank lines and lines starting with '#' are ignored.
const ActiveListName = "active_plugins"

// DirSource serves plugins from a directory laid out like the host's
// plugin folder.
type DirSource struct {
	Root string
}

func NewDirSource(root string) *DirSource {
	return &DirSource{Root: root}
}

// ActivePlugins lists the active plugins. When the active list is missing
// every top-level "*/*.php" file counts as active, in path order.
func (d *DirSource) ActivePlugins(ctx context.Context) ([]hostapi.PluginRef, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	info, err := os.Stat(d.Root)
	if err != nil {
		return nil, fmt.Errorf("HOST_PLUGINS_DIR: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("HOST_PLUGINS_DIR: %q is not a directory", d.Root)
	}
	blob, err := os.ReadFile(filepath.Join(d.Root, ActiveListName))
	if err == nil {
		return d.refsFromList(blob)
	}
	if !os.IsNotExist(err) {
		return nil, fmt.Errorf("HOST_ACTIVE_LIST: %w", err)
	}
	matches, err := filepath.Glob(filepath.Join(d.Root, "*", "*.php"))
	if err != nil {
		return nil, fmt.Errorf("HOST_PLUGINS_DIR: %w", err)
	}
	sort.Strings(matches)
	refs := make([]hostapi.PluginRef, 0, len(matches))
	for _, m := range matches {
		rel, err := filepath.Rel(d.Root, m)
		if err != nil {
			continue
		}
		refs = append(refs, hostapi.PluginRef{ID: filepath.ToSlash(rel), Path: m})
	}
	return refs, nil
}

func (d *DirSource) refsFromList(blob []byte) ([]hostapi.PluginRef, error) {
	var refs []hostapi.PluginRef
	sc := bufio.NewScanner(bytes.NewReader(blob))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		path, err := d.resolve(line)
		if err != nil {
			return nil, err
		}
		refs = append(refs, hostapi.PluginRef{ID: line, Path: path})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("HOST_ACTIVE_LIST: %w", err)
	}
	return refs, nil
}

func (d *DirSource) resolve(id string) (string, error) {
	if filepath.IsAbs(id) {
		return "", fmt.Errorf("HOST_ACTIVE_LIST: absolute plugin path %q not allowed", id)
	}
	clean := filepath.Clean(filepath.FromSlash(id))
	if clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("HOST_ACTIVE_LIST: plugin path %q escapes plugin directory", id)
	}
	return filepath.Join(d.Root, clean), nil
}

// Read returns the plugin's main file. Failures wrap fault.ErrIOUnreadable.
func (d *DirSource) Read(ctx context.Context, ref hostapi.PluginRef) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path := ref.Path
	if path == "" {
		p, err := d.resolve(ref.ID)
		if err != nil {
			return nil, fault.Unreadable("HOST_PLUGIN_READ", ref.ID, err)
		}
		path = p
	}
	blob, err := os.ReadFile(path)
	if err != nil {
		return nil, fault.Unreadable("HOST_PLUGIN_READ", ref.ID, err)
	}
	return blob, nil
}
