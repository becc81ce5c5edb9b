package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"assetguard/internal/app"
	"assetguard/internal/config"
	"assetguard/internal/fault"
	"assetguard/internal/gate"
	"assetguard/internal/store"
)

func captureStdout(t *testing.T, fn func()) string {
	t.Helper()
	old := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	os.Stdout = w
	fn()
	_ = w.Close()
	os.Stdout = old
	var buf bytes.Buffer
	_, _ = io.Copy(&buf, r)
	_ = r.Close()
	return buf.String()
}

// setupSite writes a config pointing at a temp state root and a plugin
// directory with two plugins sharing one script.
func setupSite(t *testing.T, operators ...string) string {
	t.Helper()
	base := t.TempDir()
	t.Setenv("HOME", base)
	plugins := filepath.Join(base, "wp-content", "plugins")
	for slug, body := range map[string]string{
		"gallery": "<?php\n/* Plugin Name: Gallery Pro */\nwp_enqueue_script('slick');\n",
		"slider":  "<?php\n/* Plugin Name: Slider Max */\nwp_enqueue_script('slick');\nwp_enqueue_style('slider');\n",
	} {
		dir := filepath.Join(plugins, slug)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(filepath.Join(dir, slug+".php"), []byte(body), 0o644); err != nil {
			t.Fatalf("write plugin: %v", err)
		}
	}
	cfg := config.DefaultConfig()
	cfg.Storage.Root = filepath.Join(base, "state")
	cfg.Host.PluginsDir = plugins
	cfg.Logging.Level = "error"
	cfg.Access.Operators = operators
	path := filepath.Join(base, "config.toml")
	if err := config.Save(path, cfg); err != nil {
		t.Fatalf("save config: %v", err)
	}
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var err error
	out := captureStdout(t, func() {
		cmd := newRootCmd()
		cmd.SetArgs(args)
		err = cmd.Execute()
	})
	return out, err
}

func boolPtr(v bool) *bool { return &v }

func TestNewRootCmdIncludesCoreCommands(t *testing.T) {
	cmd := newRootCmd()
	got := map[string]bool{}
	for _, c := range cmd.Commands() {
		got[c.Name()] = true
	}
	for _, want := range []string{"analyze", "cache", "opt", "settings", "render", "doctor", "audit", "version"} {
		if !got[want] {
			t.Fatalf("expected command %q", want)
		}
	}
}

func TestRenderRejectsBadQueueBeforeService(t *testing.T) {
	called := false
	cmd := newRenderCmd(func() (*app.Service, error) {
		called = true
		return nil, errors.New("should not be called")
	}, boolPtr(false))
	cmd.SetArgs([]string{"font:awesome"})
	err := cmd.Execute()
	if err == nil || exitCode(err) != 2 {
		t.Fatalf("expected usage error, got %v", err)
	}
	if called {
		t.Fatalf("newSvc should not be called for a malformed queue")
	}
}

func TestSettingsSetRejectsMalformedAssignment(t *testing.T) {
	cmd := newSettingsCmd(func() (*app.Service, error) {
		return nil, errors.New("should not be called")
	}, boolPtr(false))
	cmd.SetArgs([]string{"set", "auto_optimize"})
	err := cmd.Execute()
	if err == nil || !strings.Contains(err.Error(), "expected key=value") || exitCode(err) != 2 {
		t.Fatalf("expected key=value usage error, got %v", err)
	}
}

func TestParseQueue(t *testing.T) {
	q, err := parseQueue([]string{"script:jquery", "style:theme:main"})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(q) != 2 || q[0].String() != "script:jquery" || q[1].Handle != "theme:main" {
		t.Fatalf("unexpected queue %+v", q)
	}
	for _, bad := range []string{"jquery", "script:", "font:x"} {
		if _, err := parseQueue([]string{bad}); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}

func TestExitCodeMapping(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{usageError("bad"), 2},
		{fault.PermissionDenied("ACL_DENIED", "no"), 2},
		{fault.NotFound("OPT_TOGGLE_NOT_FOUND", "no"), 3},
		{fault.StorageUnavailable("OPT_STORE_LOCK", errors.New("busy")), 4},
		{errors.New("other"), 1},
	}
	for _, tt := range tests {
		if got := exitCode(tt.err); got != tt.want {
			t.Fatalf("exitCode(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestAnalyzeToggleRenderFlow(t *testing.T) {
	cfgPath := setupSite(t)

	out, err := run(t, "--config", cfgPath, "--json", "analyze")
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	var res app.AnalysisResult
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("decode analyze output: %v\n%s", err, out)
	}
	if res.Report.Summary.DuplicateCount != 1 || res.Seeded != 1 {
		t.Fatalf("unexpected analysis %+v", res)
	}

	out, err = run(t, "--config", cfgPath, "--json", "opt", "list")
	if err != nil {
		t.Fatalf("opt list: %v", err)
	}
	var recs []store.Record
	if err := json.Unmarshal([]byte(out), &recs); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(recs) != 1 || recs[0].Handle != "slick" || recs[0].OwningPlugin != "Gallery Pro" {
		t.Fatalf("unexpected records %+v", recs)
	}

	if _, err := run(t, "--config", cfgPath, "opt", "toggle", recs[0].ID); err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if _, err := run(t, "--config", cfgPath, "settings", "set", "auto_optimize=true"); err != nil {
		t.Fatalf("settings set: %v", err)
	}

	out, err = run(t, "--config", cfgPath, "--json", "render", "script:slick", "style:slider")
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	var d gate.Decision
	if err := json.Unmarshal([]byte(out), &d); err != nil {
		t.Fatalf("decode decision: %v", err)
	}
	if !d.Enforced || len(d.Suppressed) != 1 || d.Suppressed[0].Handle != "slick" || len(d.Emitted) != 1 {
		t.Fatalf("unexpected decision %+v", d)
	}

	out, err = run(t, "--config", cfgPath, "opt", "list")
	if err != nil {
		t.Fatalf("opt list text: %v", err)
	}
	if !strings.Contains(out, "script:slick") || !strings.Contains(out, "suppressed") {
		t.Fatalf("expected suppressed record in listing:\n%s", out)
	}
}

func TestToggleUnknownIDExitsNotFound(t *testing.T) {
	cfgPath := setupSite(t)
	_, err := run(t, "--config", cfgPath, "opt", "toggle", "deadbeef")
	if err == nil || exitCode(err) != 3 {
		t.Fatalf("expected not-found exit code, got %v", err)
	}
}

func TestDeniedPrincipalExitsTwo(t *testing.T) {
	cfgPath := setupSite(t, "admin")
	_, err := run(t, "--config", cfgPath, "--as", "guest", "opt", "clear")
	if err == nil || exitCode(err) != 2 || !strings.Contains(err.Error(), "ACL_DENIED") {
		t.Fatalf("expected permission denied, got %v", err)
	}
	out, err := run(t, "--config", cfgPath, "--as", "admin", "opt", "clear")
	if err != nil {
		t.Fatalf("admin clear: %v", err)
	}
	if !strings.Contains(out, "removed 0 record(s)") {
		t.Fatalf("unexpected output %q", out)
	}

	out, err = run(t, "--config", cfgPath, "--json", "audit")
	if err != nil {
		t.Fatalf("audit: %v", err)
	}
	if !strings.Contains(out, `"code": "ACL_DENIED"`) {
		t.Fatalf("expected denial in audit output:\n%s", out)
	}
}

func TestDoctorAndVersion(t *testing.T) {
	cfgPath := setupSite(t)
	out, err := run(t, "--config", cfgPath, "doctor")
	if err != nil {
		t.Fatalf("doctor: %v", err)
	}
	if !strings.Contains(out, "healthy") {
		t.Fatalf("expected healthy output, got %q", out)
	}
	out, err = run(t, "--json", "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.Contains(out, `"version": "dev"`) {
		t.Fatalf("unexpected version output %q", out)
	}
}
