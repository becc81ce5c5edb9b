package e2e

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

func repoRoot(t *testing.T) string {
	t.Helper()
	root, err := filepath.Abs(filepath.Join("..", ".."))
	if err != nil {
		t.Fatalf("resolve repo root failed: %v", err)
	}
	return root
}

func buildCLI(t *testing.T, home string) (string, []string) {
	t.Helper()
	if testing.Short() {
		t.Skip("e2e builds the binary; skipped in -short mode")
	}
	root := repoRoot(t)
	goModCache := filepath.Join(os.TempDir(), "assetguard-gomodcache")
	goCache := filepath.Join(os.TempDir(), "assetguard-gocache")
	for _, dir := range []string{goModCache, goCache} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatalf("create cache dir failed: %v", err)
		}
	}
	env := append(os.Environ(),
		"HOME="+home,
		"GOMODCACHE="+goModCache,
		"GOCACHE="+goCache,
	)
	bin := filepath.Join(home, "bin", "assetguard")
	cmd := exec.Command("go", "build", "-o", bin, "./cmd/assetguard")
	cmd.Dir = root
	cmd.Env = env
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("build cli failed: %v\n%s", err, string(out))
	}
	return bin, env
}

func runCLI(t *testing.T, bin string, env []string, args ...string) string {
	t.Helper()
	cmd := exec.Command(bin, args...)
	cmd.Env = env
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("command failed: %s\nargs=%v\noutput=%s", err, args, string(out))
	}
	return string(out)
}

// runCLIExpectExit runs the binary and requires it to exit with code.
func runCLIExpectExit(t *testing.T, bin string, env []string, code int, args ...string) string {
	t.Helper()
	cmd := exec.Command(bin, args...)
	cmd.Env = env
	out, err := cmd.CombinedOutput()
	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("expected exit code %d, got err=%v\nargs=%v\noutput=%s", code, err, args, string(out))
	}
	if exitErr.ExitCode() != code {
		t.Fatalf("expected exit code %d, got %d\nargs=%v\noutput=%s", code, exitErr.ExitCode(), args, string(out))
	}
	return string(out)
}

// writeSite lays out a host install with the given plugins (slug to body)
// and a config pointing at it.
func writeSite(t *testing.T, home string, plugins map[string]string, operators ...string) string {
	t.Helper()
	pluginsDir := filepath.Join(home, "site", "wp-content", "plugins")
	for slug, body := range plugins {
		path := filepath.Join(pluginsDir, slug, slug+".php")
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("mkdir plugin failed: %v", err)
		}
		if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
			t.Fatalf("write plugin failed: %v", err)
		}
	}
	quoted := make([]string, 0, len(operators))
	for _, op := range operators {
		quoted = append(quoted, fmt.Sprintf("%q", op))
	}
	cfg := fmt.Sprintf(`version = 1

[storage]
root = %q

[logging]
level = "warn"
format = "text"

[host]
plugins_dir = %q

[access]
operators = [%s]
`, filepath.Join(home, "state"), pluginsDir, strings.Join(quoted, ", "))
	cfgPath := filepath.Join(home, "config.toml")
	if err := os.WriteFile(cfgPath, []byte(cfg), 0o644); err != nil {
		t.Fatalf("write config failed: %v", err)
	}
	return cfgPath
}

func assertContains(t *testing.T, out, want string) {
	t.Helper()
	if !strings.Contains(out, want) {
		t.Fatalf("expected output to contain %q, got:\n%s", want, out)
	}
}
