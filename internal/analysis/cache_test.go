package analysis

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"assetguard/internal/extract"
	"assetguard/internal/registry"
)

func sampleReport(at time.Time) Report {
	return Report{
		GeneratedAt: at,
		Plugins: []registry.Plugin{
			{Name: "A", Version: "1.0", SourceRef: "a/a.php", Resources: []extract.Descriptor{{Handle: "jq", Kind: extract.KindScript}}},
			{Name: "B", Version: "2.0", SourceRef: "b/b.php", Resources: []extract.Descriptor{{Handle: "jq", Kind: extract.KindScript}}},
		},
		Duplicates: []registry.Duplicate{{Resource: extract.Descriptor{Handle: "jq", Kind: extract.KindScript}, Plugins: []string{"A", "B"}}},
		Issues:     []string{"Detected 1 duplicate resources that can be optimized."},
		Summary:    registry.Summary{TotalPlugins: 2, TotalResources: 1, DuplicateCount: 1, IssuesCount: 1},
	}
}

func TestCacheHitWithinTTL(t *testing.T) {
	now := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)
	c := &Cache{Path: filepath.Join(t.TempDir(), "analysis-cache.json"), TTL: time.Hour}
	if err := c.Put(now, sampleReport(now)); err != nil {
		t.Fatalf("put: %v", err)
	}
	got, ok := c.Get(now.Add(59 * time.Minute))
	if !ok {
		t.Fatalf("expected cache hit")
	}
	if got.Summary != sampleReport(now).Summary || len(got.Duplicates) != 1 {
		t.Fatalf("unexpected cached report %+v", got)
	}
}

func TestCacheExpires(t *testing.T) {
	now := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)
	c := &Cache{Path: filepath.Join(t.TempDir(), "analysis-cache.json")}
	if err := c.Put(now, sampleReport(now)); err != nil {
		t.Fatalf("put: %v", err)
	}
	if _, ok := c.Get(now.Add(DefaultCacheTTL)); ok {
		t.Fatalf("expected expiry at ttl")
	}
	if _, ok := c.Peek(); !ok {
		t.Fatalf("peek should return expired entry")
	}
}

func TestCacheClear(t *testing.T) {
	now := time.Now().UTC()
	c := &Cache{Path: filepath.Join(t.TempDir(), "analysis-cache.json")}
	if err := c.Clear(); err != nil {
		t.Fatalf("clear of empty cache: %v", err)
	}
	if err := c.Put(now, sampleReport(now)); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := c.Clear(); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if _, ok := c.Get(now); ok {
		t.Fatalf("expected miss after clear")
	}
}

func TestCacheCorruptIsMiss(t *testing.T) {
	path := filepath.Join(t.TempDir(), "analysis-cache.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	c := &Cache{Path: path}
	if _, ok := c.Get(time.Now()); ok {
		t.Fatalf("corrupt cache should miss")
	}
}

func TestNilCacheIsNoop(t *testing.T) {
	var c *Cache
	if err := c.Put(time.Now(), Report{}); err != nil {
		t.Fatalf("nil put: %v", err)
	}
	if _, ok := c.Get(time.Now()); ok {
		t.Fatalf("nil cache should miss")
	}
	if err := c.Clear(); err != nil {
		t.Fatalf("nil clear: %v", err)
	}
}

func TestDiffIdenticalReportsIsEmpty(t *testing.T) {
	at := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)
	out, err := Diff(sampleReport(at), sampleReport(at))
	if err != nil {
		t.Fatalf("diff: %v", err)
	}
	if out != "" {
		t.Fatalf("expected empty diff, got %q", out)
	}
}

func TestDiffShowsNewDuplicate(t *testing.T) {
	at := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)
	prev := sampleReport(at)
	next := sampleReport(at.Add(time.Hour))
	next.Duplicates = append(next.Duplicates, registry.Duplicate{
		Resource: extract.Descriptor{Handle: "fa", Kind: extract.KindStyle},
		Plugins:  []string{"A", "C"},
	})
	next.Summary.DuplicateCount = 2
	out, err := Diff(prev, next)
	if err != nil {
		t.Fatalf("diff: %v", err)
	}
	for _, want := range []string{"--- cached", "+++ current", "+duplicate style:fa A <> C", "-summary plugins=2 resources=1 duplicates=1"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in diff:\n%s", want, out)
		}
	}
}
