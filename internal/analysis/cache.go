package analysis

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"assetguard/internal/fsutil"
)

const DefaultCacheTTL = time.Hour

// Cache keeps the last report on disk for a bounded time.
type Cache struct {
	Path string
	TTL  time.Duration
}

type cacheEntry struct {
	StoredAt time.Time `json:"storedAt"`
	Report   Report    `json:"report"`
}

func (c *Cache) ttl() time.Duration {
	if c.TTL <= 0 {
		return DefaultCacheTTL
	}
	return c.TTL
}

// Get returns the cached report if it was stored less than TTL before now.
// An unreadable or corrupt cache is a miss.
func (c *Cache) Get(now time.Time) (Report, bool) {
	if c == nil || c.Path == "" {
		return Report{}, false
	}
	blob, err := os.ReadFile(c.Path)
	if err != nil {
		return Report{}, false
	}
	var e cacheEntry
	if err := json.Unmarshal(blob, &e); err != nil {
		return Report{}, false
	}
	if now.Sub(e.StoredAt) >= c.ttl() || now.Before(e.StoredAt) {
		return Report{}, false
	}
	return e.Report, true
}

// Peek returns the cached report regardless of age.
func (c *Cache) Peek() (Report, bool) {
	if c == nil || c.Path == "" {
		return Report{}, false
	}
	blob, err := os.ReadFile(c.Path)
	if err != nil {
		return Report{}, false
	}
	var e cacheEntry
	if err := json.Unmarshal(blob, &e); err != nil {
		return Report{}, false
	}
	return e.Report, true
}

func (c *Cache) Put(now time.Time, r Report) error {
	if c == nil || c.Path == "" {
		return nil
	}
	blob, err := json.Marshal(cacheEntry{StoredAt: now, Report: r})
	if err != nil {
		return fmt.Errorf("ANA_CACHE_ENCODE: %w", err)
	}
	return fsutil.AtomicWrite(c.Path, blob, 0o644)
}

// Clear drops the cached report. Clearing an empty cache is not an error.
func (c *Cache) Clear() error {
	if c == nil || c.Path == "" {
		return nil
	}
	if err := os.Remove(c.Path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
