// Package dedup tracks recently seen articles by content fingerprint so
// the pipeline never processes the same story twice within the
// retention window.
package dedup

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"newsdigest/pkg/models"
)

const (
	// DefaultTTL is how long a fingerprint is remembered.
	DefaultTTL = 7 * 24 * time.Hour
	// DefaultCapacity bounds the number of remembered fingerprints.
	DefaultCapacity = 1000

	// contentPrefixLen is how much article content participates in the
	// fingerprint. Enough to distinguish rewrites of the same headline
	// without hashing full bodies.
	contentPrefixLen = 200
)

// Fingerprint computes a stable identity hash for an article from its
// title, source URL, and a prefix of its content.
func Fingerprint(a models.Article) string {
	content := a.Content
	if len(content) > contentPrefixLen {
		content = content[:contentPrefixLen]
	}
	sum := md5.Sum([]byte(a.Title + ":" + a.SourceURL + ":" + content))
	return hex.EncodeToString(sum[:])
}

// Entry records when a fingerprint was first seen, plus the article
// title for debuggability of the persisted cache file.
type Entry struct {
	Title     string    `json:"title"`
	FirstSeen time.Time `json:"date"`
}

// Cache is an in-memory fingerprint set with TTL expiry and a capacity
// bound. Expiry is lazy: entries past their TTL are dropped when looked
// up or persisted. Capacity is enforced eagerly on insert by evicting
// the oldest-inserted entries.
type Cache struct {
	mu       sync.Mutex
	entries  map[string]Entry
	order    []string // insertion order, oldest first
	ttl      time.Duration
	capacity int
	now      func() time.Time
}

// Option configures a Cache.
type Option func(*Cache)

// WithTTL overrides the retention window.
func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) { c.ttl = ttl }
}

// WithCapacity overrides the entry bound.
func WithCapacity(n int) Option {
	return func(c *Cache) { c.capacity = n }
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// NewCache creates an empty cache with the default TTL and capacity.
func NewCache(opts ...Option) *Cache {
	c := &Cache{
		entries:  make(map[string]Entry),
		ttl:      DefaultTTL,
		capacity: DefaultCapacity,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Seen reports whether the fingerprint is present and not expired.
// Expired entries are removed as a side effect.
func (c *Cache) Seen(fp string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[fp]
	if !ok {
		return false
	}
	if c.now().Sub(entry.FirstSeen) > c.ttl {
		delete(c.entries, fp)
		return false
	}
	return true
}

// Record remembers a fingerprint. Recording an already-present
// fingerprint is a no-op and keeps the original FirstSeen. When the
// cache is full, the oldest-inserted entries are evicted first.
func (c *Cache) Record(fp, title string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[fp]; ok {
		return
	}
	for len(c.entries) >= c.capacity && len(c.order) > 0 {
		oldest := c.order[0]
		c.order = c.order[1:]
		// Lazy TTL removal can leave stale keys in the order slice.
		if _, ok := c.entries[oldest]; ok {
			delete(c.entries, oldest)
		}
	}
	c.entries[fp] = Entry{Title: title, FirstSeen: c.now()}
	c.order = append(c.order, fp)
}

// Len returns the number of entries, including any not yet lazily expired.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Load reads a persisted cache file into the cache, replacing its
// contents. A missing or corrupt file is not an error: the pipeline
// starts with an empty cache and logs a warning for the corrupt case.
func (c *Cache) Load(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("dedup: read cache %s: %w", path, err)
	}

	var raw map[string]Entry
	if err := json.Unmarshal(data, &raw); err != nil {
		log.Printf("[dedup] cache file %s is corrupt, starting fresh: %v", path, err)
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]Entry, len(raw))
	c.order = c.order[:0]
	for fp, entry := range raw {
		c.entries[fp] = entry
		c.order = append(c.order, fp)
	}
	// Persisted JSON has no order; approximate insertion order by age.
	sort.Slice(c.order, func(i, j int) bool {
		return c.entries[c.order[i]].FirstSeen.Before(c.entries[c.order[j]].FirstSeen)
	})
	return nil
}

// Persist writes the cache to path atomically, skipping expired
// entries. The parent directory is created if needed.
func (c *Cache) Persist(path string) error {
	c.mu.Lock()
	now := c.now()
	out := make(map[string]Entry, len(c.entries))
	for fp, entry := range c.entries {
		if now.Sub(entry.FirstSeen) > c.ttl {
			continue
		}
		out[fp] = entry
	}
	c.mu.Unlock()

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("dedup: marshal cache: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("dedup: create cache dir: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("dedup: write cache: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("dedup: replace cache: %w", err)
	}
	return nil
}
