package dedup

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"newsdigest/pkg/models"
)

// ════════════════════════════════════════════
// Fingerprinting
// ════════════════════════════════════════════

func TestFingerprintStable(t *testing.T) {
	a := models.Article{Title: "GPT-5 released", SourceURL: "https://example.com/gpt5", Content: "Big news today."}
	if Fingerprint(a) != Fingerprint(a) {
		t.Fatal("same article must produce the same fingerprint")
	}
}

func TestFingerprintDistinguishesArticles(t *testing.T) {
	a := models.Article{Title: "GPT-5 released", SourceURL: "https://example.com/gpt5"}
	b := models.Article{Title: "GPT-5 released", SourceURL: "https://other.com/gpt5"}
	if Fingerprint(a) == Fingerprint(b) {
		t.Fatal("different source URLs must produce different fingerprints")
	}
}

func TestFingerprintIgnoresContentPastPrefix(t *testing.T) {
	prefix := make([]byte, contentPrefixLen)
	for i := range prefix {
		prefix[i] = 'x'
	}
	a := models.Article{Title: "T", SourceURL: "u", Content: string(prefix) + "tail one"}
	b := models.Article{Title: "T", SourceURL: "u", Content: string(prefix) + "different tail"}
	if Fingerprint(a) != Fingerprint(b) {
		t.Fatal("content beyond the prefix must not affect the fingerprint")
	}
}

// ════════════════════════════════════════════
// Seen / Record
// ════════════════════════════════════════════

func TestSeenAndRecord(t *testing.T) {
	c := NewCache()
	if c.Seen("abc") {
		t.Fatal("empty cache should not report seen")
	}
	c.Record("abc", "Some title")
	if !c.Seen("abc") {
		t.Fatal("recorded fingerprint should be seen")
	}
}

func TestSeenExpiresAfterTTL(t *testing.T) {
	now := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	c := NewCache(WithTTL(7*24*time.Hour), WithClock(clock))

	c.Record("abc", "Old story")
	now = now.Add(7*24*time.Hour + time.Minute)
	if c.Seen("abc") {
		t.Fatal("entry past TTL should not be seen")
	}
	if c.Len() != 0 {
		t.Fatalf("expired entry should be removed on lookup, len = %d", c.Len())
	}
}

func TestRecordIdempotentKeepsFirstSeen(t *testing.T) {
	now := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	c := NewCache(WithClock(clock))

	c.Record("abc", "Story")
	first := c.entries["abc"].FirstSeen
	now = now.Add(time.Hour)
	c.Record("abc", "Story")
	if !c.entries["abc"].FirstSeen.Equal(first) {
		t.Fatal("re-recording must keep the original FirstSeen")
	}
	if c.Len() != 1 {
		t.Fatalf("len = %d, want 1", c.Len())
	}
}

func TestCapacityEvictsOldestInserted(t *testing.T) {
	c := NewCache(WithCapacity(3))
	c.Record("a", "A")
	c.Record("b", "B")
	c.Record("c", "C")
	c.Record("d", "D")

	if c.Seen("a") {
		t.Fatal("oldest entry should have been evicted")
	}
	for _, fp := range []string{"b", "c", "d"} {
		if !c.Seen(fp) {
			t.Errorf("entry %q should survive eviction", fp)
		}
	}
	if c.Len() != 3 {
		t.Fatalf("len = %d, want 3", c.Len())
	}
}

// ════════════════════════════════════════════
// Persistence
// ════════════════════════════════════════════

func TestPersistAndLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cache", "seen.json")

	c := NewCache()
	c.Record("abc", "Story one")
	c.Record("def", "Story two")
	if err := c.Persist(path); err != nil {
		t.Fatalf("Persist: %v", err)
	}

	fresh := NewCache()
	if err := fresh.Load(path); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !fresh.Seen("abc") || !fresh.Seen("def") {
		t.Fatal("loaded cache should contain persisted fingerprints")
	}
}

func TestPersistSkipsExpired(t *testing.T) {
	now := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	c := NewCache(WithTTL(24*time.Hour), WithClock(clock))

	c.Record("old", "Old")
	now = now.Add(48 * time.Hour)
	c.Record("new", "New")

	path := filepath.Join(t.TempDir(), "seen.json")
	if err := c.Persist(path); err != nil {
		t.Fatalf("Persist: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read persisted file: %v", err)
	}
	var raw map[string]Entry
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("persisted file is not valid JSON: %v", err)
	}
	if _, ok := raw["old"]; ok {
		t.Error("expired entry should not be persisted")
	}
	if _, ok := raw["new"]; !ok {
		t.Error("live entry should be persisted")
	}
}

func TestLoadMissingFileIsEmpty(t *testing.T) {
	c := NewCache()
	if err := c.Load(filepath.Join(t.TempDir(), "nope.json")); err != nil {
		t.Fatalf("missing file should not be an error, got %v", err)
	}
	if c.Len() != 0 {
		t.Fatalf("len = %d, want 0", c.Len())
	}
}

func TestLoadCorruptFileStartsFresh(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seen.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	c := NewCache()
	if err := c.Load(path); err != nil {
		t.Fatalf("corrupt file should not be an error, got %v", err)
	}
	if c.Len() != 0 {
		t.Fatalf("len = %d, want 0", c.Len())
	}
}

func TestLoadRebuildsEvictionOrderByAge(t *testing.T) {
	now := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	src := NewCache(WithClock(clock))
	src.Record("oldest", "A")
	now = now.Add(time.Hour)
	src.Record("middle", "B")
	now = now.Add(time.Hour)
	src.Record("newest", "C")

	path := filepath.Join(t.TempDir(), "seen.json")
	if err := src.Persist(path); err != nil {
		t.Fatalf("Persist: %v", err)
	}

	c := NewCache(WithCapacity(3), WithClock(clock))
	if err := c.Load(path); err != nil {
		t.Fatalf("Load: %v", err)
	}
	c.Record("extra", "D")
	if c.Seen("oldest") {
		t.Fatal("eviction after load should target the oldest persisted entry")
	}
	if !c.Seen("newest") || !c.Seen("extra") {
		t.Fatal("newer entries should survive eviction")
	}
}
