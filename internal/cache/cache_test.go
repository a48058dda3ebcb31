package cache

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"
)

type testRecord struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
	Blob  string `json:"blob,omitempty"`
}

func writeTestFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestCache_GetAfterSet(t *testing.T) {
	c := New[testRecord](DefaultConfig())

	c.Set("a", testRecord{Name: "alpha", Count: 3})

	got, ok := c.Get("a")
	if !ok {
		t.Fatal("expected hit immediately after set")
	}
	if got.Name != "alpha" || got.Count != 3 {
		t.Errorf("value changed through cache: %+v", got)
	}

	if _, ok := c.Get("missing"); ok {
		t.Error("expected miss for unknown key")
	}
}

func TestCache_FileModificationInvalidation(t *testing.T) {
	dir := t.TempDir()
	path := writeTestFile(t, dir, "dep.txt", "original content")

	c := New[testRecord](DefaultConfig())
	c.Set("keyed", testRecord{Name: "rec"}, path)

	if _, ok := c.Get("keyed"); !ok {
		t.Fatal("expected hit while backing file is unchanged")
	}

	// Change content (and therefore size and hash)
	if err := os.WriteFile(path, []byte("changed content entirely"), 0644); err != nil {
		t.Fatal(err)
	}

	if _, ok := c.Get("keyed"); ok {
		t.Error("expected miss after backing file changed")
	}
	// The stale entry must have been evicted, not silently kept
	if c.Len() != 0 {
		t.Errorf("expected stale entry evicted, have %d entries", c.Len())
	}
}

func TestCache_TouchWithoutContentChangeStaysFresh(t *testing.T) {
	dir := t.TempDir()
	path := writeTestFile(t, dir, "dep.txt", "stable content")

	c := New[testRecord](DefaultConfig())
	c.Set("keyed", testRecord{Name: "rec"}, path)

	// Bump mtime only; size and hash are unchanged
	future := time.Now().Add(2 * time.Second)
	if err := os.Chtimes(path, future, future); err != nil {
		t.Fatal(err)
	}

	if _, ok := c.Get("keyed"); !ok {
		t.Error("touch without content change must not invalidate")
	}
}

func TestCache_LRUEviction(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxEntries = 3
	c := New[testRecord](cfg)

	c.Set("a", testRecord{Name: "a"})
	c.Set("b", testRecord{Name: "b"})
	c.Set("c", testRecord{Name: "c"})

	// Access "a" so "b" becomes the least recently used
	if _, ok := c.Get("a"); !ok {
		t.Fatal("expected hit for a")
	}

	c.Set("d", testRecord{Name: "d"})

	if _, ok := c.Get("b"); ok {
		t.Error("expected least-recently-accessed key b to be evicted")
	}
	for _, key := range []string{"a", "c", "d"} {
		if _, ok := c.Get(key); !ok {
			t.Errorf("expected %s to survive eviction", key)
		}
	}
}

func TestCache_TTLExpiry(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TTL = 30 * time.Millisecond
	c := New[testRecord](cfg)

	c.Set("a", testRecord{Name: "a"})
	time.Sleep(60 * time.Millisecond)

	if _, ok := c.Get("a"); ok {
		t.Error("entry older than ttl must be a miss")
	}

	stats := c.Stats()
	if stats.Expirations == 0 {
		t.Error("expected expiration counted")
	}
}

func TestCache_CompressionRoundTrip(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CompressionThreshold = 64
	c := New[testRecord](cfg)

	big := testRecord{Name: "big"}
	for i := 0; i < 200; i++ {
		big.Blob += "abcdefghij"
	}
	c.Set("big", big)

	got, ok := c.Get("big")
	if !ok {
		t.Fatal("expected hit for compressed entry")
	}
	if got.Blob != big.Blob {
		t.Error("compressed value did not round-trip")
	}
}

func TestCache_InvalidateFiles(t *testing.T) {
	dir := t.TempDir()
	p1 := writeTestFile(t, dir, "one.txt", "one")
	p2 := writeTestFile(t, dir, "two.txt", "two")

	c := New[testRecord](DefaultConfig())
	c.Set("k1", testRecord{Name: "1"}, p1)
	c.Set("k2", testRecord{Name: "2"}, p2)
	c.Set("k3", testRecord{Name: "3"})

	removed := c.InvalidateFiles([]string{p1})
	if removed != 1 {
		t.Errorf("expected 1 invalidated entry, got %d", removed)
	}
	if _, ok := c.Get("k1"); ok {
		t.Error("k1 should be invalidated")
	}
	if _, ok := c.Get("k2"); !ok {
		t.Error("k2 should survive")
	}
	if _, ok := c.Get("k3"); !ok {
		t.Error("k3 should survive")
	}
}

func TestCache_Cleanup(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TTL = 20 * time.Millisecond
	c := New[testRecord](cfg)

	for i := 0; i < 5; i++ {
		c.Set(fmt.Sprintf("k%d", i), testRecord{Count: i})
	}
	time.Sleep(40 * time.Millisecond)

	removed := c.Cleanup()
	if removed != 5 {
		t.Errorf("expected 5 swept entries, got %d", removed)
	}
	if c.Len() != 0 {
		t.Errorf("expected empty cache after cleanup, have %d", c.Len())
	}
}

func TestCache_Persistence(t *testing.T) {
	cacheDir := t.TempDir()
	cfg := DefaultConfig()
	cfg.PersistDir = cacheDir

	c1 := New[testRecord](cfg)
	c1.Set("persisted", testRecord{Name: "alpha", Count: 7})

	// A fresh cache over the same directory reloads the entry
	c2 := New[testRecord](cfg)
	got, ok := c2.Get("persisted")
	if !ok {
		t.Fatal("expected persisted entry to reload")
	}
	if got.Name != "alpha" || got.Count != 7 {
		t.Errorf("persisted value corrupted: %+v", got)
	}
}

func TestCache_PersistenceDropsExpired(t *testing.T) {
	cacheDir := t.TempDir()
	cfg := DefaultConfig()
	cfg.PersistDir = cacheDir
	cfg.TTL = 20 * time.Millisecond

	c1 := New[testRecord](cfg)
	c1.Set("stale", testRecord{Name: "old"})

	time.Sleep(40 * time.Millisecond)

	c2 := New[testRecord](cfg)
	if _, ok := c2.Get("stale"); ok {
		t.Error("expired entry must be dropped on reload")
	}
}

func TestCache_CorruptPersistedEntryDiscarded(t *testing.T) {
	cacheDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(cacheDir, "deadbeefdeadbeef.json"), []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}

	cfg := DefaultConfig()
	cfg.PersistDir = cacheDir
	c := New[testRecord](cfg)

	if c.Len() != 0 {
		t.Errorf("corrupt entry should be discarded, have %d entries", c.Len())
	}
	if c.Stats().Corruptions == 0 {
		t.Error("expected corruption counted")
	}
}

func TestCache_StatsCounters(t *testing.T) {
	c := New[testRecord](DefaultConfig())
	c.Set("a", testRecord{})
	c.Get("a")
	c.Get("nope")

	s := c.Stats()
	if s.Hits != 1 || s.Misses != 1 || s.Entries != 1 {
		t.Errorf("unexpected stats: %+v", s)
	}
}
