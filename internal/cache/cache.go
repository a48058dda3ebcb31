package cache

import (
	"bytes"
	"compress/gzip"
	"container/list"
	"encoding/hex"
	"encoding/json"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/standardbeagle/codeatlas/internal/debug"
	"github.com/standardbeagle/codeatlas/internal/types"
)

// Cache configuration constants
const (
	DefaultMaxEntries           = 2000
	DefaultTTL                  = 2 * time.Hour
	DefaultCompressionThreshold = 16 * 1024
)

// Config defines cache configuration options
type Config struct {
	MaxEntries           int
	TTL                  time.Duration
	CompressionThreshold int // 0 disables compression
	PersistDir           string
}

// DefaultConfig returns the default cache configuration
func DefaultConfig() Config {
	return Config{
		MaxEntries:           DefaultMaxEntries,
		TTL:                  DefaultTTL,
		CompressionThreshold: DefaultCompressionThreshold,
	}
}

// entry is one cached value plus the bookkeeping needed to decide whether
// it is still valid. When Compressed is set the value lives in compressed
// form and valueSet is false.
type entry[V any] struct {
	key        string
	value      V
	valueSet   bool
	compressed []byte
	insertedAt time.Time
	fileInfo   []types.FileInfo
	elem       *list.Element
}

// Stats holds cache counters. All fields are cumulative since creation.
type Stats struct {
	Hits          int64
	Misses        int64
	Evictions     int64
	Expirations   int64
	Invalidations int64
	Corruptions   int64
	Entries       int64
}

// Cache is a content/mtime-addressed store with LRU eviction, TTL expiry
// and file-modification invalidation. Every concurrent analysis shares one
// instance, so all mutation of the entry map, LRU order and path index is
// serialized under mu - torn updates here are correctness bugs, not a
// performance detail.
type Cache[V any] struct {
	mu        sync.Mutex
	entries   map[string]*entry[V]
	order     *list.List // front = most recently accessed
	pathIndex map[string]map[string]struct{}

	cfg Config

	hits          atomic.Int64
	misses        atomic.Int64
	evictions     atomic.Int64
	expirations   atomic.Int64
	invalidations atomic.Int64
	corruptions   atomic.Int64
}

// New creates a cache. When cfg.PersistDir is set, previously persisted
// entries are reloaded immediately; TTL-expired entries are dropped during
// the reload rather than swept proactively.
func New[V any](cfg Config) *Cache[V] {
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = DefaultMaxEntries
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	c := &Cache[V]{
		entries:   make(map[string]*entry[V]),
		order:     list.New(),
		pathIndex: make(map[string]map[string]struct{}),
		cfg:       cfg,
	}
	if cfg.PersistDir != "" {
		c.loadPersisted()
	}
	return c
}

// CaptureFileInfo captures the modification triple for one file: mtime,
// size and xxhash of the content.
func CaptureFileInfo(path string) (types.FileInfo, error) {
	st, err := os.Stat(path)
	if err != nil {
		return types.FileInfo{}, err
	}
	hash, err := HashFile(path)
	if err != nil {
		return types.FileInfo{}, err
	}
	return types.FileInfo{
		Path:    path,
		ModTime: st.ModTime(),
		Size:    st.Size(),
		Hash:    hash,
	}, nil
}

// HashFile returns the hex-encoded xxhash of a file's content.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := xxhash.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// HashBytes returns the hex-encoded xxhash of content already in memory.
func HashBytes(content []byte) string {
	h := xxhash.Sum64(content)
	var buf [8]byte
	for i := 0; i < 8; i++ {
		buf[i] = byte(h >> (56 - 8*i))
	}
	return hex.EncodeToString(buf[:])
}

// Get returns the cached value for key. An entry is valid only if it is
// not TTL-expired and, when a modification triple is attached, that triple
// still matches the live file. Any mismatch is a miss and an eviction -
// never a silent stale return.
func (c *Cache[V]) Get(key string) (V, bool) {
	var zero V

	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		c.misses.Add(1)
		return zero, false
	}

	if time.Since(e.insertedAt) > c.cfg.TTL {
		c.removeLocked(e)
		c.expirations.Add(1)
		c.misses.Add(1)
		return zero, false
	}

	for _, fi := range e.fileInfo {
		if !fileStillFresh(fi) {
			debug.LogCache("entry %s invalidated by %s\n", key, fi.Path)
			c.removeLocked(e)
			c.evictions.Add(1)
			c.misses.Add(1)
			return zero, false
		}
	}

	value, ok := c.materialize(e)
	if !ok {
		// Decompression failure: treat as a miss for this entry, non-fatal
		c.removeLocked(e)
		c.corruptions.Add(1)
		c.misses.Add(1)
		return zero, false
	}

	c.order.MoveToFront(e.elem)
	c.hits.Add(1)
	return value, true
}

// Set stores value under key, capturing the modification triple of every
// file the value depends on. Insertion beyond MaxEntries evicts the least
// recently accessed key first.
func (c *Cache[V]) Set(key string, value V, dependsOn ...string) {
	infos := make([]types.FileInfo, 0, len(dependsOn))
	for _, path := range dependsOn {
		fi, err := CaptureFileInfo(path)
		if err != nil {
			debug.LogCache("skipping fileinfo for %s: %v\n", path, err)
			continue
		}
		infos = append(infos, fi)
	}
	c.SetWithInfo(key, value, infos)
}

// SetWithInfo stores value with pre-captured modification triples. Callers
// that already hashed the file (the analyzer does) use this to avoid
// hashing twice.
func (c *Cache[V]) SetWithInfo(key string, value V, infos []types.FileInfo) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if old, ok := c.entries[key]; ok {
		c.removeLocked(old)
	}

	e := &entry[V]{
		key:        key,
		value:      value,
		valueSet:   true,
		insertedAt: time.Now(),
		fileInfo:   infos,
	}
	c.maybeCompress(e)

	for len(c.entries) >= c.cfg.MaxEntries {
		c.evictOldestLocked()
	}

	e.elem = c.order.PushFront(e)
	c.entries[key] = e
	for _, fi := range infos {
		keys, ok := c.pathIndex[fi.Path]
		if !ok {
			keys = make(map[string]struct{})
			c.pathIndex[fi.Path] = keys
		}
		keys[key] = struct{}{}
	}

	if c.cfg.PersistDir != "" {
		c.persistEntry(e)
	}
}

// Delete removes key from the cache.
func (c *Cache[V]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[key]; ok {
		c.removeLocked(e)
	}
}

// InvalidateFiles removes every entry that depends on any of the given
// paths.
func (c *Cache[V]) InvalidateFiles(paths []string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for _, path := range paths {
		for key := range c.pathIndex[path] {
			if e, ok := c.entries[key]; ok {
				c.removeLocked(e)
				removed++
			}
		}
	}
	c.invalidations.Add(int64(removed))
	return removed
}

// Cleanup sweeps TTL-expired entries.
func (c *Cache[V]) Cleanup() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for _, e := range c.entries {
		if time.Since(e.insertedAt) > c.cfg.TTL {
			c.removeLocked(e)
			removed++
		}
	}
	c.expirations.Add(int64(removed))
	return removed
}

// Len returns the current entry count.
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Stats returns a snapshot of the cache counters.
func (c *Cache[V]) Stats() Stats {
	c.mu.Lock()
	entries := int64(len(c.entries))
	c.mu.Unlock()

	return Stats{
		Hits:          c.hits.Load(),
		Misses:        c.misses.Load(),
		Evictions:     c.evictions.Load(),
		Expirations:   c.expirations.Load(),
		Invalidations: c.invalidations.Load(),
		Corruptions:   c.corruptions.Load(),
		Entries:       entries,
	}
}

// StatsMap returns the counters in the map form the analysis result
// carries.
func (c *Cache[V]) StatsMap() map[string]int64 {
	s := c.Stats()
	return map[string]int64{
		"hits":          s.Hits,
		"misses":        s.Misses,
		"evictions":     s.Evictions,
		"expirations":   s.Expirations,
		"invalidations": s.Invalidations,
		"corruptions":   s.Corruptions,
		"entries":       s.Entries,
	}
}

// fileStillFresh revalidates a modification triple against the live file.
// mtime and size are checked first; the hash is recomputed only when they
// disagree, and a matching hash (a touch without a content change) still
// counts as fresh. A false "fresh" verdict cannot occur: every path that
// skips the hash requires both mtime and size to be unchanged.
func fileStillFresh(fi types.FileInfo) bool {
	st, err := os.Stat(fi.Path)
	if err != nil {
		return false
	}
	if st.Size() == fi.Size && st.ModTime().Equal(fi.ModTime) {
		return true
	}
	if st.Size() != fi.Size {
		return false
	}
	hash, err := HashFile(fi.Path)
	if err != nil {
		return false
	}
	return hash == fi.Hash
}

func (c *Cache[V]) evictOldestLocked() {
	back := c.order.Back()
	if back == nil {
		return
	}
	e := back.Value.(*entry[V])
	c.removeLocked(e)
	c.evictions.Add(1)
	debug.LogCache("evicted %s (LRU)\n", e.key)
}

func (c *Cache[V]) removeLocked(e *entry[V]) {
	delete(c.entries, e.key)
	if e.elem != nil {
		c.order.Remove(e.elem)
		e.elem = nil
	}
	for _, fi := range e.fileInfo {
		if keys, ok := c.pathIndex[fi.Path]; ok {
			delete(keys, e.key)
			if len(keys) == 0 {
				delete(c.pathIndex, fi.Path)
			}
		}
	}
	if c.cfg.PersistDir != "" {
		c.unpersistEntry(e.key)
	}
}

// maybeCompress compresses the serialized value when it exceeds the
// threshold. A failed compression falls back to uncompressed storage.
func (c *Cache[V]) maybeCompress(e *entry[V]) {
	if c.cfg.CompressionThreshold <= 0 {
		return
	}
	raw, err := json.Marshal(e.value)
	if err != nil || len(raw) < c.cfg.CompressionThreshold {
		return
	}

	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(raw); err != nil {
		zw.Close()
		return
	}
	if err := zw.Close(); err != nil {
		return
	}

	e.compressed = buf.Bytes()
	e.valueSet = false
	var zero V
	e.value = zero
}

// materialize returns the entry's value, decompressing if needed.
func (c *Cache[V]) materialize(e *entry[V]) (V, bool) {
	if e.valueSet {
		return e.value, true
	}

	var zero V
	zr, err := gzip.NewReader(bytes.NewReader(e.compressed))
	if err != nil {
		return zero, false
	}
	raw, err := io.ReadAll(zr)
	if err != nil {
		return zero, false
	}
	var value V
	if err := json.Unmarshal(raw, &value); err != nil {
		return zero, false
	}
	return value, true
}
