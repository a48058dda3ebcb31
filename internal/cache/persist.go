package cache

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/standardbeagle/codeatlas/internal/debug"
	"github.com/standardbeagle/codeatlas/internal/types"
)

// persistedEntry is the on-disk form of one cache entry: one file per key
// under the cache directory. Raw holds the JSON-serialized value, or the
// gzip bytes when Compressed is set (base64-encoded by encoding/json).
type persistedEntry struct {
	Key        string           `json:"key"`
	Raw        json.RawMessage  `json:"raw,omitempty"`
	Compressed []byte           `json:"compressed,omitempty"`
	InsertedAt time.Time        `json:"inserted_at"`
	FileInfo   []types.FileInfo `json:"file_info,omitempty"`
}

// entryFileName derives a stable file name for a key. Keys are paths, so
// they are hashed rather than sanitized.
func entryFileName(key string) string {
	return fmt.Sprintf("%016x.json", xxhash.Sum64String(key))
}

// loadPersisted reloads all persisted entries, dropping TTL-expired ones
// lazily and rebuilding the LRU order and the path index. Disk errors are
// logged and never propagated - the cache is strictly best-effort.
func (c *Cache[V]) loadPersisted() {
	if err := os.MkdirAll(c.cfg.PersistDir, 0755); err != nil {
		log.Printf("Warning: cannot create cache directory %s: %v", c.cfg.PersistDir, err)
		return
	}

	dirEntries, err := os.ReadDir(c.cfg.PersistDir)
	if err != nil {
		log.Printf("Warning: cannot read cache directory %s: %v", c.cfg.PersistDir, err)
		return
	}

	loaded := make([]*entry[V], 0, len(dirEntries))
	for _, de := range dirEntries {
		if de.IsDir() || filepath.Ext(de.Name()) != ".json" {
			continue
		}
		path := filepath.Join(c.cfg.PersistDir, de.Name())

		data, err := os.ReadFile(path)
		if err != nil {
			log.Printf("Warning: cannot read cache entry %s: %v", path, err)
			continue
		}

		var pe persistedEntry
		if err := json.Unmarshal(data, &pe); err != nil {
			// Corrupt entry: discard, non-fatal
			c.corruptions.Add(1)
			os.Remove(path)
			continue
		}

		if time.Since(pe.InsertedAt) > c.cfg.TTL {
			os.Remove(path)
			c.expirations.Add(1)
			continue
		}

		e := &entry[V]{
			key:        pe.Key,
			insertedAt: pe.InsertedAt,
			fileInfo:   pe.FileInfo,
		}
		if len(pe.Compressed) > 0 {
			e.compressed = pe.Compressed
		} else {
			var value V
			if err := json.Unmarshal(pe.Raw, &value); err != nil {
				c.corruptions.Add(1)
				os.Remove(path)
				continue
			}
			e.value = value
			e.valueSet = true
		}
		loaded = append(loaded, e)
	}

	// Rebuild LRU order with the most recently inserted entries first
	sort.Slice(loaded, func(i, j int) bool {
		return loaded[i].insertedAt.After(loaded[j].insertedAt)
	})
	for _, e := range loaded {
		if len(c.entries) >= c.cfg.MaxEntries {
			break
		}
		e.elem = c.order.PushBack(e)
		c.entries[e.key] = e
		for _, fi := range e.fileInfo {
			keys, ok := c.pathIndex[fi.Path]
			if !ok {
				keys = make(map[string]struct{})
				c.pathIndex[fi.Path] = keys
			}
			keys[e.key] = struct{}{}
		}
	}
	debug.LogCache("reloaded %d persisted entries\n", len(c.entries))
}

// persistEntry writes one entry to disk. Called with c.mu held.
func (c *Cache[V]) persistEntry(e *entry[V]) {
	pe := persistedEntry{
		Key:        e.key,
		InsertedAt: e.insertedAt,
		FileInfo:   e.fileInfo,
	}
	if e.valueSet {
		raw, err := json.Marshal(e.value)
		if err != nil {
			log.Printf("Warning: cannot serialize cache entry %s: %v", e.key, err)
			return
		}
		pe.Raw = raw
	} else {
		pe.Compressed = e.compressed
	}

	data, err := json.Marshal(&pe)
	if err != nil {
		log.Printf("Warning: cannot serialize cache entry %s: %v", e.key, err)
		return
	}

	path := filepath.Join(c.cfg.PersistDir, entryFileName(e.key))
	if err := os.WriteFile(path, data, 0644); err != nil {
		log.Printf("Warning: cannot persist cache entry %s: %v", e.key, err)
	}
}

// unpersistEntry removes an entry's file. Called with c.mu held.
func (c *Cache[V]) unpersistEntry(key string) {
	path := filepath.Join(c.cfg.PersistDir, entryFileName(key))
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		log.Printf("Warning: cannot remove cache entry file %s: %v", path, err)
	}
}
