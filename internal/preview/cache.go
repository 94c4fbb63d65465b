package preview

import (
	"math"
	"path/filepath"
	"strings"
	"sync"

	"github.com/hashicorp/golang-lru/v2/simplelru"
)

// DefaultCacheBytes is used when no budget is configured.
const DefaultCacheBytes int64 = 64 << 20

// CacheStats is a point-in-time view of cache counters.
type CacheStats struct {
	Entries int
	Bytes   int64
	Budget  int64
	Hits    uint64
	Misses  uint64
	Evicted uint64
}

// Cache maps preview keys to artifacts under a total byte budget, evicting
// the least recently used key first. It is safe for concurrent use.
type Cache struct {
	mu      sync.Mutex
	budget  int64
	used    int64
	entries *simplelru.LRU[Key, *Artifact]
	byPath  map[string]map[Key]struct{}

	hits    uint64
	misses  uint64
	evicted uint64
}

// NewCache creates a cache holding at most budget estimated bytes.
func NewCache(budget int64) *Cache {
	if budget <= 0 {
		budget = DefaultCacheBytes
	}
	c := &Cache{
		budget: budget,
		byPath: make(map[string]map[Key]struct{}),
	}
	// Capacity is governed by bytes, not entry count.
	entries, _ := simplelru.NewLRU[Key, *Artifact](math.MaxInt32, c.onEvict)
	c.entries = entries
	return c
}

// onEvict runs with c.mu held.
func (c *Cache) onEvict(key Key, artifact *Artifact) {
	c.used -= artifact.Size
	if keys, ok := c.byPath[key.Path]; ok {
		delete(keys, key)
		if len(keys) == 0 {
			delete(c.byPath, key.Path)
		}
	}
}

// Get returns the artifact for key and marks it most recently used.
func (c *Cache) Get(key Key) (*Artifact, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	artifact, ok := c.entries.Get(key)
	if ok {
		c.hits++
	} else {
		c.misses++
	}
	return artifact, ok
}

// Contains reports whether key is cached without touching recency.
func (c *Cache) Contains(key Key) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries.Contains(key)
}

// Put stores artifact under key, evicting least recently used entries until
// it fits. An artifact larger than the whole budget is stored alone.
func (c *Cache) Put(key Key, artifact *Artifact) {
	if artifact == nil {
		return
	}
	if artifact.Size <= 0 {
		artifact.Size = artifact.estimateSize()
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries.Remove(key)
	for c.used+artifact.Size > c.budget && c.entries.Len() > 0 {
		c.entries.RemoveOldest()
		c.evicted++
	}
	c.entries.Add(key, artifact)
	c.used += artifact.Size
	keys := c.byPath[key.Path]
	if keys == nil {
		keys = make(map[Key]struct{}, 1)
		c.byPath[key.Path] = keys
	}
	keys[key] = struct{}{}
}

// Remove drops a single key.
func (c *Cache) Remove(key Key) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries.Remove(key)
}

// RemoveByPath drops every artifact for path and, when path is a directory,
// every artifact below it. It returns the number of artifacts removed.
func (c *Cache) RemoveByPath(path string) int {
	path = canonicalPath(path)
	prefix := path + string(filepath.Separator)
	if strings.HasSuffix(path, string(filepath.Separator)) {
		prefix = path
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	var doomed []Key
	for p, keys := range c.byPath {
		if p != path && !strings.HasPrefix(p, prefix) {
			continue
		}
		for k := range keys {
			doomed = append(doomed, k)
		}
	}
	for _, k := range doomed {
		c.entries.Remove(k)
	}
	return len(doomed)
}

// PruneDirs drops artifacts whose parent directory keep rejects.
func (c *Cache) PruneDirs(keep func(dir string) bool) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	var doomed []Key
	for p, keys := range c.byPath {
		if keep(filepath.Dir(p)) {
			continue
		}
		for k := range keys {
			doomed = append(doomed, k)
		}
	}
	for _, k := range doomed {
		c.entries.Remove(k)
	}
	return len(doomed)
}

// Stats returns current counters.
func (c *Cache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return CacheStats{
		Entries: c.entries.Len(),
		Bytes:   c.used,
		Budget:  c.budget,
		Hits:    c.hits,
		Misses:  c.misses,
		Evicted: c.evicted,
	}
}
