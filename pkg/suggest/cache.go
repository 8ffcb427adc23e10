package suggest

import (
	"sort"
	"sync"

	"github.com/charmbracelet/log"
)

// Cache is a bounded prediction cache keyed by request signature. When full, the
// least recently accessed tenth of the entries is evicted. Stored and returned
// slices are copies, so callers may modify results freely.
type Cache struct {
	entries     map[string]*cacheEntry
	accessCount int64
	maxEntries  int
	hits        int64
	misses      int64
	evictions   int64
	mu          sync.Mutex
}

type cacheEntry struct {
	suggestions []Suggestion
	accessTime  int64
}

// NewCache returns a cache holding at most maxEntries results.
func NewCache(maxEntries int) *Cache {
	if maxEntries < 1 {
		maxEntries = 1
	}
	return &Cache{
		entries:    make(map[string]*cacheEntry, min(maxEntries, 1024)),
		maxEntries: maxEntries,
	}
}

// Get returns a copy of the cached result for key.
func (c *Cache) Get(key string) ([]Suggestion, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		c.misses++
		return nil, false
	}
	c.hits++
	entry.accessTime = c.getNextAccessTime()
	return cloneSuggestions(entry.suggestions), true
}

// Put stores a copy of suggestions under key.
func (c *Cache) Put(key string, suggestions []Suggestion) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if entry, ok := c.entries[key]; ok {
		entry.suggestions = cloneSuggestions(suggestions)
		entry.accessTime = c.getNextAccessTime()
		return
	}
	if len(c.entries) >= c.maxEntries {
		c.evictLRU()
	}
	c.entries[key] = &cacheEntry{
		suggestions: cloneSuggestions(suggestions),
		accessTime:  c.getNextAccessTime(),
	}
}

// Len returns the number of cached results.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Clear drops every entry and resets the counters.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.entries)
	c.hits, c.misses, c.evictions = 0, 0, 0
}

// Stats returns cache counters.
func (c *Cache) Stats() map[string]int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return map[string]int{
		"cacheEntries":    len(c.entries),
		"maxCacheEntries": c.maxEntries,
		"cacheHits":       int(c.hits),
		"cacheMisses":     int(c.misses),
		"cacheEvictions":  int(c.evictions),
	}
}

func (c *Cache) getNextAccessTime() int64 {
	c.accessCount++
	return c.accessCount
}

// evictLRU drops the oldest tenth of the entries, at least one.
func (c *Cache) evictLRU() {
	n := max(len(c.entries)/10, 1)

	type aged struct {
		key        string
		accessTime int64
	}
	all := make([]aged, 0, len(c.entries))
	for key, entry := range c.entries {
		all = append(all, aged{key, entry.accessTime})
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].accessTime < all[j].accessTime
	})

	for _, a := range all[:n] {
		delete(c.entries, a.key)
	}
	c.evictions += int64(n)
	log.Debugf("Evicted %d entries from prediction cache", n)
}

func cloneSuggestions(s []Suggestion) []Suggestion {
	out := make([]Suggestion, len(s))
	copy(out, s)
	return out
}
