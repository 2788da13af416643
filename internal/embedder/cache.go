package embedder

import (
	"crypto/sha256"
	"encoding/hex"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Cache is an LRU of vectors keyed by model and text. Fragments repeat across
// rebuilds of the same repository, so a long-running process (serve, watch)
// only pays for text that changed.
type Cache struct {
	vectors *lru.Cache[string, []float32]
	hits    atomic.Int64
	misses  atomic.Int64
}

// CacheStats is a snapshot of cache effectiveness
type CacheStats struct {
	Size   int
	Hits   int64
	Misses int64
}

// NewCache creates a cache holding up to maxLen vectors; maxLen <= 0 selects DefaultCacheSize
func NewCache(maxLen int) *Cache {
	if maxLen <= 0 {
		maxLen = DefaultCacheSize
	}
	vectors, err := lru.New[string, []float32](maxLen)
	if err != nil {
		vectors, _ = lru.New[string, []float32](DefaultCacheSize)
	}
	return &Cache{vectors: vectors}
}

// Get returns a copy of the cached vector for key
func (c *Cache) Get(key string) ([]float32, bool) {
	v, ok := c.vectors.Get(key)
	if !ok {
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)
	return append([]float32(nil), v...), true
}

// Set stores a copy of vec under key
func (c *Cache) Set(key string, vec []float32) {
	c.vectors.Add(key, append([]float32(nil), vec...))
}

// Stats reports size and hit counts since creation
func (c *Cache) Stats() CacheStats {
	return CacheStats{Size: c.vectors.Len(), Hits: c.hits.Load(), Misses: c.misses.Load()}
}

// Clear empties the cache
func (c *Cache) Clear() {
	c.vectors.Purge()
}

// ComputeHash returns the cache key for text embedded with model. The same
// text embedded by two models gets two keys.
func ComputeHash(model, text string) string {
	h := sha256.New()
	h.Write([]byte(model))
	h.Write([]byte{0})
	h.Write([]byte(text))
	return hex.EncodeToString(h.Sum(nil))
}
