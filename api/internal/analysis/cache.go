package analysis

import (
	"strconv"
	"strings"
	"sync"
)

const fingerprintTail = 30

// Fingerprint derives the cache key from the two encoded images: length plus
// the last 30 characters of each, male first. It is a heuristic, not a hash;
// two payloads with equal length and equal tails collide.
func Fingerprint(male, female string) string {
	var b strings.Builder
	b.Grow(2*fingerprintTail + 24)
	b.WriteString(strconv.Itoa(len(male)))
	b.WriteByte(':')
	b.WriteString(tail(male))
	b.WriteByte('|')
	b.WriteString(strconv.Itoa(len(female)))
	b.WriteByte(':')
	b.WriteString(tail(female))
	return b.String()
}

func tail(s string) string {
	if len(s) <= fingerprintTail {
		return s
	}
	return s[len(s)-fingerprintTail:]
}

// Cache maps a fingerprint to a validated analysis.
type Cache interface {
	Lookup(key string) (RelationshipAnalysis, bool)
	Store(key string, v RelationshipAnalysis)
	Len() int
}

// MemoryCache is an unbounded process-lifetime cache. Entries are never
// evicted; a later Store under the same key replaces the value.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]RelationshipAnalysis
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]RelationshipAnalysis)}
}

func (c *MemoryCache) Lookup(key string) (RelationshipAnalysis, bool) {
	c.mu.RLock()
	v, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return RelationshipAnalysis{}, false
	}
	return v.Clone(), true
}

func (c *MemoryCache) Store(key string, v RelationshipAnalysis) {
	v = v.Clone()
	c.mu.Lock()
	c.entries[key] = v
	c.mu.Unlock()
}

func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
