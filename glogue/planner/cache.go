package planner

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/wbrown/glogue/glogue/catalog"
	"github.com/wbrown/glogue/glogue/pattern"
)

// PlanCache caches plans to avoid re-planning isomorphic patterns.
// Plans only refer to vertex orders, so a plan computed for one pattern is
// valid for every pattern sharing its canonical code and listing the same
// candidate types, in the same order, at each canonical position.
type PlanCache struct {
	cache map[string]*cachedPlan
	mu    sync.RWMutex

	// Statistics
	hits   int64
	misses int64

	// Configuration
	maxSize int
	ttl     time.Duration
}

type cachedPlan struct {
	plan      *Plan
	timestamp time.Time
}

// NewPlanCache creates a new plan cache
func NewPlanCache(maxSize int, ttl time.Duration) *PlanCache {
	if maxSize <= 0 {
		maxSize = 1000 // Default to 1000 cached plans
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute // Default to 5 minute TTL
	}

	return &PlanCache{
		cache:   make(map[string]*cachedPlan),
		maxSize: maxSize,
		ttl:     ttl,
	}
}

// Get retrieves a cached plan if it exists and is not expired
func (c *PlanCache) Get(p *pattern.Pattern, cat *catalog.Catalog, opts Options) (*Plan, bool) {
	if c == nil {
		return nil, false
	}

	key := c.computeKey(p, cat, opts)

	c.mu.RLock()
	defer c.mu.RUnlock()

	cached, ok := c.cache[key]
	if !ok {
		atomic.AddInt64(&c.misses, 1)
		return nil, false
	}

	// Check if expired
	if time.Since(cached.timestamp) > c.ttl {
		// Lazy deletion happens on Set
		atomic.AddInt64(&c.misses, 1)
		return nil, false
	}

	atomic.AddInt64(&c.hits, 1)
	return cached.plan, true
}

// Set stores a plan in the cache
func (c *PlanCache) Set(p *pattern.Pattern, cat *catalog.Catalog, plan *Plan, opts Options) {
	if c == nil || plan == nil {
		return
	}

	key := c.computeKey(p, cat, opts)

	c.mu.Lock()
	defer c.mu.Unlock()

	// Evict expired entries if cache is full
	if len(c.cache) >= c.maxSize {
		c.evictExpired()

		// If still full, evict oldest
		if len(c.cache) >= c.maxSize {
			c.evictOldest()
		}
	}

	c.cache[key] = &cachedPlan{
		plan:      plan,
		timestamp: time.Now(),
	}
}

// Clear removes all cached plans
func (c *PlanCache) Clear() {
	if c == nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.cache = make(map[string]*cachedPlan)
	atomic.StoreInt64(&c.hits, 0)
	atomic.StoreInt64(&c.misses, 0)
}

// Stats returns cache statistics
func (c *PlanCache) Stats() (hits, misses int64, size int) {
	if c == nil {
		return 0, 0, 0
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	return atomic.LoadInt64(&c.hits), atomic.LoadInt64(&c.misses), len(c.cache)
}

// computeKey hashes the pattern's canonical code together with everything
// else the plan depends on: the catalog instance and the planner options.
func (c *PlanCache) computeKey(p *pattern.Pattern, cat *catalog.Catalog, opts Options) string {
	h := sha256.New()

	fmt.Fprintf(h, "PATTERN:%s;", p.Code())

	// The code sorts candidates, but resolution picks them in listed order
	fmt.Fprintf(h, "CANDIDATES:")
	for _, v := range p.Vertices() {
		fmt.Fprintf(h, "v%v", v.Types())
	}
	for _, e := range p.Edges() {
		fmt.Fprintf(h, "e%v", e.Types())
	}
	fmt.Fprintf(h, ";")

	// A refreshed catalog carries new statistics
	fmt.Fprintf(h, "CATALOG:%p;", cat)

	fmt.Fprintf(h, "OPTIONS:")
	fmt.Fprintf(h, "Cost:%s;", opts.CostModel)
	fmt.Fprintf(h, "MaxSize:%d;", opts.MaxPatternSize)
	// Closures of one function literal share a pointer
	fmt.Fprintf(h, "Representative:%p;", opts.Representative)

	return hex.EncodeToString(h.Sum(nil))
}

// evictExpired removes expired entries from the cache
func (c *PlanCache) evictExpired() {
	now := time.Now()
	for key, cached := range c.cache {
		if now.Sub(cached.timestamp) > c.ttl {
			delete(c.cache, key)
		}
	}
}

// evictOldest removes the oldest entry from the cache
func (c *PlanCache) evictOldest() {
	var oldestKey string
	var oldestTime time.Time

	for key, cached := range c.cache {
		if oldestKey == "" || cached.timestamp.Before(oldestTime) {
			oldestKey = key
			oldestTime = cached.timestamp
		}
	}

	if oldestKey != "" {
		delete(c.cache, oldestKey)
	}
}
