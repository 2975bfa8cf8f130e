package ratelimit

import "sync"

// Cache is the process-local memo of (action, source) keys currently believed
// to be over their limit.
//
// It holds entries only for blocked keys; absence means "not known to be
// blocked". An entry lives until a fresh check produces a negative decision,
// at which point it is removed. The cache is never persisted and never shared
// across processes, so two processes may transiently disagree; correctness
// under eventual consistency comes from the action log, not from here.
//
// Each limiter owns an injected Cache instance rather than a package-level
// map, so tests can construct isolated caches and assert on their state.
type Cache struct {
	mu      sync.RWMutex
	blocked map[string]struct{}
}

// NewCache creates an empty decision cache.
func NewCache() *Cache {
	return &Cache{blocked: make(map[string]struct{})}
}

// Blocked reports whether key is currently believed to be over limit.
func (c *Cache) Blocked(key string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.blocked[key]
	return ok
}

// Block marks key as over limit.
func (c *Cache) Block(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.blocked[key] = struct{}{}
}

// Unblock clears any blocked entry for key.
func (c *Cache) Unblock(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.blocked, key)
}

// Len reports the number of blocked entries. Test helper.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.blocked)
}
