package cache

import (
	"strings"
	"sync"
)

// GroupCache maps camera group names to their IDs for the current session.
// Lookups ignore case and surrounding whitespace.
type GroupCache struct {
	mu     sync.RWMutex
	groups map[string]int
}

// NewGroupCache creates a new GroupCache
func NewGroupCache() *GroupCache {
	return &GroupCache{
		groups: make(map[string]int),
	}
}

func groupKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Get retrieves a group ID by name
func (c *GroupCache) Get(name string) (int, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	id, ok := c.groups[groupKey(name)]
	return id, ok
}

// Set stores a group ID by name
func (c *GroupCache) Set(name string, id int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.groups[groupKey(name)] = id
}

// Len is the number of known groups
func (c *GroupCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.groups)
}

// Reset clears all groups from the cache
func (c *GroupCache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.groups = make(map[string]int)
}
