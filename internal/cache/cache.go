package cache

import (
	"sync"
)

// DefaultFrameCapacity bounds the decoded frames kept by a FrameCache.
const DefaultFrameCapacity = 256

// FrameCache keeps decoded recording frames so that repeated reads of the
// same frame within a tick do not go back to the database.
// Oldest entries are evicted first once capacity is reached.
type FrameCache struct {
	m        sync.Mutex
	capacity int
	frames   map[int]map[string]any
	order    []int
	hits     int
	misses   int
}

func NewFrameCache(capacity int) *FrameCache {
	if capacity <= 0 {
		capacity = DefaultFrameCapacity
	}
	return &FrameCache{
		capacity: capacity,
		frames:   make(map[int]map[string]any, capacity),
		order:    make([]int, 0, capacity),
	}
}

func (c *FrameCache) Reset() {
	c.m.Lock()
	defer c.m.Unlock()
	c.frames = make(map[int]map[string]any, c.capacity)
	c.order = c.order[:0]
	c.hits, c.misses = 0, 0
}

func (c *FrameCache) Get(frame int) (map[string]any, bool) {
	c.m.Lock()
	defer c.m.Unlock()
	if values, ok := c.frames[frame]; ok {
		c.hits++
		return values, true
	}
	c.misses++
	return nil, false
}

func (c *FrameCache) Put(frame int, values map[string]any) {
	c.m.Lock()
	defer c.m.Unlock()
	if _, ok := c.frames[frame]; ok {
		c.frames[frame] = values
		return
	}
	if len(c.order) >= c.capacity {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.frames, oldest)
	}
	c.frames[frame] = values
	c.order = append(c.order, frame)
}

func (c *FrameCache) Len() int {
	c.m.Lock()
	defer c.m.Unlock()
	return len(c.frames)
}

// Stats returns the lookups served from the cache and those that missed
// since the last Reset.
func (c *FrameCache) Stats() (hits, misses int) {
	c.m.Lock()
	defer c.m.Unlock()
	return c.hits, c.misses
}
