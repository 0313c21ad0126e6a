package cache

import (
	"context"
	"sync"
	"time"

	"tarpaulin/backend/internal/aggregate"
)

// MemoryDashboardCache is the in-process cache used when Redis is not
// configured.
type MemoryDashboardCache struct {
	mu      sync.Mutex
	now     func() time.Time
	entries map[string]memoryEntry
}

type memoryEntry struct {
	value     aggregate.Dashboard
	expiresAt time.Time
}

func NewMemoryDashboardCache() *MemoryDashboardCache {
	return &MemoryDashboardCache{now: time.Now, entries: make(map[string]memoryEntry)}
}

func (c *MemoryDashboardCache) Get(_ context.Context, key string) (*aggregate.Dashboard, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return nil, false, nil
	}
	if !c.now().Before(entry.expiresAt) {
		delete(c.entries, key)
		return nil, false, nil
	}
	snapshot := entry.value
	return &snapshot, true, nil
}

func (c *MemoryDashboardCache) Set(_ context.Context, key string, value *aggregate.Dashboard, ttl time.Duration) error {
	if value == nil || ttl <= 0 {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = memoryEntry{value: *value, expiresAt: c.now().Add(ttl)}
	return nil
}

func (c *MemoryDashboardCache) Invalidate(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, key)
	return nil
}
