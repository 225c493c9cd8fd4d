package cache

import (
	"context"
	"sync"
	"time"

	"github.com/iMDK-cs/SmoothFLow-Store-sub001/models"
)

type entry struct {
	svc       *models.Service
	expiresAt time.Time
}

// MemoryCache keeps service metadata in-process with a per-entry TTL and a
// bounded entry count. When the bound is exceeded the oldest-inserted entry is
// evicted.
type MemoryCache struct {
	mu         sync.RWMutex
	store      map[int]entry
	insertions []int // service ids in insertion order
	ttl        time.Duration
	maxEntries int
	now        func() time.Time
}

func NewMemoryCache(ttl time.Duration, maxEntries int) *MemoryCache {
	return &MemoryCache{
		store:      make(map[int]entry),
		ttl:        ttl,
		maxEntries: maxEntries,
		now:        time.Now,
	}
}

func (c *MemoryCache) Get(_ context.Context, serviceID int) (*models.Service, bool) {
	c.mu.RLock()
	e, ok := c.store[serviceID]
	c.mu.RUnlock()
	if !ok || c.now().After(e.expiresAt) {
		return nil, false
	}
	return e.svc, true
}

func (c *MemoryCache) Set(_ context.Context, serviceID int, svc *models.Service) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.store[serviceID]; !exists {
		c.insertions = append(c.insertions, serviceID)
	}
	c.store[serviceID] = entry{svc: svc, expiresAt: c.now().Add(c.ttl)}

	for c.maxEntries > 0 && len(c.store) > c.maxEntries {
		oldest := c.insertions[0]
		c.insertions = c.insertions[1:]
		delete(c.store, oldest)
	}
}

func (c *MemoryCache) Delete(_ context.Context, serviceID int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.store, serviceID)
	for i, id := range c.insertions {
		if id == serviceID {
			c.insertions = append(c.insertions[:i], c.insertions[i+1:]...)
			break
		}
	}
}
