package service

import (
	"container/heap"
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/Sree5835/dynamic-pricing/internal/storage"
)

// PartnerCache keeps recently resolved partner ids. Partners are read-only
// during ingestion, so an entry never goes stale; the least recently used one
// is evicted when the cache is full. Unknown partners are not cached.
type PartnerCache struct {
	mu       sync.Mutex
	entries  map[string]*cacheEntry
	lru      lruHeap
	capacity int
	resolver PartnerResolver
	now      func() time.Time
}

func NewPartnerCache(resolver PartnerResolver, capacity int) *PartnerCache {
	if capacity <= 0 {
		capacity = 1
	}
	c := &PartnerCache{
		entries:  make(map[string]*cacheEntry, capacity),
		lru:      make(lruHeap, 0, capacity),
		capacity: capacity,
		resolver: resolver,
		now:      time.Now,
	}
	heap.Init(&c.lru)
	return c
}

// ResolvePartner returns the cached id or asks the resolver through q on a miss.
func (c *PartnerCache) ResolvePartner(ctx context.Context, q storage.Querier, name string) (int64, error) {
	c.mu.Lock()
	if e, ok := c.entries[name]; ok {
		e.lastUsed = c.now()
		heap.Fix(&c.lru, e.index)
		c.mu.Unlock()
		return e.id, nil
	}
	c.mu.Unlock()

	// в БД ходим без блокировки; двойная загрузка одного партнёра безвредна
	id, err := c.resolver.ResolvePartner(ctx, q, name)
	if err != nil {
		return 0, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[name]; ok {
		return e.id, nil
	}
	for c.lru.Len() >= c.capacity {
		old := heap.Pop(&c.lru).(*cacheEntry)
		delete(c.entries, old.name)
		slog.Debug("partner evicted from cache", "partner", old.name)
	}
	e := &cacheEntry{name: name, id: id, lastUsed: c.now()}
	heap.Push(&c.lru, e)
	c.entries[name] = e
	return id, nil
}

func (c *PartnerCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
