// Package cache holds the per-user dashboard read cache.
package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rpgo/loan-simulator/internal/config"
)

// DashboardCache stores one encoded dashboard view per user. Invalidate must
// be called in the same call stack as any loan, settings or ledger mutation.
//
// Every Invalidate bumps the user's generation. A reader that builds a view
// stores it with SetIfGeneration using the generation it saw before
// building, so a view computed from data an invalidation has since replaced
// is never written back.
type DashboardCache interface {
	Get(ctx context.Context, userID string) ([]byte, bool, error)
	Set(ctx context.Context, userID string, value []byte) error
	Generation(ctx context.Context, userID string) (uint64, error)
	SetIfGeneration(ctx context.Context, userID string, value []byte, gen uint64) (bool, error)
	Invalidate(ctx context.Context, userID string) error
}

// New builds the cache selected by the configuration.
func New(cfg config.CacheConfig) (DashboardCache, error) {
	switch cfg.Backend {
	case config.CacheMemory, "":
		return NewMemoryCache(cfg.TTL), nil
	case config.CacheRedis:
		return NewRedisCache(&redis.Options{Addr: cfg.RedisAddr, DB: cfg.RedisDB}, cfg.TTL), nil
	case config.CacheNone:
		return NopCache{}, nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Backend)
	}
}

type memoryEntry struct {
	value   []byte
	expires time.Time
}

// MemoryCache is an in-process TTL cache guarded by a mutex.
type MemoryCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]memoryEntry
	gens    map[string]uint64
	now     func() time.Time
}

// NewMemoryCache creates a memory cache. A non-positive ttl disables expiry.
func NewMemoryCache(ttl time.Duration) *MemoryCache {
	return &MemoryCache{
		ttl:     ttl,
		entries: make(map[string]memoryEntry),
		gens:    make(map[string]uint64),
		now:     time.Now,
	}
}

// SetClock replaces the clock used for expiry.
func (c *MemoryCache) SetClock(now func() time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

func (c *MemoryCache) Get(_ context.Context, userID string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[userID]
	if !ok {
		return nil, false, nil
	}
	if !e.expires.IsZero() && !c.now().Before(e.expires) {
		delete(c.entries, userID)
		return nil, false, nil
	}
	return append([]byte(nil), e.value...), true, nil
}

func (c *MemoryCache) Set(_ context.Context, userID string, value []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.store(userID, value)
	return nil
}

func (c *MemoryCache) Generation(_ context.Context, userID string) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gens[userID], nil
}

func (c *MemoryCache) SetIfGeneration(_ context.Context, userID string, value []byte, gen uint64) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gens[userID] != gen {
		return false, nil
	}
	c.store(userID, value)
	return true, nil
}

func (c *MemoryCache) store(userID string, value []byte) {
	e := memoryEntry{value: append([]byte(nil), value...)}
	if c.ttl > 0 {
		e.expires = c.now().Add(c.ttl)
	}
	c.entries[userID] = e
}

func (c *MemoryCache) Invalidate(_ context.Context, userID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, userID)
	c.gens[userID]++
	return nil
}

// Len returns the number of cached users, expired or not.
func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// NopCache never stores anything.
type NopCache struct{}

func (NopCache) Get(context.Context, string) ([]byte, bool, error)  { return nil, false, nil }
func (NopCache) Set(context.Context, string, []byte) error          { return nil }
func (NopCache) Generation(context.Context, string) (uint64, error) { return 0, nil }
func (NopCache) Invalidate(context.Context, string) error           { return nil }

func (NopCache) SetIfGeneration(context.Context, string, []byte, uint64) (bool, error) {
	return false, nil
}
