// Package cache implements the process-wide TTL cache (C2): per-key
// expiry, LRU eviction once a byte budget is exceeded, thread-safe,
// with an optional Redis L2 mirror for multi-instance deployments.
// Grounded on the teacher's internal/data/cache TTLCache, generalised
// from a four-fixed-tier design to an arbitrary per-key TTL/size model.
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

type entry struct {
	value    interface{}
	expires  time.Time
	accessed time.Time
	size     int
	hits     int64
}

// Stats is a snapshot of cache performance counters.
type Stats struct {
	Hits         int64
	Misses       int64
	Evictions    int64
	CleanupRuns  int64
	Entries      int64
	BytesInUse   int64
	ByteBudget   int64
}

// Cache is a thread-safe, byte-budgeted, per-key-TTL cache. No
// operation ever returns an error: a miss is reported via the bool
// return, never a panic or error value, matching the facade's
// "cache never fails a read" invariant.
type Cache struct {
	mu         sync.RWMutex
	entries    map[string]*entry
	byteBudget int64
	bytesInUse int64
	stats      Stats

	stopCh chan struct{}
	closed bool

	redis *redis.Client
}

// Option configures a Cache at construction time.
type Option func(*Cache)

// WithRedisMirror attaches a best-effort Redis L2. Its unavailability
// never fails a Get or Set; redis errors are swallowed.
func WithRedisMirror(client *redis.Client) Option {
	return func(c *Cache) { c.redis = client }
}

// New creates a Cache with the given total byte budget.
func New(byteBudget int64, opts ...Option) *Cache {
	c := &Cache{
		entries:    make(map[string]*entry),
		byteBudget: byteBudget,
		stopCh:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	go c.cleanupLoop()
	return c
}

// Get returns the cached value for key if present and unexpired. A
// Redis mirror is not consulted here: callers that want the L2 tier
// should call GetWithMirror, keeping the pure in-process path
// allocation-free and lock-cheap for the hot path.
func (c *Cache) Get(key string) (interface{}, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	expired := ok && time.Now().After(e.expires)
	c.mu.RUnlock()

	if !ok || expired {
		c.mu.Lock()
		c.stats.Misses++
		c.mu.Unlock()
		return nil, false
	}

	c.mu.Lock()
	e.accessed = time.Now()
	e.hits++
	c.stats.Hits++
	c.mu.Unlock()
	return e.value, true
}

// GetWithMirror consults the in-process cache first, then the Redis
// mirror if configured and the decode function is supplied. decode
// turns the raw bytes Redis returned back into a value; on any mirror
// failure or decode error, GetWithMirror behaves as a miss.
func (c *Cache) GetWithMirror(ctx context.Context, key string, decode func([]byte) (interface{}, error)) (interface{}, bool) {
	if v, ok := c.Get(key); ok {
		return v, true
	}
	if c.redis == nil || decode == nil {
		return nil, false
	}
	raw, err := c.redis.Get(ctx, key).Bytes()
	if err != nil {
		return nil, false
	}
	v, err := decode(raw)
	if err != nil {
		return nil, false
	}
	return v, true
}

// Set stores value under key with the given ttl. size is the caller's
// estimate of value's memory footprint in bytes, used for the byte
// budget; callers that don't care about precise accounting may pass a
// fixed estimate.
func (c *Cache) Set(key string, value interface{}, ttl time.Duration, size int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if old, ok := c.entries[key]; ok {
		c.bytesInUse -= int64(old.size)
	}

	for c.bytesInUse+int64(size) > c.byteBudget && len(c.entries) > 0 {
		c.evictLRULocked()
	}

	c.entries[key] = &entry{
		value:    value,
		expires:  time.Now().Add(ttl),
		accessed: time.Now(),
		size:     size,
	}
	c.bytesInUse += int64(size)
}

// SetWithMirror stores the value locally and, if a Redis mirror is
// configured, best-effort mirrors the encoded bytes with the same ttl.
// A mirror write failure is never surfaced to the caller.
func (c *Cache) SetWithMirror(ctx context.Context, key string, value interface{}, ttl time.Duration, size int, encode func() ([]byte, error)) {
	c.Set(key, value, ttl, size)
	if c.redis == nil || encode == nil {
		return
	}
	raw, err := encode()
	if err != nil {
		return
	}
	c.redis.Set(ctx, key, raw, ttl)
}

// evictLRULocked removes the least-recently-accessed entry. Caller
// must hold the write lock.
func (c *Cache) evictLRULocked() {
	var oldestKey string
	var oldestTime time.Time
	first := true
	for k, e := range c.entries {
		if first || e.accessed.Before(oldestTime) {
			oldestKey = k
			oldestTime = e.accessed
			first = false
		}
	}
	if oldestKey == "" {
		return
	}
	c.bytesInUse -= int64(c.entries[oldestKey].size)
	delete(c.entries, oldestKey)
	c.stats.Evictions++
}

// Stats returns a snapshot of cache counters.
func (c *Cache) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s := c.stats
	s.Entries = int64(len(c.entries))
	s.BytesInUse = c.bytesInUse
	s.ByteBudget = c.byteBudget
	return s
}

// Clear removes all entries and resets counters.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*entry)
	c.bytesInUse = 0
	c.stats = Stats{}
}

// Stop halts the background cleanup goroutine. Safe to call once.
func (c *Cache) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.stopCh)
}

func (c *Cache) cleanupLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
			c.removeExpired()
		}
	}
}

func (c *Cache) removeExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := time.Now()
	for k, e := range c.entries {
		if now.After(e.expires) {
			c.bytesInUse -= int64(e.size)
			delete(c.entries, k)
		}
	}
	c.stats.CleanupRuns++
}
