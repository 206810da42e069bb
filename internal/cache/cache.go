// Package cache implements the fingerprint-keyed response cache: LRU
// capacity eviction, lazy plus periodic TTL expiry, and single-flight
// collapsing of concurrent computations for the same fingerprint.
package cache

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"github.com/aman-cerp/retrieval-core/internal/model"
)

// Scope identifies which class of cached data an invalidation request
// targets. This cache only ever populates Search entries; the other
// scopes are accepted (per the contract's clear(scope, pattern) surface)
// so a caller can invalidate by a name not yet backed by any entries
// without error.
type Scope string

const (
	ScopeAll        Scope = "all"
	ScopeSearch     Scope = "search"
	ScopeEmbeddings Scope = "embeddings"
	ScopeResults    Scope = "results"
)

const (
	// DefaultTTL is how long an entry stays fresh after insertion.
	DefaultTTL = 60 * time.Second
	// DefaultCapacity is the LRU entry ceiling.
	DefaultCapacity = 500
	// defaultSweepInterval is how often the background sweeper scans for
	// TTL-expired entries, independent of lazy expiry on Get.
	defaultSweepInterval = 30 * time.Second
)

// Entry is one cached pipeline response plus the attributes Clear's
// pattern matching searches against.
type Entry struct {
	Fingerprint string
	Scope       Scope
	Response    model.Result
	Language    string
	Repository  string
	QueryText   string
	InsertedAt  time.Time
	ExpiresAt   time.Time
}

func (e *Entry) expired(now time.Time) bool {
	return now.After(e.ExpiresAt)
}

// Option configures a Cache at construction time.
type Option func(*Cache)

// WithTTL overrides the default 60s entry lifetime.
func WithTTL(d time.Duration) Option {
	return func(c *Cache) {
		if d > 0 {
			c.ttl = d
		}
	}
}

// WithCapacity overrides the default 500-entry LRU capacity.
func WithCapacity(n int) Option {
	return func(c *Cache) {
		if n > 0 {
			c.capacity = n
		}
	}
}

// WithLogger overrides the default slog logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Cache) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithSweepInterval overrides the default 30s background sweep cadence.
func WithSweepInterval(d time.Duration) Option {
	return func(c *Cache) {
		if d > 0 {
			c.sweepInterval = d
		}
	}
}

// Cache is the fingerprint-keyed response cache.
type Cache struct {
	mu       sync.Mutex
	items    *lru.Cache[string, *Entry]
	capacity int
	ttl      time.Duration
	logger   *slog.Logger

	group singleflight.Group

	sweepInterval time.Duration
	sweepTicker   *time.Ticker
	stopCh        chan struct{}
	closed        bool

	hits   int64
	misses int64
}

// New constructs a Cache and starts its background TTL sweeper.
func New(opts ...Option) *Cache {
	c := &Cache{
		capacity:      DefaultCapacity,
		ttl:           DefaultTTL,
		logger:        slog.Default(),
		sweepInterval: defaultSweepInterval,
		stopCh:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}

	items, _ := lru.New[string, *Entry](c.capacity)
	c.items = items

	c.sweepTicker = time.NewTicker(c.sweepInterval)
	go c.sweepLoop()

	return c
}

// Get returns the cached entry for fingerprint, or (nil, false) if
// absent or past TTL. An expired entry is evicted as a side effect.
func (c *Cache) Get(fingerprint string) (*Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.items.Get(fingerprint)
	if !ok {
		atomic.AddInt64(&c.misses, 1)
		return nil, false
	}
	if entry.expired(time.Now()) {
		c.items.Remove(fingerprint)
		atomic.AddInt64(&c.misses, 1)
		return nil, false
	}
	atomic.AddInt64(&c.hits, 1)
	return entry, true
}

// peek looks up fingerprint without touching hit/miss stats, for the
// singleflight recheck inside GetOrCompute.
func (c *Cache) peek(fingerprint string) (*Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.items.Get(fingerprint)
	if !ok || entry.expired(time.Now()) {
		return nil, false
	}
	return entry, true
}

// Put inserts or overwrites the entry for fingerprint, stamping its
// insertion/expiry timestamps from the cache's configured TTL.
func (c *Cache) Put(entry *Entry) {
	if entry == nil {
		return
	}
	now := time.Now()
	entry.InsertedAt = now
	entry.ExpiresAt = now.Add(c.ttl)
	if entry.Scope == "" {
		entry.Scope = ScopeSearch
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.items.Add(entry.Fingerprint, entry)
}

// ComputeFunc produces the response to cache on a miss.
type ComputeFunc func(ctx context.Context) (model.Result, error)

// GetOrCompute returns the cached response for fingerprint if fresh;
// otherwise it runs compute, ensuring at most one concurrent computation
// per fingerprint across all callers (later callers for the same
// fingerprint block on and share the first caller's result). The
// returned bool reports whether the value came from cache.
func (c *Cache) GetOrCompute(ctx context.Context, fingerprint string, attrs Entry, compute ComputeFunc) (model.Result, bool, error) {
	if entry, ok := c.Get(fingerprint); ok {
		return entry.Response, true, nil
	}

	v, err, _ := c.group.Do(fingerprint, func() (any, error) {
		// Re-check: another flight may have populated the entry between
		// this goroutine's initial miss and acquiring the singleflight key.
		// Uses peek, not Get, so this internal recheck doesn't double-count
		// against the hit/miss stats already recorded by the check above.
		if entry, ok := c.peek(fingerprint); ok {
			return entry.Response, nil
		}
		result, computeErr := compute(ctx)
		if computeErr != nil {
			return result, computeErr
		}
		entry := attrs
		entry.Fingerprint = fingerprint
		entry.Response = result
		c.Put(&entry)
		return result, nil
	})
	if err != nil {
		if partial, ok := v.(model.Result); ok {
			return partial, false, err
		}
		var zero model.Result
		return zero, false, err
	}
	return v.(model.Result), false, nil
}

// Clear evicts entries matching scope and, if pattern is non-empty,
// whose language, repository, or query text contains pattern
// (case-insensitive). It returns the number of entries removed.
func (c *Cache) Clear(scope Scope, pattern string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	lowerPattern := strings.ToLower(pattern)
	removed := 0
	for _, key := range c.items.Keys() {
		entry, ok := c.items.Peek(key)
		if !ok {
			continue
		}
		if scope != ScopeAll && entry.Scope != scope {
			continue
		}
		if lowerPattern != "" && !attributesMatch(entry, lowerPattern) {
			continue
		}
		c.items.Remove(key)
		removed++
	}
	return removed
}

func attributesMatch(e *Entry, lowerPattern string) bool {
	return strings.Contains(strings.ToLower(e.Language), lowerPattern) ||
		strings.Contains(strings.ToLower(e.Repository), lowerPattern) ||
		strings.Contains(strings.ToLower(e.QueryText), lowerPattern)
}

// Stats returns cumulative hit/miss counts since construction.
func (c *Cache) Stats() (hits, misses int64) {
	return atomic.LoadInt64(&c.hits), atomic.LoadInt64(&c.misses)
}

// Len reports the current number of cached entries, expired or not.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.items.Len()
}

func (c *Cache) sweepLoop() {
	for {
		select {
		case <-c.sweepTicker.C:
			c.sweep()
		case <-c.stopCh:
			return
		}
	}
}

func (c *Cache) sweep() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	for _, key := range c.items.Keys() {
		entry, ok := c.items.Peek(key)
		if !ok {
			continue
		}
		if entry.expired(now) {
			c.items.Remove(key)
		}
	}
}

// Close stops the background sweeper. Safe to call more than once.
func (c *Cache) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	c.sweepTicker.Stop()
	close(c.stopCh)
	return nil
}
