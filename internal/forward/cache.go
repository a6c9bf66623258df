package forward

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/five82/watchwire/internal/kv"
)

// CacheKey is the key the last forwarded content is persisted under.
const CacheKey = "last_forwarded"

const storeTimeout = 2 * time.Second

// Store persists the cached value. *kv.Store implements it.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

var _ Store = (*kv.Store)(nil)

// Cache holds the single last-forwarded content value for the whole
// process. It is keyed on content only; the path an event came from plays
// no part. The zero value is an empty, in-memory cache.
type Cache struct {
	mu   sync.Mutex
	last string
	// gen advances on every update and on Reset. A queued write is only
	// applied while its generation is still current.
	gen uint64

	// storeMu orders store writes against Reset's delete.
	storeMu sync.Mutex
	store   Store
	log     *logrus.Entry
}

// NewCache returns an empty cache. When store is non-nil updates are
// written to it, by Set directly or by the adapter's worker for
// ForwardIfNew. Store failures are logged and otherwise ignored.
func NewCache(store Store, log *logrus.Entry) *Cache {
	return &Cache{store: store, log: log}
}

// Restore loads a previously persisted value, if any. It reports whether a
// value was found.
func (c *Cache) Restore(ctx context.Context) bool {
	if c.store == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()

	value, err := c.store.Get(ctx, CacheKey)
	if err != nil {
		if !errors.Is(err, kv.ErrNotFound) {
			c.warn(err, "restore forward cache")
		}
		return false
	}

	c.mu.Lock()
	c.last = value
	c.mu.Unlock()
	return true
}

// Last returns the cached value; empty when nothing has been forwarded.
func (c *Cache) Last() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}

// Set replaces the cached value and writes it through to the store.
func (c *Cache) Set(value string) {
	c.mu.Lock()
	c.last = value
	c.gen++
	gen := c.gen
	c.mu.Unlock()
	c.persist(value, gen)
}

// swapIfDifferent stores value in memory and returns its generation, or
// false when it equals the cached value. The caller persists it later.
func (c *Cache) swapIfDifferent(value string) (uint64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.last == value {
		return 0, false
	}
	c.last = value
	c.gen++
	return c.gen, true
}

// persist writes value unless a later update or a Reset has superseded
// generation gen.
func (c *Cache) persist(value string, gen uint64) {
	if c.store == nil {
		return
	}
	c.storeMu.Lock()
	defer c.storeMu.Unlock()

	c.mu.Lock()
	current := c.gen == gen
	c.mu.Unlock()
	if !current {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()
	if err := c.store.Set(ctx, CacheKey, value); err != nil {
		c.warn(err, "persist forward cache")
	}
}

// Reset empties the cache and removes the persisted value. It waits for a
// store write already in progress, and writes queued before it are dropped.
func (c *Cache) Reset() {
	c.storeMu.Lock()
	defer c.storeMu.Unlock()

	c.mu.Lock()
	c.last = ""
	c.gen++
	c.mu.Unlock()

	if c.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()
	if err := c.store.Delete(ctx, CacheKey); err != nil {
		c.warn(err, "clear forward cache")
	}
}

func (c *Cache) warn(err error, msg string) {
	if c.log != nil {
		c.log.WithError(err).Warn(msg)
	}
}
