package client

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

type cacheEntry struct {
	value   interface{}
	expires time.Time
}

// cache keeps GET results for ttl; concurrent misses on one key share a single fetch.
// A fetch started before an invalidation is never stored.
type cache struct {
	ttl        time.Duration
	now        func() time.Time
	mutex      sync.Mutex
	entries    map[string]cacheEntry
	generation uint64
	group      singleflight.Group
}

func newCache(ttl time.Duration) *cache {
	return &cache{ttl: ttl, now: time.Now, entries: make(map[string]cacheEntry)}
}

func (c *cache) get(key string) (interface{}, bool) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	e, ok := c.entries[key]
	if !ok || !c.now().Before(e.expires) {
		delete(c.entries, key)
		return nil, false
	}
	return e.value, true
}

// setIfCurrent stores value unless the cache was invalidated since generation gen.
func (c *cache) setIfCurrent(key string, value interface{}, gen uint64) {
	if c.ttl <= 0 {
		return
	}
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if gen != c.generation {
		return
	}
	c.entries[key] = cacheEntry{value: value, expires: c.now().Add(c.ttl)}
}

func (c *cache) currentGeneration() uint64 {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.generation
}

// fetch returns the cached value of key or loads it with fn.
// The load is shared by every caller of the same generation and runs detached from their contexts;
// each caller stops waiting when its own ctx is done.
func (c *cache) fetch(ctx context.Context, key string, fn func(ctx context.Context) (interface{}, error)) (interface{}, error) {
	if v, ok := c.get(key); ok {
		return v, nil
	}
	gen := c.currentGeneration()
	ch := c.group.DoChan(key+"#"+strconv.FormatUint(gen, 10), func() (interface{}, error) {
		v, err := fn(context.Background())
		if err == nil {
			c.setIfCurrent(key, v, gen)
		}
		return v, err
	})
	select {
	case res := <-ch:
		return res.Val, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// invalidate drops the entries under the given key prefixes, or everything without prefixes.
func (c *cache) invalidate(prefixes ...string) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.generation++
	if len(prefixes) == 0 {
		c.entries = make(map[string]cacheEntry)
		return
	}
	for key := range c.entries {
		for _, p := range prefixes {
			if strings.HasPrefix(key, p) {
				delete(c.entries, key)
				break
			}
		}
	}
}
