package cache

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dgraph-io/ristretto"
)

// Cache defines a generic cache interface
type Cache[T any] interface {
	// Get retrieves a value from the cache
	Get(key string) (T, bool)

	// Set stores a value in the cache
	Set(key string, data T)

	// Delete removes a key from the cache
	Delete(key string)

	// Size returns the number of keys currently tracked
	Size() int
}

// Ristretto is a Cache backed by ristretto with a TTL per entry. It keeps
// the set of live keys so entries can be dropped by prefix; keys leave the
// set when ristretto evicts, expires or deletes their entry.
type Ristretto[T any] struct {
	store *ristretto.Cache
	ttl   time.Duration

	mu   sync.RWMutex
	keys map[string]*entry[T]
}

type entry[T any] struct {
	key  string
	data T
}

var _ Cache[int] = (*Ristretto[int])(nil)

// NewRistretto creates a cache holding at most maxItems entries. A zero ttl
// keeps entries until evicted.
func NewRistretto[T any](maxItems int64, ttl time.Duration) (*Ristretto[T], error) {
	if maxItems <= 0 {
		return nil, fmt.Errorf("cache size must be positive, got %d", maxItems)
	}
	c := &Ristretto[T]{ttl: ttl, keys: make(map[string]*entry[T])}
	store, err := ristretto.NewCache(&ristretto.Config{
		NumCounters:        maxItems * 10, // number of keys to track frequency of
		MaxCost:            maxItems,
		BufferItems:        64, // number of keys per Get buffer
		IgnoreInternalCost: true,
		OnExit:             c.onExit,
	})
	if err != nil {
		return nil, fmt.Errorf("initialize cache: %w", err)
	}
	c.store = store
	return c, nil
}

// onExit runs inside ristretto, sometimes synchronously from Del, so callers
// must not hold mu while calling into the store.
func (c *Ristretto[T]) onExit(val any) {
	e, ok := val.(*entry[T])
	if !ok {
		return
	}
	c.mu.Lock()
	// An overwrite replaces the tracked entry before the old one exits.
	if c.keys[e.key] == e {
		delete(c.keys, e.key)
	}
	c.mu.Unlock()
}

func (c *Ristretto[T]) Get(key string) (T, bool) {
	var zero T
	v, ok := c.store.Get(key)
	if !ok {
		return zero, false
	}
	e, ok := v.(*entry[T])
	if !ok {
		return zero, false
	}
	return e.data, true
}

// Set stores data and waits until it is visible to Get.
func (c *Ristretto[T]) Set(key string, data T) {
	e := &entry[T]{key: key, data: data}
	c.mu.Lock()
	c.keys[key] = e
	c.mu.Unlock()
	c.store.SetWithTTL(key, e, 1, c.ttl)
	c.store.Wait()
}

func (c *Ristretto[T]) Delete(key string) {
	c.mu.Lock()
	delete(c.keys, key)
	c.mu.Unlock()
	c.store.Del(key)
}

// DeletePrefix drops every key starting with prefix and returns how many.
func (c *Ristretto[T]) DeletePrefix(prefix string) int {
	var matched []string
	c.mu.Lock()
	for key := range c.keys {
		if strings.HasPrefix(key, prefix) {
			delete(c.keys, key)
			matched = append(matched, key)
		}
	}
	c.mu.Unlock()
	for _, key := range matched {
		c.store.Del(key)
	}
	return len(matched)
}

// Clear drops every entry.
func (c *Ristretto[T]) Clear() {
	c.store.Clear()
	c.mu.Lock()
	c.keys = make(map[string]*entry[T])
	c.mu.Unlock()
}

func (c *Ristretto[T]) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.keys)
}

func (c *Ristretto[T]) Close() {
	c.store.Close()
}
