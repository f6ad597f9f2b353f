// Package cache stores finished peel results keyed by URL and options.
package cache

import (
	"container/list"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/webpeel/webpeel/models"
)

// entry holds a cached result with its creation timestamp.
type entry struct {
	key       string
	result    *models.PeelResult
	createdAt time.Time
}

// Cache is an in-memory LRU cache for peel results with a TTL.
// It is safe for concurrent use.
type Cache struct {
	mu         sync.Mutex
	store      map[string]*list.Element
	order      *list.List // front = most recently used
	maxEntries int
	ttl        time.Duration
}

// New creates a Cache with the given entry cap and TTL. A ttl of zero
// or less disables expiry; entries then only leave via LRU eviction.
func New(maxEntries int, ttl time.Duration) *Cache {
	if maxEntries < 1 {
		maxEntries = 1
	}
	return &Cache{
		store:      make(map[string]*list.Element),
		order:      list.New(),
		maxEntries: maxEntries,
		ttl:        ttl,
	}
}

// Key derives the cache key from the normalised URL and the options
// that change the produced content.
func Key(req *models.PeelRequest) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%s|%s|%v|%v|%v|%v|%d|%d|%s",
		models.NormalizeURL(req.URL),
		req.Format,
		req.Selector,
		req.Exclude,
		req.IncludeTags,
		req.ExcludeTags,
		req.Render || req.Stealth,
		req.MaxTokens,
		req.Budget,
		req.Question,
	)
	return hex.EncodeToString(h.Sum(nil))
}

// Get returns the cached result for key if present and unexpired.
func (c *Cache) Get(key string) (*models.PeelResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.store[key]
	if !ok {
		return nil, false
	}
	e := el.Value.(*entry)
	if c.ttl > 0 && time.Since(e.createdAt) > c.ttl {
		c.order.Remove(el)
		delete(c.store, key)
		return nil, false
	}
	c.order.MoveToFront(el)
	return e.result, true
}

// Set stores a result, evicting the least recently used entry at capacity.
func (c *Cache) Set(key string, result *models.PeelResult) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.store[key]; ok {
		el.Value.(*entry).result = result
		el.Value.(*entry).createdAt = time.Now()
		c.order.MoveToFront(el)
		return
	}

	for len(c.store) >= c.maxEntries {
		oldest := c.order.Back()
		if oldest == nil {
			break
		}
		c.order.Remove(oldest)
		delete(c.store, oldest.Value.(*entry).key)
	}

	el := c.order.PushFront(&entry{key: key, result: result, createdAt: time.Now()})
	c.store[key] = el
}

// Len returns the current entry count.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.store)
}
