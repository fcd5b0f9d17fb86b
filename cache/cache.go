package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/use-agent/propscrape/models"
)

// retention is how long an entry survives regardless of the caller's max age.
const retention = time.Hour

// entry holds a cached response with its creation timestamp.
type entry struct {
	response  *models.ListingsResponse
	createdAt time.Time
}

// Cache keeps recent listings responses in memory so repeated searches for
// the same location skip the browser. It is safe for concurrent use.
type Cache struct {
	mu         sync.RWMutex
	store      map[string]*entry
	maxEntries int
	now        func() time.Time
	remote     remoteStore // nil unless WithMemcache

	stop chan struct{}
	once sync.Once
}

// New creates a Cache holding at most maxEntries responses. A background
// goroutine evicts entries older than an hour every 5 minutes until Close.
func New(maxEntries int) *Cache {
	if maxEntries < 1 {
		maxEntries = 1
	}
	c := &Cache{
		store:      make(map[string]*entry),
		maxEntries: maxEntries,
		now:        time.Now,
		stop:       make(chan struct{}),
	}

	go c.cleanupLoop(5 * time.Minute)
	return c
}

// Key identifies a search. Locations differing only in case or surrounding
// whitespace share a key.
func Key(location string, maxListings int) string {
	h := sha256.New()
	h.Write([]byte(strings.ToLower(strings.TrimSpace(location))))
	h.Write([]byte("|"))
	h.Write([]byte(strconv.Itoa(maxListings)))
	return hex.EncodeToString(h.Sum(nil))
}

// Get returns a cached response younger than maxAgeMs milliseconds.
// If maxAgeMs <= 0 no lookup is performed.
func (c *Cache) Get(key string, maxAgeMs int) (*models.ListingsResponse, bool) {
	if maxAgeMs <= 0 {
		return nil, false
	}

	maxAge := time.Duration(maxAgeMs) * time.Millisecond

	c.mu.RLock()
	e, ok := c.store[key]
	c.mu.RUnlock()
	if ok && c.now().Sub(e.createdAt) <= maxAge {
		return e.response, true
	}

	if c.remote != nil {
		return c.getRemote(key, maxAge)
	}
	return nil, false
}

// Set stores a successful response. Failed responses are never cached.
// At capacity the oldest entry is evicted.
func (c *Cache) Set(key string, resp *models.ListingsResponse) {
	if resp == nil || !resp.Success {
		return
	}

	now := c.now()
	c.storeLocal(key, resp, now)
	if c.remote != nil {
		c.setRemote(key, resp, now)
	}
}

func (c *Cache) storeLocal(key string, resp *models.ListingsResponse, createdAt time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.store[key]; !exists && len(c.store) >= c.maxEntries {
		var oldestKey string
		var oldest time.Time
		for k, e := range c.store {
			if oldestKey == "" || e.createdAt.Before(oldest) {
				oldestKey, oldest = k, e.createdAt
			}
		}
		delete(c.store, oldestKey)
	}

	c.store[key] = &entry{response: resp, createdAt: createdAt}
}

// Len reports the number of cached responses.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.store)
}

// Close stops the cleanup goroutine.
func (c *Cache) Close() {
	c.once.Do(func() { close(c.stop) })
}

func (c *Cache) cleanupLoop(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.evictExpired()
		}
	}
}

func (c *Cache) evictExpired() {
	cutoff := c.now().Add(-retention)
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, e := range c.store {
		if e.createdAt.Before(cutoff) {
			delete(c.store, k)
		}
	}
}
