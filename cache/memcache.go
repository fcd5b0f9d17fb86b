package cache

import (
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
	"github.com/use-agent/propscrape/models"
)

// remoteStore is the subset of *memcache.Client the cache uses.
type remoteStore interface {
	Get(key string) (*memcache.Item, error)
	Set(item *memcache.Item) error
}

// remoteEntry is the memcache value: the response plus when it was built,
// so max_age is judged against the original run, not the copy.
type remoteEntry struct {
	CreatedAt time.Time                `json:"created_at"`
	Response  *models.ListingsResponse `json:"response"`
}

// WithMemcache adds a shared second tier so several API instances reuse
// each other's runs. Local misses fall through to memcache.
func (c *Cache) WithMemcache(addrs ...string) *Cache {
	if len(addrs) == 0 {
		return c
	}
	c.remote = memcache.New(addrs...)
	slog.Info("response cache backed by memcache", "servers", addrs)
	return c
}

func (c *Cache) getRemote(key string, maxAge time.Duration) (*models.ListingsResponse, bool) {
	item, err := c.remote.Get(key)
	if err != nil {
		if !errors.Is(err, memcache.ErrCacheMiss) {
			slog.Warn("memcache get failed", "error", err)
		}
		return nil, false
	}

	var e remoteEntry
	if err := json.Unmarshal(item.Value, &e); err != nil || e.Response == nil {
		slog.Warn("discarding unreadable memcache entry", "error", err)
		return nil, false
	}
	if c.now().Sub(e.CreatedAt) > maxAge {
		return nil, false
	}

	c.storeLocal(key, e.Response, e.CreatedAt)
	return e.Response, true
}

func (c *Cache) setRemote(key string, resp *models.ListingsResponse, createdAt time.Time) {
	value, err := json.Marshal(remoteEntry{CreatedAt: createdAt, Response: resp})
	if err != nil {
		slog.Warn("memcache encode failed", "error", err)
		return
	}
	err = c.remote.Set(&memcache.Item{
		Key:        key,
		Value:      value,
		Expiration: int32(retention.Seconds()),
	})
	if err != nil {
		slog.Warn("memcache set failed", "error", err)
	}
}
