package cache

import (
	"errors"
	"testing"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/use-agent/propscrape/models"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func newTestCache(t *testing.T, maxEntries int) (*Cache, *clock) {
	t.Helper()
	c := New(maxEntries)
	t.Cleanup(c.Close)
	clk := &clock{t: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	c.now = clk.now
	return c, clk
}

func ok(location string) *models.ListingsResponse {
	return &models.ListingsResponse{Success: true, Location: location, Records: []models.PropertyRecord{}}
}

func TestKey_NormalisesLocation(t *testing.T) {
	assert.Equal(t, Key("Oxford", 1), Key("  oxford ", 1))
	assert.NotEqual(t, Key("Oxford", 1), Key("Oxford", 2))
	assert.NotEqual(t, Key("Oxford", 1), Key("Cambridge", 1))
}

func TestGet_RespectsMaxAge(t *testing.T) {
	c, clk := newTestCache(t, 10)
	key := Key("Oxford", 1)
	c.Set(key, ok("Oxford"))

	_, hit := c.Get(key, 0)
	assert.False(t, hit, "max age 0 disables lookup")

	clk.t = clk.t.Add(30 * time.Second)
	got, hit := c.Get(key, 60_000)
	require.True(t, hit)
	assert.Equal(t, "Oxford", got.Location)

	clk.t = clk.t.Add(time.Minute)
	_, hit = c.Get(key, 60_000)
	assert.False(t, hit)
}

func TestSet_SkipsFailures(t *testing.T) {
	c, _ := newTestCache(t, 10)
	c.Set(Key("Oxford", 1), &models.ListingsResponse{Success: false})
	c.Set(Key("Bath", 1), nil)
	assert.Zero(t, c.Len())
}

func TestSet_EvictsOldestAtCapacity(t *testing.T) {
	c, clk := newTestCache(t, 2)
	c.Set(Key("a", 1), ok("a"))
	clk.t = clk.t.Add(time.Second)
	c.Set(Key("b", 1), ok("b"))
	clk.t = clk.t.Add(time.Second)
	c.Set(Key("c", 1), ok("c"))

	assert.Equal(t, 2, c.Len())
	_, hit := c.Get(Key("a", 1), 60_000)
	assert.False(t, hit)
	_, hit = c.Get(Key("c", 1), 60_000)
	assert.True(t, hit)

	// Overwriting an existing key does not evict.
	c.Set(Key("b", 1), ok("b"))
	assert.Equal(t, 2, c.Len())
}

func TestEvictExpired(t *testing.T) {
	c, clk := newTestCache(t, 10)
	c.Set(Key("old", 1), ok("old"))
	clk.t = clk.t.Add(2 * time.Hour)
	c.Set(Key("new", 1), ok("new"))

	c.evictExpired()
	assert.Equal(t, 1, c.Len())
}

type fakeRemote struct {
	items map[string]*memcache.Item
	err   error
}

func (f *fakeRemote) Get(key string) (*memcache.Item, error) {
	if f.err != nil {
		return nil, f.err
	}
	it, ok := f.items[key]
	if !ok {
		return nil, memcache.ErrCacheMiss
	}
	return it, nil
}

func (f *fakeRemote) Set(it *memcache.Item) error {
	if f.err != nil {
		return f.err
	}
	f.items[it.Key] = it
	return nil
}

func TestMemcacheTier(t *testing.T) {
	remote := &fakeRemote{items: map[string]*memcache.Item{}}
	writer, clk := newTestCache(t, 10)
	writer.remote = remote

	key := Key("Oxford", 1)
	writer.Set(key, ok("Oxford"))
	require.Contains(t, remote.items, key)
	assert.Equal(t, int32(3600), remote.items[key].Expiration)

	// A second instance sharing the remote sees the run.
	reader, _ := newTestCache(t, 10)
	reader.remote = remote
	reader.now = clk.now

	clk.t = clk.t.Add(10 * time.Second)
	got, hit := reader.Get(key, 60_000)
	require.True(t, hit)
	assert.Equal(t, "Oxford", got.Location)
	assert.Equal(t, 1, reader.Len(), "remote hit is kept locally")

	// Age is measured from the original run.
	clk.t = clk.t.Add(time.Minute)
	_, hit = reader.Get(key, 60_000)
	assert.False(t, hit)
}

func TestMemcacheTier_ErrorsAreMisses(t *testing.T) {
	c, _ := newTestCache(t, 10)
	c.remote = &fakeRemote{items: map[string]*memcache.Item{}, err: errors.New("connection refused")}

	c.Set(Key("Oxford", 1), ok("Oxford"))
	_, hit := c.Get(Key("Oxford", 2), 60_000)
	assert.False(t, hit)

	c.remote = &fakeRemote{items: map[string]*memcache.Item{Key("Bath", 1): {Value: []byte("not json")}}}
	_, hit = c.Get(Key("Bath", 1), 60_000)
	assert.False(t, hit)
}
