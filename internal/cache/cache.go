// Package cache holds ranked search results in a bounded LRU with a fixed time-to-live.
package cache

import (
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/alexivanou/geoquery/internal/geo"
	"github.com/alexivanou/geoquery/internal/model"
)

const (
	DefaultSize = 5000
	DefaultTTL  = time.Hour
)

// Key identifies one search request after normalisation
type Key string

// NewKey builds the canonical key for a query whose limit has already been resolved.
// The user location is reduced to its snapping cell so nearby positions share entries.
func NewKey(q model.SearchQuery) Key {
	var b strings.Builder
	writeField(&b, "t", strings.Join(strings.Fields(strings.ToLower(q.Text)), " "))
	writeField(&b, "c", strings.ToLower(strings.TrimSpace(q.Country)))
	writeField(&b, "uc", strings.ToLower(strings.TrimSpace(q.UserCountry)))
	loc := ""
	if q.UserLocation != nil {
		loc, _, _ = geo.Snap(q.UserLocation.Lat, q.UserLocation.Lng)
	}
	writeField(&b, "loc", loc)
	writeField(&b, "n", strconv.Itoa(q.Limit))
	return Key(b.String())
}

func writeField(b *strings.Builder, tag, value string) {
	b.WriteString(tag)
	b.WriteByte('=')
	b.WriteString(strconv.Quote(value))
	b.WriteByte(';')
}

type entry struct {
	results   []model.RankedResult
	storedAt  time.Time
	expiresAt time.Time
}

// Stats is a snapshot of cache counters
type Stats struct {
	Hits        int64 `json:"hits"`
	Misses      int64 `json:"misses"`
	Evictions   int64 `json:"evictions"`
	Expirations int64 `json:"expirations"`
	Len         int   `json:"len"`
	Capacity    int   `json:"capacity"`
	TTLSeconds  int64 `json:"ttl_seconds"`
}

// Option customises a ResultCache
type Option func(*ResultCache)

// WithClock replaces time.Now, mainly for tests
func WithClock(now func() time.Time) Option {
	return func(c *ResultCache) {
		c.now = now
	}
}

// ResultCache is safe for concurrent use. Expired entries are dropped when read,
// there is no background sweep.
type ResultCache struct {
	lru  *lru.Cache[Key, *entry]
	size int
	ttl  time.Duration
	now  func() time.Time

	hits        atomic.Int64
	misses      atomic.Int64
	evictions   atomic.Int64
	expirations atomic.Int64
}

// New creates a cache holding at most size entries, each served for at most ttl
func New(size int, ttl time.Duration, opts ...Option) (*ResultCache, error) {
	if size <= 0 {
		return nil, fmt.Errorf("cache size must be positive, got %d", size)
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("cache ttl must be positive, got %s", ttl)
	}

	l, err := lru.New[Key, *entry](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create lru: %w", err)
	}

	c := &ResultCache{
		lru:  l,
		size: size,
		ttl:  ttl,
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Get returns a copy of the cached results for key
func (c *ResultCache) Get(key Key) ([]model.RankedResult, bool) {
	e, ok := c.lru.Get(key)
	if !ok {
		c.misses.Add(1)
		return nil, false
	}

	if !c.now().Before(e.expiresAt) {
		// only drop the entry we saw, a concurrent Put may have replaced it
		if cur, ok := c.lru.Peek(key); ok && cur == e {
			c.lru.Remove(key)
		}
		c.expirations.Add(1)
		c.misses.Add(1)
		return nil, false
	}

	c.hits.Add(1)
	return model.CloneResults(e.results), true
}

// Peek returns a copy of a live entry without touching recency or counters
func (c *ResultCache) Peek(key Key) ([]model.RankedResult, bool) {
	e, ok := c.lru.Peek(key)
	if !ok || !c.now().Before(e.expiresAt) {
		return nil, false
	}
	return model.CloneResults(e.results), true
}

// Put stores a copy of results under key
func (c *ResultCache) Put(key Key, results []model.RankedResult) {
	now := c.now()
	e := &entry{
		results:   model.CloneResults(results),
		storedAt:  now,
		expiresAt: now.Add(c.ttl),
	}
	if evicted := c.lru.Add(key, e); evicted {
		c.evictions.Add(1)
	}
}

// InvalidateAll drops every entry
func (c *ResultCache) InvalidateAll() {
	c.lru.Purge()
}

// Len returns the number of stored entries, expired ones included until read
func (c *ResultCache) Len() int {
	return c.lru.Len()
}

// Stats returns current counters
func (c *ResultCache) Stats() Stats {
	return Stats{
		Hits:        c.hits.Load(),
		Misses:      c.misses.Load(),
		Evictions:   c.evictions.Load(),
		Expirations: c.expirations.Load(),
		Len:         c.lru.Len(),
		Capacity:    c.size,
		TTLSeconds:  int64(c.ttl / time.Second),
	}
}
