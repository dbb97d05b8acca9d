// Package payout caches venue payout quotes between strategies.
//
// Quotes are expensive and many bots ask for the same one within the same
// second, so concurrent lookups for a key are coalesced into a single
// upstream fetch and the result is shared under a short TTL. Failed fetches
// are cached too ("unknown"), so a flaky upstream is not hammered; the next
// caller after TTL expiry retries.
package payout

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

const DefaultTTL = time.Second

// fetchTimeout bounds the upstream call; the fetch is detached from the
// initiating caller's context so one impatient caller cannot poison the
// shared result for every coalesced waiter.
const fetchTimeout = 10 * time.Second

// Key identifies one quote: percent depends on all five parameters.
type Key struct {
	Symbol     string
	Minutes    int
	Currency   string
	TradeType  string
	Investment string
}

func (k Key) String() string {
	return fmt.Sprintf("%s|%d|%s|%s|%s", k.Symbol, k.Minutes, k.Currency, k.TradeType, k.Investment)
}

// FetchFunc asks the venue for the current payout percent.
type FetchFunc func(ctx context.Context) (int, error)

type entry struct {
	value     int
	known     bool
	fetchedAt time.Time
}

// Cache is the process-wide payout cache.
type Cache struct {
	ttl     time.Duration
	mu      sync.Mutex
	entries map[Key]entry
	group   singleflight.Group
}

func NewCache(ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{ttl: ttl, entries: make(map[Key]entry)}
}

type fetched struct {
	value int
	known bool
}

// Get returns the cached percent for key, fetching at most once per key
// across all concurrent callers. known=false means the venue could not quote
// (cached failure); err is only a context error.
func (c *Cache) Get(ctx context.Context, key Key, fetch FetchFunc) (value int, known bool, err error) {
	c.mu.Lock()
	if e, ok := c.entries[key]; ok && time.Since(e.fetchedAt) < c.ttl {
		c.mu.Unlock()
		return e.value, e.known, nil
	}
	c.mu.Unlock()

	ch := c.group.DoChan(key.String(), func() (any, error) {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), fetchTimeout)
		defer cancel()
		v, ferr := fetch(fctx)
		res := fetched{value: v, known: ferr == nil}
		c.mu.Lock()
		c.entries[key] = entry{value: res.value, known: res.known, fetchedAt: time.Now()}
		c.mu.Unlock()
		return res, nil
	})

	select {
	case r := <-ch:
		res := r.Val.(fetched)
		return res.value, res.known, nil
	case <-ctx.Done():
		return 0, false, ctx.Err()
	}
}

// Invalidate drops a cached quote, forcing the next Get to refetch.
func (c *Cache) Invalidate(key Key) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}
