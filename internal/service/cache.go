package service

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"

	"github.com/driss-b/infercore/internal/domain"
)

// CacheConfig controls the response cache.
type CacheConfig struct {
	Size    int
	TTL     time.Duration
	MaxWait time.Duration
}

// CacheStats is a point-in-time snapshot of cache effectiveness.
type CacheStats struct {
	Hits    int64   `json:"hits"`
	Misses  int64   `json:"misses"`
	Entries int     `json:"entries"`
	HitRate float64 `json:"hit_rate"`
}

// ResponseCache stores completed responses keyed by request fingerprint.
// Concurrent misses on the same fingerprint are collapsed into a single
// upstream call; waiters that exceed MaxWait detach and call upstream
// themselves rather than block on a slow leader.
type ResponseCache struct {
	lru     *expirable.LRU[string, *domain.Response]
	flight  singleflight.Group
	maxWait time.Duration

	hits   atomic.Int64
	misses atomic.Int64
}

func NewResponseCache(cfg CacheConfig) *ResponseCache {
	return &ResponseCache{
		lru:     expirable.NewLRU[string, *domain.Response](cfg.Size, nil, cfg.TTL),
		maxWait: cfg.MaxWait,
	}
}

// Get returns the cached response for fp, if present and unexpired.
func (c *ResponseCache) Get(fp string) (*domain.Response, bool) {
	resp, ok := c.lru.Get(fp)
	if ok {
		c.hits.Add(1)
	} else {
		c.misses.Add(1)
	}
	return resp, ok
}

// Put stores a response under fp.
func (c *ResponseCache) Put(fp string, resp *domain.Response) {
	c.lru.Add(fp, resp)
}

// GetOrFill returns the cached response for fp, or produces one with fill.
// The second return reports whether the response was served without an
// upstream call made on behalf of this request: a cache hit, or a result
// shared from a concurrent caller's in-flight fill.
func (c *ResponseCache) GetOrFill(ctx context.Context, fp string, fill func(context.Context) (*domain.Response, error)) (*domain.Response, bool, error) {
	if resp, ok := c.Get(fp); ok {
		return resp, true, nil
	}

	ch := c.flight.DoChan(fp, func() (interface{}, error) {
		resp, err := fill(ctx)
		if err != nil {
			return nil, err
		}
		c.lru.Add(fp, resp)
		return resp, nil
	})

	var timeout <-chan time.Time
	if c.maxWait > 0 {
		t := time.NewTimer(c.maxWait)
		defer t.Stop()
		timeout = t.C
	}

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, false, res.Err
		}
		return res.Val.(*domain.Response), res.Shared, nil
	case <-timeout:
		// The leader is taking too long. Detach and fill independently;
		// the in-flight call still completes and populates the cache.
		resp, err := fill(ctx)
		if err != nil {
			return nil, false, err
		}
		c.lru.Add(fp, resp)
		return resp, false, nil
	case <-ctx.Done():
		return nil, false, ctx.Err()
	}
}

// Stats reports hit/miss counters and the current entry count.
func (c *ResponseCache) Stats() CacheStats {
	hits := c.hits.Load()
	misses := c.misses.Load()
	s := CacheStats{Hits: hits, Misses: misses, Entries: c.lru.Len()}
	if total := hits + misses; total > 0 {
		s.HitRate = float64(hits) / float64(total)
	}
	return s
}
