package service

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driss-b/infercore/internal/domain"
)

func TestResponseCache_HitAfterPut(t *testing.T) {
	cache := NewResponseCache(CacheConfig{Size: 10, TTL: time.Minute, MaxWait: time.Second})

	_, ok := cache.Get("fp-1")
	require.False(t, ok)

	cache.Put("fp-1", &domain.Response{Text: "answer"})
	resp, ok := cache.Get("fp-1")
	require.True(t, ok)
	assert.Equal(t, "answer", resp.Text)

	stats := cache.Stats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.Equal(t, 0.5, stats.HitRate)
}

func TestResponseCache_TTLExpiry(t *testing.T) {
	cache := NewResponseCache(CacheConfig{Size: 10, TTL: 30 * time.Millisecond, MaxWait: time.Second})
	cache.Put("fp-1", &domain.Response{Text: "answer"})

	_, ok := cache.Get("fp-1")
	require.True(t, ok)

	time.Sleep(60 * time.Millisecond)
	_, ok = cache.Get("fp-1")
	assert.False(t, ok, "entry must expire after TTL")
}

func TestResponseCache_SingleFlight(t *testing.T) {
	cache := NewResponseCache(CacheConfig{Size: 100, TTL: time.Minute, MaxWait: 5 * time.Second})

	var fills atomic.Int64
	fill := func(ctx context.Context) (*domain.Response, error) {
		fills.Add(1)
		time.Sleep(50 * time.Millisecond)
		return &domain.Response{Text: "filled"}, nil
	}

	const callers = 16
	var wg sync.WaitGroup
	results := make([]*domain.Response, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _, errs[i] = cache.GetOrFill(context.Background(), "burst-fp", fill)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int64(1), fills.Load(), "concurrent misses must collapse into one upstream call")
	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, "filled", results[i].Text)
	}

	// The winning fill populated the cache.
	resp, ok := cache.Get("burst-fp")
	require.True(t, ok)
	assert.Equal(t, "filled", resp.Text)
}

func TestResponseCache_GetOrFillServesHit(t *testing.T) {
	cache := NewResponseCache(CacheConfig{Size: 10, TTL: time.Minute, MaxWait: time.Second})
	cache.Put("fp-1", &domain.Response{Text: "cached"})

	resp, cached, err := cache.GetOrFill(context.Background(), "fp-1", func(ctx context.Context) (*domain.Response, error) {
		t.Fatal("fill must not run on a cache hit")
		return nil, nil
	})
	require.NoError(t, err)
	assert.True(t, cached)
	assert.Equal(t, "cached", resp.Text)
}

func TestResponseCache_BoundedWaitDetaches(t *testing.T) {
	cache := NewResponseCache(CacheConfig{Size: 10, TTL: time.Minute, MaxWait: 30 * time.Millisecond})

	var fills atomic.Int64
	slowOnce := func(ctx context.Context) (*domain.Response, error) {
		if fills.Add(1) == 1 {
			time.Sleep(150 * time.Millisecond)
		}
		return &domain.Response{Text: "slow"}, nil
	}

	start := time.Now()
	resp, cached, err := cache.GetOrFill(context.Background(), "slow-fp", slowOnce)
	require.NoError(t, err)
	assert.Equal(t, "slow", resp.Text)
	assert.False(t, cached)
	assert.Less(t, time.Since(start), 140*time.Millisecond,
		"caller must detach from a slow leader after MaxWait")
	assert.GreaterOrEqual(t, fills.Load(), int64(2), "detached caller fills independently")
}

func TestResponseCache_FillErrorNotCached(t *testing.T) {
	cache := NewResponseCache(CacheConfig{Size: 10, TTL: time.Minute, MaxWait: time.Second})

	_, _, err := cache.GetOrFill(context.Background(), "err-fp", func(ctx context.Context) (*domain.Response, error) {
		return nil, domain.ErrBackendUnavailable
	})
	require.ErrorIs(t, err, domain.ErrBackendUnavailable)

	_, ok := cache.Get("err-fp")
	assert.False(t, ok, "failed fills must not be cached")
}

func TestResponseCache_ContextCancellation(t *testing.T) {
	cache := NewResponseCache(CacheConfig{Size: 10, TTL: time.Minute, MaxWait: time.Second})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, _, err := cache.GetOrFill(ctx, "cancel-fp", func(ctx context.Context) (*domain.Response, error) {
		time.Sleep(500 * time.Millisecond)
		return &domain.Response{}, nil
	})
	require.ErrorIs(t, err, context.Canceled)
}
