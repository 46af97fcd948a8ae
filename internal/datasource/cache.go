package datasource

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/quantsignal/signal-scanner/pkg/types"
)

// cacheEntry holds one fetched buffer with its fill time.
type cacheEntry struct {
	candles   []types.Candle
	fetchedAt time.Time
}

// CachedProvider decorates a Provider with a short-lived in-memory cache,
// so multiple timeframe scans within one tick do not refetch the same
// buffer. Entries expire after one candle interval.
type CachedProvider struct {
	inner Provider
	now   func() time.Time

	mu    sync.RWMutex
	cache map[string]cacheEntry
}

// NewCachedProvider wraps the provider with caching.
func NewCachedProvider(inner Provider) *CachedProvider {
	return &CachedProvider{
		inner: inner,
		now:   time.Now,
		cache: make(map[string]cacheEntry),
	}
}

// Name implements Provider.
func (c *CachedProvider) Name() string { return c.inner.Name() }

// Supports implements Provider.
func (c *CachedProvider) Supports(class types.AssetClass) bool { return c.inner.Supports(class) }

// Fetch implements Provider, serving from cache while the entry is inside
// its interval.
func (c *CachedProvider) Fetch(ctx context.Context, inst Instrument, tf types.Timeframe, count int) ([]types.Candle, error) {
	key := fmt.Sprintf("%s|%s|%d", inst.Symbol, tf, count)

	c.mu.RLock()
	entry, ok := c.cache[key]
	c.mu.RUnlock()
	if ok && c.now().Sub(entry.fetchedAt) < tf.Duration() {
		out := make([]types.Candle, len(entry.candles))
		copy(out, entry.candles)
		return out, nil
	}

	candles, err := c.inner.Fetch(ctx, inst, tf, count)
	if err != nil {
		return nil, err
	}

	stored := make([]types.Candle, len(candles))
	copy(stored, candles)
	c.mu.Lock()
	c.cache[key] = cacheEntry{candles: stored, fetchedAt: c.now()}
	c.mu.Unlock()

	return candles, nil
}

// Connect passes through to a session-holding inner provider.
func (c *CachedProvider) Connect(ctx context.Context) error {
	if conn, ok := c.inner.(Connecter); ok {
		return conn.Connect(ctx)
	}
	return nil
}

// Close passes through to a session-holding inner provider.
func (c *CachedProvider) Close() error {
	if conn, ok := c.inner.(Connecter); ok {
		return conn.Close()
	}
	return nil
}
