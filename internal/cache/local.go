package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/dgraph-io/ristretto/v2"
)

// Local is an in-process count cache backed by ristretto.
type Local struct {
	cache *ristretto.Cache[string, int64]
	ttl   time.Duration
}

var _ CountCache = (*Local)(nil)

// NewLocal creates a local cache holding up to maxEntries counts for ttl each.
func NewLocal(maxEntries int64, ttl time.Duration) (*Local, error) {
	if maxEntries <= 0 {
		maxEntries = 10_000
	}
	c, err := ristretto.NewCache(&ristretto.Config[string, int64]{
		NumCounters: maxEntries * 10,
		MaxCost:     maxEntries,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("create ristretto cache: %w", err)
	}
	return &Local{cache: c, ttl: ttl}, nil
}

// Get returns a cached count.
func (l *Local) Get(_ context.Context, key string) (int64, bool) {
	return l.cache.Get(key)
}

// Set stores a count with cost 1.
func (l *Local) Set(_ context.Context, key string, n int64) {
	l.cache.SetWithTTL(key, n, 1, l.ttl)
}

// Wait blocks until buffered writes are applied.
func (l *Local) Wait() {
	l.cache.Wait()
}

// Close releases the cache.
func (l *Local) Close() error {
	l.cache.Close()
	return nil
}
