// Package cache holds short-lived total counts for paginated queries.
//
// Totals are advisory, so every backend degrades to a miss on failure and
// entries are never invalidated explicitly; they expire after the TTL.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// CountCache stores total counts keyed by a query fingerprint.
type CountCache interface {
	// Get returns the cached count and whether it was present.
	Get(ctx context.Context, key string) (int64, bool)
	// Set stores a count. Failures are swallowed.
	Set(ctx context.Context, key string, n int64)
	Close() error
}

// Key builds a stable fingerprint from query parts.
func Key(parts ...string) string {
	sum := sha256.Sum256([]byte(strings.Join(parts, "\x00")))
	return "count:" + hex.EncodeToString(sum[:16])
}

// Noop never stores anything.
type Noop struct{}

var _ CountCache = Noop{}

// Get always misses.
func (Noop) Get(context.Context, string) (int64, bool) { return 0, false }

// Set discards the value.
func (Noop) Set(context.Context, string, int64) {}

// Close does nothing.
func (Noop) Close() error { return nil }
