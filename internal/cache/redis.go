package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/Colorex-team/Colorex-System/internal/logger"
)

// Redis is a count cache shared between processes.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
	logger *slog.Logger
}

var _ CountCache = (*Redis)(nil)

// NewRedis creates a Redis-backed cache from a redis:// URL.
// The connection is not checked here; use Ping.
func NewRedis(url string, ttl time.Duration, log *slog.Logger) (*Redis, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	return &Redis{
		client: redis.NewClient(opt),
		ttl:    ttl,
		prefix: "contentgraph:",
		logger: logger.OrDiscard(log),
	}, nil
}

// Ping checks the connection.
func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Get returns a cached count. Connection errors count as a miss.
func (r *Redis) Get(ctx context.Context, key string) (int64, bool) {
	n, err := r.client.Get(ctx, r.prefix+key).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, false
	}
	if err != nil {
		r.logger.Debug("count cache get failed", "key", key, "error", err)
		return 0, false
	}
	return n, true
}

// Set stores a count with the configured TTL.
func (r *Redis) Set(ctx context.Context, key string, n int64) {
	if err := r.client.Set(ctx, r.prefix+key, n, r.ttl).Err(); err != nil {
		r.logger.Debug("count cache set failed", "key", key, "error", err)
	}
}

// Close closes the Redis connection.
func (r *Redis) Close() error {
	return r.client.Close()
}
