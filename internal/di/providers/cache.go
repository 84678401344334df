package providers

import (
	"context"
	"time"

	"github.com/samber/do/v2"

	"github.com/Colorex-team/Colorex-System/internal/cache"
	"github.com/Colorex-team/Colorex-System/internal/config"
	"github.com/Colorex-team/Colorex-System/internal/logger"
)

// CountCacheHandle wraps the total-count cache with shutdown capability.
type CountCacheHandle struct {
	cache.CountCache
}

// Shutdown implements do.Shutdownable.
func (h *CountCacheHandle) Shutdown() error {
	return h.Close()
}

// ProvideCountCache provides the total-count cache selected by configuration.
// An unreachable Redis is logged and kept: totals are advisory and every
// failed lookup degrades to a miss.
func ProvideCountCache(i do.Injector) (*CountCacheHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	if cfg.Cache.TTL == 0 || cfg.Cache.Backend == config.CacheBackendNone {
		log.Info("Count cache disabled")
		return &CountCacheHandle{CountCache: cache.Noop{}}, nil
	}

	switch cfg.Cache.Backend {
	case config.CacheBackendRedis:
		redisCache, err := cache.NewRedis(cfg.Cache.RedisURL, cfg.Cache.TTL, log.Component("cache"))
		if err != nil {
			return nil, err
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := redisCache.Ping(ctx); err != nil {
			log.Warn("Redis count cache unreachable, totals will be recomputed", logger.Err(err))
		} else {
			log.Info("Count cache initialized", "backend", "redis", "ttl", cfg.Cache.TTL)
		}
		return &CountCacheHandle{CountCache: redisCache}, nil

	default:
		localCache, err := cache.NewLocal(countCacheEntries, cfg.Cache.TTL)
		if err != nil {
			return nil, err
		}
		log.Info("Count cache initialized", "backend", "local", "ttl", cfg.Cache.TTL, "max_entries", countCacheEntries)
		return &CountCacheHandle{CountCache: localCache}, nil
	}
}
