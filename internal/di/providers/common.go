package providers

import "time"

const (
	// shutdownTimeout is the maximum time to wait for graceful shutdown of services.
	shutdownTimeout = 30 * time.Second

	// countCacheEntries bounds the local total-count cache.
	countCacheEntries = 10_000
)
