package cache

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Amund211/scriptcache/internal/logging"
)

// GetOrCreate returns the cached value for key, calling create if nobody else
// is already doing so. Errors from create are not cached.
func GetOrCreate[T any](ctx context.Context, cache Cache[T], key string, create func() (T, error)) (T, error) {
	// Clean up the cache if we claim an entry, but don't set it
	// This allows other callers to try again
	claimed := false
	set := false
	defer func() {
		if claimed && !set {
			cache.delete(key)
		}
	}()

	logger := logging.FromContext(ctx).With(slog.String("key", key))

	for {
		result := cache.getOrClaim(key)

		if result.claimed {
			claimed = true

			logger.InfoContext(ctx, "Getting cache entry", "cache", "miss")

			data, err := create()
			if err != nil {
				var empty T
				return empty, fmt.Errorf("failed to create cache entry: %w", err)
			}

			cache.set(key, data)
			set = true

			return data, nil
		}

		if result.valid {
			logger.InfoContext(ctx, "Getting cache entry", "cache", "hit")
			return result.data, nil
		}

		if err := ctx.Err(); err != nil {
			var empty T
			return empty, fmt.Errorf("gave up waiting for cache entry: %w", err)
		}

		logger.DebugContext(ctx, "Waiting for cache")
		cache.wait()
	}
}
