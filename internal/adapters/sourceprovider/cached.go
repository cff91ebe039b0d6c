package sourceprovider

import (
	"context"
	"fmt"
	"time"

	"github.com/Amund211/scriptcache/internal/adapters/cache"
)

type cachedSourceProvider struct {
	cache    cache.Cache[[]byte]
	provider SourceProvider
}

// NewCachedSourceProvider de-duplicates fetches of the same url while the
// ttl lasts. Failed fetches are not cached.
func NewCachedSourceProvider(provider SourceProvider, ttl time.Duration) (SourceProvider, func()) {
	sourceCache, stop := cache.NewTTLCache[[]byte](ttl)
	return &cachedSourceProvider{
		cache:    sourceCache,
		provider: provider,
	}, stop
}

// NewMemoizedSourceProvider keeps every fetched source for the lifetime of
// the provider. For short lived processes.
func NewMemoizedSourceProvider(provider SourceProvider) SourceProvider {
	return &cachedSourceProvider{
		cache:    cache.NewBasicCache[[]byte](),
		provider: provider,
	}
}

func (c *cachedSourceProvider) GetSource(ctx context.Context, url string) ([]byte, error) {
	source, err := cache.GetOrCreate(ctx, c.cache, url, func() ([]byte, error) {
		return c.provider.GetSource(ctx, url)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get source for %s: %w", url, err)
	}
	return source, nil
}
