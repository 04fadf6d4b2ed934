package bootstrap

import (
	"context"
	"log"

	"github.com/permgate/permgate/internal/cache"
	"github.com/permgate/permgate/internal/config"
)

// discoveryCache holds authority → jwks_uri mappings for the JWKS resolver.
type discoveryCache = cache.Cache[string]

// initializeDiscoveryCache selects the cache backend. Redis shares resolved
// discovery documents across instances; memory is per-process.
func initializeDiscoveryCache(ctx context.Context, cfg *config.Config) (discoveryCache, error) {
	switch cfg.CacheBackend {
	case "redis":
		c, err := cache.NewRueidisCache[string](
			ctx,
			cfg.RedisAddr,
			cfg.RedisPassword,
			cfg.RedisDB,
			"permgate:discovery:",
		)
		if err != nil {
			return nil, err
		}
		log.Printf("[Bootstrap] discovery cache: redis (%s)", cfg.RedisAddr)
		return c, nil
	default:
		log.Printf("[Bootstrap] discovery cache: in-memory")
		return cache.NewMemoryCache[string](), nil
	}
}
