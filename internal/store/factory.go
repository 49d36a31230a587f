package store

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/ppiankov/altwrite/internal/cache"
	"github.com/ppiankov/altwrite/internal/model"
)

// New creates the store selected by cfg.Backend, wrapped in a read cache
// when caching is enabled.
func New(cfg model.StoreConfig, cacheCfg model.CacheConfig, logger *slog.Logger) (Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var s Store
	switch cfg.Backend {
	case "", "http":
		hs, err := NewHTTPStore(cfg, WithLogger(logger))
		if err != nil {
			return nil, err
		}
		s = hs
	case "memory":
		s = NewMemoryStore()
	default:
		return nil, fmt.Errorf("unknown store backend: %s", cfg.Backend)
	}

	return Wrap(s, cacheCfg, logger), nil
}

// Wrap puts s behind a read cache when caching is enabled
func Wrap(s Store, cacheCfg model.CacheConfig, logger *slog.Logger) Store {
	if !cacheCfg.Enabled {
		return s
	}
	ttl := cacheCfg.MemoryTTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return NewCachedStore(s, cache.NewMemoryCache(ttl, 10*time.Minute), ttl, logger)
}
