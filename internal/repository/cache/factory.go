package cache

import (
	"fmt"

	"github.com/jaennil/guide_helper/backend/geocache/pkg/logger"
)

// New builds the configured backend. A nil cache with a nil error means caching is off.
func New(cfg Config, l logger.Logger) (ResponseCache, func() error, error) {
	noop := func() error { return nil }

	switch cfg.Backend {
	case "", BackendNone:
		l.Info("upstream response cache disabled")
		return nil, noop, nil
	case BackendMemory:
		l.Info("upstream response cache enabled", "backend", BackendMemory, "ttl", cfg.TTL)
		return NewMapCache(cfg.TTL), noop, nil
	case BackendRedis:
		redisCfg := cfg.Redis
		redisCfg.TTL = cfg.TTL
		c, err := NewRedisCache(redisCfg)
		if err != nil {
			return nil, noop, err
		}
		l.Info("upstream response cache enabled", "backend", BackendRedis, "addr", redisCfg.Addr, "ttl", cfg.TTL)
		return c, c.Close, nil
	default:
		return nil, noop, fmt.Errorf("unknown cache backend %q", cfg.Backend)
	}
}
