package cache

import (
	"context"
	"time"
)

// ResponseCache stores raw upstream response bodies by request key.
type ResponseCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
}

// Config selects the backend. Backend is one of "none", "memory" or "redis".
type Config struct {
	Backend string
	TTL     time.Duration
	Redis   RedisConfig
}

const (
	BackendNone   = "none"
	BackendMemory = "memory"
	BackendRedis  = "redis"
)
