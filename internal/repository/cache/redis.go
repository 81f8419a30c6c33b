package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jaennil/guide_helper/backend/geocache/pkg/metrics"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "geocache:upstream:"

type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

func NewRedisCache(cfg RedisConfig) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	ttl := cfg.TTL
	if ttl == 0 {
		ttl = time.Hour
	}

	return &RedisCache{
		client: client,
		ttl:    ttl,
	}, nil
}

var _ ResponseCache = (*RedisCache)(nil)

func (c *RedisCache) keyFor(k string) string {
	return keyPrefix + k
}

func (c *RedisCache) Get(ctx context.Context, k string) ([]byte, bool, error) {
	start := time.Now()
	data, err := c.client.Get(ctx, c.keyFor(k)).Bytes()
	metrics.RedisOperationDuration.WithLabelValues("get").Observe(time.Since(start).Seconds())

	if err != nil {
		if errors.Is(err, redis.Nil) {
			metrics.CacheMisses.Inc()
			return nil, false, nil
		}
		metrics.RedisErrors.WithLabelValues("get").Inc()
		return nil, false, fmt.Errorf("redis get error: %w", err)
	}

	metrics.CacheHits.Inc()
	return data, true, nil
}

func (c *RedisCache) Set(ctx context.Context, k string, v []byte) error {
	start := time.Now()
	err := c.client.Set(ctx, c.keyFor(k), v, c.ttl).Err()
	metrics.RedisOperationDuration.WithLabelValues("set").Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.RedisErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("redis set error: %w", err)
	}

	metrics.CacheStores.Inc()
	return nil
}

// ReportPoolStats publishes the client pool counters to prometheus.
func (c *RedisCache) ReportPoolStats() {
	stats := c.client.PoolStats()
	metrics.RedisPoolStats.WithLabelValues("hits").Set(float64(stats.Hits))
	metrics.RedisPoolStats.WithLabelValues("misses").Set(float64(stats.Misses))
	metrics.RedisPoolStats.WithLabelValues("timeouts").Set(float64(stats.Timeouts))
	metrics.RedisPoolStats.WithLabelValues("total_conns").Set(float64(stats.TotalConns))
	metrics.RedisPoolStats.WithLabelValues("idle_conns").Set(float64(stats.IdleConns))
	metrics.RedisPoolStats.WithLabelValues("stale_conns").Set(float64(stats.StaleConns))
}

func (c *RedisCache) HealthCheck(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}
