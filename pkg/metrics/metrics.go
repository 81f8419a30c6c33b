package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TileLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "geocache_tile_lookups_total",
		Help: "Total number of tile lookups by result (hit, miss)",
	}, []string{"result"})

	TilesSaved = promauto.NewCounter(prometheus.CounterOpts{
		Name: "geocache_tiles_saved_total",
		Help: "Total number of tile rows upserted",
	})

	TileBatchSize = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "geocache_tile_batch_size",
		Help:    "Number of tiles per batch request",
		Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
	}, []string{"operation"})

	TileBatchTruncated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "geocache_tile_batch_truncated_total",
		Help: "Total number of batch reads truncated to the maximum batch size",
	})

	TileParseErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "geocache_tile_parse_errors_total",
		Help: "Total number of stored tile blobs skipped because they failed to parse",
	})

	SnapshotsSaved = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "geocache_snapshots_saved_total",
		Help: "Total number of map snapshots saved by content encoding",
	}, []string{"encoding"})

	SnapshotPayloadBytes = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "geocache_snapshot_payload_bytes",
		Help:    "Size of snapshot payloads before (raw) and after (decoded) decompression",
		Buckets: prometheus.ExponentialBuckets(1024, 4, 10),
	}, []string{"stage"})

	UpstreamRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "geocache_upstream_requests_total",
		Help: "Total number of outbound provider requests by provider and outcome",
	}, []string{"provider", "outcome"})

	UpstreamLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "geocache_upstream_latency_seconds",
		Help:    "Latency of outbound provider requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"provider"})

	WaterwayLayerFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "geocache_waterway_layer_failures_total",
		Help: "Total number of waterway layers degraded to an empty result",
	}, []string{"layer"})

	CircuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "geocache_circuit_breaker_state",
		Help: "Circuit breaker state per provider (0 closed, 1 half-open, 2 open)",
	}, []string{"provider"})

	CacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cache_hits_total",
		Help: "Total number of cache hits",
	})

	CacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cache_misses_total",
		Help: "Total number of cache misses",
	})

	CacheStores = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cache_stores_total",
		Help: "Total number of cache store operations",
	})

	// Redis metrics
	RedisOperationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "redis_operation_duration_seconds",
		Help:    "Duration of Redis operations in seconds",
		Buckets: []float64{.0001, .0005, .001, .005, .01, .025, .05, .1, .25, .5, 1},
	}, []string{"operation"})

	RedisErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "redis_errors_total",
		Help: "Total number of Redis errors",
	}, []string{"operation"})

	RedisPoolStats = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "redis_pool_stats",
		Help: "Redis connection pool statistics",
	}, []string{"stat"})

	DBPoolStats = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "geocache_db_pool_stats",
		Help: "Relational store connection pool statistics",
	}, []string{"stat"})
)
