package config

import (
	"log"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type (
	Config struct {
		HTTP      HTTP      `envPrefix:"HTTP_"`
		Logger    Logger    `envPrefix:"LOGGER_"`
		Telemetry Telemetry `envPrefix:"TELEMETRY_"`
		DB        DB        `envPrefix:"DB_"`
		Cache     Cache     `envPrefix:"CACHE_"`
		Redis     Redis     `envPrefix:"REDIS_"`
		Upstream  Upstream  `envPrefix:"UPSTREAM_"`
		Ingest    Ingest    `envPrefix:"INGEST_"`
	}

	HTTP struct {
		Server       Server `envPrefix:"SERVER_"`
		MaxBodyBytes int64  `env:"MAX_BODY_BYTES" envDefault:"10485760"`
	}

	Server struct {
		Port         string        `env:"PORT" envDefault:"8800"`
		ReadTimeout  time.Duration `env:"READ_TIMEOUT" envDefault:"30s"`
		WriteTimeout time.Duration `env:"WRITE_TIMEOUT" envDefault:"60s"`
		IdleTimeout  time.Duration `env:"IDLE_TIMEOUT" envDefault:"60s"`
	}

	Logger struct {
		Level  string `env:"LEVEL" envDefault:"info"`
		Format string `env:"FORMAT" envDefault:"json"`
	}

	Telemetry struct {
		Enabled        bool   `env:"ENABLED" envDefault:"false"`
		ServiceName    string `env:"SERVICE_NAME" envDefault:"guide-helper-geocache"`
		ServiceVersion string `env:"SERVICE_VERSION" envDefault:"1.0.0"`
		Environment    string `env:"ENVIRONMENT" envDefault:"production"`
		OTLPEndpoint   string `env:"OTLP_ENDPOINT" envDefault:"otel-collector.observability.svc.cluster.local:4317"`
	}

	// DB.MaxOpenConnections bounds concurrent sessions; callers beyond it wait for a free one.
	DB struct {
		Driver             string        `env:"DRIVER" envDefault:"sqlite3"`
		DSN                string        `env:"DSN" envDefault:"file:geocache.db?_busy_timeout=5000&_journal_mode=WAL"`
		MaxOpenConnections int           `env:"MAX_OPEN_CONNECTIONS" envDefault:"5"`
		MaxIdleConnections int           `env:"MAX_IDLE_CONNECTIONS" envDefault:"2"`
		ConnMaxLifetime    time.Duration `env:"CONN_MAX_LIFETIME" envDefault:"30m"`
	}

	Cache struct {
		Backend string        `env:"BACKEND" envDefault:"none"`
		TTL     time.Duration `env:"TTL" envDefault:"1h"`
	}

	Redis struct {
		Addr     string `env:"ADDR" envDefault:"localhost:6379"`
		Password string `env:"PASSWORD" envDefault:""`
		DB       int    `env:"DB" envDefault:"0"`
	}

	Upstream struct {
		Timeout          time.Duration `env:"TIMEOUT" envDefault:"15s"`
		UserAgent        string        `env:"USER_AGENT" envDefault:"GuideHelperGeocache/1.0 (https://github.com/jaennil/guide_helper)"`
		ElevationURL     string        `env:"ELEVATION_URL" envDefault:"https://api.opentopodata.org/v1/srtm90m"`
		WaterwaysURL     string        `env:"WATERWAYS_URL" envDefault:"https://hydro.nationalmap.gov/arcgis/rest/services/nhd/MapServer"`
		AirportsURL      string        `env:"AIRPORTS_URL" envDefault:"https://services6.arcgis.com/ssFJjBXIUyZDrSYZ/arcgis/rest/services/US_Airport/FeatureServer/0/query"`
		AllowedDomains   []string      `env:"PROXY_ALLOWED_DOMAINS" envSeparator:"," envDefault:"raw.githubusercontent.com,github.com,data.pnnl.gov,im3.pnnl.gov"`
		MaxResponseBytes int64         `env:"MAX_RESPONSE_BYTES" envDefault:"20971520"`
		BreakerFailures  uint32        `env:"BREAKER_FAILURES" envDefault:"5"`
		BreakerTimeout   time.Duration `env:"BREAKER_TIMEOUT" envDefault:"30s"`
	}

	// Ingest bounds both sides of a compressed snapshot upload.
	Ingest struct {
		MaxRawBytes          int64 `env:"MAX_RAW_BYTES" envDefault:"20971520"`
		MaxDecompressedBytes int64 `env:"MAX_DECOMPRESSED_BYTES" envDefault:"134217728"`
	}
)

func New() (*Config, error) {
	err := godotenv.Load()
	if err != nil {
		log.Printf("NOTICE: .env file not found or cannot be loaded: %v\n", err)
	}

	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, err
	}

	return &cfg, nil
}
