package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	v1 "github.com/jaennil/guide_helper/backend/geocache/internal/infrastructure/http/v1"
	"github.com/jaennil/guide_helper/backend/geocache/internal/infrastructure/http/v1/handler"
	"github.com/jaennil/guide_helper/backend/geocache/internal/infrastructure/upstream"
	"github.com/jaennil/guide_helper/backend/geocache/internal/repository/cache"
	"github.com/jaennil/guide_helper/backend/geocache/internal/repository/snapshot"
	"github.com/jaennil/guide_helper/backend/geocache/internal/repository/storage"
	"github.com/jaennil/guide_helper/backend/geocache/internal/repository/tile"
	"github.com/jaennil/guide_helper/backend/geocache/internal/usecase"
	"github.com/jaennil/guide_helper/backend/geocache/pkg/config"
	"github.com/jaennil/guide_helper/backend/geocache/pkg/http_server"
	"github.com/jaennil/guide_helper/backend/geocache/pkg/logger"
	"github.com/jaennil/guide_helper/backend/geocache/pkg/telemetry"
)

const poolStatsInterval = 15 * time.Second

// Run serves until SIGINT or SIGTERM and returns once shutdown completes. Startup
// failures are returned before the server listens.
func Run(cfg *config.Config) error {
	l, err := logger.NewZapLogger(cfg.Logger)
	if err != nil {
		return err
	}
	defer l.Sync()

	l.Info("app config",
		"port", cfg.HTTP.Server.Port,
		"db_driver", cfg.DB.Driver,
		"cache_backend", cfg.Cache.Backend,
		"telemetry", cfg.Telemetry.Enabled,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ctx = logger.WithLogger(ctx, l)

	if cfg.Telemetry.Enabled {
		shutdownTracer, err := telemetry.InitTracer(telemetry.Config{
			ServiceName:    cfg.Telemetry.ServiceName,
			ServiceVersion: cfg.Telemetry.ServiceVersion,
			Environment:    cfg.Telemetry.Environment,
			OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
		}, l)
		if err != nil {
			return fmt.Errorf("failed to initialize tracer: %w", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdownTracer(shutdownCtx); err != nil {
				l.Error("tracer shutdown failed", "error", err)
			}
		}()
	}

	db, err := storage.Open(cfg.DB, l)
	if err != nil {
		return fmt.Errorf("failed to open relational store: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			l.Error("failed to close relational store", "error", err)
		}
	}()

	responseCache, closeCache, err := cache.New(cache.Config{
		Backend: cfg.Cache.Backend,
		TTL:     cfg.Cache.TTL,
		Redis: cache.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		},
	}, l)
	if err != nil {
		return fmt.Errorf("failed to initialize upstream response cache: %w", err)
	}
	defer func() {
		if err := closeCache(); err != nil {
			l.Error("failed to close upstream response cache", "error", err)
		}
	}()

	go reportPoolStats(ctx, db, responseCache)

	tileRepo := tile.NewRepository(db, l)
	snapshotRepo := snapshot.NewRepository(db, l)
	fetcher := upstream.NewClient(cfg.Upstream, &http.Client{}, responseCache, l)

	tileUseCase := usecase.NewTileUseCase(tileRepo, l)
	mapUseCase := usecase.NewMapUseCase(snapshotRepo, cfg.Ingest, l)
	aggregationUseCase := usecase.NewAggregationUseCase(fetcher, cfg.Upstream, l)

	h := handler.NewHandler(handler.NewValidator(), tileUseCase, mapUseCase, aggregationUseCase, db, l)
	router := v1.NewRouter(h, l, v1.RouterConfig{
		TelemetryEnabled: cfg.Telemetry.Enabled,
		MaxBodyBytes:     cfg.HTTP.MaxBodyBytes,
	})

	// in-flight requests keep running while Shutdown drains them
	httpServer := http_server.NewServer(context.WithoutCancel(ctx), cfg.HTTP.Server, router)

	serverErr := make(chan error, 1)
	go func() {
		l.Info("starting http server...", "address", httpServer.Addr)
		err := httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
			return
		}
		l.Info("http server stopped", "address", httpServer.Addr)
	}()

	select {
	case err := <-serverErr:
		return fmt.Errorf("http server failed: %w", err)
	case <-ctx.Done():
		l.Info("received shutdown signal")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	l.Info("shutting down http server...", "address", httpServer.Addr)
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		l.Error("http server shutdown failed", "error", err)
	} else {
		l.Info("http_server shutdown completed")
	}

	l.Info("application shutdown completed")
	return nil
}

type poolReporter interface {
	ReportPoolStats()
}

func reportPoolStats(ctx context.Context, db *storage.DB, c cache.ResponseCache) {
	reporters := []poolReporter{db}
	if r, ok := c.(poolReporter); ok {
		reporters = append(reporters, r)
	}

	ticker := time.NewTicker(poolStatsInterval)
	defer ticker.Stop()

	for {
		for _, r := range reporters {
			r.ReportPoolStats()
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
