package v1

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jaennil/guide_helper/backend/geocache/internal/infrastructure/http/v1/dto"
	"github.com/jaennil/guide_helper/backend/geocache/internal/infrastructure/http/v1/handler"
	"github.com/jaennil/guide_helper/backend/geocache/pkg/logger"
	"github.com/jaennil/guide_helper/backend/geocache/pkg/telemetry"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	requestIDHeader = "X-Request-ID"
	slowRequest     = 2 * time.Second
)

type RouterConfig struct {
	TelemetryEnabled bool
	MaxBodyBytes     int64
}

func NewRouter(handler *handler.Handler, l logger.Logger, cfg RouterConfig) *gin.Engine {
	r := gin.New()

	r.Use(requestID())
	r.Use(ginZapLogger(l))
	r.Use(gin.CustomRecovery(recoveryHandler))

	if cfg.TelemetryEnabled {
		r.Use(telemetry.GinMiddleware("/health", "/metrics"))
	}

	r.GET("/health", handler.Health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// snapshot uploads carry their own raw and decompressed bounds
	r.POST("/saveMap", handler.SaveMap)

	api := r.Group("/", bodyLimit(cfg.MaxBodyBytes))

	api.GET("/closestBbox", handler.ClosestBbox)
	api.POST("/initialBox", handler.InitialBox)
	api.POST("/saveTile", handler.SaveTile)
	api.GET("/getTile", handler.GetTile)
	api.POST("/getTilesBatch", handler.GetTilesBatch)
	api.POST("/saveTilesBatch", handler.SaveTilesBatch)
	api.GET("/checkMap", handler.CheckMap)

	api.POST("/elevation", handler.Elevation)
	api.POST("/waterways", handler.Waterways)
	api.POST("/airports", handler.Airports)
	api.GET("/proxy", handler.Proxy)

	api.POST("/clearTiles", handler.ClearTiles)

	return r
}

func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

func ginZapLogger(l logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		rl := l.With("request_id", c.GetString("request_id"))
		c.Set("logger", rl)
		c.Request = c.Request.WithContext(logger.WithLogger(c.Request.Context(), rl))

		start := time.Now()

		c.Next()

		latency := time.Since(start)

		fields := []any{
			"status", c.Writer.Status(),
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"ip", c.ClientIP(),
			"latency", latency,
			"size", c.Writer.Size(),
		}

		if latency > slowRequest {
			rl.Warn("request", append(fields, "slow", true)...)
			return
		}
		rl.Info("request", fields...)
	}
}

func recoveryHandler(c *gin.Context, recovered any) {
	l := logger.FromContext(c.Request.Context())
	if v, ok := c.Get("logger"); ok {
		if rl, ok := v.(logger.Logger); ok {
			l = rl
		}
	}

	l.Error("panic recovered",
		"method", c.Request.Method,
		"path", c.Request.URL.Path,
		"panic", recovered,
	)

	c.AbortWithStatusJSON(http.StatusInternalServerError, dto.ErrorResponse{
		Success: false,
		Error:   "the server encountered an error and could not process your request",
	})
}

func bodyLimit(limit int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limit > 0 && c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
		}
		c.Next()
	}
}
