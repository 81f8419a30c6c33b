package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jaennil/guide_helper/backend/geocache/internal/infrastructure/http/v1/dto"
)

func (h *Handler) Health(c *gin.Context) {
	resp := dto.HealthResponse{
		Status:   "ok",
		Uptime:   time.Since(h.startedAt).Seconds(),
		Database: "ok",
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if h.db != nil {
		if err := h.db.HealthCheck(ctx); err != nil {
			h.log(c).Error("database health check failed", "error", err)
			resp.Status = "degraded"
			resp.Database = "error"
			c.JSON(http.StatusServiceUnavailable, resp)
			return
		}
	}

	c.JSON(http.StatusOK, resp)
}
