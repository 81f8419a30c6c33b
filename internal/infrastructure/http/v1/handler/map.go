package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jaennil/guide_helper/backend/geocache/internal/entity"
	"github.com/jaennil/guide_helper/backend/geocache/internal/infrastructure/http/v1/dto"
)

func (h *Handler) CheckMap(c *gin.Context) {
	lat, lon, err := parseCoordinates(c)
	if err != nil {
		h.respondError(c, err)
		return
	}

	s, found, err := h.mapUseCase.CheckMap(c.Request.Context(), lat, lon)
	if err != nil {
		h.respondError(c, err)
		return
	}

	if !found {
		c.JSON(http.StatusOK, dto.CheckMapResponse{Exists: false})
		return
	}

	c.JSON(http.StatusOK, dto.CheckMapResponse{
		Exists: true,
		MapData: &dto.MapDataResponse{
			GridWidth:   s.GridWidth,
			GridHeight:  s.GridHeight,
			Tiles:       s.Tiles,
			LandUseInfo: s.LandUseInfo,
		},
	})
}

// SaveMap reads the raw body itself: it may be gzip encoded and is bounded by the
// ingest limits rather than the JSON body limit.
func (h *Handler) SaveMap(c *gin.Context) {
	if c.Request.Body == nil {
		h.respondError(c, entity.NewValidationError("request body is required"))
		return
	}

	err := h.mapUseCase.SaveMap(c.Request.Context(), c.Request.Body, c.GetHeader("Content-Encoding"))
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.SuccessResponse{Success: true})
}
