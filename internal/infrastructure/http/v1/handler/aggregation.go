package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jaennil/guide_helper/backend/geocache/internal/infrastructure/http/v1/dto"
)

const jsonContentType = "application/json; charset=utf-8"

func (h *Handler) Elevation(c *gin.Context) {
	var req dto.ElevationRequest
	if err := h.bind(c, &req); err != nil {
		h.respondError(c, err)
		return
	}

	body, err := h.aggregationUseCase.Elevation(c.Request.Context(), req.ToEntities())
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.Data(http.StatusOK, jsonContentType, body)
}

func (h *Handler) Waterways(c *gin.Context) {
	var req dto.BBoxRequest
	if err := h.bind(c, &req); err != nil {
		h.respondError(c, err)
		return
	}

	features := h.aggregationUseCase.Waterways(c.Request.Context(), req.ToEntity())

	c.JSON(http.StatusOK, dto.FeaturesResponse{Features: features})
}

func (h *Handler) Airports(c *gin.Context) {
	var req dto.BBoxRequest
	if err := h.bind(c, &req); err != nil {
		h.respondError(c, err)
		return
	}

	features, err := h.aggregationUseCase.Airports(c.Request.Context(), req.ToEntity())
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.FeaturesResponse{Features: features})
}

func (h *Handler) Proxy(c *gin.Context) {
	res, err := h.aggregationUseCase.Proxy(c.Request.Context(), c.Query("url"))
	if err != nil {
		h.respondError(c, err)
		return
	}

	if res.JSON {
		c.Data(http.StatusOK, jsonContentType, res.Body)
		return
	}

	contentType := res.ContentType
	if contentType == "" {
		contentType = "text/plain; charset=utf-8"
	}
	c.Data(http.StatusOK, contentType, res.Body)
}
