package handler

import (
	"math"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/jaennil/guide_helper/backend/geocache/internal/entity"
	"github.com/jaennil/guide_helper/backend/geocache/internal/infrastructure/http/v1/dto"
)

func (h *Handler) ClosestBbox(c *gin.Context) {
	lat, lon, err := parseCoordinates(c)
	if err != nil {
		h.respondError(c, err)
		return
	}

	nearest, found, err := h.tileUseCase.Closest(c.Request.Context(), lat, lon)
	if err != nil {
		h.respondError(c, err)
		return
	}

	if !found {
		h.log(c).Info("no bounding boxes stored")
		c.JSON(http.StatusOK, []dto.ClosestTileResponse{})
		return
	}

	c.JSON(http.StatusOK, []dto.ClosestTileResponse{{
		TileResponse: dto.NewTileResponse(nearest.TileRecord),
		Distance:     nearest.Distance,
	}})
}

func (h *Handler) InitialBox(c *gin.Context) {
	var req []dto.InitialBoxItem
	if err := h.decode(c, &req); err != nil {
		h.respondError(c, err)
		return
	}

	ids := make([]string, len(req))
	for i, box := range req {
		ids[i] = box.ID
	}

	landUse, err := h.tileUseCase.InitialBox(c.Request.Context(), ids)
	if err != nil {
		h.respondError(c, err)
		return
	}

	resp := make([]dto.LandUseResponse, len(landUse))
	for i, lu := range landUse {
		resp[i] = dto.LandUseResponse{
			ID:          lu.ID,
			LanduseType: lu.LanduseType,
			LandUseData: lu.LandUseData,
		}
	}

	c.JSON(http.StatusOK, resp)
}

func (h *Handler) SaveTile(c *gin.Context) {
	var req dto.TileRequest
	if err := h.bind(c, &req); err != nil {
		h.respondError(c, err)
		return
	}

	if err := h.tileUseCase.SaveTile(c.Request.Context(), req.ToEntity()); err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.SuccessResponse{Success: true})
}

func (h *Handler) GetTile(c *gin.Context) {
	t, exists, err := h.tileUseCase.GetTile(c.Request.Context(), c.Query("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}

	if !exists {
		c.JSON(http.StatusOK, dto.GetTileResponse{Exists: false})
		return
	}

	tile := dto.NewTileResponse(t)
	c.JSON(http.StatusOK, dto.GetTileResponse{Exists: true, Tile: &tile})
}

func (h *Handler) GetTilesBatch(c *gin.Context) {
	var req dto.GetTilesBatchRequest
	if err := h.bind(c, &req); err != nil {
		h.respondError(c, err)
		return
	}

	tiles, err := h.tileUseCase.GetTilesBatch(c.Request.Context(), req.TileIDs)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewTilesBatchResponse(tiles))
}

func (h *Handler) SaveTilesBatch(c *gin.Context) {
	var req dto.SaveTilesBatchRequest
	if err := h.bind(c, &req); err != nil {
		h.respondError(c, err)
		return
	}

	count, err := h.tileUseCase.SaveTilesBatch(c.Request.Context(), req.ToEntities())
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.SaveTilesBatchResponse{Success: true, Count: count})
}

func (h *Handler) ClearTiles(c *gin.Context) {
	h.log(c).Warn("clear tiles requested", "ip", c.ClientIP())

	if err := h.tileUseCase.ClearTiles(c.Request.Context()); err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.SuccessResponse{Success: true, Message: "All tiles cleared"})
}

func parseCoordinates(c *gin.Context) (float64, float64, error) {
	lat, err := strconv.ParseFloat(c.Query("lat"), 64)
	if err != nil || math.IsNaN(lat) || math.IsInf(lat, 0) {
		return 0, 0, entity.NewValidationError("%s", ErrInvalidCoordinates)
	}
	lon, err := strconv.ParseFloat(c.Query("lon"), 64)
	if err != nil || math.IsNaN(lon) || math.IsInf(lon, 0) {
		return 0, 0, entity.NewValidationError("%s", ErrInvalidCoordinates)
	}
	return lat, lon, nil
}
