package dto

import (
	"time"

	"github.com/goccy/go-json"
	"github.com/jaennil/guide_helper/backend/geocache/internal/entity"
	"github.com/jaennil/guide_helper/backend/geocache/internal/usecase"
)

type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

type SuccessResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

type TileResponse struct {
	ID           string          `json:"id"`
	MinLat       float64         `json:"minLat"`
	MinLon       float64         `json:"minLon"`
	MaxLat       float64         `json:"maxLat"`
	MaxLon       float64         `json:"maxLon"`
	LanduseType  string          `json:"landuseType"`
	LandUseData  json.RawMessage `json:"landUseData"`
	HasEPAData   bool            `json:"hasEpaData"`
	EPAData      json.RawMessage `json:"epaData,omitempty"`
	EPAFetchDate *time.Time      `json:"epaFetchDate,omitempty"`
	Elevation    *float64        `json:"elevation,omitempty"`
	WaterwayData json.RawMessage `json:"waterwayData,omitempty"`
	AirportData  json.RawMessage `json:"airportData,omitempty"`
}

func NewTileResponse(t entity.TileRecord) TileResponse {
	return TileResponse{
		ID:           t.ID,
		MinLat:       t.MinLat,
		MinLon:       t.MinLon,
		MaxLat:       t.MaxLat,
		MaxLon:       t.MaxLon,
		LanduseType:  t.LanduseType,
		LandUseData:  t.LandUseData,
		HasEPAData:   t.HasEPAData,
		EPAData:      t.EPAData,
		EPAFetchDate: t.EPAFetchDate,
		Elevation:    t.Elevation,
		WaterwayData: t.WaterwayData,
		AirportData:  t.AirportData,
	}
}

type ClosestTileResponse struct {
	TileResponse
	Distance float64 `json:"distance"`
}

type GetTileResponse struct {
	Exists bool          `json:"exists"`
	Tile   *TileResponse `json:"tile,omitempty"`
}

type TilesBatchResponse struct {
	Tiles map[string]TileResponse `json:"tiles"`
}

func NewTilesBatchResponse(tiles map[string]entity.TileRecord) TilesBatchResponse {
	out := make(map[string]TileResponse, len(tiles))
	for id, t := range tiles {
		out[id] = NewTileResponse(t)
	}
	return TilesBatchResponse{Tiles: out}
}

type SaveTilesBatchResponse struct {
	Success bool `json:"success"`
	Count   int  `json:"count"`
}

type LandUseResponse struct {
	ID          string          `json:"id"`
	LanduseType string          `json:"landuseType"`
	LandUseData json.RawMessage `json:"landUseData"`
}

type MapDataResponse struct {
	GridWidth   int             `json:"gridWidth"`
	GridHeight  int             `json:"gridHeight"`
	Tiles       json.RawMessage `json:"tiles"`
	LandUseInfo json.RawMessage `json:"landUseInfo"`
}

type CheckMapResponse struct {
	Exists  bool             `json:"exists"`
	MapData *MapDataResponse `json:"mapData,omitempty"`
}

type FeaturesResponse struct {
	Features []usecase.Feature `json:"features"`
}

type HealthResponse struct {
	Status   string  `json:"status"`
	Uptime   float64 `json:"uptime"`
	Database string  `json:"database"`
}
