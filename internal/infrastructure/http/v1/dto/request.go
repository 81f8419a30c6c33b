package dto

import (
	"time"

	"github.com/goccy/go-json"
	"github.com/jaennil/guide_helper/backend/geocache/internal/entity"
)

// TileRequest is one tile write. Blob fields accept the snake_case keys older
// clients send and their camelCase aliases; snake_case wins when both are set.
type TileRequest struct {
	ID          string   `json:"id" validate:"required"`
	MinLat      *float64 `json:"minLat" validate:"required"`
	MinLon      *float64 `json:"minLon" validate:"required"`
	MaxLat      *float64 `json:"maxLat" validate:"required"`
	MaxLon      *float64 `json:"maxLon" validate:"required"`
	LanduseType string   `json:"landuseType" validate:"required"`

	LandUseData      json.RawMessage `json:"land_use_data"`
	LandUseDataAlias json.RawMessage `json:"landUseData"`
	EPAData          json.RawMessage `json:"epa_data"`
	EPADataAlias     json.RawMessage `json:"epaData"`
	EPAFetchDate     *time.Time      `json:"epaFetchDate"`
	Elevation        *float64        `json:"elevation"`
	WaterwayData     json.RawMessage `json:"waterway_data"`
	WaterwayAlias    json.RawMessage `json:"waterwayData"`
	AirportData      json.RawMessage `json:"airport_data"`
	AirportAlias     json.RawMessage `json:"airportData"`
}

func (r TileRequest) ToEntity() entity.TileRecord {
	t := entity.TileRecord{
		ID:           r.ID,
		LanduseType:  r.LanduseType,
		LandUseData:  pickBlob(r.LandUseData, r.LandUseDataAlias),
		EPAData:      pickBlob(r.EPAData, r.EPADataAlias),
		EPAFetchDate: r.EPAFetchDate,
		Elevation:    r.Elevation,
		WaterwayData: pickBlob(r.WaterwayData, r.WaterwayAlias),
		AirportData:  pickBlob(r.AirportData, r.AirportAlias),
	}
	if r.MinLat != nil {
		t.MinLat = *r.MinLat
	}
	if r.MinLon != nil {
		t.MinLon = *r.MinLon
	}
	if r.MaxLat != nil {
		t.MaxLat = *r.MaxLat
	}
	if r.MaxLon != nil {
		t.MaxLon = *r.MaxLon
	}
	return t
}

type SaveTilesBatchRequest struct {
	Tiles []TileRequest `json:"tiles" validate:"dive"`
}

func (r SaveTilesBatchRequest) ToEntities() []entity.TileRecord {
	out := make([]entity.TileRecord, len(r.Tiles))
	for i, t := range r.Tiles {
		out[i] = t.ToEntity()
	}
	return out
}

type GetTilesBatchRequest struct {
	TileIDs []string `json:"tileIds"`
}

type InitialBoxItem struct {
	ID string `json:"id"`
}

type Location struct {
	Lat *float64 `json:"lat" validate:"required"`
	Lon *float64 `json:"lon" validate:"required"`
}

type ElevationRequest struct {
	Locations []Location `json:"locations" validate:"dive"`
}

func (r ElevationRequest) ToEntities() []entity.Location {
	out := make([]entity.Location, len(r.Locations))
	for i, l := range r.Locations {
		out[i] = entity.Location{Lat: *l.Lat, Lon: *l.Lon}
	}
	return out
}

type BBoxRequest struct {
	MinLat *float64 `json:"minLat" validate:"required"`
	MinLon *float64 `json:"minLon" validate:"required"`
	MaxLat *float64 `json:"maxLat" validate:"required"`
	MaxLon *float64 `json:"maxLon" validate:"required"`
}

func (r BBoxRequest) ToEntity() entity.BBox {
	return entity.BBox{
		MinLat: *r.MinLat,
		MinLon: *r.MinLon,
		MaxLat: *r.MaxLat,
		MaxLon: *r.MaxLon,
	}
}

func pickBlob(primary, alias json.RawMessage) json.RawMessage {
	raw := primary
	if entity.IsNullBlob(raw) {
		raw = alias
	}
	if entity.IsNullBlob(raw) {
		return nil
	}
	return unwrapEncoded(raw)
}

// unwrapEncoded turns a JSON string holding serialized JSON ("{\"a\":1}") into the
// JSON it holds. Browsers often send land use data pre-stringified.
func unwrapEncoded(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 || raw[0] != '"' {
		return raw
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return raw
	}
	if s == "" || !json.Valid([]byte(s)) {
		return raw
	}
	return json.RawMessage(s)
}
