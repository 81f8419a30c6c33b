package entity

import (
	"time"

	"github.com/goccy/go-json"
	"github.com/paulmach/orb"
)

// TileRecord is the attribute data for one geographic cell. ID is assigned by the
// client and encodes the cell, so two writes with the same ID merge onto one row.
//
// The JSON blobs are opaque: the store keeps them verbatim and only checks that they
// still parse when read back. A nil blob means the field is absent.
type TileRecord struct {
	ID          string
	MinLat      float64
	MinLon      float64
	MaxLat      float64
	MaxLon      float64
	LanduseType string
	LandUseData json.RawMessage

	EPAData      json.RawMessage
	HasEPAData   bool
	EPAFetchDate *time.Time
	Elevation    *float64
	WaterwayData json.RawMessage
	AirportData  json.RawMessage
}

// Corner is the point the nearest-tile search measures from.
func (t TileRecord) Corner() orb.Point {
	return orb.Point{t.MinLon, t.MinLat}
}

// LandUse is the reduced projection served by the initial box lookup.
type LandUse struct {
	ID          string
	LanduseType string
	LandUseData json.RawMessage
}

// NearestTile is a tile together with its squared degree distance to the query point.
type NearestTile struct {
	TileRecord
	Distance float64
}

// IsNullBlob reports whether raw carries no value (absent or JSON null).
func IsNullBlob(raw json.RawMessage) bool {
	if len(raw) == 0 {
		return true
	}
	return string(raw) == "null"
}
