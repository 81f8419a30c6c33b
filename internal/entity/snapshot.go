package entity

import (
	"time"

	"github.com/goccy/go-json"
)

// MapSnapshot is a full rendered grid keyed by its exact (Lat, Lon) pair. Coordinates
// are compared bit for bit, so values that differ only by float noise are distinct keys.
type MapSnapshot struct {
	Lat         float64
	Lon         float64
	GridWidth   int
	GridHeight  int
	Tiles       json.RawMessage
	LandUseInfo json.RawMessage
	CreatedAt   time.Time
}
