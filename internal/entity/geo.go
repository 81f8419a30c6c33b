package entity

import (
	"strconv"

	"github.com/paulmach/orb"
)

type BBox struct {
	MinLat float64
	MinLon float64
	MaxLat float64
	MaxLon float64
}

func (b BBox) Bound() orb.Bound {
	return orb.Bound{
		Min: orb.Point{b.MinLon, b.MinLat},
		Max: orb.Point{b.MaxLon, b.MaxLat},
	}
}

// Envelope formats the box as an ArcGIS envelope: xmin,ymin,xmax,ymax (lon before lat).
func (b BBox) Envelope() string {
	bound := b.Bound()
	return formatFloat(bound.Min.X()) + "," + formatFloat(bound.Min.Y()) + "," +
		formatFloat(bound.Max.X()) + "," + formatFloat(bound.Max.Y())
}

type Location struct {
	Lat float64
	Lon float64
}

func (l Location) String() string {
	return formatFloat(l.Lat) + "," + formatFloat(l.Lon)
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
