package entity

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/goccy/go-json"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
)

func TestBBoxEnvelope(t *testing.T) {
	b := BBox{MinLat: 40.5, MinLon: -74.25, MaxLat: 41, MaxLon: -73.7}

	assert.Equal(t, "-74.25,40.5,-73.7,41", b.Envelope())
	assert.Equal(t, orb.Point{-74.25, 40.5}, b.Bound().Min)
	assert.Equal(t, orb.Point{-73.7, 41}, b.Bound().Max)
}

func TestTileCorner(t *testing.T) {
	tile := TileRecord{MinLat: 1, MinLon: 2, MaxLat: 3, MaxLon: 4}

	assert.Equal(t, orb.Point{2, 1}, tile.Corner())
}

func TestLocationString(t *testing.T) {
	assert.Equal(t, "40.7128,-74.006", Location{Lat: 40.7128, Lon: -74.006}.String())
}

func TestIsNullBlob(t *testing.T) {
	assert.True(t, IsNullBlob(nil))
	assert.True(t, IsNullBlob(json.RawMessage("null")))
	assert.False(t, IsNullBlob(json.RawMessage(`{}`)))
	assert.False(t, IsNullBlob(json.RawMessage(`0`)))
}

func TestErrors(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", NewValidationError("missing %s", "id"))
	assert.True(t, IsValidation(err))
	assert.EqualError(t, errors.Unwrap(err), "missing id")

	forbidden := &ForbiddenError{Host: "evil.example.com", Allowed: []string{"github.com", "data.pnnl.gov"}}
	assert.Equal(t, "domain not allowed: evil.example.com. allowed: github.com, data.pnnl.gov", forbidden.Error())

	cause := errors.New("connection refused")
	upstream := &UpstreamError{Provider: "elevation", StatusCode: http.StatusBadGateway, Err: cause}
	assert.ErrorIs(t, upstream, cause)
	assert.False(t, IsValidation(upstream))
}
