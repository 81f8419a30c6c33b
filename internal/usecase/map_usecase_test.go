package usecase

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/jaennil/guide_helper/backend/geocache/internal/entity"
	"github.com/jaennil/guide_helper/backend/geocache/internal/repository/snapshot"
	"github.com/jaennil/guide_helper/backend/geocache/internal/repository/storage/storagetest"
	"github.com/jaennil/guide_helper/backend/geocache/pkg/config"
	"github.com/jaennil/guide_helper/backend/geocache/pkg/logger"
	"github.com/jaennil/guide_helper/backend/geocache/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const mapPayload = `{
	"lat": 40.7128,
	"lon": -74.006,
	"gridWidth": 3,
	"gridHeight": 2,
	"tiles": [["water", "urban", "forest"], ["urban", "urban", "park"]],
	"landUseInfo": {"urban": 3, "water": 1}
}`

var testLimits = config.Ingest{MaxRawBytes: 1 << 20, MaxDecompressedBytes: 4 << 20}

func newMapUseCase(t *testing.T) *MapUseCase {
	t.Helper()
	db := storagetest.OpenTestDB(t)
	return NewMapUseCase(snapshot.NewRepository(db, logger.NewNop()), testLimits, logger.NewNop())
}

func gzipBytes(t *testing.T, s string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := zw.Write([]byte(s))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestSaveMapPlainAndGzipStoreSameSnapshot(t *testing.T) {
	ctx := context.Background()

	plain := newMapUseCase(t)
	require.NoError(t, plain.SaveMap(ctx, strings.NewReader(mapPayload), ""))
	fromPlain, found, err := plain.CheckMap(ctx, 40.7128, -74.006)
	require.NoError(t, err)
	require.True(t, found)

	zipped := newMapUseCase(t)
	require.NoError(t, zipped.SaveMap(ctx, bytes.NewReader(gzipBytes(t, mapPayload)), "GZIP"))
	fromGzip, found, err := zipped.CheckMap(ctx, 40.7128, -74.006)
	require.NoError(t, err)
	require.True(t, found)

	assert.Equal(t, fromPlain.GridWidth, fromGzip.GridWidth)
	assert.Equal(t, fromPlain.GridHeight, fromGzip.GridHeight)
	assert.Equal(t, string(fromPlain.Tiles), string(fromGzip.Tiles))
	assert.Equal(t, string(fromPlain.LandUseInfo), string(fromGzip.LandUseInfo))
	assert.Equal(t, `[["water","urban","forest"],["urban","urban","park"]]`, string(fromGzip.Tiles))
}

type failingSnapshots struct {
	SnapshotRepository
}

func (failingSnapshots) Upsert(context.Context, entity.MapSnapshot) error {
	return errors.New("disk full")
}

func TestSaveMapCountsOnlyStoredSnapshots(t *testing.T) {
	ctx := context.Background()
	saved := metrics.SnapshotsSaved.WithLabelValues("identity")

	before := testutil.ToFloat64(saved)
	failing := NewMapUseCase(failingSnapshots{}, testLimits, logger.NewNop())
	require.Error(t, failing.SaveMap(ctx, strings.NewReader(mapPayload), ""))
	assert.Equal(t, before, testutil.ToFloat64(saved))

	require.NoError(t, newMapUseCase(t).SaveMap(ctx, strings.NewReader(mapPayload), ""))
	assert.Equal(t, before+1, testutil.ToFloat64(saved))
}

func TestSaveMapOverwritesWholesale(t *testing.T) {
	ctx := context.Background()
	uc := newMapUseCase(t)

	require.NoError(t, uc.SaveMap(ctx, strings.NewReader(mapPayload), ""))
	require.NoError(t, uc.SaveMap(ctx, strings.NewReader(`{"lat":40.7128,"lon":-74.006,"gridWidth":1,"gridHeight":1,"tiles":[]}`), ""))

	got, found, err := uc.CheckMap(ctx, 40.7128, -74.006)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, 1, got.GridWidth)
	assert.Equal(t, "[]", string(got.Tiles))
	assert.Equal(t, "{}", string(got.LandUseInfo))
}

func TestCheckMapMissing(t *testing.T) {
	uc := newMapUseCase(t)

	_, found, err := uc.CheckMap(context.Background(), 1, 2)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestDecodeSnapshotErrors(t *testing.T) {
	cases := map[string]struct {
		body     []byte
		encoding string
	}{
		"invalid json":       {body: []byte(`{"lat":`)},
		"missing lat":        {body: []byte(`{"lon":1,"gridWidth":1,"gridHeight":1,"tiles":[]}`)},
		"zero grid width":    {body: []byte(`{"lat":0,"lon":0,"gridWidth":0,"gridHeight":1,"tiles":[]}`)},
		"missing tiles":      {body: []byte(`{"lat":0,"lon":0,"gridWidth":1,"gridHeight":1}`)},
		"not gzip":           {body: []byte(mapPayload), encoding: "gzip"},
		"unsupported codec":  {body: []byte(mapPayload), encoding: "br"},
		"string coordinates": {body: []byte(`{"lat":"a","lon":0,"gridWidth":1,"gridHeight":1,"tiles":[]}`)},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeSnapshot(bytes.NewReader(tc.body), tc.encoding, testLimits)
			assert.True(t, entity.IsValidation(err), "got %v", err)
		})
	}
}

func TestDecodeSnapshotZeroCoordinatesAllowed(t *testing.T) {
	s, err := DecodeSnapshot(strings.NewReader(`{"lat":0,"lon":0,"gridWidth":1,"gridHeight":1,"tiles":[]}`), "", testLimits)
	require.NoError(t, err)
	assert.Equal(t, 0.0, s.Lat)
	assert.Equal(t, 0.0, s.Lon)
}

func TestDecodeSnapshotBoundsRawBody(t *testing.T) {
	limits := config.Ingest{MaxRawBytes: 16, MaxDecompressedBytes: 1 << 20}

	_, err := DecodeSnapshot(strings.NewReader(mapPayload), "", limits)
	var tooLarge *entity.TooLargeError
	require.ErrorAs(t, err, &tooLarge)
	assert.Equal(t, int64(16), tooLarge.Limit)
}

func TestDecodeSnapshotBoundsDecompressedBody(t *testing.T) {
	// highly compressible payload: small on the wire, large once inflated
	padded := `{"lat":1,"lon":1,"gridWidth":1,"gridHeight":1,"tiles":["` + strings.Repeat("a", 64*1024) + `"]}`
	body := gzipBytes(t, padded)
	limits := config.Ingest{MaxRawBytes: 1 << 20, MaxDecompressedBytes: 1024}
	require.Less(t, len(body), 1<<20)

	_, err := DecodeSnapshot(bytes.NewReader(body), "gzip", limits)
	var tooLarge *entity.TooLargeError
	require.ErrorAs(t, err, &tooLarge)
	assert.Equal(t, int64(1024), tooLarge.Limit)
}
