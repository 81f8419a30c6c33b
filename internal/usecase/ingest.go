package usecase

import (
	"bytes"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/goccy/go-json"
	"github.com/jaennil/guide_helper/backend/geocache/internal/entity"
	"github.com/jaennil/guide_helper/backend/geocache/pkg/config"
	"github.com/jaennil/guide_helper/backend/geocache/pkg/metrics"
)

const (
	encodingIdentity = "identity"
	encodingGzip     = "gzip"
)

type snapshotPayload struct {
	Lat         *float64        `json:"lat"`
	Lon         *float64        `json:"lon"`
	GridWidth   *int            `json:"gridWidth"`
	GridHeight  *int            `json:"gridHeight"`
	Tiles       json.RawMessage `json:"tiles"`
	LandUseInfo json.RawMessage `json:"landUseInfo"`
}

// DecodeSnapshot reads a snapshot upload. A gzip Content-Encoding is inflated first.
// Both the raw body and the inflated body are bounded by limits.
func DecodeSnapshot(body io.Reader, contentEncoding string, limits config.Ingest) (entity.MapSnapshot, error) {
	raw, err := readBounded(body, limits.MaxRawBytes)
	if err != nil {
		return entity.MapSnapshot{}, err
	}
	metrics.SnapshotPayloadBytes.WithLabelValues("raw").Observe(float64(len(raw)))

	encoding := normalizeEncoding(contentEncoding)
	switch encoding {
	case encodingIdentity:
	case encodingGzip:
		zr, err := gzip.NewReader(bytes.NewReader(raw))
		if err != nil {
			return entity.MapSnapshot{}, entity.NewValidationError("failed to decompress payload: %v", err)
		}
		defer zr.Close()

		raw, err = readBounded(zr, limits.MaxDecompressedBytes)
		if err != nil {
			var tooLarge *entity.TooLargeError
			if errors.As(err, &tooLarge) {
				return entity.MapSnapshot{}, err
			}
			return entity.MapSnapshot{}, entity.NewValidationError("failed to decompress payload: %v", err)
		}
		metrics.SnapshotPayloadBytes.WithLabelValues("decoded").Observe(float64(len(raw)))
	default:
		return entity.MapSnapshot{}, entity.NewValidationError("unsupported content encoding: %s", contentEncoding)
	}

	var p snapshotPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return entity.MapSnapshot{}, entity.NewValidationError("invalid JSON payload: %v", err)
	}

	if p.Lat == nil || p.Lon == nil || p.GridWidth == nil || *p.GridWidth == 0 ||
		p.GridHeight == nil || *p.GridHeight == 0 || entity.IsNullBlob(p.Tiles) {
		return entity.MapSnapshot{}, entity.NewValidationError("Missing required fields")
	}

	landUseInfo := p.LandUseInfo
	if entity.IsNullBlob(landUseInfo) {
		landUseInfo = json.RawMessage(`{}`)
	}

	s := entity.MapSnapshot{
		Lat:        *p.Lat,
		Lon:        *p.Lon,
		GridWidth:  *p.GridWidth,
		GridHeight: *p.GridHeight,
	}
	if s.Tiles, err = compact(p.Tiles); err != nil {
		return entity.MapSnapshot{}, err
	}
	if s.LandUseInfo, err = compact(landUseInfo); err != nil {
		return entity.MapSnapshot{}, err
	}

	return s, nil
}

func normalizeEncoding(contentEncoding string) string {
	enc := strings.ToLower(strings.TrimSpace(contentEncoding))
	switch enc {
	case "", encodingIdentity:
		return encodingIdentity
	case "x-gzip":
		return encodingGzip
	}
	return enc
}

func readBounded(r io.Reader, limit int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, &entity.TooLargeError{Limit: limit}
	}
	return data, nil
}

func compact(raw json.RawMessage) (json.RawMessage, error) {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return nil, fmt.Errorf("failed to compact payload: %w", err)
	}
	return buf.Bytes(), nil
}
