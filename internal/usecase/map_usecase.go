package usecase

import (
	"context"
	"io"
	"math"

	"github.com/jaennil/guide_helper/backend/geocache/internal/entity"
	"github.com/jaennil/guide_helper/backend/geocache/pkg/config"
	"github.com/jaennil/guide_helper/backend/geocache/pkg/logger"
	"github.com/jaennil/guide_helper/backend/geocache/pkg/metrics"
)

type MapUseCase struct {
	snapshots SnapshotRepository
	limits    config.Ingest
	logger    logger.Logger
}

func NewMapUseCase(snapshots SnapshotRepository, limits config.Ingest, l logger.Logger) *MapUseCase {
	return &MapUseCase{
		snapshots: snapshots,
		limits:    limits,
		logger:    l,
	}
}

func (uc *MapUseCase) CheckMap(ctx context.Context, lat, lon float64) (entity.MapSnapshot, bool, error) {
	if math.IsNaN(lat) || math.IsNaN(lon) || math.IsInf(lat, 0) || math.IsInf(lon, 0) {
		return entity.MapSnapshot{}, false, entity.NewValidationError("Invalid lat/lon parameters")
	}

	s, found, err := uc.snapshots.Get(ctx, lat, lon)
	if err != nil {
		uc.logger.Error("map lookup failed", "lat", lat, "lon", lon, "error", err)
		return entity.MapSnapshot{}, false, err
	}

	uc.logger.Debug("map lookup", "lat", lat, "lon", lon, "found", found)

	return s, found, nil
}

// SaveMap decodes an optionally gzip-encoded snapshot and replaces whatever is stored
// at its coordinates.
func (uc *MapUseCase) SaveMap(ctx context.Context, body io.Reader, contentEncoding string) error {
	s, err := DecodeSnapshot(body, contentEncoding, uc.limits)
	if err != nil {
		uc.logger.Warn("rejected map payload", "encoding", contentEncoding, "error", err)
		return err
	}

	uc.logger.Info("saving map", "lat", s.Lat, "lon", s.Lon, "grid_width", s.GridWidth, "grid_height", s.GridHeight)

	if err := uc.snapshots.Upsert(ctx, s); err != nil {
		uc.logger.Error("failed to save map", "lat", s.Lat, "lon", s.Lon, "error", err)
		return err
	}
	metrics.SnapshotsSaved.WithLabelValues(normalizeEncoding(contentEncoding)).Inc()

	return nil
}
