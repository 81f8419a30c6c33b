package usecase

import (
	"context"
	"time"

	"github.com/jaennil/guide_helper/backend/geocache/internal/entity"
	"github.com/jaennil/guide_helper/backend/geocache/pkg/logger"
	"github.com/jaennil/guide_helper/backend/geocache/pkg/metrics"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// MaxBatchSize bounds the ids served by one batch read or initial box lookup.
const MaxBatchSize = 500

type TileUseCase struct {
	tiles  TileRepository
	logger logger.Logger
	now    func() time.Time
}

func NewTileUseCase(tiles TileRepository, l logger.Logger) *TileUseCase {
	return &TileUseCase{
		tiles:  tiles,
		logger: l,
		now:    time.Now,
	}
}

func (uc *TileUseCase) GetTile(ctx context.Context, id string) (entity.TileRecord, bool, error) {
	if id == "" {
		return entity.TileRecord{}, false, entity.NewValidationError("Missing tile ID")
	}

	uc.logger.Debug("tile lookup", "id", id)

	t, exists, err := uc.tiles.Get(ctx, id)
	if err != nil {
		uc.logger.Error("tile lookup failed", "id", id, "error", err)
		return entity.TileRecord{}, false, err
	}

	if exists {
		metrics.TileLookups.WithLabelValues("hit").Inc()
	} else {
		metrics.TileLookups.WithLabelValues("miss").Inc()
	}

	return t, exists, nil
}

// GetTilesBatch serves at most MaxBatchSize ids, taken from the front of ids in
// request order. Ids without a stored record are absent from the result.
func (uc *TileUseCase) GetTilesBatch(ctx context.Context, ids []string) (map[string]entity.TileRecord, error) {
	if len(ids) == 0 {
		return nil, entity.NewValidationError("Missing or invalid tileIds array")
	}

	if len(ids) > MaxBatchSize {
		uc.logger.Warn("batch request truncated", "requested", len(ids), "limit", MaxBatchSize)
		metrics.TileBatchTruncated.Inc()
		ids = ids[:MaxBatchSize]
	}
	metrics.TileBatchSize.WithLabelValues("get").Observe(float64(len(ids)))

	tiles, err := uc.tiles.GetBatch(ctx, ids)
	if err != nil {
		uc.logger.Error("batch tile lookup failed", "count", len(ids), "error", err)
		return nil, err
	}

	metrics.TileLookups.WithLabelValues("hit").Add(float64(len(tiles)))
	metrics.TileLookups.WithLabelValues("miss").Add(float64(len(ids) - len(tiles)))
	uc.logger.Info("batch tile lookup", "requested", len(ids), "found", len(tiles))

	return tiles, nil
}

func (uc *TileUseCase) SaveTile(ctx context.Context, t entity.TileRecord) error {
	if err := validateTile(t); err != nil {
		return err
	}

	uc.stampEPA(&t)

	if err := uc.tiles.Upsert(ctx, []entity.TileRecord{t}); err != nil {
		uc.logger.Error("failed to save tile", "id", t.ID, "error", err)
		return err
	}
	return nil
}

// SaveTilesBatch writes every tile in one atomic upsert and returns how many were
// submitted. Absent enrichment fields overwrite stored values with null.
func (uc *TileUseCase) SaveTilesBatch(ctx context.Context, tiles []entity.TileRecord) (int, error) {
	if len(tiles) == 0 {
		return 0, entity.NewValidationError("Missing or invalid tiles array")
	}

	withEPA := 0
	for i := range tiles {
		if err := validateTile(tiles[i]); err != nil {
			return 0, entity.NewValidationError("tiles[%d]: %s", i, err.Error())
		}
		uc.stampEPA(&tiles[i])
		if tiles[i].HasEPAData {
			withEPA++
		}
	}

	metrics.TileBatchSize.WithLabelValues("save").Observe(float64(len(tiles)))
	uc.logger.Info("batch saving tiles", "count", len(tiles), "with_epa", withEPA)

	if err := uc.tiles.Upsert(ctx, tiles); err != nil {
		uc.logger.Error("failed to save tiles batch", "count", len(tiles), "error", err)
		return 0, err
	}

	return len(tiles), nil
}

// InitialBox returns the land use of every id in request order. One unknown id
// fails the whole lookup.
func (uc *TileUseCase) InitialBox(ctx context.Context, ids []string) ([]entity.LandUse, error) {
	if len(ids) == 0 {
		return nil, entity.NewValidationError("Missing bounding box ids")
	}
	if len(ids) > MaxBatchSize {
		return nil, entity.NewValidationError("at most %d bounding boxes per request, got %d", MaxBatchSize, len(ids))
	}
	for i, id := range ids {
		if id == "" {
			return nil, entity.NewValidationError("bounding box %d has no id", i)
		}
	}

	found, err := uc.tiles.GetLandUse(ctx, ids)
	if err != nil {
		uc.logger.Error("failed to fetch land use data", "count", len(ids), "error", err)
		return nil, err
	}

	result := make([]entity.LandUse, 0, len(ids))
	for _, id := range ids {
		lu, ok := found[id]
		if !ok {
			return nil, &entity.NotFoundError{Message: "No matching landuse type found for box id: " + id}
		}
		result = append(result, lu)
	}

	return result, nil
}

func (uc *TileUseCase) Closest(ctx context.Context, lat, lon float64) (entity.NearestTile, bool, error) {
	uc.logger.Debug("searching for closest bbox", "lat", lat, "lon", lon)

	start := time.Now()
	nearest, found, err := uc.tiles.Closest(ctx, lat, lon)
	if err != nil {
		uc.logger.Error("closest bbox lookup failed", "error", err)
		return entity.NearestTile{}, false, err
	}

	uc.logger.Debug("closest bbox query", "found", found, "duration", time.Since(start))

	if found {
		// reported in the same units the store ranked by
		nearest.Distance = planar.DistanceSquared(nearest.Corner(), orb.Point{lon, lat})
	}
	return nearest, found, nil
}

func (uc *TileUseCase) ClearTiles(ctx context.Context) error {
	uc.logger.Warn("clearing all cached tiles")

	if err := uc.tiles.Truncate(ctx); err != nil {
		uc.logger.Error("failed to clear tiles", "error", err)
		return err
	}

	uc.logger.Info("all tiles cleared")
	return nil
}

// stampEPA derives HasEPAData from the presence of EPA data and stamps a fetch date
// when the client sent none.
func (uc *TileUseCase) stampEPA(t *entity.TileRecord) {
	if entity.IsNullBlob(t.EPAData) {
		t.EPAData = nil
		t.HasEPAData = false
		t.EPAFetchDate = nil
		return
	}

	t.HasEPAData = true
	if t.EPAFetchDate == nil {
		now := uc.now().UTC()
		t.EPAFetchDate = &now
	}
}

func validateTile(t entity.TileRecord) error {
	switch {
	case t.ID == "":
		return entity.NewValidationError("Missing required field: id")
	case t.LanduseType == "":
		return entity.NewValidationError("Missing required field: landuseType")
	case entity.IsNullBlob(t.LandUseData):
		return entity.NewValidationError("Missing required field: land_use_data")
	}
	return nil
}
