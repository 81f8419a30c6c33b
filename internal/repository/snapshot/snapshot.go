package snapshot

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/jaennil/guide_helper/backend/geocache/internal/entity"
	"github.com/jaennil/guide_helper/backend/geocache/internal/repository/storage"
	"github.com/jaennil/guide_helper/backend/geocache/pkg/logger"
)

// Repository stores map snapshots in saved_maps keyed by exact (lat, lon).
type Repository struct {
	db     *storage.DB
	logger logger.Logger
}

func NewRepository(db *storage.DB, l logger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: l,
	}
}

func (r *Repository) Get(ctx context.Context, lat, lon float64) (entity.MapSnapshot, bool, error) {
	query := r.db.Rebind(`SELECT lat, lon, grid_width, grid_height, tiles, land_use_info, created_at
	FROM saved_maps
	WHERE lat = ? AND lon = ?`)

	var (
		s           entity.MapSnapshot
		tiles       string
		landUseInfo string
	)
	err := r.db.QueryRowContext(ctx, query, lat, lon).
		Scan(&s.Lat, &s.Lon, &s.GridWidth, &s.GridHeight, &tiles, &landUseInfo, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return entity.MapSnapshot{}, false, nil
		}
		r.logger.Error("snapshot get failed", "lat", lat, "lon", lon, "error", err)
		return entity.MapSnapshot{}, false, fmt.Errorf("failed to get map snapshot: %w", err)
	}

	s.Tiles = json.RawMessage(tiles)
	s.LandUseInfo = json.RawMessage(landUseInfo)

	return s, true, nil
}

// Upsert replaces every field of the snapshot stored at (s.Lat, s.Lon).
func (r *Repository) Upsert(ctx context.Context, s entity.MapSnapshot) error {
	query := r.db.Rebind(`INSERT INTO saved_maps (lat, lon, grid_width, grid_height, tiles, land_use_info, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
	ON CONFLICT (lat, lon) DO UPDATE SET
		grid_width = excluded.grid_width,
		grid_height = excluded.grid_height,
		tiles = excluded.tiles,
		land_use_info = excluded.land_use_info,
		updated_at = excluded.updated_at`)

	_, err := r.db.ExecContext(ctx, query,
		s.Lat, s.Lon, s.GridWidth, s.GridHeight, string(s.Tiles), string(s.LandUseInfo))
	if err != nil {
		r.logger.Error("snapshot upsert failed", "lat", s.Lat, "lon", s.Lon, "error", err)
		return fmt.Errorf("failed to save map snapshot: %w", err)
	}

	return nil
}
