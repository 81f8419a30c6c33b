package usecase

import (
	"context"

	"github.com/jaennil/guide_helper/backend/geocache/internal/entity"
	"github.com/jaennil/guide_helper/backend/geocache/internal/infrastructure/upstream"
)

type TileRepository interface {
	Get(ctx context.Context, id string) (entity.TileRecord, bool, error)
	GetBatch(ctx context.Context, ids []string) (map[string]entity.TileRecord, error)
	GetLandUse(ctx context.Context, ids []string) (map[string]entity.LandUse, error)
	Upsert(ctx context.Context, tiles []entity.TileRecord) error
	Closest(ctx context.Context, lat, lon float64) (entity.NearestTile, bool, error)
	Truncate(ctx context.Context) error
}

type SnapshotRepository interface {
	Get(ctx context.Context, lat, lon float64) (entity.MapSnapshot, bool, error)
	Upsert(ctx context.Context, s entity.MapSnapshot) error
}

// Fetcher performs a single outbound GET to a named provider. GetChecked also vets
// every redirect target with check.
type Fetcher interface {
	Get(ctx context.Context, provider, rawURL string) (*upstream.Response, error)
	GetChecked(ctx context.Context, provider, rawURL string, check upstream.HostCheck) (*upstream.Response, error)
}
