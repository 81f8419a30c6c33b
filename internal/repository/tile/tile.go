package tile

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/jaennil/guide_helper/backend/geocache/internal/entity"
	"github.com/jaennil/guide_helper/backend/geocache/internal/repository/storage"
	"github.com/jaennil/guide_helper/backend/geocache/pkg/logger"
	"github.com/jaennil/guide_helper/backend/geocache/pkg/metrics"
)

const (
	tileColumns = `id, min_lat, min_lon, max_lat, max_lon, landuse_type, land_use_data,
	epa_data, has_epa_data, epa_fetch_date, elevation, waterway_data, airport_data`

	// 13 binds per row keeps a chunk well under sqlite's and postgres' bind limits.
	upsertChunkSize = 200
)

// Repository is the tile store backed by the bounding_boxes table.
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

// Get returns the tile stored under id. A missing row, or a row whose blobs no
// longer parse, is reported as exists=false without an error.
func (r *Repository) Get(ctx context.Context, id string) (entity.TileRecord, bool, error) {
	r.logger.Debug("tile get", "id", id)

	query := r.db.Rebind(`SELECT ` + tileColumns + `
	FROM bounding_boxes
	WHERE id = ?`)

	t, err := scanTile(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return entity.TileRecord{}, false, nil
		}
		r.logger.Error("tile get failed", "id", id, "error", err)
		return entity.TileRecord{}, false, fmt.Errorf("failed to get tile %s: %w", id, err)
	}

	if perr := checkBlobs(t); perr != nil {
		metrics.TileParseErrors.Inc()
		r.logger.Warn("skipping tile with unparsable data", "id", id, "error", perr)
		return entity.TileRecord{}, false, nil
	}

	return t, true, nil
}

// GetBatch returns the stored tiles for ids keyed by id. Ids without a row are absent
// from the map. Rows with unparsable blobs are logged and skipped.
func (r *Repository) GetBatch(ctx context.Context, ids []string) (map[string]entity.TileRecord, error) {
	result := make(map[string]entity.TileRecord, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	query := r.db.Rebind(`SELECT ` + tileColumns + `
	FROM bounding_boxes
	WHERE id IN ` + storage.Placeholders(len(ids)))

	rows, err := r.db.QueryContext(ctx, query, stringArgs(ids)...)
	if err != nil {
		r.logger.Error("tile batch get failed", "count", len(ids), "error", err)
		return nil, fmt.Errorf("failed to get tiles batch: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		t, err := scanTile(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan tile: %w", err)
		}
		if perr := checkBlobs(t); perr != nil {
			metrics.TileParseErrors.Inc()
			r.logger.Warn("skipping tile with unparsable data", "id", t.ID, "error", perr)
			continue
		}
		result[t.ID] = t
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate tiles: %w", err)
	}

	return result, nil
}

// GetLandUse returns the land use projection for ids keyed by id.
func (r *Repository) GetLandUse(ctx context.Context, ids []string) (map[string]entity.LandUse, error) {
	result := make(map[string]entity.LandUse, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	query := r.db.Rebind(`SELECT id, landuse_type, land_use_data
	FROM bounding_boxes
	WHERE id IN ` + storage.Placeholders(len(ids)))

	rows, err := r.db.QueryContext(ctx, query, stringArgs(ids)...)
	if err != nil {
		return nil, fmt.Errorf("failed to get land use: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			lu   entity.LandUse
			data string
		)
		if err := rows.Scan(&lu.ID, &lu.LanduseType, &data); err != nil {
			return nil, fmt.Errorf("failed to scan land use: %w", err)
		}
		if !json.Valid([]byte(data)) {
			metrics.TileParseErrors.Inc()
			r.logger.Warn("skipping tile with unparsable data", "id", lu.ID, "error", &entity.ParseError{TileID: lu.ID, Field: "land_use_data"})
			continue
		}
		lu.LandUseData = json.RawMessage(data)
		result[lu.ID] = lu
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate land use: %w", err)
	}

	return result, nil
}

// Upsert writes tiles in a single transaction. On conflict the land use fields and
// every enrichment field take the incoming value, absent ones included, so a save
// without elevation clears a stored elevation. The bounding box keeps its first value.
// When the same id appears twice in tiles the later record wins.
func (r *Repository) Upsert(ctx context.Context, tiles []entity.TileRecord) error {
	tiles = dedupe(tiles)
	if len(tiles) == 0 {
		return nil
	}

	r.logger.Debug("tile upsert", "count", len(tiles))

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin tile upsert: %w", err)
	}
	defer tx.Rollback()

	for start := 0; start < len(tiles); start += upsertChunkSize {
		end := min(start+upsertChunkSize, len(tiles))
		query, args := r.buildUpsert(tiles[start:end])

		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			r.logger.Error("tile upsert failed", "count", len(tiles), "error", err)
			return fmt.Errorf("failed to upsert tiles: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit tile upsert: %w", err)
	}

	metrics.TilesSaved.Add(float64(len(tiles)))

	return nil
}

func (r *Repository) buildUpsert(tiles []entity.TileRecord) (string, []any) {
	var b strings.Builder
	b.WriteString(`INSERT INTO bounding_boxes (` + tileColumns + `, updated_at)
	VALUES `)

	row := "(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)"
	args := make([]any, 0, len(tiles)*13)
	for i, t := range tiles {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(row)
		args = append(args,
			t.ID, t.MinLat, t.MinLon, t.MaxLat, t.MaxLon,
			t.LanduseType, string(t.LandUseData),
			nullableBlob(t.EPAData), t.HasEPAData, nullableTime(t.EPAFetchDate),
			nullableFloat(t.Elevation), nullableBlob(t.WaterwayData), nullableBlob(t.AirportData),
		)
	}

	b.WriteString(`
	ON CONFLICT (id) DO UPDATE SET
		landuse_type = excluded.landuse_type,
		land_use_data = excluded.land_use_data,
		epa_data = excluded.epa_data,
		has_epa_data = excluded.has_epa_data,
		epa_fetch_date = excluded.epa_fetch_date,
		elevation = excluded.elevation,
		waterway_data = excluded.waterway_data,
		airport_data = excluded.airport_data,
		updated_at = excluded.updated_at`)

	return r.db.Rebind(b.String()), args
}

// Closest scans every stored tile and returns the one whose south-west corner has the
// smallest squared degree distance to (lat, lon). Ties resolve in storage order, which
// is not deterministic. This is a full table scan.
func (r *Repository) Closest(ctx context.Context, lat, lon float64) (entity.NearestTile, bool, error) {
	query := r.db.Rebind(`SELECT ` + tileColumns + `,
		((min_lat - ?) * (min_lat - ?) + (min_lon - ?) * (min_lon - ?)) AS distance
	FROM bounding_boxes
	ORDER BY distance ASC
	LIMIT 1`)

	var nearest entity.NearestTile
	row := r.db.QueryRowContext(ctx, query, lat, lat, lon, lon)
	t, err := scanTile(row, &nearest.Distance)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return entity.NearestTile{}, false, nil
		}
		return entity.NearestTile{}, false, fmt.Errorf("failed to find closest tile: %w", err)
	}
	nearest.TileRecord = t

	return nearest, true, nil
}

// Truncate removes every tile.
func (r *Repository) Truncate(ctx context.Context) error {
	query := `DELETE FROM bounding_boxes`
	if r.db.Dialect() == storage.DialectPostgres {
		query = `TRUNCATE TABLE bounding_boxes`
	}

	if _, err := r.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to truncate tiles: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTile(row rowScanner, extra ...any) (entity.TileRecord, error) {
	var (
		t            entity.TileRecord
		landUseData  string
		epaData      sql.NullString
		epaFetchDate sql.NullTime
		elevation    sql.NullFloat64
		waterwayData sql.NullString
		airportData  sql.NullString
	)

	dest := []any{
		&t.ID, &t.MinLat, &t.MinLon, &t.MaxLat, &t.MaxLon, &t.LanduseType, &landUseData,
		&epaData, &t.HasEPAData, &epaFetchDate, &elevation, &waterwayData, &airportData,
	}
	dest = append(dest, extra...)

	if err := row.Scan(dest...); err != nil {
		return entity.TileRecord{}, err
	}

	t.LandUseData = json.RawMessage(landUseData)
	if epaData.Valid {
		t.EPAData = json.RawMessage(epaData.String)
	}
	if epaFetchDate.Valid {
		fetched := epaFetchDate.Time
		t.EPAFetchDate = &fetched
	}
	if elevation.Valid {
		e := elevation.Float64
		t.Elevation = &e
	}
	if waterwayData.Valid {
		t.WaterwayData = json.RawMessage(waterwayData.String)
	}
	if airportData.Valid {
		t.AirportData = json.RawMessage(airportData.String)
	}

	return t, nil
}

func checkBlobs(t entity.TileRecord) error {
	blobs := []struct {
		field string
		raw   json.RawMessage
	}{
		{"land_use_data", t.LandUseData},
		{"epa_data", t.EPAData},
		{"waterway_data", t.WaterwayData},
		{"airport_data", t.AirportData},
	}

	for _, blob := range blobs {
		if blob.raw == nil {
			continue
		}
		if !json.Valid(blob.raw) {
			return &entity.ParseError{TileID: t.ID, Field: blob.field}
		}
	}
	return nil
}

func dedupe(tiles []entity.TileRecord) []entity.TileRecord {
	index := make(map[string]int, len(tiles))
	out := make([]entity.TileRecord, 0, len(tiles))
	for _, t := range tiles {
		if i, ok := index[t.ID]; ok {
			out[i] = t
			continue
		}
		index[t.ID] = len(out)
		out = append(out, t)
	}
	return out
}

func stringArgs(ids []string) []any {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}

func nullableBlob(raw json.RawMessage) any {
	if entity.IsNullBlob(raw) {
		return nil
	}
	return string(raw)
}

func nullableFloat(f *float64) any {
	if f == nil {
		return nil
	}
	return *f
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}
