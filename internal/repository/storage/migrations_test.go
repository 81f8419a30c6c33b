package storage_test

import (
	"context"
	"testing"

	"github.com/jaennil/guide_helper/backend/geocache/internal/repository/storage/storagetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenRunsMigrations(t *testing.T) {
	db := storagetest.OpenTestDB(t)

	for _, table := range []string{"bounding_boxes", "saved_maps"} {
		var count int
		err := db.QueryRow(`SELECT count(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, table).Scan(&count)
		require.NoError(t, err)
		assert.Equal(t, 1, count, table)
	}

	require.NoError(t, db.HealthCheck(context.Background()))
	assert.Equal(t, 5, db.Stats().MaxOpenConnections)
}
