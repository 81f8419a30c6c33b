package storagetest

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/jaennil/guide_helper/backend/geocache/internal/repository/storage"
	"github.com/jaennil/guide_helper/backend/geocache/pkg/config"
	"github.com/jaennil/guide_helper/backend/geocache/pkg/logger"
)

// OpenTestDB opens a migrated sqlite database in a temp dir and closes it on cleanup.
func OpenTestDB(tb testing.TB) *storage.DB {
	tb.Helper()

	path := filepath.Join(tb.TempDir(), "test.db")
	db, err := storage.Open(config.DB{
		Driver:             string(storage.DialectSQLite),
		DSN:                "file:" + path + "?_busy_timeout=5000&_journal_mode=WAL",
		MaxOpenConnections: 5,
		MaxIdleConnections: 2,
		ConnMaxLifetime:    time.Minute,
	}, logger.NewNop())
	if err != nil {
		tb.Fatalf("failed to open test db: %v", err)
	}
	tb.Cleanup(func() {
		db.Close()
	})
	return db
}
