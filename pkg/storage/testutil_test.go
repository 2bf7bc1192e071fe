package storage

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// openTestDB opens a database for tests.
// When TEST_DATABASE_URL is set it connects to PostgreSQL; otherwise it
// opens a fresh in-memory SQLite instance.
// PostgreSQL connections are pool-limited and closed on test cleanup to
// avoid exceeding max_connections.
func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	if dsn := os.Getenv("TEST_DATABASE_URL"); dsn != "" {
		db, err := OpenDatabase(DriverPostgres, dsn, MaxOpenConns(2), MaxIdleConns(1))
		require.NoError(t, err, "open postgres test db")

		sqlDB, err := db.DB()
		require.NoError(t, err, "get underlying sql.DB")

		// Clean before AND after to ensure test isolation.
		cleanupPostgresDB(t, db)
		t.Cleanup(func() {
			cleanupPostgresDB(t, db)
			_ = sqlDB.Close()
		})
		return db
	}

	db, err := OpenDatabase(DriverSQLite, "")
	require.NoError(t, err, "open in-memory sqlite")
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

// cleanupPostgresDB deletes all rows so tests are isolated without requiring
// a fresh database per test.
func cleanupPostgresDB(t *testing.T, db *gorm.DB) {
	t.Helper()
	for _, tbl := range []string{"queue_blobs", "job_history"} {
		if db.Migrator().HasTable(tbl) {
			db.Exec("DELETE FROM " + tbl)
		}
	}
}

func newTestHistory(t *testing.T) *GormHistoryStore {
	t.Helper()
	h := NewGormHistoryStore(openTestDB(t))
	require.NoError(t, h.Migrate(context.Background()), "migrate history")
	return h
}

func newTestGormBlobs(t *testing.T) *GormBlobStore {
	t.Helper()
	s := NewGormBlobStore(openTestDB(t))
	require.NoError(t, s.Migrate(context.Background()), "migrate blobs")
	return s
}
