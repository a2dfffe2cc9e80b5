// Package testutil provides shared test fixtures for the job store.
package testutil

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/emergent/jobqueue/internal/models"
	"github.com/emergent/jobqueue/internal/storage/postgres"
)

// NewTestDB opens an isolated in-memory sqlite database with the job schema
// applied. The connection pool is capped at one: each in-memory sqlite
// connection is its own database, so a second pooled connection would see
// an empty schema.
func NewTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, postgres.MigrateModels(db, &models.Job{}))
	return db
}
