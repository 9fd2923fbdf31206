package model

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/laiskygw/llm-gateway/common"
)

// setupTestDB opens a fresh in-memory SQLite database, migrates the schema,
// and swaps it into the package-level DB for the duration of the test.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	common.UsingSQLite, common.UsingMySQL, common.UsingPostgreSQL = true, false, false

	original := DB
	DB = db
	t.Cleanup(func() { DB = original })

	require.NoError(t, migrate())
	return db
}
