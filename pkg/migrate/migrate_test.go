package migrate

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func TestPendingAdvanceMigrationContainsConstraints(t *testing.T) {
	matches, err := filepath.Glob(filepath.Join("migrations", "*_create_pending_advances.sql"))
	require.NoError(t, err)
	require.NotEmpty(t, matches, "no pending_advances migration file found")

	data, err := os.ReadFile(matches[0])
	require.NoError(t, err)
	content := string(data)

	for _, sub := range []string{
		"CREATE TABLE IF NOT EXISTS pending_advances",
		"CHECK (attempts >= 1)",
		"WHERE resolved_at IS NULL",
		"DROP TABLE IF EXISTS pending_advances",
	} {
		assert.Contains(t, content, sub)
	}
}

func TestValidateDirAcceptsShippedMigrations(t *testing.T) {
	require.NoError(t, ValidateDir("migrations"))
}

func TestValidateDirRejectsBadNames(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad-name.sql"), []byte("-- +goose Up\n-- +goose Down\n"), 0o644))
	err := ValidateDir(dir)
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "invalid migration filename"))
}

func TestCreateSQLMigration(t *testing.T) {
	dir := t.TempDir()
	path, err := CreateSQLMigration(dir, "Add Agent Index")
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(path, "_add_agent_index.sql"))
	require.NoError(t, ValidateDir(dir))
}

func TestRunEmbeddedOnSQLite(t *testing.T) {
	conn, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "m.db")), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	defer sqlDB.Close()

	ctx := context.Background()
	require.NoError(t, Run(ctx, sqlDB, "sqlite3", EmbeddedDir, "up"))
	assert.True(t, conn.Migrator().HasTable("pending_advances"))

	require.NoError(t, Run(ctx, sqlDB, "sqlite3", EmbeddedDir, "down"))
	assert.False(t, conn.Migrator().HasTable("pending_advances"))
}

func TestValidateDirRejectsUnbalancedStatements(t *testing.T) {
	dir := t.TempDir()
	body := "-- +goose Up\n-- +goose StatementBegin\nSELECT 1;\n-- +goose Down\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "20260301090000_broken.sql"), []byte(body), 0o644))
	err := ValidateDir(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "StatementBegin")
}

func TestValidateDirRejectsDuplicateVersions(t *testing.T) {
	dir := t.TempDir()
	body := []byte("-- +goose Up\n-- +goose Down\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "20260301090000_one.sql"), body, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "20260301090000_two.sql"), body, 0o644))
	err := ValidateDir(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "20260301090000")
}

func TestCreateSQLMigrationRejectsEmptyName(t *testing.T) {
	_, err := CreateSQLMigration(t.TempDir(), "  ***  ")
	require.Error(t, err)
}
