package database

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uniedit/mediagen/internal/infra/config"
	"github.com/uniedit/mediagen/internal/infra/persistence/entity"
)

func TestNew_SQLiteAndMigrate(t *testing.T) {
	db, err := New(&config.DatabaseConfig{
		Driver: "sqlite",
		Path:   filepath.Join(t.TempDir(), "media.db"),
	})
	require.NoError(t, err)
	defer func() { _ = Close(db) }()

	require.NoError(t, Migrate(db))
	assert.True(t, db.Migrator().HasTable(&entity.MediaTaskEntity{}))
	assert.True(t, db.Migrator().HasTable(&entity.GalleryItemEntity{}))

	// Idempotent
	require.NoError(t, Migrate(db))
}

func TestNew_UnknownDriver(t *testing.T) {
	_, err := New(&config.DatabaseConfig{Driver: "oracle"})
	assert.Error(t, err)
}
