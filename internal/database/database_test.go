package database

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tracksim/tracksim/internal/model"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func TestPostgresDSN(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	viper.Set("db.host", "db.example")
	viper.Set("db.port", "5433")
	viper.Set("db.username", "sim")
	viper.Set("db.password", "secret")
	viper.Set("db.database", "telemetry")

	assert.Equal(t, "host=db.example port=5433 user=sim password=secret dbname=telemetry sslmode=disable", PostgresDSN())
}

func TestMemoryDSN(t *testing.T) {
	assert.Equal(t, "file:abc?mode=memory&cache=shared", MemoryDSN("abc"))
}

func TestSetupAndDump(t *testing.T) {
	db, err := GetSqliteDB(MemoryDSN(t.Name()))
	require.NoError(t, err)

	require.NoError(t, Setup(db, discardLogger()))
	assert.True(t, db.Migrator().HasTable(&model.Sample{}))
	assert.True(t, db.Migrator().HasTable(&model.Event{}))
	assert.False(t, db.Migrator().HasTable(&model.SessionTrack{}))

	v := model.Vehicle{Name: "tank"}
	created, err := v.GetOrInsert(db)
	require.NoError(t, err)
	assert.True(t, created)

	again := model.Vehicle{Name: "tank"}
	created, err = again.GetOrInsert(db)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, v.ID, again.ID)

	dir := t.TempDir()
	path := filepath.Join(dir, "dump.db")
	require.NoError(t, os.WriteFile(path, []byte("stale"), 0o644))
	require.NoError(t, DumpMemoryDBToDisk(db, path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(5))

	paths, err := GetBackupDBPaths(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{path}, paths)
}

func TestDumpMemoryDBToDisk_NoPath(t *testing.T) {
	db, err := GetSqliteDB(MemoryDSN(t.Name()))
	require.NoError(t, err)
	assert.Error(t, DumpMemoryDBToDisk(db, ""))
}

func TestGetBackupDBPaths_MissingDir(t *testing.T) {
	_, err := GetBackupDBPaths(filepath.Join(t.TempDir(), "nope"))
	assert.Error(t, err)
}
