package database

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/irtelemetry/pitcam/internal/model"
)

func TestIsPostgresDSN(t *testing.T) {
	tests := []struct {
		target string
		want   bool
	}{
		{"postgres://user@db/pitcam", true},
		{"postgresql://user@db/pitcam", true},
		{"host=localhost user=pit dbname=pitcam", true},
		{"./recordings/session.db", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			assert.Equal(t, tt.want, IsPostgresDSN(tt.target))
		})
	}
}

func TestConfigFor(t *testing.T) {
	assert.Equal(t, Config{Type: TypeSQLite, Path: "a.db"}, ConfigFor("a.db"))
	assert.Equal(t, Config{Type: TypePostgres, DSN: "host=x"}, ConfigFor("host=x"))
}

func TestManager_ConnectSetupSqlite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rec.db")
	m := NewManager(zerolog.Nop())

	require.NoError(t, m.Connect(Config{Type: TypeSQLite, Path: path}))
	t.Cleanup(func() { _ = m.Close() })
	require.NoError(t, m.Setup())

	assert.Equal(t, TypeSQLite, m.Kind)
	for _, mdl := range model.DatabaseModels {
		assert.True(t, m.DB.Migrator().HasTable(mdl))
	}
}

func TestManager_UnknownType(t *testing.T) {
	m := NewManager(zerolog.Nop())
	err := m.Connect(Config{Type: "mongo"})
	assert.ErrorContains(t, err, "unknown storage type")
}

func TestOpenPostgres_EmptyDSN(t *testing.T) {
	_, err := OpenPostgres("")
	assert.Error(t, err)
}

func TestManager_DumpToDisk(t *testing.T) {
	dir := t.TempDir()
	m := NewManager(zerolog.Nop())
	require.NoError(t, m.Connect(Config{Type: TypeSQLite, Path: filepath.Join(dir, "src.db")}))
	t.Cleanup(func() { _ = m.Close() })
	require.NoError(t, m.Setup())
	require.NoError(t, m.DB.Create(&model.RecordingSession{UUID: "u1", Name: "dump"}).Error)

	out := filepath.Join(dir, "out.db")
	require.NoError(t, os.WriteFile(out, []byte("stale"), 0644))
	require.NoError(t, m.DumpToDisk(out))

	db, err := OpenSqlite(out)
	require.NoError(t, err)
	var count int64
	require.NoError(t, db.Model(&model.RecordingSession{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestDumpSqliteToDisk_NoPath(t *testing.T) {
	assert.Error(t, DumpSqliteToDisk(nil, ""))
}

func TestManager_CloseWithoutConnect(t *testing.T) {
	assert.NoError(t, NewManager(zerolog.Nop()).Close())
}
