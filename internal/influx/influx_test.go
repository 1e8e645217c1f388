package influx

import (
	"compress/gzip"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/irtelemetry/pitcam/internal/config"
)

func TestConnect_Disabled(t *testing.T) {
	m := NewManager(zerolog.Nop(), config.InfluxConfig{Enabled: false})
	assert.ErrorIs(t, m.Connect(context.Background()), ErrDisabled)
}

func TestWritePoint_NoBackend(t *testing.T) {
	m := NewManager(zerolog.Nop(), config.InfluxConfig{})
	err := m.WritePoint(BucketTelemetry, NewPoint("playback", nil, map[string]any{"frame": 1}, time.Now()))
	assert.Error(t, err)
}

func TestConnect_FallsBackToBackupFile(t *testing.T) {
	backup := filepath.Join(t.TempDir(), "influx_backup.lp.gz")
	m := NewManager(zerolog.Nop(), config.InfluxConfig{
		Enabled:    true,
		Protocol:   "http",
		Host:       "127.0.0.1",
		Port:       "1",
		Org:        "pitcam",
		BackupPath: backup,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, m.Connect(ctx))
	assert.False(t, m.IsValid)

	ts := time.Unix(1700000000, 0)
	p := NewPoint("camera_command",
		map[string]string{"transition": "pit_entry", "empty": ""},
		map[string]any{"car_idx": 12, "issued": true, "skip": nil},
		ts,
	)
	require.NoError(t, m.WritePoint(BucketCamera, p))
	require.NoError(t, m.Close())

	f, err := os.Open(backup)
	require.NoError(t, err)
	defer f.Close()
	zr, err := gzip.NewReader(f)
	require.NoError(t, err)
	body, err := io.ReadAll(zr)
	require.NoError(t, err)

	line := string(body)
	assert.Contains(t, line, "camera_command,transition=pit_entry ")
	assert.Contains(t, line, "car_idx=12i")
	assert.Contains(t, line, "issued=true")
	assert.NotContains(t, line, "empty=")
	assert.NotContains(t, line, "skip=")
	assert.Contains(t, line, "1700000000000000000\n")
}

func TestClose_Idempotent(t *testing.T) {
	m := NewManager(zerolog.Nop(), config.InfluxConfig{})
	assert.NoError(t, m.Close())
	assert.NoError(t, m.Close())
}
