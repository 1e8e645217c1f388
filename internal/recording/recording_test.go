package recording

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/peterstace/simplefeatures/geom"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/irtelemetry/pitcam/internal/database"
	"github.com/irtelemetry/pitcam/internal/model"
)

func newTestDB(t *testing.T) (*database.Manager, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "session.db")
	m := database.NewManager(zerolog.Nop())
	require.NoError(t, m.Connect(database.Config{Type: database.TypeSQLite, Path: path}))
	require.NoError(t, m.Setup())
	t.Cleanup(func() { _ = m.Close() })
	return m, path
}

func writeSession(t *testing.T, m *database.Manager, name string, frames int) *Writer {
	t.Helper()
	w, err := NewWriter(m.DB, WriterOptions{
		Name:     name,
		Source:   "live",
		TickRate: 60,
		Vars:     []string{"SessionTime", "CamCarIdx"},
		Logger:   zerolog.Nop(),
	})
	require.NoError(t, err)

	for i := 0; i < frames; i++ {
		require.NoError(t, w.AddSample(Sample{
			Time:        time.Now(),
			SessionTime: float64(i) / 60,
			Values: map[string]any{
				"SessionTime": float64(i) / 60,
				"CamCarIdx":   i % 3,
			},
		}))
	}
	require.NoError(t, w.Close())
	return w
}

func TestNewWriter_RejectsTickRate(t *testing.T) {
	m, _ := newTestDB(t)
	_, err := NewWriter(m.DB, WriterOptions{TickRate: 0, Logger: zerolog.Nop()})
	assert.Error(t, err)
}

func TestWriter_FramesAreNumberedAndCounted(t *testing.T) {
	m, _ := newTestDB(t)
	w := writeSession(t, m, "practice", 5)

	var frames []model.Frame
	require.NoError(t, m.DB.Order("frame_no").Find(&frames).Error)
	require.Len(t, frames, 5)
	for i, f := range frames {
		assert.Equal(t, i, f.FrameNo)
		assert.Equal(t, w.Session().ID, f.SessionID)
	}

	var session model.RecordingSession
	require.NoError(t, m.DB.First(&session, w.Session().ID).Error)
	assert.Equal(t, 5, session.RecordCount)
	assert.False(t, session.EndTime.IsZero())
	assert.Len(t, session.UUID, 36)
	assert.Equal(t, 0, w.Pending())
}

func TestWriter_EventsStampLastFrame(t *testing.T) {
	m, _ := newTestDB(t)
	w, err := NewWriter(m.DB, WriterOptions{TickRate: 1, Logger: zerolog.Nop()})
	require.NoError(t, err)

	w.AddCameraEvent(model.CameraEvent{CarIdx: 4, ToState: "ApproachingPits"})
	require.NoError(t, w.AddSample(Sample{Values: map[string]any{"x": 1}}))
	require.NoError(t, w.AddSample(Sample{Values: map[string]any{"x": 2}}))
	w.AddCameraEvent(model.CameraEvent{CarIdx: 4, ToState: "InStall", Issued: true})
	pt, err := geom.NewPoint(geom.Coordinates{XY: geom.XY{X: 1, Y: 2}, Type: geom.DimXY})
	require.NoError(t, err)
	w.AddTrackPoint(model.TrackPoint{CarIdx: 4, Position: pt, Location: "IN_PIT_STALL"})

	assert.Equal(t, 5, w.Pending())
	require.NoError(t, w.Flush())
	assert.Equal(t, 0, w.Pending())

	var events []model.CameraEvent
	require.NoError(t, m.DB.Order("id").Find(&events).Error)
	require.Len(t, events, 2)
	assert.Equal(t, 0, events[0].FrameNo)
	assert.Equal(t, 1, events[1].FrameNo)
	assert.True(t, events[1].Issued)

	var points []model.TrackPoint
	require.NoError(t, m.DB.Find(&points).Error)
	require.Len(t, points, 1)
	c, ok := points[0].Position.Coordinates()
	require.True(t, ok)
	assert.Equal(t, 1.0, c.XY.X)
}

func TestWriter_AddSampleRejectsUnencodable(t *testing.T) {
	m, _ := newTestDB(t)
	w, err := NewWriter(m.DB, WriterOptions{TickRate: 1, Logger: zerolog.Nop()})
	require.NoError(t, err)

	err = w.AddSample(Sample{Values: map[string]any{"bad": make(chan int)}})
	assert.Error(t, err)
	assert.Equal(t, 0, w.Pending())
}

func TestWriter_RunFlushesOnCancel(t *testing.T) {
	m, _ := newTestDB(t)
	w, err := NewWriter(m.DB, WriterOptions{TickRate: 1, Logger: zerolog.Nop()})
	require.NoError(t, err)
	require.NoError(t, w.AddSample(Sample{Values: map[string]any{"x": 1}}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, w.Run(ctx, time.Hour))

	var count int64
	require.NoError(t, m.DB.Model(&model.Frame{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestReader_RoundTrip(t *testing.T) {
	m, path := newTestDB(t)
	writeSession(t, m, "race", 4)

	r := NewReader(ReaderOptions{Logger: zerolog.Nop()})
	header, err := r.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })

	assert.Equal(t, 60, header.TickRate)
	assert.Equal(t, 4, header.RecordCount)
	assert.Equal(t, "race", header.SessionName)
	assert.Equal(t, []string{"SessionTime", "CamCarIdx"}, r.VarNames())

	v, ok := r.ReadAt(2, "CamCarIdx")
	require.True(t, ok)
	assert.Equal(t, 2.0, v) // JSON numbers decode as float64

	again, ok := r.ReadAt(2, "CamCarIdx")
	require.True(t, ok)
	assert.Equal(t, v, again)
	hits, _ := r.frames.Stats()
	assert.Equal(t, 1, hits)
	assert.False(t, r.Session().StartTime.IsZero())
	assert.False(t, r.Session().EndTime.IsZero())

	_, ok = r.ReadAt(2, "Unknown")
	assert.False(t, ok)
	_, ok = r.ReadAt(99, "CamCarIdx")
	assert.False(t, ok)
}

func TestReader_HeaderCarriesPollRate(t *testing.T) {
	m, path := newTestDB(t)
	w, err := NewWriter(m.DB, WriterOptions{TickRate: 2, PollRate: 2, Logger: zerolog.Nop()})
	require.NoError(t, err)
	require.NoError(t, w.AddSample(Sample{Time: time.Now(), Values: map[string]any{"x": 1}}))
	require.NoError(t, w.Close())

	r := NewReader(ReaderOptions{Logger: zerolog.Nop()})
	header, err := r.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })

	assert.Equal(t, 2, header.TickRate)
	assert.Equal(t, 2.0, header.ReferenceRate)
}

func TestReader_OverflowedCaptureStaysContiguous(t *testing.T) {
	m, path := newTestDB(t)
	w, err := NewWriter(m.DB, WriterOptions{TickRate: 1, QueueLimit: 3, Logger: zerolog.Nop()})
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		require.NoError(t, w.AddSample(Sample{Time: time.Now(), Values: map[string]any{"x": i}}))
	}
	require.NoError(t, w.Close())

	r := NewReader(ReaderOptions{Logger: zerolog.Nop()})
	header, err := r.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })
	require.Equal(t, 3, header.RecordCount)

	for frame, want := range []float64{2, 3, 4} {
		v, ok := r.ReadAt(frame, "x")
		require.True(t, ok, "frame %d", frame)
		assert.Equal(t, want, v, "frame %d", frame)
	}
	_, ok := r.ReadAt(3, "x")
	assert.False(t, ok)
	_, ok = r.ReadAt(-1, "x")
	assert.False(t, ok)
}

func TestWriter_FailedFlushKeepsRows(t *testing.T) {
	m, _ := newTestDB(t)
	w, err := NewWriter(m.DB, WriterOptions{TickRate: 1, Logger: zerolog.Nop()})
	require.NoError(t, err)
	require.NoError(t, w.AddSample(Sample{Time: time.Now(), Values: map[string]any{"x": 1}}))
	require.NoError(t, w.AddSample(Sample{Time: time.Now(), Values: map[string]any{"x": 2}}))

	require.NoError(t, m.DB.Migrator().DropTable(&model.Frame{}))
	assert.Error(t, w.Flush())
	assert.Equal(t, 2, w.Pending())

	require.NoError(t, m.DB.AutoMigrate(&model.Frame{}))
	require.NoError(t, w.Flush())
	assert.Equal(t, 0, w.Pending())

	var frames []model.Frame
	require.NoError(t, m.DB.Order("frame_no").Find(&frames).Error)
	require.Len(t, frames, 2)
	assert.Equal(t, 0, frames[0].FrameNo)
	assert.Equal(t, 1, frames[1].FrameNo)

	require.NoError(t, w.Close())
	assert.Equal(t, 2, w.Session().RecordCount)
}

func TestReader_PicksLatestOrByUUID(t *testing.T) {
	m, path := newTestDB(t)
	first := writeSession(t, m, "first", 2)
	writeSession(t, m, "second", 3)

	r := NewReader(ReaderOptions{Logger: zerolog.Nop()})
	header, err := r.Open(path)
	require.NoError(t, err)
	assert.Equal(t, "second", header.SessionName)
	require.NoError(t, r.Close())

	r = NewReader(ReaderOptions{SessionUUID: first.Session().UUID, Logger: zerolog.Nop()})
	header, err = r.Open(path)
	require.NoError(t, err)
	assert.Equal(t, "first", header.SessionName)
	assert.Equal(t, 2, header.RecordCount)
	require.NoError(t, r.Close())
}

func TestReader_OpenErrors(t *testing.T) {
	r := NewReader(ReaderOptions{Logger: zerolog.Nop()})

	_, err := r.Open(filepath.Join(t.TempDir(), "missing.db"))
	assert.Error(t, err)

	_, path := newTestDB(t)
	_, err = r.Open(path)
	assert.ErrorIs(t, err, ErrNoSession)

	_, ok := r.ReadAt(0, "SessionTime")
	assert.False(t, ok)
	assert.NoError(t, r.Close())
}
