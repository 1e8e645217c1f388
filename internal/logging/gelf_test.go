package logging

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/Graylog2/go-gelf/gelf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGELF struct {
	messages []*gelf.Message
}

func (f *fakeGELF) WriteMessage(m *gelf.Message) error {
	f.messages = append(f.messages, m)
	return nil
}

func TestGELFHandler_Message(t *testing.T) {
	w := &fakeGELF{}
	h := newGELFHandler(w, "pitcam")

	logger := slog.New(h.WithAttrs([]slog.Attr{slog.String("source", "live")}))
	logger.Warn("pit entry", "carIdx", 7, "err", errors.New("boom"), "wait", time.Second)

	require.Len(t, w.messages, 1)
	msg := w.messages[0]
	assert.Equal(t, "1.1", msg.Version)
	assert.Equal(t, "pit entry", msg.Short)
	assert.Equal(t, "pitcam", msg.Facility)
	assert.Equal(t, gelfWarning, msg.Level)
	assert.Equal(t, "live", msg.Extra["_source"])
	assert.Equal(t, int64(7), msg.Extra["_carIdx"])
	assert.Equal(t, "boom", msg.Extra["_err"])
	assert.Equal(t, "1s", msg.Extra["_wait"])
}

func TestGELFHandler_Group(t *testing.T) {
	w := &fakeGELF{}
	h := newGELFHandler(w, "pitcam")

	slog.New(h.WithGroup("camera")).Info("switch", "group", 11)

	require.Len(t, w.messages, 1)
	assert.Equal(t, int64(11), w.messages[0].Extra["_camera.group"])
}

func TestGELFHandler_Enabled(t *testing.T) {
	h := newGELFHandler(&fakeGELF{}, "pitcam")
	assert.False(t, h.Enabled(context.Background(), slog.LevelDebug))
	assert.True(t, h.withLevel(slog.LevelDebug).Enabled(context.Background(), slog.LevelDebug))
	assert.NoError(t, h.Close())
}

func TestGELFLevel(t *testing.T) {
	assert.Equal(t, gelfDebug, gelfLevel(slog.LevelDebug))
	assert.Equal(t, gelfInfo, gelfLevel(slog.LevelInfo))
	assert.Equal(t, gelfWarning, gelfLevel(slog.LevelWarn))
	assert.Equal(t, gelfError, gelfLevel(slog.LevelError))
}
