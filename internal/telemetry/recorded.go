package telemetry

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/spf13/cast"

	"github.com/irtelemetry/pitcam/pkg/core"
	"github.com/irtelemetry/pitcam/pkg/irsdk"
)

// RecordedOptions configures playback of a recording.
type RecordedOptions struct {
	Speed         string
	SkipTo        float64
	SkipPolicy    SkipPolicy
	ReferenceRate float64
	Logger        *slog.Logger
}

// RecordedStore replays a fixed-rate recording through a FrameClock.
// Frame selection is fixed per tick by NextTick, so FreezeLatest is a no-op.
type RecordedStore struct {
	mu   sync.RWMutex
	rec  irsdk.Recording
	path string

	speed         PlaybackSpeed
	skipTo        float64
	policy        SkipPolicy
	referenceRate float64

	header    irsdk.Header
	clock     *FrameClock
	connected bool
	logger    *slog.Logger
}

var _ Store = (*RecordedStore)(nil)

// NewRecordedStore validates the playback options up front. The recording
// itself is only opened by Connect.
func NewRecordedStore(rec irsdk.Recording, path string, opts RecordedOptions) (*RecordedStore, error) {
	speed, err := ParsePlaybackSpeed(opts.Speed)
	if err != nil {
		return nil, err
	}
	if err := ValidateSkipTo(opts.SkipTo); err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	referenceRate := opts.ReferenceRate
	if referenceRate <= 0 {
		referenceRate = DefaultReferenceRate
	}
	return &RecordedStore{
		rec:           rec,
		path:          path,
		speed:         speed,
		skipTo:        opts.SkipTo,
		policy:        opts.SkipPolicy,
		referenceRate: referenceRate,
		logger:        logger,
	}, nil
}

func (s *RecordedStore) Name() string { return "recorded" }

// Connect opens the recording and positions the clock at the skip-to
// fraction. An unreadable or structurally invalid recording leaves the
// store disconnected.
func (s *RecordedStore) Connect() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.connected {
		return true
	}

	header, err := s.rec.Open(s.path)
	if err != nil {
		s.logger.Warn("Failed to open recording", "path", s.path, "error", err)
		return false
	}
	if err := header.Validate(); err != nil {
		s.logger.Error("Rejected recording", "path", s.path, "tickRate", header.TickRate, "records", header.RecordCount, "error", err)
		_ = s.rec.Close()
		return false
	}

	clock := NewFrameClock(header.RecordCount, header.TickRate, s.speed, s.rateFor(header))
	if err := clock.Seek(s.skipTo, s.policy); err != nil {
		_ = s.rec.Close()
		return false
	}

	s.header = header
	s.clock = clock
	s.connected = true
	s.logger.Info("Opened recording",
		"path", s.path,
		"session", header.SessionName,
		"tickRate", header.TickRate,
		"records", header.RecordCount,
		"startFrame", clock.Frame(),
		"framesPerTick", clock.Step(),
	)
	return true
}

// rateFor prefers the capture poll rate stored in the header so that a
// recording made by the poll loop replays one frame per tick at normal speed.
func (s *RecordedStore) rateFor(header irsdk.Header) float64 {
	if header.ReferenceRate > 0 {
		return header.ReferenceRate
	}
	return s.referenceRate
}

func (s *RecordedStore) Disconnect() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.connected {
		return
	}
	if err := s.rec.Close(); err != nil {
		s.logger.Warn("Failed to close recording", "path", s.path, "error", err)
	}
	s.connected = false
	s.clock = nil
	s.header = irsdk.Header{}
}

func (s *RecordedStore) IsConnected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.connected
}

// FreezeLatest is a no-op for recordings.
func (s *RecordedStore) FreezeLatest() {}

// Read returns key at the current frame.
func (s *RecordedStore) Read(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.readLocked(key)
}

func (s *RecordedStore) readLocked(key string) (any, bool) {
	if !s.connected || s.clock == nil {
		return nil, false
	}
	frame := s.clock.Frame()
	if frame < 0 || frame >= s.clock.Total() {
		return nil, false
	}
	return s.rec.ReadAt(frame, key)
}

// NextTick advances the clock by one external tick and returns the
// SessionTime recorded at the new frame.
func (s *RecordedStore) NextTick() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.connected || s.clock == nil {
		return 0
	}
	s.clock.Advance()
	v, ok := s.readLocked(irsdk.VarSessionTime)
	if !ok {
		return 0
	}
	return cast.ToFloat64(v)
}

func (s *RecordedStore) Playback() core.PlaybackInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.clock == nil {
		return core.PlaybackInfo{
			SpeedLabel:      s.speed.Label(),
			SpeedMultiplier: s.speed.Multiplier(),
		}
	}
	return s.clock.Info()
}

func (s *RecordedStore) PlaybackSummary() string {
	return s.Playback().Summary()
}

func (s *RecordedStore) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.connected {
		return nil
	}
	return s.rec.VarNames()
}

// Header returns the header of the open recording.
func (s *RecordedStore) Header() irsdk.Header {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.header
}

func (s *RecordedStore) String() string {
	return fmt.Sprintf("recorded(%s)", s.path)
}
