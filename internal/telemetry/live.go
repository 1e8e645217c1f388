package telemetry

import (
	"log/slog"
	"sync"

	"github.com/spf13/cast"

	"github.com/irtelemetry/pitcam/pkg/core"
	"github.com/irtelemetry/pitcam/pkg/irsdk"
)

// liveTickRate is the sim's native telemetry rate.
const liveTickRate = 60

// LiveStore reads from a running simulator. It has no clock: every tick
// reflects the sim's current data.
type LiveStore struct {
	mu        sync.RWMutex
	h         irsdk.Handle
	connected bool
	logger    *slog.Logger
}

var (
	_ Store          = (*LiveStore)(nil)
	_ CameraSwitcher = (*LiveStore)(nil)
)

// NewLiveStore wraps h.
func NewLiveStore(h irsdk.Handle, logger *slog.Logger) *LiveStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &LiveStore{h: h, logger: logger}
}

func (s *LiveStore) Name() string { return "live" }

// Connect attempts the SDK handshake. It does not block and may be
// retried on every tick.
func (s *LiveStore) Connect() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.h.Startup()
	s.connected = s.h.IsInitialized() && s.h.IsConnected()
	if s.connected {
		s.logger.Info("Connected to live simulator", "binding", irsdk.LiveBindingName())
	}
	return s.connected
}

func (s *LiveStore) Disconnect() {
	s.mu.Lock()
	defer s.mu.Unlock()

	wasConnected := s.connected
	s.connected = false
	s.h.Shutdown()
	if wasConnected {
		s.logger.Info("Disconnected from live simulator")
	}
}

// IsConnected is true after a successful Connect while the sim stays up.
func (s *LiveStore) IsConnected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.connected && s.h.IsInitialized() && s.h.IsConnected()
}

func (s *LiveStore) FreezeLatest() {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.connected {
		s.h.FreezeVarBufferLatest()
	}
}

func (s *LiveStore) Read(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.connected {
		return nil, false
	}
	v, ok := s.h.Get(key)
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}

// NextTick returns the sim's current SessionTime.
func (s *LiveStore) NextTick() float64 {
	v, ok := s.Read(irsdk.VarSessionTime)
	if !ok {
		return 0
	}
	return cast.ToFloat64(v)
}

func (s *LiveStore) Playback() core.PlaybackInfo {
	return core.PlaybackInfo{
		CurrentFrame:    -1,
		TotalFrames:     -1,
		SpeedLabel:      "Live",
		SpeedMultiplier: 1,
		TickRate:        liveTickRate,
		ProgressPercent: -1,
	}
}

func (s *LiveStore) PlaybackSummary() string {
	return s.Playback().Summary()
}

func (s *LiveStore) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.connected {
		return nil
	}
	return s.h.VarNames()
}

// SwitchCamera points the broadcast camera at carNumber.
func (s *LiveStore) SwitchCamera(carNumber, groupID, cameraID int) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.connected {
		return false
	}
	return s.h.CamSwitchNum(carNumber, groupID, cameraID)
}
