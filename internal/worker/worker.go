package worker

import (
	"log/slog"
	"sync"
	"time"

	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/peterstace/simplefeatures/geom"

	"github.com/irtelemetry/pitcam/internal/geo"
	"github.com/irtelemetry/pitcam/internal/model"
	"github.com/irtelemetry/pitcam/internal/recording"
	"github.com/irtelemetry/pitcam/internal/tracker"
	"github.com/irtelemetry/pitcam/pkg/core"
)

// Frame is the TopicFrame payload: everything the sinks need from one tick.
type Frame struct {
	Time         time.Time
	SessionTime  float64
	Source       string
	Playback     core.PlaybackInfo
	TickDuration time.Duration

	// Values are the captured variables, nil when not recording.
	Values map[string]any

	Tracked  *core.Driver
	Location core.TrackLocation
	// Point is the tracked car in EPSG:3857, when the source has a position.
	Point    *geom.Point
	Altitude float64

	Flags       []string
	CameraState string
	Pit         tracker.PitStatus
	Stats       tracker.DriverStats
}

// CameraCommand is the TopicCameraCommand payload.
type CameraCommand struct {
	Time    time.Time
	Driver  core.Driver
	From    string
	To      string
	Command core.CameraCommand
}

// FrameRecorder is the recording sink. *recording.Writer implements it.
type FrameRecorder interface {
	AddSample(recording.Sample) error
	AddCameraEvent(model.CameraEvent)
	AddTrackPoint(model.TrackPoint)
	Pending() int
}

var _ FrameRecorder = (*recording.Writer)(nil)

// PointWriter is the metrics sink. *influx.Manager implements it.
type PointWriter interface {
	WritePoint(bucket string, point *influxdb2_write.Point) error
}

// Dependencies holds the sinks. A nil sink is not registered.
type Dependencies struct {
	Recorder FrameRecorder
	Points   PointWriter
	Logger   *slog.Logger
}

// Manager turns poll loop events into sink writes off the tick path.
type Manager struct {
	deps Dependencies

	mu        sync.Mutex
	trace     *geo.Trace
	lastWrite time.Duration
	frames    int
}

// NewManager creates a new worker manager
func NewManager(deps Dependencies) *Manager {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Manager{
		deps:  deps,
		trace: geo.NewTrace(-1),
	}
}

// Pending is the number of rows queued in the recording sink.
func (m *Manager) Pending() int {
	if m.deps.Recorder == nil {
		return 0
	}
	return m.deps.Recorder.Pending()
}

// TraceLength is the projected distance covered by the tracked car since
// it was last (re)selected, in meters.
func (m *Manager) TraceLength() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.trace.Length()
}

// TracePoints is the number of distinct positions in the trace.
func (m *Manager) TracePoints() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.trace.Len()
}

// GetLastWriteDuration returns how long the last sink write took.
func (m *Manager) GetLastWriteDuration() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastWrite
}

// Frames is the number of frames handled.
func (m *Manager) Frames() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.frames
}
