// Package session publishes the poll loop's view of the world to readers
// on other goroutines.
package session

import (
	"slices"
	"sync"
	"time"

	"github.com/irtelemetry/pitcam/internal/roster"
	"github.com/irtelemetry/pitcam/internal/supervisor"
	"github.com/irtelemetry/pitcam/internal/tracker"
	"github.com/irtelemetry/pitcam/pkg/core"
)

// Snapshot is an immutable copy of the state published after a tick.
type Snapshot struct {
	Tick         time.Time           `json:"tick"`
	SessionTime  float64             `json:"sessionTime"`
	Connected    bool                `json:"connected"`
	Source       string              `json:"source"`
	Playback     core.PlaybackInfo   `json:"playback"`
	Summary      string              `json:"summary"`
	Drivers      []roster.Entry      `json:"drivers"`
	Tracked      *core.Driver        `json:"tracked,omitempty"`
	Location     core.TrackLocation  `json:"location"`
	Flags        []string            `json:"flags"`
	CameraState  string              `json:"cameraState"`
	Camera       core.CameraGroup    `json:"camera"`
	CameraTarget int                 `json:"cameraTarget"`
	LastCommand  *core.CameraCommand `json:"lastCommand,omitempty"`
	Pit          tracker.PitStatus   `json:"pit"`
	Stats        tracker.DriverStats `json:"stats"`
	Position     *core.Position2D    `json:"position,omitempty"`
}

func (s Snapshot) clone() Snapshot {
	s.Drivers = slices.Clone(s.Drivers)
	s.Flags = slices.Clone(s.Flags)
	if s.Tracked != nil {
		d := *s.Tracked
		s.Tracked = &d
	}
	if s.LastCommand != nil {
		c := *s.LastCommand
		s.LastCommand = &c
	}
	if s.Position != nil {
		p := *s.Position
		s.Position = &p
	}
	return s
}

// Context holds the latest snapshot. The poll loop is the only writer.
type Context struct {
	mu          sync.RWMutex
	snap        Snapshot
	subscribers []func(supervisor.Event)
}

// NewContext returns a disconnected context.
func NewContext(source string) *Context {
	return &Context{snap: Snapshot{Source: source, Summary: "Not connected", CameraState: "Idle"}}
}

// Snapshot returns a copy of the latest published state.
func (c *Context) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snap.clone()
}

// Publish replaces the published state.
func (c *Context) Publish(s Snapshot) {
	s = s.clone()
	c.mu.Lock()
	c.snap = s
	c.mu.Unlock()
}

// Connected reports the connection flag of the latest snapshot.
func (c *Context) Connected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snap.Connected
}

// Subscribe registers fn for connect and disconnect notifications.
func (c *Context) Subscribe(fn func(supervisor.Event)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subscribers = append(c.subscribers, fn)
}

// Notify records a connection change and forwards it to subscribers. On
// disconnect the published view is cleared down to the connection flag.
func (c *Context) Notify(ev supervisor.Event) {
	c.mu.Lock()
	c.snap.Connected = ev.Kind == supervisor.EventConnected
	c.snap.Source = ev.Source
	if ev.Kind == supervisor.EventDisconnected {
		c.snap = Snapshot{Source: ev.Source, Tick: ev.Time, Summary: "Not connected", CameraState: "Idle"}
	}
	subscribers := slices.Clone(c.subscribers)
	c.mu.Unlock()

	for _, fn := range subscribers {
		fn(ev)
	}
}
