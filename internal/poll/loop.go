// Package poll runs the per-tick pipeline: supervise the connection,
// advance and freeze the source, refresh the roster and trackers, drive
// the pit camera and publish the result.
package poll

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/peterstace/simplefeatures/geom"

	"github.com/irtelemetry/pitcam/internal/camera"
	"github.com/irtelemetry/pitcam/internal/config"
	"github.com/irtelemetry/pitcam/internal/dispatcher"
	"github.com/irtelemetry/pitcam/internal/geo"
	"github.com/irtelemetry/pitcam/internal/roster"
	"github.com/irtelemetry/pitcam/internal/session"
	"github.com/irtelemetry/pitcam/internal/supervisor"
	"github.com/irtelemetry/pitcam/internal/telemetry"
	"github.com/irtelemetry/pitcam/internal/tracker"
	"github.com/irtelemetry/pitcam/internal/worker"
	"github.com/irtelemetry/pitcam/pkg/core"
	"github.com/irtelemetry/pitcam/pkg/irsdk"
)

// DefaultInterval is the tick period when none is configured.
const DefaultInterval = time.Second

// Dependencies are the collaborators driven by the loop. Dispatcher is
// optional.
type Dependencies struct {
	Store      telemetry.Store
	Supervisor *supervisor.Supervisor
	Rosters    *roster.Tracker
	Tracker    *tracker.Tracker
	Machine    *camera.Machine
	Cameras    *camera.Manager
	Session    *session.Context
	Dispatcher *dispatcher.Dispatcher
	Logger     *slog.Logger
}

// Options configures the loop.
type Options struct {
	Interval time.Duration
	Camera   config.CameraConfig
	// RecordVars are captured into every frame event; nil disables capture.
	RecordVars []string
}

// TickContext carries one tick's state between the pipeline steps.
type TickContext struct {
	Now         time.Time
	SessionTime float64
	Playback    core.PlaybackInfo

	Roster     *roster.Roster
	TrackedIdx int
	Tracked    *core.Driver
	Location   core.TrackLocation

	Pit     tracker.PitStatus
	Stats   tracker.DriverStats
	Changes tracker.Change
	Flags   []string

	Camera       core.CameraGroup
	CameraTarget int
	Result       camera.Result

	Point    *geom.Point
	Position *core.Position2D
	Altitude float64
}

// Loop is the tick driver. It is the only writer of the session context,
// the roster tracker and the camera machine.
type Loop struct {
	deps Dependencies
	opts Options
	log  *slog.Logger
}

// New wires the loop's collaborators to the supervisor's reset point.
func New(deps Dependencies, opts Options) (*Loop, error) {
	if deps.Store == nil || deps.Supervisor == nil {
		return nil, errors.New("poll: store and supervisor are required")
	}
	if deps.Rosters == nil {
		deps.Rosters = roster.NewTracker()
	}
	if deps.Tracker == nil {
		deps.Tracker = tracker.New()
	}
	if deps.Session == nil {
		deps.Session = session.NewContext(deps.Store.Name())
	}
	if deps.Cameras == nil {
		deps.Cameras = camera.NewManager(deps.Store, deps.Rosters, nil, deps.Logger)
	}
	if deps.Machine == nil {
		m, err := camera.NewMachine(camera.Groups{}, deps.Cameras, camera.Options{
			Logger:              deps.Logger,
			DisableDriveThrough: !opts.Camera.DriveThrough,
		})
		if err != nil {
			return nil, err
		}
		deps.Machine = m
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}

	l := &Loop{deps: deps, opts: opts, log: deps.Logger}

	deps.Supervisor.OnReset(deps.Rosters, deps.Tracker, deps.Machine, deps.Cameras)
	deps.Supervisor.Subscribe(l.onConnection)
	return l, nil
}

// Session is the published state.
func (l *Loop) Session() *session.Context {
	return l.deps.Session
}

// Run ticks until ctx is done or the supervisor gives up. The store is
// always disconnected on return. Cancellation is a clean stop and returns
// nil.
func (l *Loop) Run(ctx context.Context) (err error) {
	defer l.deps.Supervisor.Shutdown()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("poll loop panic: %v", r)
		}
	}()

	l.log.Info("Starting poll loop", "source", l.deps.Store.Name(), "interval", l.opts.Interval)

	ticker := time.NewTicker(l.opts.Interval)
	defer ticker.Stop()

	for {
		if err := l.Tick(ctx); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			l.log.Info("Poll loop stopped", "reason", context.Cause(ctx))
			return nil
		case <-ticker.C:
		}
	}
}

// Tick runs the pipeline once. Only a fatal supervisor error is returned.
func (l *Loop) Tick(ctx context.Context) error {
	start := time.Now()

	connected, err := l.deps.Supervisor.Tick(ctx)
	if err != nil {
		return err
	}
	if !connected {
		return nil
	}

	tc := &TickContext{Now: start, TrackedIdx: -1, CameraTarget: -1}
	l.readFrame(tc)
	l.refreshRoster(tc)
	l.updateTrackers(tc)
	l.evaluateCamera(ctx, tc)
	l.locate(tc)
	l.publish(tc)
	l.emit(tc, time.Since(start))
	return nil
}

func (l *Loop) readFrame(tc *TickContext) {
	store := l.deps.Store
	tc.SessionTime = store.NextTick()
	store.FreezeLatest()
	tc.Playback = store.Playback()

	flags, _ := telemetry.ReadInt(store, irsdk.VarSessionFlags)
	tc.Flags = core.SessionFlags(uint32(flags)).Names()
}

func (l *Loop) refreshRoster(tc *TickContext) {
	tc.Roster = l.deps.Rosters.Refresh(l.deps.Store)

	tc.TrackedIdx = l.opts.Camera.TrackedCarIdx
	if tc.TrackedIdx < 0 {
		if idx, ok := telemetry.ReadInt(l.deps.Store, irsdk.VarPlayerCarIdx); ok {
			tc.TrackedIdx = idx
		} else {
			tc.TrackedIdx = tc.Roster.PlayerCarIdx()
		}
	}
	tc.Tracked = tc.Roster.Driver(tc.TrackedIdx)
	tc.Location = tc.Roster.Location(tc.TrackedIdx)
}

func (l *Loop) updateTrackers(tc *TickContext) {
	tc.Pit, tc.Stats, tc.Changes = l.deps.Tracker.Update(l.deps.Store)
	if tc.Changes.Any() {
		l.log.Info("Pit status changed",
			"enteredPitLane", tc.Changes.EnteredPitLane,
			"leftPitLane", tc.Changes.LeftPitLane,
			"stopStarted", tc.Changes.StopStarted,
			"stopEnded", tc.Changes.StopEnded,
			"newIncidents", tc.Changes.NewIncidents,
		)
	}
}

func (l *Loop) evaluateCamera(ctx context.Context, tc *TickContext) {
	currentGroup := -1
	if cam, ok := l.deps.Cameras.CurrentCamera(); ok {
		tc.Camera = cam
		currentGroup = cam.ID
	}
	if target, ok := l.deps.Cameras.CurrentCameraTarget(); ok {
		tc.CameraTarget = target
	}
	if !l.opts.Camera.Enabled {
		return
	}

	in := camera.InputFor(tc.Roster, tc.TrackedIdx, tc.CameraTarget, currentGroup)
	tc.Result = l.deps.Machine.Evaluate(ctx, in)

	switch tc.Result.Outcome {
	case camera.SkipNoDriver:
		l.log.Debug("Pit camera skipped", "reason", tc.Result.Outcome.String(), "carIdx", tc.TrackedIdx)
	case camera.Transitioned:
		if tc.Result.Command != nil {
			l.dispatch(dispatcher.TopicCameraCommand, worker.CameraCommand{
				Time:    tc.Now,
				Driver:  *tc.Tracked,
				From:    tc.Result.From.String(),
				To:      tc.Result.To.String(),
				Command: *tc.Result.Command,
			})
		}
	}
}

func (l *Loop) locate(tc *TickContext) {
	if tc.Tracked == nil {
		return
	}
	lat, okLat := telemetry.ReadFloat(l.deps.Store, irsdk.VarLat)
	lon, okLon := telemetry.ReadFloat(l.deps.Store, irsdk.VarLon)
	if !okLat || !okLon {
		return
	}
	point, pos, err := geo.Project(lon, lat)
	if err != nil {
		l.log.Debug("Unusable position", "lat", lat, "lon", lon, "error", err)
		return
	}
	tc.Point = &point
	tc.Position = &pos
	tc.Altitude, _ = telemetry.ReadFloat(l.deps.Store, irsdk.VarAlt)
}

func (l *Loop) publish(tc *TickContext) {
	var tracked *core.Driver
	if tc.Tracked != nil {
		d := *tc.Tracked
		tracked = &d
	}
	l.deps.Session.Publish(session.Snapshot{
		Tick:         tc.Now,
		SessionTime:  tc.SessionTime,
		Connected:    true,
		Source:       l.deps.Store.Name(),
		Playback:     tc.Playback,
		Summary:      tc.Playback.Summary(),
		Drivers:      tc.Roster.DriverList(),
		Tracked:      tracked,
		Location:     tc.Location,
		Flags:        tc.Flags,
		CameraState:  l.deps.Machine.State().String(),
		Camera:       tc.Camera,
		CameraTarget: tc.CameraTarget,
		LastCommand:  l.deps.Machine.LastCommand(),
		Pit:          tc.Pit,
		Stats:        tc.Stats,
		Position:     tc.Position,
	})
}

func (l *Loop) emit(tc *TickContext, elapsed time.Duration) {
	frame := worker.Frame{
		Time:         tc.Now,
		SessionTime:  tc.SessionTime,
		Source:       l.deps.Store.Name(),
		Playback:     tc.Playback,
		TickDuration: elapsed,
		Tracked:      tc.Tracked,
		Location:     tc.Location,
		Point:        tc.Point,
		Altitude:     tc.Altitude,
		Flags:        tc.Flags,
		CameraState:  l.deps.Machine.State().String(),
		Pit:          tc.Pit,
		Stats:        tc.Stats,
	}
	if l.opts.RecordVars != nil {
		frame.Values = telemetry.Capture(l.deps.Store, l.opts.RecordVars)
	}
	l.dispatch(dispatcher.TopicFrame, frame)
}

func (l *Loop) onConnection(ev supervisor.Event) {
	l.deps.Session.Notify(ev)

	if ev.Kind == supervisor.EventConnected && l.opts.Camera.Enabled {
		groups, err := l.deps.Cameras.ResolveGroups(l.opts.Camera)
		if err != nil {
			l.log.Warn("Some pit camera groups are unavailable", "error", err)
		}
		l.deps.Machine.SetGroups(groups)
		l.log.Info("Pit camera groups", "pitLane", groups.PitLane, "pitStall", groups.PitStall, "pitExit", groups.PitExit)
	}

	l.dispatch(dispatcher.TopicConnection, ev)
}

func (l *Loop) dispatch(topic string, payload any) {
	d := l.deps.Dispatcher
	if d == nil || !d.HasHandler(topic) {
		return
	}
	if _, err := d.Dispatch(dispatcher.Event{Topic: topic, Payload: payload}); err != nil {
		l.log.Warn("Failed to dispatch event", "topic", topic, "error", err)
	}
}
