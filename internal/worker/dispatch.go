package worker

import (
	"fmt"
	"strconv"
	"time"

	"github.com/irtelemetry/pitcam/internal/dispatcher"
	"github.com/irtelemetry/pitcam/internal/influx"
	"github.com/irtelemetry/pitcam/internal/model"
	"github.com/irtelemetry/pitcam/internal/recording"
	"github.com/irtelemetry/pitcam/internal/supervisor"
	"github.com/irtelemetry/pitcam/pkg/core"
)

// RegisterHandlers registers the sink handlers with the dispatcher.
func (m *Manager) RegisterHandlers(d *dispatcher.Dispatcher) {
	// Trace bookkeeping - sync, order matters for distance
	d.Register(dispatcher.TopicFrame, "trace", m.handleTrace)
	d.Register(dispatcher.TopicConnection, "trace.reset", m.handleConnection, dispatcher.Logged())

	if m.deps.Recorder != nil {
		d.Register(dispatcher.TopicFrame, "recording.frame", m.handleRecordFrame, dispatcher.Buffered(10000), dispatcher.Blocking())
		d.Register(dispatcher.TopicCameraCommand, "recording.camera", m.handleRecordCamera, dispatcher.Buffered(100), dispatcher.Logged())
	}

	if m.deps.Points != nil {
		d.Register(dispatcher.TopicFrame, "influx.frame", m.handleInfluxFrame, dispatcher.Buffered(1000))
		d.Register(dispatcher.TopicCameraCommand, "influx.camera", m.handleInfluxCamera, dispatcher.Buffered(100), dispatcher.Logged())
	}
}

func frameOf(e dispatcher.Event) (Frame, error) {
	switch f := e.Payload.(type) {
	case Frame:
		return f, nil
	case *Frame:
		if f != nil {
			return *f, nil
		}
	}
	return Frame{}, fmt.Errorf("unexpected %s payload %T", e.Topic, e.Payload)
}

func commandOf(e dispatcher.Event) (CameraCommand, error) {
	switch c := e.Payload.(type) {
	case CameraCommand:
		return c, nil
	case *CameraCommand:
		if c != nil {
			return *c, nil
		}
	}
	return CameraCommand{}, fmt.Errorf("unexpected %s payload %T", e.Topic, e.Payload)
}

func (m *Manager) handleTrace(e dispatcher.Event) (any, error) {
	f, err := frameOf(e)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.frames++

	if f.Tracked == nil || f.Point == nil {
		return nil, nil
	}
	if f.Tracked.CarIdx != m.trace.CarIdx() {
		m.trace.Reset(f.Tracked.CarIdx)
	}
	if c, ok := f.Point.Coordinates(); ok {
		m.trace.Add(core.Position2D{X: c.X, Y: c.Y})
	}
	return nil, nil
}

func (m *Manager) handleConnection(e dispatcher.Event) (any, error) {
	ev, ok := e.Payload.(supervisor.Event)
	if !ok {
		return nil, fmt.Errorf("unexpected %s payload %T", e.Topic, e.Payload)
	}

	m.mu.Lock()
	m.trace.Reset(-1)
	m.mu.Unlock()

	m.deps.Logger.Debug("Reset sink state", "event", ev.Kind.String(), "source", ev.Source)
	return nil, nil
}

func (m *Manager) handleRecordFrame(e dispatcher.Event) (any, error) {
	f, err := frameOf(e)
	if err != nil {
		return nil, err
	}
	if f.Values == nil {
		return nil, nil
	}

	start := time.Now()
	if err := m.deps.Recorder.AddSample(recording.Sample{
		Time:        f.Time,
		SessionTime: f.SessionTime,
		Values:      f.Values,
	}); err != nil {
		return nil, fmt.Errorf("failed to record frame: %w", err)
	}

	if f.Tracked != nil && f.Point != nil {
		m.deps.Recorder.AddTrackPoint(model.TrackPoint{
			Time:     f.Time.UTC(),
			CarIdx:   f.Tracked.CarIdx,
			Position: *f.Point,
			Altitude: float32(f.Altitude),
			Location: f.Location.String(),
		})
	}

	m.recordWrite(time.Since(start))
	return nil, nil
}

func (m *Manager) handleRecordCamera(e dispatcher.Event) (any, error) {
	c, err := commandOf(e)
	if err != nil {
		return nil, err
	}
	m.deps.Recorder.AddCameraEvent(model.CameraEvent{
		Time:      c.Time.UTC(),
		CarIdx:    c.Command.CarIdx,
		CarNumber: c.Driver.CarNumber,
		FromState: c.From,
		ToState:   c.To,
		GroupID:   c.Command.GroupID,
		Reason:    c.Command.Reason,
		Issued:    c.Command.Issued,
	})
	return nil, nil
}

func (m *Manager) handleInfluxFrame(e dispatcher.Event) (any, error) {
	f, err := frameOf(e)
	if err != nil {
		return nil, err
	}

	start := time.Now()

	tags := map[string]string{"source": f.Source}
	fields := map[string]any{
		"session_time":     f.SessionTime,
		"frame":            f.Playback.CurrentFrame,
		"progress_percent": f.Playback.ProgressPercent,
		"speed":            f.Playback.SpeedMultiplier,
		"camera_state":     f.CameraState,
		"incidents":        f.Stats.Incidents,
		"team_incidents":   f.Stats.TeamIncidents,
		"lap":              f.Stats.Lap,
		"lap_dist_pct":     f.Stats.LapDistPct,
		"in_pit_lane":      f.Pit.InPitLane,
		"in_pit_stall":     f.Pit.InPitStall,
		"repairs_required": f.Pit.RequiredRepairs,
		"repair_left":      f.Pit.MandatoryRepair,
		"opt_repair_left":  f.Pit.OptionalRepair,
		"towed":            f.Pit.Towed,
	}
	if len(f.Flags) > 0 {
		tags["flag"] = f.Flags[0]
	}
	if f.Tracked != nil {
		tags["car_idx"] = strconv.Itoa(f.Tracked.CarIdx)
		tags["car_number"] = f.Tracked.CarNumber
		tags["location"] = f.Location.String()
		if f.Point != nil {
			if c, ok := f.Point.Coordinates(); ok {
				fields["x"] = c.X
				fields["y"] = c.Y
			}
		}
	}

	if err := m.deps.Points.WritePoint(influx.BucketTelemetry, influx.NewPoint("tick", tags, fields, f.Time)); err != nil {
		return nil, fmt.Errorf("failed to write tick point: %w", err)
	}

	if f.TickDuration > 0 {
		perf := influx.NewPoint("poll", map[string]string{"source": f.Source}, map[string]any{
			"tick_ms": float64(f.TickDuration.Microseconds()) / 1000,
			"pending": m.Pending(),
		}, f.Time)
		if err := m.deps.Points.WritePoint(influx.BucketPerformance, perf); err != nil {
			return nil, fmt.Errorf("failed to write performance point: %w", err)
		}
	}

	m.recordWrite(time.Since(start))
	return nil, nil
}

func (m *Manager) handleInfluxCamera(e dispatcher.Event) (any, error) {
	c, err := commandOf(e)
	if err != nil {
		return nil, err
	}
	p := influx.NewPoint("camera_command", map[string]string{
		"from":       c.From,
		"to":         c.To,
		"car_number": c.Driver.CarNumber,
	}, map[string]any{
		"car_idx":  c.Command.CarIdx,
		"group_id": c.Command.GroupID,
		"issued":   c.Command.Issued,
	}, c.Time)
	if err := m.deps.Points.WritePoint(influx.BucketCamera, p); err != nil {
		return nil, fmt.Errorf("failed to write camera point: %w", err)
	}
	return nil, nil
}

func (m *Manager) recordWrite(d time.Duration) {
	m.mu.Lock()
	m.lastWrite = d
	m.mu.Unlock()
}
