// Package camera follows a tracked driver through a pit stop with the
// broadcast camera and puts the previous camera back afterwards.
package camera

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	intOtel "github.com/irtelemetry/pitcam/internal/otel"
	"github.com/irtelemetry/pitcam/internal/roster"
	"github.com/irtelemetry/pitcam/pkg/core"
)

// State is the automation phase for the tracked driver.
type State int

const (
	Idle State = iota
	ApproachingPits
	InStall
	ExitingPits
)

func (s State) String() string {
	switch s {
	case Idle:
		return "Idle"
	case ApproachingPits:
		return "ApproachingPits"
	case InStall:
		return "InStall"
	case ExitingPits:
		return "ExitingPits"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Groups are the camera group IDs used during a stop.
type Groups struct {
	PitLane  int
	PitStall int
	PitExit  int
}

// Switcher points the broadcast camera at a car. Manager implements it.
type Switcher interface {
	SetCamera(carIdx, groupID int) bool
}

// Input is everything one evaluation looks at, read after FreezeLatest.
type Input struct {
	// Driver is nil when the tracked car is not in the roster.
	Driver *core.Driver
	// CameraTarget is the car index the broadcast camera follows.
	CameraTarget int
	// CurrentGroup is the camera group on air, remembered on pit entry.
	// Negative means the source did not report one.
	CurrentGroup int
	OnPitRoad    bool
	InPitStall   bool
	OnTrack      bool
}

// InputFor builds the evaluation input for carIdx from the tick's roster.
func InputFor(r *roster.Roster, carIdx, cameraTarget, currentGroup int) Input {
	return Input{
		Driver:       r.Driver(carIdx),
		CameraTarget: cameraTarget,
		CurrentGroup: currentGroup,
		OnPitRoad:    r.OnPitRoad(carIdx),
		InPitStall:   r.InPitStall(carIdx),
		OnTrack:      r.OnTrack(carIdx),
	}
}

// Outcome classifies an evaluation.
type Outcome int

const (
	Unchanged Outcome = iota
	Transitioned
	SkipNoDriver
	SkipGuard
)

func (o Outcome) String() string {
	switch o {
	case Unchanged:
		return "unchanged"
	case Transitioned:
		return "transitioned"
	case SkipNoDriver:
		return "skipped, no driver"
	case SkipGuard:
		return "skipped, camera on another car"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// Result reports what one evaluation did.
type Result struct {
	Outcome Outcome
	From    State
	To      State
	// Command is set whenever a camera switch was requested.
	Command *core.CameraCommand
	// CommandIssued reports whether the switcher accepted the command.
	CommandIssued bool
}

// Options configures a Machine.
type Options struct {
	Logger *slog.Logger
	// DisableDriveThrough drops the ApproachingPits to Idle edge, so a car
	// that rejoins the track without stopping keeps the pit lane camera
	// until it next reaches its stall.
	DisableDriveThrough bool
}

// Machine is the pit-stop camera state machine. Evaluate and Reset are
// called from the poll loop; State and LastCamera are safe from any goroutine.
type Machine struct {
	mu         sync.RWMutex
	groups     Groups
	switcher   Switcher
	state      State
	lastCamera int
	hasLast    bool
	lastCmd    *core.CameraCommand

	driveThrough bool
	logger       *slog.Logger
	commands     metric.Int64Counter
}

// NewMachine returns a machine in Idle.
func NewMachine(groups Groups, switcher Switcher, opts Options) (*Machine, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	commands, err := intOtel.Meter("camera").Int64Counter(
		"camera.commands",
		metric.WithDescription("Camera switch commands requested by pit automation"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating commands counter: %w", err)
	}

	return &Machine{
		groups:       groups,
		switcher:     switcher,
		driveThrough: !opts.DisableDriveThrough,
		logger:       logger,
		commands:     commands,
	}, nil
}

// SetGroups replaces the camera groups, typically after the session's
// camera list has been resolved.
func (m *Machine) SetGroups(g Groups) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.groups = g
}

// Groups returns the camera groups in use.
func (m *Machine) Groups() Groups {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.groups
}

// State returns the current phase.
func (m *Machine) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// LastCamera is the group remembered on pit entry.
func (m *Machine) LastCamera() (int, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastCamera, m.hasLast
}

// LastCommand is the most recent camera command, or nil.
func (m *Machine) LastCommand() *core.CameraCommand {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.lastCmd == nil {
		return nil
	}
	cmd := *m.lastCmd
	return &cmd
}

// Reset returns to Idle and forgets the remembered camera.
func (m *Machine) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = Idle
	m.lastCamera = 0
	m.hasLast = false
	m.lastCmd = nil
}

// Evaluate runs at most one transition for this tick. The machine only acts
// while the camera already follows the driver; otherwise state is left as
// it is so automation resumes once the operator returns to the car.
func (m *Machine) Evaluate(ctx context.Context, in Input) Result {
	m.mu.Lock()
	defer m.mu.Unlock()

	from := m.state
	res := Result{From: from, To: from}

	if in.Driver == nil {
		res.Outcome = SkipNoDriver
		return res
	}
	if in.CameraTarget != in.Driver.CarIdx {
		res.Outcome = SkipGuard
		return res
	}

	var (
		to      State
		group   int
		fire    bool
		restore bool
	)
	switch from {
	case Idle:
		if in.OnPitRoad {
			to, group, fire = ApproachingPits, m.groups.PitLane, true
			m.lastCamera, m.hasLast = in.CurrentGroup, in.CurrentGroup >= 0
		}
	case ApproachingPits:
		if in.InPitStall {
			to, group, fire = InStall, m.groups.PitStall, true
		} else if in.OnTrack && m.driveThrough {
			// Drive-through: never stopped in the stall.
			to, fire, restore = Idle, true, true
		}
	case InStall:
		if !in.InPitStall {
			to, group, fire = ExitingPits, m.groups.PitExit, true
		}
	case ExitingPits:
		if in.OnTrack {
			to, fire, restore = Idle, true, true
		}
	}
	if !fire {
		res.Outcome = Unchanged
		return res
	}

	if restore {
		group = m.lastCamera
		if !m.hasLast {
			group = -1
		}
		m.lastCamera, m.hasLast = 0, false
	}

	m.state = to
	res.To = to
	res.Outcome = Transitioned

	transition := from.String() + "->" + to.String()
	if group >= 0 {
		cmd := &core.CameraCommand{
			CarIdx:  in.Driver.CarIdx,
			GroupID: group,
			Reason:  transition,
		}
		if m.switcher != nil {
			cmd.Issued = m.switcher.SetCamera(in.Driver.CarIdx, group)
		}
		res.Command = cmd
		res.CommandIssued = cmd.Issued
		m.lastCmd = cmd
	}

	m.commands.Add(ctx, 1, metric.WithAttributes(
		attribute.String("transition", transition),
		attribute.Bool("issued", res.CommandIssued),
	))
	m.logger.Info("Pit camera transition",
		"driver", in.Driver.DisplayName(),
		"carIdx", in.Driver.CarIdx,
		"from", from.String(),
		"to", to.String(),
		"group", group,
		"issued", res.CommandIssued,
	)
	return res
}
