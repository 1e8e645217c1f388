package monitor

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/irtelemetry/pitcam/internal/session"
)

// DefaultInterval is the status refresh period.
const DefaultInterval = time.Second

// clearScreen is the ANSI home-and-clear sequence.
const clearScreen = "\033[H\033[2J"

// Dependencies holds all dependencies for the monitor service
type Dependencies struct {
	Session *session.Context
	Logger  *slog.Logger
	// Console receives the rendered screen; nil disables console output.
	Console io.Writer
	// StatusPath is rewritten on every refresh when set.
	StatusPath string
	Interval   time.Duration
	// Debug adds the session, car and player sections.
	Debug bool
	// Sinks reports the worker's write state. Optional.
	Sinks SinkStats
}

// SinkStats is the worker view shown on the status screen.
// *worker.Manager implements it.
type SinkStats interface {
	Pending() int
	Frames() int
	TracePoints() int
	TraceLength() float64
	GetLastWriteDuration() time.Duration
}

// Service renders the status screen
type Service struct {
	deps      Dependencies
	started   time.Time
	isRunning bool
	mu        sync.RWMutex
	stopChan  chan struct{}
	done      chan struct{}
}

// NewService creates a new monitor service
func NewService(deps Dependencies) *Service {
	if deps.Interval <= 0 {
		deps.Interval = DefaultInterval
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Service{
		deps:     deps,
		started:  time.Now(),
		stopChan: make(chan struct{}),
	}
}

// IsRunning returns whether the status monitor is running
func (s *Service) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Render returns the status screen for the latest snapshot.
func (s *Service) Render(now time.Time) []string {
	snap := s.deps.Session.Snapshot()

	lines := []string{
		"Sim Telemetry Monitor",
		"=====================",
		"",
		"Time: " + now.Format(time.DateTime),
		fmt.Sprintf("Uptime: %s", now.Sub(s.started).Truncate(time.Second)),
		fmt.Sprintf("Connected: %t [Type: %s]", snap.Connected, snap.Source),
		"Playback: " + snap.Summary,
	}
	if !snap.Connected {
		return lines
	}

	camera := snap.Camera.Name
	if camera == "" {
		camera = "Unknown"
	}
	lines = append(lines,
		fmt.Sprintf("Camera: %s (group %d) on car %d", camera, snap.Camera.ID, snap.CameraTarget),
		"Pit Automation: "+snap.CameraState,
	)
	if snap.LastCommand != nil {
		lines = append(lines, fmt.Sprintf("Last Command: %s -> group %d (issued: %t)",
			snap.LastCommand.Reason, snap.LastCommand.GroupID, snap.LastCommand.Issued))
	}
	if snap.Tracked != nil {
		lines = append(lines, fmt.Sprintf("Tracking: %s [%s]", snap.Tracked.DisplayName(), snap.Location))
	}
	if s.deps.Sinks != nil {
		lines = append(lines, fmt.Sprintf("Pending Writes: %d (last write %s)",
			s.deps.Sinks.Pending(), s.deps.Sinks.GetLastWriteDuration()))
	}

	if s.deps.Debug {
		lines = append(lines,
			"",
			"== Session Stats ==",
			fmt.Sprintf("Session Time:  %.3f", snap.SessionTime),
			"Session Flags: "+strings.Join(snap.Flags, ", "),
			"",
			"== Pit Status ==",
			fmt.Sprintf("In Pit Lane:  %t", snap.Pit.InPitLane),
			fmt.Sprintf("In Pit Stall: %t", snap.Pit.InPitStall),
			fmt.Sprintf("Repairs:      required=%t serviceable=%t (%.1fs + %.1fs optional)",
				snap.Pit.RequiredRepairs, snap.Pit.Serviceable, snap.Pit.MandatoryRepair, snap.Pit.OptionalRepair),
			fmt.Sprintf("Towed:        %t", snap.Pit.Towed),
			"",
			"== Player Stats ==",
			fmt.Sprintf("Lap Completed: %d (+%.2f%%)", snap.Stats.LapCompleted, snap.Stats.LapDistPct*100),
			fmt.Sprintf("Incidents:     %d (Team: %d)", snap.Stats.Incidents, snap.Stats.TeamIncidents),
			"",
			fmt.Sprintf("Drivers: %d", len(snap.Drivers)),
		)
		if snap.Position != nil {
			lines = append(lines, fmt.Sprintf("Position: %.1f, %.1f", snap.Position.X, snap.Position.Y))
		}
		if s.deps.Sinks != nil {
			lines = append(lines,
				fmt.Sprintf("Frames Emitted: %d", s.deps.Sinks.Frames()),
				fmt.Sprintf("Trace: %d points, %.0f m", s.deps.Sinks.TracePoints(), s.deps.Sinks.TraceLength()),
			)
		}
	}
	return lines
}

// Refresh renders once to the console and status file.
func (s *Service) Refresh(statusFile *os.File) {
	lines := s.Render(time.Now())
	body := strings.Join(lines, "\n") + "\n"

	if s.deps.Console != nil {
		if _, err := io.WriteString(s.deps.Console, clearScreen+body); err != nil {
			s.deps.Logger.Debug("Error writing status to console", "error", err)
		}
	}
	if statusFile != nil {
		if err := statusFile.Truncate(0); err != nil {
			s.deps.Logger.Error("Error truncating status file", "error", err)
			return
		}
		if _, err := statusFile.Seek(0, io.SeekStart); err != nil {
			s.deps.Logger.Error("Error rewinding status file", "error", err)
			return
		}
		if _, err := statusFile.WriteString(body); err != nil {
			s.deps.Logger.Error("Error writing status file", "error", err)
		}
	}
}

// Start starts the status monitor goroutine. It stops on Stop or when ctx
// is done.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}

	var statusFile *os.File
	if s.deps.StatusPath != "" {
		f, err := os.Create(s.deps.StatusPath)
		if err != nil {
			s.mu.Unlock()
			return fmt.Errorf("error creating status file: %w", err)
		}
		statusFile = f
	}

	s.isRunning = true
	s.stopChan = make(chan struct{})
	s.done = make(chan struct{})
	stop, done := s.stopChan, s.done
	s.mu.Unlock()

	go func() {
		defer close(done)
		defer func() {
			s.mu.Lock()
			s.isRunning = false
			s.mu.Unlock()
		}()
		if statusFile != nil {
			defer statusFile.Close()
		}

		s.deps.Logger.Debug("Starting status monitor goroutine", "interval", s.deps.Interval)

		ticker := time.NewTicker(s.deps.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-stop:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.Refresh(statusFile)
			}
		}
	}()

	return nil
}

// Stop stops the status monitor and waits for the goroutine to exit.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	close(s.stopChan)
	s.isRunning = false
	done := s.done
	s.mu.Unlock()
	<-done
}
