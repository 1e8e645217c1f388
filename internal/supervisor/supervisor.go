// Package supervisor owns the connect/disconnect lifecycle of a telemetry
// store and is the single point where dependent state is reset.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	intOtel "github.com/irtelemetry/pitcam/internal/otel"
	"github.com/irtelemetry/pitcam/internal/telemetry"
)

// DefaultRetryCeiling is the number of consecutive not-connected ticks
// tolerated before giving up.
const DefaultRetryCeiling = 5

// ErrRetryCeilingExceeded is the fatal condition raised once the store has
// stayed disconnected for more ticks than the retry ceiling allows.
var ErrRetryCeilingExceeded = errors.New("retry ceiling exceeded")

// State is the supervisor's view of the connection.
type State int

const (
	Disconnected State = iota
	Connecting
	Connected
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "Disconnected"
	case Connecting:
		return "Connecting"
	case Connected:
		return "Connected"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// EventKind distinguishes connection notifications.
type EventKind int

const (
	EventConnected EventKind = iota
	EventDisconnected
)

func (k EventKind) String() string {
	if k == EventConnected {
		return "connected"
	}
	return "disconnected"
}

// Event is delivered to subscribers on every connect and disconnect.
type Event struct {
	Kind   EventKind
	Source string
	Time   time.Time
}

// Resetter is dependent state cleared at the reset point.
type Resetter interface {
	Reset()
}

// ResetFunc adapts a function to Resetter.
type ResetFunc func()

func (f ResetFunc) Reset() { f() }

// Options configures a Supervisor.
type Options struct {
	// RetryCeiling defaults to DefaultRetryCeiling when <= 0.
	RetryCeiling int
	Logger       *slog.Logger
}

// Supervisor drives a telemetry.Store through its lifecycle once per tick.
// Tick is called only from the poll loop; Subscribe and OnReset may be
// called from anywhere.
type Supervisor struct {
	store   telemetry.Store
	ceiling int
	logger  *slog.Logger

	mu          sync.RWMutex
	state       State
	failures    int
	resetters   []Resetter
	subscribers []func(Event)

	attempts    metric.Int64Counter
	disconnects metric.Int64Counter
}

// New creates a Supervisor for store.
func New(store telemetry.Store, opts Options) (*Supervisor, error) {
	ceiling := opts.RetryCeiling
	if ceiling <= 0 {
		ceiling = DefaultRetryCeiling
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Supervisor{
		store:   store,
		ceiling: ceiling,
		logger:  logger,
		state:   Disconnected,
	}

	m := intOtel.Meter("supervisor")
	var err error

	s.attempts, err = m.Int64Counter(
		"supervisor.connect.attempts",
		metric.WithDescription("Connect attempts, by outcome"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating attempts counter: %w", err)
	}

	s.disconnects, err = m.Int64Counter(
		"supervisor.disconnects",
		metric.WithDescription("Connections lost after being established"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating disconnects counter: %w", err)
	}

	return s, nil
}

// OnReset registers dependent state cleared on every connect and disconnect.
func (s *Supervisor) OnReset(rs ...Resetter) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetters = append(s.resetters, rs...)
}

// Subscribe registers fn for connection events. fn runs on the poll loop
// and must not block.
func (s *Supervisor) Subscribe(fn func(Event)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscribers = append(s.subscribers, fn)
}

// State returns the current connection state.
func (s *Supervisor) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Connected reports whether the last tick ended connected.
func (s *Supervisor) Connected() bool {
	return s.State() == Connected
}

// Failures is the number of consecutive not-connected ticks.
func (s *Supervisor) Failures() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.failures
}

// Tick evaluates the connection once and reports whether the store is
// connected. A lost connection is handled on the tick it is noticed and
// reconnect is attempted from the next tick on. It returns
// ErrRetryCeilingExceeded once the store has been disconnected for more
// consecutive ticks than the ceiling.
func (s *Supervisor) Tick(ctx context.Context) (bool, error) {
	switch s.State() {
	case Connected:
		if s.store.IsConnected() {
			return true, nil
		}
		s.drop(ctx)
	default:
		if s.connect(ctx) {
			return true, nil
		}
	}

	s.mu.Lock()
	s.failures++
	failures := s.failures
	s.mu.Unlock()

	if failures > s.ceiling {
		return false, fmt.Errorf("%w: %s not connected for %d consecutive ticks", ErrRetryCeilingExceeded, s.store.Name(), failures)
	}
	s.logger.Debug("Telemetry not connected", "source", s.store.Name(), "retry", failures, "ceiling", s.ceiling)
	return false, nil
}

func (s *Supervisor) connect(ctx context.Context) bool {
	s.setState(Connecting)

	ok := s.store.Connect() && s.store.IsConnected()
	s.attempts.Add(ctx, 1, metric.WithAttributes(
		attribute.String("source", s.store.Name()),
		attribute.Bool("success", ok),
	))
	if !ok {
		s.setState(Disconnected)
		return false
	}

	s.mu.Lock()
	s.state = Connected
	s.failures = 0
	s.mu.Unlock()

	s.logger.Info("Telemetry connected", "source", s.store.Name(), "playback", s.store.PlaybackSummary())
	s.reset(EventConnected)
	return true
}

func (s *Supervisor) drop(ctx context.Context) {
	s.setState(Disconnected)
	s.store.Disconnect()
	s.disconnects.Add(ctx, 1, metric.WithAttributes(attribute.String("source", s.store.Name())))
	s.logger.Warn("Telemetry connection lost", "source", s.store.Name())
	s.reset(EventDisconnected)
}

// Shutdown disconnects the store and runs the reset point if connected.
func (s *Supervisor) Shutdown() {
	wasConnected := s.State() == Connected
	s.setState(Disconnected)
	s.store.Disconnect()
	if wasConnected {
		s.reset(EventDisconnected)
	}
}

func (s *Supervisor) reset(kind EventKind) {
	s.mu.RLock()
	resetters := append([]Resetter(nil), s.resetters...)
	subscribers := make([]func(Event), len(s.subscribers))
	copy(subscribers, s.subscribers)
	s.mu.RUnlock()

	for _, r := range resetters {
		r.Reset()
	}
	ev := Event{Kind: kind, Source: s.store.Name(), Time: time.Now()}
	for _, fn := range subscribers {
		fn(ev)
	}
}

func (s *Supervisor) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}
