package supervisor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/irtelemetry/pitcam/pkg/core"
)

// fakeStore connects once connectAfter attempts have been made.
type fakeStore struct {
	connectAfter int
	attempts     int
	connected    bool
	disconnects  int
}

func (f *fakeStore) Name() string { return "fake" }
func (f *fakeStore) Connect() bool {
	f.attempts++
	if f.connectAfter >= 0 && f.attempts > f.connectAfter {
		f.connected = true
	}
	return f.connected
}
func (f *fakeStore) Disconnect() {
	f.disconnects++
	f.connected = false
}
func (f *fakeStore) IsConnected() bool           { return f.connected }
func (f *fakeStore) FreezeLatest()               {}
func (f *fakeStore) Read(string) (any, bool)     { return nil, false }
func (f *fakeStore) NextTick() float64           { return 0 }
func (f *fakeStore) Playback() core.PlaybackInfo { return core.PlaybackInfo{TotalFrames: -1} }
func (f *fakeStore) PlaybackSummary() string     { return "LIVE" }
func (f *fakeStore) Keys() []string              { return nil }

type countingResetter struct{ n int }

func (c *countingResetter) Reset() { c.n++ }

func newSupervisor(t *testing.T, store *fakeStore, ceiling int) *Supervisor {
	t.Helper()
	s, err := New(store, Options{RetryCeiling: ceiling})
	require.NoError(t, err)
	return s
}

func TestTick_ConnectsImmediately(t *testing.T) {
	store := &fakeStore{}
	s := newSupervisor(t, store, 0)

	var events []Event
	s.Subscribe(func(e Event) { events = append(events, e) })
	r := &countingResetter{}
	s.OnReset(r)

	ok, err := s.Tick(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, Connected, s.State())
	assert.Equal(t, 1, r.n)
	require.Len(t, events, 1)
	assert.Equal(t, EventConnected, events[0].Kind)
	assert.Equal(t, "fake", events[0].Source)

	// Stays connected without another attempt or reset.
	ok, err = s.Tick(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, store.attempts)
	assert.Equal(t, 1, r.n)
}

func TestTick_RetryCeiling(t *testing.T) {
	store := &fakeStore{connectAfter: -1}
	s := newSupervisor(t, store, 3)

	for i := 1; i <= 3; i++ {
		ok, err := s.Tick(context.Background())
		require.NoError(t, err, "tick %d", i)
		assert.False(t, ok)
		assert.Equal(t, i, s.Failures())
		assert.Equal(t, Disconnected, s.State())
	}

	_, err := s.Tick(context.Background())
	require.ErrorIs(t, err, ErrRetryCeilingExceeded)
}

func TestTick_DefaultCeiling(t *testing.T) {
	store := &fakeStore{connectAfter: -1}
	s := newSupervisor(t, store, -2)

	var err error
	ticks := 0
	for err == nil {
		_, err = s.Tick(context.Background())
		ticks++
	}
	assert.ErrorIs(t, err, ErrRetryCeilingExceeded)
	assert.Equal(t, DefaultRetryCeiling+1, ticks)
}

func TestTick_FailuresResetOnConnect(t *testing.T) {
	store := &fakeStore{connectAfter: 2}
	s := newSupervisor(t, store, 5)

	for range 2 {
		ok, err := s.Tick(context.Background())
		require.NoError(t, err)
		assert.False(t, ok)
	}
	assert.Equal(t, 2, s.Failures())

	ok, err := s.Tick(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 0, s.Failures())
}

func TestTick_DropThenReconnect(t *testing.T) {
	store := &fakeStore{}
	s := newSupervisor(t, store, 5)
	r := &countingResetter{}
	s.OnReset(r)

	var kinds []EventKind
	s.Subscribe(func(e Event) { kinds = append(kinds, e.Kind) })

	ok, err := s.Tick(context.Background())
	require.NoError(t, err)
	require.True(t, ok)

	// Simulator goes away.
	store.connected = false

	ok, err = s.Tick(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, Disconnected, s.State())
	assert.Equal(t, 1, store.disconnects)
	assert.Equal(t, 1, store.attempts, "no reconnect on the drop tick")
	assert.Equal(t, 1, s.Failures())
	assert.Equal(t, 2, r.n)

	ok, err = s.Tick(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 2, store.attempts)
	assert.Equal(t, 3, r.n)
	assert.Equal(t, []EventKind{EventConnected, EventDisconnected, EventConnected}, kinds)
}

func TestShutdown(t *testing.T) {
	store := &fakeStore{}
	s := newSupervisor(t, store, 5)
	n := 0
	s.OnReset(ResetFunc(func() { n++ }))

	_, err := s.Tick(context.Background())
	require.NoError(t, err)
	s.Shutdown()
	assert.Equal(t, Disconnected, s.State())
	assert.False(t, store.connected)
	assert.Equal(t, 2, n)

	// Second shutdown does not reset again.
	s.Shutdown()
	assert.Equal(t, 2, n)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "Connecting", Connecting.String())
	assert.Equal(t, "State(9)", State(9).String())
	assert.Equal(t, "disconnected", EventDisconnected.String())
}
