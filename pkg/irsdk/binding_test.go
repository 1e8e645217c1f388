package irsdk

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopHandle struct{}

func (nopHandle) Startup() bool                   { return false }
func (nopHandle) Shutdown()                       {}
func (nopHandle) IsInitialized() bool             { return false }
func (nopHandle) IsConnected() bool               { return false }
func (nopHandle) FreezeVarBufferLatest()          {}
func (nopHandle) Get(string) (any, bool)          { return nil, false }
func (nopHandle) VarNames() []string              { return nil }
func (nopHandle) CamSwitchNum(int, int, int) bool { return false }

func resetBinding(t *testing.T) {
	t.Cleanup(func() {
		bindingMu.Lock()
		liveFactory = nil
		bindingName = ""
		bindingMu.Unlock()
	})
}

func TestNewLive_NoBinding(t *testing.T) {
	resetBinding(t)

	h, err := NewLive()
	assert.Nil(t, h)
	assert.ErrorIs(t, err, ErrNoLiveBinding)
	assert.Equal(t, "", LiveBindingName())
}

func TestRegisterLive(t *testing.T) {
	resetBinding(t)

	RegisterLive("nop", func() Handle { return nopHandle{} })

	h, err := NewLive()
	require.NoError(t, err)
	assert.IsType(t, nopHandle{}, h)
	assert.Equal(t, "nop", LiveBindingName())
}

func TestHeaderValidate(t *testing.T) {
	tests := []struct {
		name    string
		header  Header
		wantErr bool
	}{
		{"valid", Header{TickRate: 60, RecordCount: 100}, false},
		{"zero tick rate", Header{TickRate: 0, RecordCount: 100}, true},
		{"negative records", Header{TickRate: 60, RecordCount: -1}, true},
		{"empty", Header{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.header.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidHeader)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
