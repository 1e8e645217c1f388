// Package telemetry exposes simulator variables through one Store contract
// regardless of whether they come from the running sim or a recording.
package telemetry

import (
	"github.com/spf13/cast"

	"github.com/irtelemetry/pitcam/pkg/core"
)

// Store is keyed read access to the current tick's telemetry.
//
// FreezeLatest must be called once per tick before any Read so that all
// reads of that tick observe one data generation. Read reports absent,
// never an error, for unknown keys or while disconnected.
type Store interface {
	Name() string
	Connect() bool
	// Disconnect releases the source. It is idempotent.
	Disconnect()
	IsConnected() bool
	FreezeLatest()
	Read(key string) (any, bool)
	// NextTick advances to the next logical sample and returns its
	// SessionTime, or 0 while disconnected.
	NextTick() float64
	Playback() core.PlaybackInfo
	PlaybackSummary() string
	Keys() []string
}

// CameraSwitcher is implemented by sources that can drive the broadcast camera.
type CameraSwitcher interface {
	SwitchCamera(carNumber, groupID, cameraID int) bool
}

// ReadInt reads key as an int. Values that do not convert are absent.
func ReadInt(s Store, key string) (int, bool) {
	v, ok := s.Read(key)
	if !ok {
		return 0, false
	}
	i, err := cast.ToIntE(v)
	return i, err == nil
}

// ReadFloat reads key as a float64.
func ReadFloat(s Store, key string) (float64, bool) {
	v, ok := s.Read(key)
	if !ok {
		return 0, false
	}
	f, err := cast.ToFloat64E(v)
	return f, err == nil
}

// ReadBool reads key as a bool.
func ReadBool(s Store, key string) (bool, bool) {
	v, ok := s.Read(key)
	if !ok {
		return false, false
	}
	b, err := cast.ToBoolE(v)
	return b, err == nil
}

// ReadString reads key as a string.
func ReadString(s Store, key string) (string, bool) {
	v, ok := s.Read(key)
	if !ok {
		return "", false
	}
	str, err := cast.ToStringE(v)
	return str, err == nil
}

// ReadIntSlice reads a per-car array such as CarIdxTrackSurface.
func ReadIntSlice(s Store, key string) ([]int, bool) {
	v, ok := s.Read(key)
	if !ok {
		return nil, false
	}
	out, err := cast.ToIntSliceE(v)
	return out, err == nil
}

// ReadIntAt reads element idx of a per-car array.
func ReadIntAt(s Store, key string, idx int) (int, bool) {
	vals, ok := ReadIntSlice(s, key)
	if !ok || idx < 0 || idx >= len(vals) {
		return 0, false
	}
	return vals[idx], true
}
