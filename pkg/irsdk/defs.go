// Package irsdk defines the contract this module consumes from the simulator
// SDK binding. The binding itself (shared-memory reader, telemetry file
// decoder) lives outside this module and plugs in through RegisterLive and the
// Recording interface.
package irsdk

import "errors"

// Variable names read by the core.
const (
	VarSessionTime        = "SessionTime"
	VarSessionNum         = "SessionNum"
	VarSessionState       = "SessionState"
	VarSessionFlags       = "SessionFlags"
	VarPlayerCarIdx       = "PlayerCarIdx"
	VarCarIdxTrackSurface = "CarIdxTrackSurface"
	VarCarIdxOnPitRoad    = "CarIdxOnPitRoad"
	VarCamCarIdx          = "CamCarIdx"
	VarCamGroupNumber     = "CamGroupNumber"
	VarCamCameraNumber    = "CamCameraNumber"
	VarDriverInfo         = "DriverInfo"
	VarCameraInfo         = "CameraInfo"
	VarLat                = "Lat"
	VarLon                = "Lon"
	VarAlt                = "Alt"
	VarLap                = "Lap"
	VarLapCompleted       = "LapCompleted"
	VarLapDistPct         = "LapDistPct"
	VarRaceLaps           = "RaceLaps"
	VarOnPitRoad          = "OnPitRoad"
	VarPitstopActive      = "PitstopActive"
	VarPlayerCarTowTime   = "PlayerCarTowTime"
	VarPitRepairLeft      = "PitRepairLeft"
	VarPitOptRepairLeft   = "PitOptRepairLeft"
	VarPlayerIncidents    = "PlayerCarMyIncidentCount"
	VarTeamIncidents      = "PlayerCarTeamIncidentCount"
	VarDriverIncidents    = "PlayerCarDriverIncidentCount"
)

var (
	// ErrNoLiveBinding is returned by NewLive when no live binding was registered.
	ErrNoLiveBinding = errors.New("irsdk: no live SDK binding registered")

	// ErrInvalidHeader is returned by recordings whose header cannot drive playback.
	ErrInvalidHeader = errors.New("irsdk: invalid recording header")
)

// Handle is a live connection to a running simulator.
type Handle interface {
	// Startup attempts the handshake. It is safe to call repeatedly.
	Startup() bool
	// Shutdown releases the handle. It must be idempotent.
	Shutdown()
	IsInitialized() bool
	IsConnected() bool
	// FreezeVarBufferLatest pins reads to the newest complete data buffer
	// until the next call.
	FreezeVarBufferLatest()
	Get(key string) (any, bool)
	VarNames() []string
	// CamSwitchNum points the broadcast camera at a car number.
	CamSwitchNum(carNumber, group, camera int) bool
}

// Header describes a fixed-rate recording.
type Header struct {
	TickRate    int
	RecordCount int
	SessionName string
	// ReferenceRate is the poll rate in Hz the recording was captured at.
	// Zero when the recording does not say, in which case playback uses
	// the configured reference rate.
	ReferenceRate float64
}

// Validate rejects headers that cannot drive a frame clock.
func (h Header) Validate() error {
	if h.TickRate <= 0 || h.RecordCount <= 0 {
		return ErrInvalidHeader
	}
	return nil
}

// Recording is a fixed-rate recorded session.
type Recording interface {
	Open(path string) (Header, error)
	ReadAt(frame int, key string) (any, bool)
	VarNames() []string
	Close() error
}
