// pkg/core/location.go
package core

// TrackLocation is the per-car surface code reported in CarIdxTrackSurface.
type TrackLocation int

const (
	NotInWorld      TrackLocation = -1
	OffTrack        TrackLocation = 0
	InPitStall      TrackLocation = 1
	ApproachingPits TrackLocation = 2
	OnTrack         TrackLocation = 3
)

func (l TrackLocation) String() string {
	switch l {
	case NotInWorld:
		return "NOT_IN_WORLD"
	case OffTrack:
		return "OFF_TRACK"
	case InPitStall:
		return "IN_PIT_STALL"
	case ApproachingPits:
		return "APPROACHING_PITS"
	case OnTrack:
		return "ON_TRACK"
	default:
		return "UNKNOWN"
	}
}

// SessionState is the sim's SessionState variable.
type SessionState int

const (
	SessionInvalid SessionState = iota
	SessionGetInCar
	SessionWarmup
	SessionParadeLaps
	SessionRacing
	SessionCheckered
	SessionCoolDown
)

var sessionStateNames = map[SessionState]string{
	SessionInvalid:    "INVALID",
	SessionGetInCar:   "GET_IN_CAR",
	SessionWarmup:     "WARMUP",
	SessionParadeLaps: "PARADE_LAPS",
	SessionRacing:     "RACING",
	SessionCheckered:  "CHECKERED",
	SessionCoolDown:   "COOL_DOWN",
}

func (s SessionState) String() string {
	if name, ok := sessionStateNames[s]; ok {
		return name
	}
	return "UNKNOWN"
}
