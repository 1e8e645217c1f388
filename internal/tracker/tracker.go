// Package tracker derives the player's pit and incident status from the
// tick's telemetry.
package tracker

import (
	"sync"

	"github.com/irtelemetry/pitcam/internal/telemetry"
	"github.com/irtelemetry/pitcam/pkg/core"
	"github.com/irtelemetry/pitcam/pkg/irsdk"
)

// PitStatus is the player's service state.
type PitStatus struct {
	RequiredRepairs  bool    `json:"hasRequiredRepairs"`
	Serviceable      bool    `json:"isServiceable"`
	Towed            bool    `json:"isTowed"`
	TowTimeRemaining float64 `json:"towTimeRemaining"`
	InPitLane        bool    `json:"isInPitLane"`
	InPitStall       bool    `json:"isInPitStall"`
	OptionalRepair   float64 `json:"optionalRepairTimeRemaining"`
	MandatoryRepair  float64 `json:"mandatoryRepairTimeRemaining"`
}

// DriverStats are the player's incident counts.
type DriverStats struct {
	Incidents       int     `json:"incidents"`
	TeamIncidents   int     `json:"teamIncidents"`
	DriverIncidents int     `json:"driverIncidents"`
	Lap             int     `json:"lap"`
	LapCompleted    int     `json:"lapCompleted"`
	LapDistPct      float64 `json:"lapDistPct"`
}

// ReadPitStatus reads the pit status. Missing variables read as zero.
func ReadPitStatus(s telemetry.Store) PitStatus {
	flags, _ := telemetry.ReadInt(s, irsdk.VarSessionFlags)
	f := core.SessionFlags(uint32(flags))
	tow, _ := telemetry.ReadFloat(s, irsdk.VarPlayerCarTowTime)
	onPitRoad, _ := telemetry.ReadBool(s, irsdk.VarOnPitRoad)
	pitstop, _ := telemetry.ReadBool(s, irsdk.VarPitstopActive)
	optRepair, _ := telemetry.ReadFloat(s, irsdk.VarPitOptRepairLeft)
	repair, _ := telemetry.ReadFloat(s, irsdk.VarPitRepairLeft)

	return PitStatus{
		RequiredRepairs:  f.Has(core.FlagRepair),
		Serviceable:      f.Has(core.FlagServiceable),
		Towed:            tow > 0,
		TowTimeRemaining: tow,
		InPitLane:        onPitRoad,
		InPitStall:       pitstop,
		OptionalRepair:   optRepair,
		MandatoryRepair:  repair,
	}
}

// ReadDriverStats reads the player's incident and lap counters.
func ReadDriverStats(s telemetry.Store) DriverStats {
	var st DriverStats
	st.Incidents, _ = telemetry.ReadInt(s, irsdk.VarPlayerIncidents)
	st.TeamIncidents, _ = telemetry.ReadInt(s, irsdk.VarTeamIncidents)
	st.DriverIncidents, _ = telemetry.ReadInt(s, irsdk.VarDriverIncidents)
	st.Lap, _ = telemetry.ReadInt(s, irsdk.VarLap)
	st.LapCompleted, _ = telemetry.ReadInt(s, irsdk.VarLapCompleted)
	st.LapDistPct, _ = telemetry.ReadFloat(s, irsdk.VarLapDistPct)
	return st
}

// Change describes a pit status edge seen by Update.
type Change struct {
	EnteredPitLane bool
	LeftPitLane    bool
	StopStarted    bool
	StopEnded      bool
	NewIncidents   int
}

// Any reports whether anything changed.
func (c Change) Any() bool {
	return c.EnteredPitLane || c.LeftPitLane || c.StopStarted || c.StopEnded || c.NewIncidents > 0
}

// Tracker keeps the last pit status and driver stats across ticks.
type Tracker struct {
	mu     sync.RWMutex
	pit    PitStatus
	stats  DriverStats
	primed bool
}

// New returns an empty tracker.
func New() *Tracker {
	return &Tracker{}
}

// Update reads the tick's status and reports edges against the last tick.
// The first tick after a reset only primes the tracker.
func (t *Tracker) Update(s telemetry.Store) (PitStatus, DriverStats, Change) {
	pit := ReadPitStatus(s)
	stats := ReadDriverStats(s)

	t.mu.Lock()
	defer t.mu.Unlock()

	var c Change
	if t.primed {
		c.EnteredPitLane = pit.InPitLane && !t.pit.InPitLane
		c.LeftPitLane = !pit.InPitLane && t.pit.InPitLane
		c.StopStarted = pit.InPitStall && !t.pit.InPitStall
		c.StopEnded = !pit.InPitStall && t.pit.InPitStall
		if stats.Incidents > t.stats.Incidents {
			c.NewIncidents = stats.Incidents - t.stats.Incidents
		}
	}
	t.pit, t.stats, t.primed = pit, stats, true
	return pit, stats, c
}

// Pit returns the last pit status.
func (t *Tracker) Pit() PitStatus {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.pit
}

// Stats returns the last driver stats.
func (t *Tracker) Stats() DriverStats {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.stats
}

// Reset forgets the previous tick.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pit = PitStatus{}
	t.stats = DriverStats{}
	t.primed = false
}
