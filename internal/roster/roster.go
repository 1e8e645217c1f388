// Package roster decodes the session driver list and answers per-car
// location questions for the current tick.
package roster

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/go-viper/mapstructure/v2"

	"github.com/irtelemetry/pitcam/internal/telemetry"
	"github.com/irtelemetry/pitcam/pkg/core"
	"github.com/irtelemetry/pitcam/pkg/irsdk"
)

// Entry is one line of the operator-facing driver list.
type Entry struct {
	CarIdx      int    `json:"carIdx"`
	DisplayName string `json:"displayName"`
}

// Roster is an immutable view of the drivers and their track surfaces as
// read on one tick. The zero value is an empty roster.
type Roster struct {
	info     core.DriverInfo
	byIdx    map[int]core.Driver
	surfaces []int
}

// Empty returns a roster with no drivers.
func Empty() *Roster {
	return &Roster{byIdx: map[int]core.Driver{}}
}

// FromStore builds the roster from the store's DriverInfo block and per-car
// track surfaces. A missing or undecodable block yields an empty roster.
func FromStore(store telemetry.Store) *Roster {
	r := Empty()

	if raw, ok := store.Read(irsdk.VarDriverInfo); ok {
		if info, err := Decode(raw); err == nil {
			r.setInfo(info)
		}
	}
	if surfaces, ok := telemetry.ReadIntSlice(store, irsdk.VarCarIdxTrackSurface); ok {
		r.surfaces = surfaces
	}
	return r
}

// New builds a roster from an already decoded DriverInfo and surface array.
func New(info core.DriverInfo, surfaces []int) *Roster {
	r := Empty()
	r.setInfo(info)
	r.surfaces = surfaces
	return r
}

func (r *Roster) setInfo(info core.DriverInfo) {
	r.info = info
	for _, d := range info.Drivers {
		r.byIdx[d.CarIdx] = d
	}
}

// Decode converts a DriverInfo value as delivered by a source: the decoded
// session-info map, its JSON encoding, or an already typed core.DriverInfo.
func Decode(raw any) (core.DriverInfo, error) {
	var info core.DriverInfo

	switch v := raw.(type) {
	case core.DriverInfo:
		return v, nil
	case *core.DriverInfo:
		if v == nil {
			return info, fmt.Errorf("nil driver info")
		}
		return *v, nil
	case string:
		return decodeJSON([]byte(v))
	case []byte:
		return decodeJSON(v)
	case nil:
		return info, fmt.Errorf("nil driver info")
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &info,
	})
	if err != nil {
		return info, fmt.Errorf("error creating driver info decoder: %w", err)
	}
	if err := decoder.Decode(raw); err != nil {
		return info, fmt.Errorf("error decoding driver info: %w", err)
	}
	return info, nil
}

func decodeJSON(b []byte) (core.DriverInfo, error) {
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return core.DriverInfo{}, fmt.Errorf("error parsing driver info JSON: %w", err)
	}
	return Decode(m)
}

// GetDriver returns the driver in car slot carIdx.
func (r *Roster) GetDriver(carIdx int) (core.Driver, bool) {
	if r == nil {
		return core.Driver{}, false
	}
	d, ok := r.byIdx[carIdx]
	return d, ok
}

// Driver is GetDriver returning nil when the slot is empty.
func (r *Roster) Driver(carIdx int) *core.Driver {
	d, ok := r.GetDriver(carIdx)
	if !ok {
		return nil
	}
	return &d
}

// Len is the number of drivers.
func (r *Roster) Len() int {
	if r == nil {
		return 0
	}
	return len(r.byIdx)
}

// DriverList returns the drivers ordered by car index.
func (r *Roster) DriverList() []Entry {
	if r == nil {
		return nil
	}
	out := make([]Entry, 0, len(r.byIdx))
	for idx, d := range r.byIdx {
		out = append(out, Entry{CarIdx: idx, DisplayName: d.DisplayName()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CarIdx < out[j].CarIdx })
	return out
}

// Player returns the local player's driver row. The Drivers entry for
// DriverCarIdx wins over the fields flattened into the block root.
func (r *Roster) Player() (core.Driver, bool) {
	if r == nil || len(r.byIdx) == 0 {
		return core.Driver{}, false
	}
	if d, ok := r.byIdx[r.info.DriverCarIdx]; ok {
		return d, true
	}
	if r.info.Driver.UserName != "" {
		return r.info.Driver, true
	}
	return core.Driver{}, false
}

// PlayerCarIdx is the DriverCarIdx of the block.
func (r *Roster) PlayerCarIdx() int {
	if r == nil {
		return 0
	}
	return r.info.DriverCarIdx
}

// Location returns the track surface of carIdx. Indices outside the
// surface array are not in world.
func (r *Roster) Location(carIdx int) core.TrackLocation {
	if r == nil || carIdx < 0 || carIdx >= len(r.surfaces) {
		return core.NotInWorld
	}
	return core.TrackLocation(r.surfaces[carIdx])
}

// OnPitRoad reports whether carIdx is approaching the pits.
func (r *Roster) OnPitRoad(carIdx int) bool {
	return r.Location(carIdx) == core.ApproachingPits
}

// InPitStall reports whether carIdx is in its pit stall.
func (r *Roster) InPitStall(carIdx int) bool {
	return r.Location(carIdx) == core.InPitStall
}

// OnTrack reports whether carIdx is on the racing surface.
func (r *Roster) OnTrack(carIdx int) bool {
	return r.Location(carIdx) == core.OnTrack
}

// Tracker holds the roster for the poll loop. Refresh is called from the
// loop; readers may call Current from any goroutine.
type Tracker struct {
	mu      sync.RWMutex
	current *Roster
}

// NewTracker returns a tracker holding an empty roster.
func NewTracker() *Tracker {
	return &Tracker{current: Empty()}
}

// Refresh rebuilds the roster from store.
func (t *Tracker) Refresh(store telemetry.Store) *Roster {
	r := FromStore(store)
	t.mu.Lock()
	t.current = r
	t.mu.Unlock()
	return r
}

// Current returns the last refreshed roster.
func (t *Tracker) Current() *Roster {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.current
}

// Reset drops the roster.
func (t *Tracker) Reset() {
	t.mu.Lock()
	t.current = Empty()
	t.mu.Unlock()
}
