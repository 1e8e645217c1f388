package camera

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/go-viper/mapstructure/v2"

	"github.com/irtelemetry/pitcam/internal/cache"
	"github.com/irtelemetry/pitcam/internal/config"
	"github.com/irtelemetry/pitcam/internal/roster"
	"github.com/irtelemetry/pitcam/internal/telemetry"
	"github.com/irtelemetry/pitcam/pkg/core"
	"github.com/irtelemetry/pitcam/pkg/irsdk"
)

// ErrUnresolvedGroup is returned when a configured group name is not in the
// session's camera list and no numeric fallback is configured.
var ErrUnresolvedGroup = errors.New("camera group not found")

// UnknownCamera names a camera group that is not in the session's list.
const UnknownCamera = "Unknown"

// Manager reads and drives the broadcast camera through the store.
type Manager struct {
	store   telemetry.Store
	rosters *roster.Tracker
	groups  *cache.GroupCache
	logger  *slog.Logger
}

var _ Switcher = (*Manager)(nil)

// NewManager creates a camera manager. rosters resolves car indices to car
// numbers for SetCamera.
func NewManager(store telemetry.Store, rosters *roster.Tracker, groups *cache.GroupCache, logger *slog.Logger) *Manager {
	if groups == nil {
		groups = cache.NewGroupCache()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{store: store, rosters: rosters, groups: groups, logger: logger}
}

// CameraGroups returns the session's camera groups and refreshes the
// name lookup cache.
func (m *Manager) CameraGroups() []core.CameraGroup {
	raw, ok := m.store.Read(irsdk.VarCameraInfo)
	if !ok {
		return nil
	}
	info, err := DecodeCameraInfo(raw)
	if err != nil {
		m.logger.Debug("Undecodable camera info", "error", err)
		return nil
	}
	for _, g := range info.Groups {
		m.groups.Set(g.Name, g.ID)
	}
	return info.Groups
}

// CurrentCameraGroup returns the group number on air.
func (m *Manager) CurrentCameraGroup() (int, bool) {
	return telemetry.ReadInt(m.store, irsdk.VarCamGroupNumber)
}

// CurrentCamera returns the on-air group. The name is UnknownCamera when the
// group is not in the session's list.
func (m *Manager) CurrentCamera() (core.CameraGroup, bool) {
	id, ok := m.CurrentCameraGroup()
	if !ok {
		return core.CameraGroup{}, false
	}
	for _, g := range m.CameraGroups() {
		if g.ID == id {
			return g, true
		}
	}
	return core.CameraGroup{ID: id, Name: UnknownCamera}, true
}

// CurrentCameraTarget returns the car index the camera follows.
func (m *Manager) CurrentCameraTarget() (int, bool) {
	return telemetry.ReadInt(m.store, irsdk.VarCamCarIdx)
}

// SetCamera points the camera at carIdx using groupID. It reports false
// when the car is unknown or the source cannot switch cameras.
func (m *Manager) SetCamera(carIdx, groupID int) bool {
	driver, ok := m.rosters.Current().GetDriver(carIdx)
	if !ok {
		m.logger.Warn("Camera switch for unknown car", "carIdx", carIdx, "group", groupID)
		return false
	}
	switcher, ok := m.store.(telemetry.CameraSwitcher)
	if !ok {
		m.logger.Debug("Source cannot switch cameras", "source", m.store.Name(), "carIdx", carIdx, "group", groupID)
		return false
	}
	return switcher.SwitchCamera(driver.CarNumberInt(), groupID, 0)
}

// ResolveGroups maps the configured pit camera groups to IDs. Names are
// matched against the session's camera list; the numeric fallback applies
// when the name is unknown. Unresolved groups are -1 and reported in err.
func (m *Manager) ResolveGroups(cfg config.CameraConfig) (Groups, error) {
	m.CameraGroups()

	var errs []error
	resolve := func(name string, fallback int) int {
		if id, ok := m.groups.Get(name); ok {
			return id
		}
		if fallback > 0 {
			return fallback
		}
		errs = append(errs, fmt.Errorf("%w: %q", ErrUnresolvedGroup, name))
		return -1
	}

	g := Groups{
		PitLane:  resolve(cfg.PitLaneGroup, cfg.PitLaneGroupID),
		PitStall: resolve(cfg.PitStallGroup, cfg.PitStallID),
		PitExit:  resolve(cfg.PitExitGroup, cfg.PitExitGroupID),
	}
	return g, errors.Join(errs...)
}

// Reset forgets the session's camera groups.
func (m *Manager) Reset() {
	m.groups.Reset()
}

// DecodeCameraInfo converts a CameraInfo value as delivered by a source.
func DecodeCameraInfo(raw any) (core.CameraInfo, error) {
	var info core.CameraInfo

	switch v := raw.(type) {
	case core.CameraInfo:
		return v, nil
	case nil:
		return info, errors.New("nil camera info")
	case string:
		return decodeCameraJSON([]byte(v))
	case []byte:
		return decodeCameraJSON(v)
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &info,
	})
	if err != nil {
		return info, fmt.Errorf("error creating camera info decoder: %w", err)
	}
	if err := decoder.Decode(raw); err != nil {
		return info, fmt.Errorf("error decoding camera info: %w", err)
	}
	return info, nil
}

func decodeCameraJSON(b []byte) (core.CameraInfo, error) {
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return core.CameraInfo{}, fmt.Errorf("error parsing camera info JSON: %w", err)
	}
	return DecodeCameraInfo(m)
}
