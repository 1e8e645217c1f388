package model

import (
	"encoding/json"
	"fmt"
	"time"

	geom "github.com/peterstace/simplefeatures/geom"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

////////////////////////
// DATABASE STRUCTURES //
////////////////////////

// DatabaseModels lists the structs that make up the recording schema.
var DatabaseModels = []any{
	&RecordingSession{},
	&Frame{},
	&CameraEvent{},
	&TrackPoint{},
}

////////////////////////
// RECORDING MODELS
////////////////////////

// RecordingSession is one capture run. Frames are numbered from 0 within it.
type RecordingSession struct {
	gorm.Model
	UUID        string         `json:"uuid" gorm:"size:36;uniqueIndex"`
	Name        string         `json:"name" gorm:"size:200"`
	Source      string         `json:"source" gorm:"size:32"`
	TrackName   string         `json:"trackName" gorm:"size:200"`
	TickRate    int            `json:"tickRate"`
	PollRate    float64        `json:"pollRate"` // poll loop rate in Hz at capture, 0 if unknown
	RecordCount int            `json:"recordCount"`
	StartTime   time.Time      `json:"startTime" gorm:"index:idx_recording_start"`
	EndTime     time.Time      `json:"endTime"`
	Vars        datatypes.JSON `json:"vars"` // []string of captured variable names
}

func (*RecordingSession) TableName() string {
	return "recording_sessions"
}

// VarNames decodes the captured variable list.
func (s *RecordingSession) VarNames() ([]string, error) {
	if len(s.Vars) == 0 {
		return nil, nil
	}
	var names []string
	if err := json.Unmarshal(s.Vars, &names); err != nil {
		return nil, fmt.Errorf("decoding vars of session %s: %w", s.UUID, err)
	}
	return names, nil
}

// SetVarNames encodes the captured variable list.
func (s *RecordingSession) SetVarNames(names []string) error {
	b, err := json.Marshal(names)
	if err != nil {
		return err
	}
	s.Vars = datatypes.JSON(b)
	return nil
}

// Frame holds every captured variable of one tick.
type Frame struct {
	ID          uint             `json:"id" gorm:"primarykey;autoIncrement;"`
	SessionID   uint             `json:"sessionId" gorm:"uniqueIndex:idx_frame_session_frame"`
	Session     RecordingSession `json:"-" gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:SessionID;"`
	FrameNo     int              `json:"frame" gorm:"uniqueIndex:idx_frame_session_frame"`
	Time        time.Time        `json:"time"` // wall clock at capture
	SessionTime float64          `json:"sessionTime"`
	Values      datatypes.JSON   `json:"values"` // map of variable name to value
}

func (*Frame) TableName() string {
	return "frames"
}

// Decode unmarshals the captured values.
func (f *Frame) Decode() (map[string]any, error) {
	values := make(map[string]any)
	if len(f.Values) == 0 {
		return values, nil
	}
	if err := json.Unmarshal(f.Values, &values); err != nil {
		return nil, fmt.Errorf("decoding frame %d: %w", f.FrameNo, err)
	}
	return values, nil
}

// CameraEvent records a pit camera automation transition.
type CameraEvent struct {
	ID        uint             `json:"id" gorm:"primarykey;autoIncrement;"`
	Time      time.Time        `json:"time"`
	SessionID uint             `json:"sessionId" gorm:"index:idx_cameraevent_session_id"`
	Session   RecordingSession `json:"-" gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:SessionID;"`
	FrameNo   int              `json:"frame"`
	CarIdx    int              `json:"carIdx"`
	CarNumber string           `json:"carNumber" gorm:"size:8"`
	FromState string           `json:"from" gorm:"size:32"`
	ToState   string           `json:"to" gorm:"size:32"`
	GroupID   int              `json:"groupId"`
	Reason    string           `json:"reason" gorm:"size:64"`
	Issued    bool             `json:"issued" gorm:"default:false"`
}

func (*CameraEvent) TableName() string {
	return "camera_events"
}

// TrackPoint is the projected position of the tracked car at one frame.
type TrackPoint struct {
	ID        uint             `json:"id" gorm:"primarykey;autoIncrement;"`
	Time      time.Time        `json:"time"`
	SessionID uint             `json:"sessionId" gorm:"index:idx_trackpoint_session_id"`
	Session   RecordingSession `json:"-" gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:SessionID;"`
	FrameNo   int              `json:"frame" gorm:"index:idx_trackpoint_frame"`
	CarIdx    int              `json:"carIdx"`
	Position  geom.Point       `json:"position"` // EPSG:3857
	Altitude  float32          `json:"altitude"`
	Location  string           `json:"location" gorm:"size:32"` // track surface name
}

func (*TrackPoint) TableName() string {
	return "track_points"
}
