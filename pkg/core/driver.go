// pkg/core/driver.go
package core

import "strconv"

// Driver is one entry of the session roster. CarIdx is stable for the session
// and keys every CarIdx* telemetry array.
type Driver struct {
	CarIdx                 int     `json:"carIdx" mapstructure:"CarIdx"`
	UserName               string  `json:"userName" mapstructure:"UserName"`
	AbbrevName             string  `json:"abbrevName" mapstructure:"AbbrevName"`
	Initials               string  `json:"initials" mapstructure:"Initials"`
	UserID                 int     `json:"userId" mapstructure:"UserID"`
	TeamID                 int     `json:"teamId" mapstructure:"TeamID"`
	TeamName               string  `json:"teamName" mapstructure:"TeamName"`
	CarNumber              string  `json:"carNumber" mapstructure:"CarNumber"`
	CarNumberRaw           int     `json:"carNumberRaw" mapstructure:"CarNumberRaw"`
	CarID                  int     `json:"carId" mapstructure:"CarID"`
	CarScreenName          string  `json:"carScreenName" mapstructure:"CarScreenName"`
	CarScreenNameShort     string  `json:"carScreenNameShort" mapstructure:"CarScreenNameShort"`
	CarClassID             int     `json:"carClassId" mapstructure:"CarClassID"`
	CarClassShortName      string  `json:"carClassShortName" mapstructure:"CarClassShortName"`
	CarClassEstLapTime     float64 `json:"carClassEstLapTime" mapstructure:"CarClassEstLapTime"`
	CarIsPaceCar           int     `json:"carIsPaceCar" mapstructure:"CarIsPaceCar"`
	CarIsAI                int     `json:"carIsAI" mapstructure:"CarIsAI"`
	IRating                int     `json:"iRating" mapstructure:"IRating"`
	LicString              string  `json:"licString" mapstructure:"LicString"`
	IsSpectator            int     `json:"isSpectator" mapstructure:"IsSpectator"`
	CurDriverIncidentCount int     `json:"curDriverIncidentCount" mapstructure:"CurDriverIncidentCount"`
	TeamIncidentCount      int     `json:"teamIncidentCount" mapstructure:"TeamIncidentCount"`
}

// CarNumberInt returns the numeric car number used by camera broadcast
// messages. CarNumberRaw wins when the sim supplied it.
func (d Driver) CarNumberInt() int {
	if d.CarNumberRaw != 0 {
		return d.CarNumberRaw
	}
	n, err := strconv.Atoi(d.CarNumber)
	if err != nil {
		return 0
	}
	return n
}

// DisplayName is the roster label shown to operators.
func (d Driver) DisplayName() string {
	if d.CarNumber == "" {
		return d.UserName
	}
	return "#" + d.CarNumber + " " + d.UserName
}

// DriverInfo is the session-info "DriverInfo" block. The player's own row is
// flattened into the root, the full field is in Drivers.
type DriverInfo struct {
	Driver       `mapstructure:",squash"`
	DriverCarIdx int      `json:"driverCarIdx" mapstructure:"DriverCarIdx"`
	Drivers      []Driver `json:"drivers" mapstructure:"Drivers"`
}
