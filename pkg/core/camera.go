// pkg/core/camera.go
package core

// CameraGroup is one selectable broadcast camera group.
type CameraGroup struct {
	ID   int    `json:"id" mapstructure:"GroupNum"`
	Name string `json:"name" mapstructure:"GroupName"`
}

// CameraInfo is the session-info "CameraInfo" block.
type CameraInfo struct {
	Groups []CameraGroup `json:"groups" mapstructure:"Groups"`
}

// CameraCommand records a camera switch requested by automation or an operator.
type CameraCommand struct {
	CarIdx  int    `json:"carIdx"`
	GroupID int    `json:"groupId"`
	Reason  string `json:"reason"`
	Issued  bool   `json:"issued"`
}
