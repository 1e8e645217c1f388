// pkg/core/playback.go
package core

import "fmt"

// PlaybackInfo is a read-only snapshot of where a telemetry source is.
// Live sources report -1 for TotalFrames and ProgressPercent.
type PlaybackInfo struct {
	CurrentFrame    int     `json:"current_frame"`
	TotalFrames     int     `json:"total_frames"`
	SpeedLabel      string  `json:"playback_speed"`
	SpeedMultiplier float64 `json:"speed_multiplier"`
	TickRate        int     `json:"tick_rate"`
	ProgressPercent float64 `json:"progress_percent"`
}

// Summary renders the one-line playback description, e.g. "42.50% @ FAST (2x)".
func (p PlaybackInfo) Summary() string {
	if p.TotalFrames < 0 {
		return "LIVE"
	}
	return fmt.Sprintf("%.2f%% @ %s (%gx)", p.ProgressPercent, p.SpeedLabel, p.SpeedMultiplier)
}

// Position2D is a projected map position.
type Position2D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}
