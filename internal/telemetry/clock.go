package telemetry

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/irtelemetry/pitcam/pkg/core"
)

// DefaultReferenceRate is the nominal external poll rate in Hz used to
// normalize recording tick rates.
const DefaultReferenceRate = 60.0

var (
	// ErrInvalidPlaybackSpeed is returned for playback speed names outside the known set.
	ErrInvalidPlaybackSpeed = errors.New("invalid playback speed")

	// ErrInvalidSkipTo is returned for skip-to fractions outside [0,1].
	ErrInvalidSkipTo = errors.New("skip-to fraction must be within [0,1]")

	// ErrInvalidSkipPolicy is returned for unknown skip policy names.
	ErrInvalidSkipPolicy = errors.New("invalid skip policy")
)

// PlaybackSpeed is a named playback multiplier.
type PlaybackSpeed string

const (
	SpeedSlow   PlaybackSpeed = "slow"
	SpeedNormal PlaybackSpeed = "normal"
	SpeedFast   PlaybackSpeed = "fast"
)

var speedMultipliers = map[PlaybackSpeed]float64{
	SpeedSlow:   0.25,
	SpeedNormal: 1.0,
	SpeedFast:   2.0,
}

// ParsePlaybackSpeed resolves a case-insensitive speed name.
func ParsePlaybackSpeed(name string) (PlaybackSpeed, error) {
	s := PlaybackSpeed(strings.ToLower(strings.TrimSpace(name)))
	if _, ok := speedMultipliers[s]; !ok {
		return "", fmt.Errorf("%w %q: valid speeds are %s", ErrInvalidPlaybackSpeed, name, strings.Join(SpeedNames(), ", "))
	}
	return s, nil
}

// SpeedNames lists the known speed names in ascending multiplier order.
func SpeedNames() []string {
	names := make([]string, 0, len(speedMultipliers))
	for s := range speedMultipliers {
		names = append(names, string(s))
	}
	sort.Slice(names, func(i, j int) bool {
		return speedMultipliers[PlaybackSpeed(names[i])] < speedMultipliers[PlaybackSpeed(names[j])]
	})
	return names
}

// Multiplier returns the speed factor, or 0 for an unknown speed.
func (s PlaybackSpeed) Multiplier() float64 {
	return speedMultipliers[s]
}

// Label is the display form, e.g. "FAST".
func (s PlaybackSpeed) Label() string {
	return strings.ToUpper(string(s))
}

// SkipPolicy decides where a skip-to of exactly 1.0 lands.
type SkipPolicy int

const (
	// SkipWrap applies the looping modulo, so 1.0 lands on frame 0.
	SkipWrap SkipPolicy = iota
	// SkipClamp pins 1.0 to the last frame.
	SkipClamp
)

// ParseSkipPolicy resolves "wrap" or "clamp". Empty means wrap.
func ParseSkipPolicy(name string) (SkipPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "wrap":
		return SkipWrap, nil
	case "clamp":
		return SkipClamp, nil
	default:
		return SkipWrap, fmt.Errorf("%w %q", ErrInvalidSkipPolicy, name)
	}
}

func (p SkipPolicy) String() string {
	if p == SkipClamp {
		return "clamp"
	}
	return "wrap"
}

// ValidateSkipTo checks that f is a fraction in [0,1].
func ValidateSkipTo(f float64) error {
	if math.IsNaN(f) || f < 0 || f > 1 {
		return fmt.Errorf("%w: got %v", ErrInvalidSkipTo, f)
	}
	return nil
}

// FrameClock steps through a fixed-rate recording. The current frame is
// kept fractional and always satisfies 0 <= current < total once the
// clock has frames.
type FrameClock struct {
	current       float64
	total         int
	tickRate      int
	referenceRate float64
	speed         PlaybackSpeed
}

// NewFrameClock returns a clock at frame 0. A non-positive referenceRate
// selects DefaultReferenceRate.
func NewFrameClock(total, tickRate int, speed PlaybackSpeed, referenceRate float64) *FrameClock {
	if referenceRate <= 0 {
		referenceRate = DefaultReferenceRate
	}
	return &FrameClock{
		total:         total,
		tickRate:      tickRate,
		referenceRate: referenceRate,
		speed:         speed,
	}
}

// Step is the number of frames covered by one external tick.
func (c *FrameClock) Step() float64 {
	return c.speed.Multiplier() * float64(c.tickRate) / c.referenceRate
}

// Advance moves one external tick forward, wrapping at the end of the
// recording, and returns the new frame index.
func (c *FrameClock) Advance() int {
	if c.total <= 0 {
		return 0
	}
	c.current = math.Mod(c.current+c.Step(), float64(c.total))
	return c.Frame()
}

// Seek positions the clock at floor(total*skipTo).
func (c *FrameClock) Seek(skipTo float64, policy SkipPolicy) error {
	if err := ValidateSkipTo(skipTo); err != nil {
		return err
	}
	if c.total <= 0 {
		c.current = 0
		return nil
	}
	target := math.Floor(float64(c.total) * skipTo)
	if target >= float64(c.total) {
		if policy == SkipClamp {
			target = float64(c.total - 1)
		} else {
			target = math.Mod(target, float64(c.total))
		}
	}
	c.current = target
	return nil
}

// Frame is the current frame truncated to an index.
func (c *FrameClock) Frame() int {
	return int(c.current)
}

// Current is the fractional frame position.
func (c *FrameClock) Current() float64 {
	return c.current
}

// Total is the number of frames in the recording.
func (c *FrameClock) Total() int {
	return c.total
}

// Progress is the position as a percentage, 0 for an empty recording.
func (c *FrameClock) Progress() float64 {
	if c.total <= 0 {
		return 0
	}
	return c.current / float64(c.total) * 100
}

// Info snapshots the clock.
func (c *FrameClock) Info() core.PlaybackInfo {
	return core.PlaybackInfo{
		CurrentFrame:    c.Frame(),
		TotalFrames:     c.total,
		SpeedLabel:      c.speed.Label(),
		SpeedMultiplier: c.speed.Multiplier(),
		TickRate:        c.tickRate,
		ProgressPercent: c.Progress(),
	}
}
