package geo

import (
	"errors"
	"math"
	"testing"

	"github.com/irtelemetry/pitcam/pkg/core"
)

func TestProject_Origin(t *testing.T) {
	point, pos, err := Project(0, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	coords, ok := point.Coordinates()
	if !ok {
		t.Fatal("expected valid coordinates")
	}
	if math.Abs(coords.X) > 1e-6 || math.Abs(coords.Y) > 1e-6 {
		t.Errorf("expected origin, got %v", coords.XY)
	}
	if pos.X != coords.X || pos.Y != coords.Y {
		t.Errorf("position %v does not match point %v", pos, coords.XY)
	}
}

func TestProject_KnownLocation(t *testing.T) {
	// Spa-Francorchamps, roughly
	_, pos, err := Project(5.9714, 50.4372)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	wantX := 5.9714 * 20037508.34 / 180
	if math.Abs(pos.X-wantX) > 1 {
		t.Errorf("expected X≈%f, got %f", wantX, pos.X)
	}
	if pos.Y < 6.5e6 || pos.Y > 6.55e6 {
		t.Errorf("unexpected Y %f", pos.Y)
	}
}

func TestProject_Invalid(t *testing.T) {
	tests := []struct {
		name     string
		lon, lat float64
	}{
		{"lon too large", 181, 0},
		{"lat too small", 0, -91},
		{"nan", math.NaN(), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			point, _, err := Project(tt.lon, tt.lat)
			if !errors.Is(err, ErrInvalidCoordinates) {
				t.Errorf("expected ErrInvalidCoordinates, got %v", err)
			}
			if !point.IsEmpty() {
				t.Error("expected empty point")
			}
		})
	}
}

func TestTrace_LengthAndDedup(t *testing.T) {
	tr := NewTrace(7)

	tr.Add(core.Position2D{X: 0, Y: 0})
	if got := tr.Length(); got != 0 {
		t.Errorf("expected zero length with one point, got %f", got)
	}

	tr.Add(core.Position2D{X: 3, Y: 4})
	tr.Add(core.Position2D{X: 3, Y: 4})
	tr.Add(core.Position2D{X: 3, Y: 10})

	if tr.Len() != 3 {
		t.Errorf("expected 3 points, got %d", tr.Len())
	}
	if got := tr.Length(); math.Abs(got-11) > 1e-9 {
		t.Errorf("expected length 11, got %f", got)
	}
	ls, err := tr.LineString()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ls.Coordinates().Length() != 3 {
		t.Errorf("expected 3 line points, got %d", ls.Coordinates().Length())
	}
	if tr.CarIdx() != 7 {
		t.Errorf("expected car 7, got %d", tr.CarIdx())
	}
}

func TestTrace_Reset(t *testing.T) {
	tr := NewTrace(1)
	tr.Add(core.Position2D{X: 1, Y: 1})
	tr.Add(core.Position2D{X: 2, Y: 2})

	tr.Reset(5)

	if tr.Len() != 0 {
		t.Errorf("expected empty trace, got %d", tr.Len())
	}
	if tr.CarIdx() != 5 {
		t.Errorf("expected car 5, got %d", tr.CarIdx())
	}
	ls, err := tr.LineString()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ls.IsEmpty() {
		t.Error("expected empty line string")
	}
}
