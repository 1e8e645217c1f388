package geo

import (
	"errors"
	"fmt"
	"math"
	"sync"

	geom "github.com/peterstace/simplefeatures/geom"
	"github.com/wroge/wgs84"

	"github.com/irtelemetry/pitcam/pkg/core"
)

// Positions are stored as EPSG:3857 so that distances along a trace come
// out in (approximately) meters. Geometry is persisted as WKB.

// ErrInvalidCoordinates is returned when the coordinates are invalid
var ErrInvalidCoordinates = errors.New("invalid coordinates provided")

var to3857 = wgs84.EPSG().Transform(4326, 3857)

// Project converts a WGS84 longitude/latitude in degrees to EPSG:3857.
func Project(longitude, latitude float64) (geom.Point, core.Position2D, error) {
	if math.IsNaN(longitude) || math.IsNaN(latitude) ||
		longitude < -180 || longitude > 180 || latitude < -90 || latitude > 90 {
		return geom.NewEmptyPoint(geom.DimXY), core.Position2D{}, ErrInvalidCoordinates
	}
	x, y, _ := to3857(longitude, latitude, 0)
	point, err := geom.NewPoint(geom.Coordinates{
		XY:   geom.XY{X: x, Y: y},
		Type: geom.DimXY,
	})
	if err != nil {
		return geom.NewEmptyPoint(geom.DimXY), core.Position2D{}, fmt.Errorf("projecting %f,%f: %w", longitude, latitude, err)
	}
	return point, core.Position2D{X: x, Y: y}, nil
}

// Trace accumulates the projected path of one car, typically through a
// pit stop. It is safe for concurrent use.
type Trace struct {
	mu     sync.Mutex
	carIdx int
	coords []float64
}

func NewTrace(carIdx int) *Trace {
	return &Trace{carIdx: carIdx}
}

// CarIdx is the car the trace follows.
func (t *Trace) CarIdx() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.carIdx
}

// Add appends p unless it repeats the previous point.
func (t *Trace) Add(p core.Position2D) {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := len(t.coords)
	if n >= 2 && t.coords[n-2] == p.X && t.coords[n-1] == p.Y {
		return
	}
	t.coords = append(t.coords, p.X, p.Y)
}

// Len is the number of points.
func (t *Trace) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.coords) / 2
}

// LineString returns the trace, or an empty line with fewer than two points.
func (t *Trace) LineString() (geom.LineString, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.coords) < 4 {
		return geom.LineString{}, nil
	}
	flat := append([]float64(nil), t.coords...)
	ls, err := geom.NewLineString(geom.NewSequence(flat, geom.DimXY))
	if err != nil {
		return geom.LineString{}, fmt.Errorf("building trace of car %d: %w", t.carIdx, err)
	}
	return ls, nil
}

// Length is the traced distance in projected units. A trace that does not
// form a valid line has no length.
func (t *Trace) Length() float64 {
	ls, err := t.LineString()
	if err != nil {
		return 0
	}
	return ls.Length()
}

// Reset clears the trace and retargets it at carIdx.
func (t *Trace) Reset(carIdx int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.carIdx = carIdx
	t.coords = t.coords[:0]
}
