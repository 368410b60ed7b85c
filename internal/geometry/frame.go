package geometry

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
)

// Frame is a local equirectangular projection centred on an origin. At the
// scale of a street corner the distortion is well below the precision of the
// source data.
type Frame struct {
	origin orb.Point
	kx, ky float64 // meters per degree
}

// NewFrame returns a frame centred on origin.
func NewFrame(origin orb.Point) Frame {
	ky := orb.EarthRadius * math.Pi / 180
	return Frame{
		origin: origin,
		kx:     ky * math.Cos(origin[1]*math.Pi/180),
		ky:     ky,
	}
}

// ToLocal converts a lon/lat point into meters east/north of the origin.
func (f Frame) ToLocal(p orb.Point) orb.Point {
	return orb.Point{(p[0] - f.origin[0]) * f.kx, (p[1] - f.origin[1]) * f.ky}
}

// FromLocal converts meters east/north of the origin back to lon/lat.
func (f Frame) FromLocal(p orb.Point) orb.Point {
	return orb.Point{f.origin[0] + p[0]/f.kx, f.origin[1] + p[1]/f.ky}
}

// Vector returns the metric vector from a to b.
func (f Frame) Vector(a, b orb.Point) orb.Point {
	return Sub(f.ToLocal(b), f.ToLocal(a))
}

// Distance returns the great-circle distance between two lon/lat points in meters.
func Distance(a, b orb.Point) float64 {
	return geo.DistanceHaversine(a, b)
}

// BoundAround returns a lon/lat bound containing every point within meters of p.
func BoundAround(p orb.Point, meters float64) orb.Bound {
	return geo.NewBoundAroundPoint(p, meters)
}
