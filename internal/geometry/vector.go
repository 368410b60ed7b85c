// Package geometry provides the planar and geodetic primitives the contrast
// pipeline is built on: vector arithmetic, segment intersection, haversine
// distance, oriented bounding rectangles, and EWKB/WKT codecs.
//
// Points are orb.Point{longitude, latitude}. Operations that need meters
// project into a local equirectangular Frame first.
package geometry

import (
	"math"

	"github.com/paulmach/orb"
)

// Sub returns the vector a - b.
func Sub(a, b orb.Point) orb.Point {
	return orb.Point{a[0] - b[0], a[1] - b[1]}
}

// Cross returns the z component of the 2D cross product u x v.
func Cross(u, v orb.Point) float64 {
	return u[0]*v[1] - u[1]*v[0]
}

// Dot returns the dot product of u and v.
func Dot(u, v orb.Point) float64 {
	return u[0]*v[0] + u[1]*v[1]
}

// Sign returns -1, 0 or 1 according to the sign of v.
func Sign(v float64) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}

// Midpoint returns the point halfway between a and b.
func Midpoint(a, b orb.Point) orb.Point {
	return orb.Point{(a[0] + b[0]) / 2, (a[1] + b[1]) / 2}
}

// Mean returns the coordinate-wise average of pts. The second result is false
// when pts is empty.
func Mean(pts []orb.Point) (orb.Point, bool) {
	if len(pts) == 0 {
		return orb.Point{}, false
	}
	var x, y float64
	for _, p := range pts {
		x += p[0]
		y += p[1]
	}
	n := float64(len(pts))
	return orb.Point{x / n, y / n}, true
}

// Length returns the euclidean length of v.
func Length(v orb.Point) float64 {
	return math.Hypot(v[0], v[1])
}

// Rotate rotates v counter-clockwise by theta radians about the origin.
func Rotate(v orb.Point, theta float64) orb.Point {
	s, c := math.Sincos(theta)
	return orb.Point{v[0]*c - v[1]*s, v[0]*s + v[1]*c}
}
