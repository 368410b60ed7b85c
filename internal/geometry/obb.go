package geometry

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/xy"
)

// ErrDegenerate is returned when a shape has no area to enclose.
var ErrDegenerate = eris.New("geometry: degenerate shape")

// minArea below which a rectangle is treated as degenerate (square meters).
const minArea = 1e-6

// OrientedRectangle returns the minimum-area rectangle, at any rotation,
// enclosing the outer ring of poly. The result is a closed counter-clockwise
// ring of four corners. The search runs over the convex hull edges in a local
// meter frame so the rectangle is square in ground units rather than degrees.
func OrientedRectangle(poly orb.Polygon) (orb.Polygon, error) {
	if len(poly) == 0 || len(poly[0]) < 3 {
		return nil, eris.Wrap(ErrDegenerate, "geometry: polygon has fewer than 3 vertices")
	}

	frame := NewFrame(poly[0].Bound().Center())
	hull, err := convexHull(frame, poly[0])
	if err != nil {
		return nil, err
	}

	best := math.Inf(1)
	var corners [4]orb.Point
	for i := range hull {
		edge := Sub(hull[(i+1)%len(hull)], hull[i])
		l := Length(edge)
		if l == 0 {
			continue
		}
		u := orb.Point{edge[0] / l, edge[1] / l}
		n := orb.Point{-u[1], u[0]}

		minU, maxU := math.Inf(1), math.Inf(-1)
		minN, maxN := math.Inf(1), math.Inf(-1)
		for _, p := range hull {
			pu, pn := Dot(p, u), Dot(p, n)
			minU, maxU = math.Min(minU, pu), math.Max(maxU, pu)
			minN, maxN = math.Min(minN, pn), math.Max(maxN, pn)
		}

		area := (maxU - minU) * (maxN - minN)
		if area < best {
			best = area
			at := func(a, b float64) orb.Point {
				return orb.Point{a*u[0] + b*n[0], a*u[1] + b*n[1]}
			}
			corners = [4]orb.Point{at(minU, minN), at(maxU, minN), at(maxU, maxN), at(minU, maxN)}
		}
	}

	if best < minArea || math.IsInf(best, 1) {
		return nil, eris.Wrap(ErrDegenerate, "geometry: zero-area rectangle")
	}

	ring := make(orb.Ring, 0, 5)
	for _, c := range corners {
		ring = append(ring, frame.FromLocal(c))
	}
	ring = append(ring, ring[0])
	return orb.Polygon{ring}, nil
}

// convexHull returns the hull vertices of ring in the local frame, without
// the closing point.
func convexHull(frame Frame, ring orb.Ring) ([]orb.Point, error) {
	flat := make([]float64, 0, len(ring)*2)
	for _, p := range ring {
		l := frame.ToLocal(p)
		flat = append(flat, l[0], l[1])
	}

	hull, ok := xy.ConvexHullFlat(geom.XY, flat).(*geom.Polygon)
	if !ok || hull.NumLinearRings() == 0 {
		return nil, eris.Wrap(ErrDegenerate, "geometry: convex hull is not a polygon")
	}

	coords := hull.LinearRing(0).Coords()
	pts := make([]orb.Point, 0, len(coords))
	for _, c := range coords {
		pts = append(pts, orb.Point{c.X(), c.Y()})
	}
	if len(pts) > 1 && pts[0] == pts[len(pts)-1] {
		pts = pts[:len(pts)-1]
	}
	if len(pts) < 3 {
		return nil, eris.Wrap(ErrDegenerate, "geometry: convex hull has fewer than 3 vertices")
	}
	return pts, nil
}
