package geometry

import (
	"math"

	"github.com/paulmach/orb"
)

// SegmentIntersection returns the points where segment p1-p2 meets q1-q2.
// Crossing or touching segments yield one point; collinear overlapping
// segments yield the two endpoints of the overlap (one if they only touch).
// Disjoint segments yield nil.
func SegmentIntersection(p1, p2, q1, q2 orb.Point) []orb.Point {
	r := Sub(p2, p1)
	s := Sub(q2, q1)
	qp := Sub(q1, p1)

	denom := Cross(r, s)
	if denom == 0 {
		if Cross(qp, r) != 0 {
			return nil // parallel, not collinear
		}
		return collinearOverlap(p1, p2, q1, q2)
	}

	t := Cross(qp, s) / denom
	u := Cross(qp, r) / denom
	if t < 0 || t > 1 || u < 0 || u > 1 {
		return nil
	}

	// Snap to exact endpoints so shared vertices compare equal.
	switch {
	case t == 0:
		return []orb.Point{p1}
	case t == 1:
		return []orb.Point{p2}
	case u == 0:
		return []orb.Point{q1}
	case u == 1:
		return []orb.Point{q2}
	}
	return []orb.Point{{p1[0] + t*r[0], p1[1] + t*r[1]}}
}

// SegmentsIntersect reports whether the two closed segments share any point.
func SegmentsIntersect(p1, p2, q1, q2 orb.Point) bool {
	return len(SegmentIntersection(p1, p2, q1, q2)) > 0
}

func collinearOverlap(p1, p2, q1, q2 orb.Point) []orb.Point {
	r := Sub(p2, p1)
	rr := Dot(r, r)
	if rr == 0 {
		// p is a single point.
		if onSegment(p1, q1, q2) {
			return []orb.Point{p1}
		}
		return nil
	}

	t0 := Dot(Sub(q1, p1), r) / rr
	t1 := Dot(Sub(q2, p1), r) / rr
	lo := math.Max(0, math.Min(t0, t1))
	hi := math.Min(1, math.Max(t0, t1))
	if lo > hi {
		return nil
	}

	a := orb.Point{p1[0] + lo*r[0], p1[1] + lo*r[1]}
	if lo == hi {
		return []orb.Point{a}
	}
	b := orb.Point{p1[0] + hi*r[0], p1[1] + hi*r[1]}
	return []orb.Point{a, b}
}

func onSegment(p, a, b orb.Point) bool {
	if Cross(Sub(b, a), Sub(p, a)) != 0 {
		return false
	}
	return p[0] >= math.Min(a[0], b[0]) && p[0] <= math.Max(a[0], b[0]) &&
		p[1] >= math.Min(a[1], b[1]) && p[1] <= math.Max(a[1], b[1])
}

// SegmentLineIntersections returns every point where segment a-b meets any
// part of lines.
func SegmentLineIntersections(a, b orb.Point, lines orb.MultiLineString) []orb.Point {
	var pts []orb.Point
	for _, ls := range lines {
		for i := 1; i < len(ls); i++ {
			pts = append(pts, SegmentIntersection(a, b, ls[i-1], ls[i])...)
		}
	}
	return pts
}

// RingLineIntersections returns the distinct points where the closed ring
// meets lines, in ring order.
func RingLineIntersections(ring orb.Ring, lines orb.MultiLineString) []orb.Point {
	var pts []orb.Point
	for i := 1; i < len(ring); i++ {
		pts = append(pts, SegmentLineIntersections(ring[i-1], ring[i], lines)...)
	}
	return Dedupe(pts)
}

// Dedupe removes exact duplicate points, keeping first occurrences.
func Dedupe(pts []orb.Point) []orb.Point {
	if len(pts) < 2 {
		return pts
	}
	seen := make(map[orb.Point]bool, len(pts))
	out := pts[:0:0]
	for _, p := range pts {
		if seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	return out
}
