package geometry

import (
	"math"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSegmentIntersection(t *testing.T) {
	tests := []struct {
		name     string
		p1, p2   orb.Point
		q1, q2   orb.Point
		expected []orb.Point
	}{
		{
			name: "crossing",
			p1:   orb.Point{0, 0}, p2: orb.Point{2, 2},
			q1: orb.Point{0, 2}, q2: orb.Point{2, 0},
			expected: []orb.Point{{1, 1}},
		},
		{
			name: "touching at endpoint",
			p1:   orb.Point{0, 0}, p2: orb.Point{1, 0},
			q1: orb.Point{1, 0}, q2: orb.Point{1, 5},
			expected: []orb.Point{{1, 0}},
		},
		{
			name: "disjoint",
			p1:   orb.Point{0, 0}, p2: orb.Point{1, 0},
			q1: orb.Point{0, 1}, q2: orb.Point{1, 1},
			expected: nil,
		},
		{
			name: "non-overlapping crossing lines",
			p1:   orb.Point{0, 0}, p2: orb.Point{1, 1},
			q1: orb.Point{3, 0}, q2: orb.Point{2, 1},
			expected: nil,
		},
		{
			name: "collinear overlap",
			p1:   orb.Point{0, 0}, p2: orb.Point{4, 0},
			q1: orb.Point{2, 0}, q2: orb.Point{6, 0},
			expected: []orb.Point{{2, 0}, {4, 0}},
		},
		{
			name: "collinear disjoint",
			p1:   orb.Point{0, 0}, p2: orb.Point{1, 0},
			q1: orb.Point{2, 0}, q2: orb.Point{3, 0},
			expected: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SegmentIntersection(tt.p1, tt.p2, tt.q1, tt.q2)
			assert.Equal(t, tt.expected, got)
			assert.Equal(t, len(tt.expected) > 0, SegmentsIntersect(tt.p1, tt.p2, tt.q1, tt.q2))
		})
	}
}

func TestRingLineIntersections_DedupesSharedVertex(t *testing.T) {
	ring := orb.Ring{{0, 0}, {2, 0}, {2, 2}, {0, 2}, {0, 0}}
	// Passes through the corner (2,2) shared by two edges and the corner (0,0).
	lines := orb.MultiLineString{{{-1, -1}, {3, 3}}}

	pts := RingLineIntersections(ring, lines)
	assert.ElementsMatch(t, []orb.Point{{0, 0}, {2, 2}}, pts)
}

func TestMeanAndMidpoint(t *testing.T) {
	m, ok := Mean([]orb.Point{{0, 0}, {2, 0}, {2, 2}, {0, 2}})
	require.True(t, ok)
	assert.Equal(t, orb.Point{1, 1}, m)

	_, ok = Mean(nil)
	assert.False(t, ok)

	assert.Equal(t, orb.Point{1, 2}, Midpoint(orb.Point{0, 0}, orb.Point{2, 4}))
}

func TestSign(t *testing.T) {
	assert.Equal(t, 1, Sign(0.3))
	assert.Equal(t, -1, Sign(-2))
	assert.Equal(t, 0, Sign(0))
}

func TestDistance_Haversine(t *testing.T) {
	// One thousandth of a degree of latitude is roughly 111 m.
	d := Distance(orb.Point{-71.06, 42.35}, orb.Point{-71.06, 42.351})
	assert.InDelta(t, 111.2, d, 0.5)
}

func TestFrame_RoundTrip(t *testing.T) {
	f := NewFrame(orb.Point{-71.06, 42.35})
	p := orb.Point{-71.0605, 42.3502}
	back := f.FromLocal(f.ToLocal(p))
	assert.InDelta(t, p[0], back[0], 1e-12)
	assert.InDelta(t, p[1], back[1], 1e-12)

	// 0.001 degrees of longitude shrinks with latitude.
	v := f.Vector(orb.Point{-71.06, 42.35}, orb.Point{-71.059, 42.35})
	assert.InDelta(t, 82.2, v[0], 0.5)
	assert.InDelta(t, 0, v[1], 1e-9)
}

func TestOrientedRectangle_RotatedNoisyRectangle(t *testing.T) {
	origin := orb.Point{-71.06, 42.35}
	f := NewFrame(origin)
	theta := math.Pi / 6

	// A 12m x 3m crossing, rotated 30 degrees, with an extra vertex on one
	// long side and a clipped corner.
	local := []orb.Point{{0, 0}, {6, -0.0}, {12, 0}, {12, 2.6}, {11.6, 3}, {0, 3}}
	ring := make(orb.Ring, 0, len(local)+1)
	for _, p := range local {
		ring = append(ring, f.FromLocal(Rotate(p, theta)))
	}
	ring = append(ring, ring[0])

	rect, err := OrientedRectangle(orb.Polygon{ring})
	require.NoError(t, err)
	require.Len(t, rect, 1)
	require.Len(t, rect[0], 5)
	assert.Equal(t, rect[0][0], rect[0][4])

	rf := NewFrame(rect[0].Bound().Center())
	var sides []float64
	for i := 0; i < 4; i++ {
		sides = append(sides, Length(rf.Vector(rect[0][i], rect[0][i+1])))
	}
	assert.InDelta(t, sides[0], sides[2], 0.01)
	assert.InDelta(t, sides[1], sides[3], 0.01)
	assert.InDelta(t, 36.0, sides[0]*sides[1], 0.1)

	// Every source vertex lies inside or on the rectangle.
	for _, p := range ring {
		assert.True(t, insideOrOn(rect[0], p), "vertex %v outside rectangle", p)
	}
}

func TestOrientedRectangle_Degenerate(t *testing.T) {
	tests := []struct {
		name string
		poly orb.Polygon
	}{
		{name: "empty", poly: orb.Polygon{}},
		{name: "two vertices", poly: orb.Polygon{{{0, 0}, {1, 1}}}},
		{name: "collinear", poly: orb.Polygon{{{0, 0}, {0.0001, 0}, {0.0002, 0}, {0, 0}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := OrientedRectangle(tt.poly)
			require.Error(t, err)
		})
	}
}

func TestEWKB_Point(t *testing.T) {
	data, err := EncodeEWKB(orb.Point{-71.06, 42.35})
	require.NoError(t, err)
	assert.NotEmpty(t, data)

	p, err := DecodePointEWKB(data)
	require.NoError(t, err)
	assert.Equal(t, orb.Point{-71.06, 42.35}, p)
}

func TestEWKB_Polygon(t *testing.T) {
	poly := orb.Polygon{{{0, 0}, {1, 0}, {1, 1}, {0, 1}, {0, 0}}}
	data, err := EncodeEWKB(poly)
	require.NoError(t, err)

	g, err := DecodeEWKB(data)
	require.NoError(t, err)
	assert.Equal(t, poly, g)
}

func TestEWKB_Nil(t *testing.T) {
	data, err := EncodeEWKB(nil)
	require.NoError(t, err)
	assert.Nil(t, data)

	_, err = DecodePointEWKB(nil)
	require.Error(t, err)
}

func TestWKT(t *testing.T) {
	assert.Equal(t, "POINT(1 2)", WKT(orb.Point{1, 2}))

	p, err := ParsePointWKT("POINT(-71.06 42.35)")
	require.NoError(t, err)
	assert.Equal(t, orb.Point{-71.06, 42.35}, p)

	_, err = ParsePointWKT("LINESTRING(0 0,1 1)")
	require.Error(t, err)
}

// insideOrOn reports whether p lies inside the convex ring or within a small
// tolerance of its boundary.
func insideOrOn(ring orb.Ring, p orb.Point) bool {
	f := NewFrame(ring.Bound().Center())
	lp := f.ToLocal(p)
	for i := 0; i < len(ring)-1; i++ {
		a, b := f.ToLocal(ring[i]), f.ToLocal(ring[i+1])
		if Cross(Sub(b, a), Sub(lp, a)) < -1e-4 {
			return false
		}
	}
	return true
}
