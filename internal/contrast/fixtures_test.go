package contrast

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"

	"github.com/sells-group/night-light/internal/geometry"
	"github.com/sells-group/night-light/internal/model"
)

// Fixtures are laid out in meters east/north of a corner in downtown Boston.
var testFrame = geometry.NewFrame(orb.Point{-71.06, 42.35})

func local(x, y float64) orb.Point {
	return testFrame.FromLocal(orb.Point{x, y})
}

func rect(id int64, x0, y0, x1, y1 float64) model.Crosswalk {
	return model.Crosswalk{
		ID: id,
		Polygon: orb.Polygon{{
			local(x0, y0), local(x1, y0), local(x1, y1), local(x0, y1), local(x0, y0),
		}},
	}
}

func street(id int64, oneway string, pts ...orb.Point) model.StreetSegment {
	ls := make(orb.LineString, 0, len(pts))
	for _, p := range pts {
		ls = append(ls, local(p[0], p[1]))
	}
	return model.StreetSegment{ID: id, Lines: orb.MultiLineString{ls}, OneWay: oneway}
}

func light(id int64, x, y float64) model.Streetlight {
	return model.Streetlight{ID: id, Point: local(x, y)}
}

// twoWayFixture is a 12m x 3m crossing over a north-south two-way street at
// x = 0, with pedestrian edges at x = -6 and x = 6.
func twoWayFixture() (model.Crosswalk, model.StreetSegment) {
	return rect(1, -6, -1.5, 6, 1.5), street(10, "", orb.Point{0, -50}, orb.Point{0, 50})
}

// oneWayFixture is the same crossing 200m east, over a one-way street
// digitized from south to north.
func oneWayFixture() (model.Crosswalk, model.StreetSegment) {
	return rect(2, 194, -1.5, 206, 1.5), street(20, "FT", orb.Point{200, -50}, orb.Point{200, 50})
}

func assertNear(t *testing.T, expected, actual orb.Point) {
	t.Helper()
	e, a := testFrame.ToLocal(expected), testFrame.ToLocal(actual)
	assert.InDelta(t, e[0], a[0], 1e-3, "x of %v", actual)
	assert.InDelta(t, e[1], a[1], 1e-3, "y of %v", actual)
}
