package contrast

import (
	"math"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/night-light/internal/model"
)

func TestClassifySides_TwoWay(t *testing.T) {
	cw1, st1 := twoWayFixture()
	crosswalks := []model.Crosswalk{cw1}
	streets := []model.StreetSegment{st1}
	lights := []model.Streetlight{
		light(1, 3, 5),  // north-east
		light(2, 3, -5), // south-east
	}
	p := DefaultParams()

	edges, _ := ClassifyEdges(crosswalks, streets, p)
	centers, _ := ResolveCenters(crosswalks, edges, streets, p)
	centers, _ = ResolveDirections(centers, streets, p)
	links, _ := JoinStreetlights(centers, lights, p)

	sides, report := ClassifySides(centers, links, lights, p)

	assert.Empty(t, report.Skipped)
	require.Len(t, sides.Centers, 2)

	got := map[model.CenterKey]map[int64]string{}
	for _, sc := range sides.Classifications {
		k := model.CenterKey{CrosswalkID: sc.CrosswalkID, CenterID: sc.CenterID}
		if got[k] == nil {
			got[k] = map[int64]string{}
		}
		got[k][sc.StreetlightID] = sc.Side
		assert.InDelta(t, math.Abs(math.Sin(sc.Angle)), sc.AbsSin, 1e-12)
	}

	// Northbound traffic at A leaves to the north; southbound traffic at B
	// arrives from the north.
	assert.Equal(t, map[int64]string{1: model.SideTo, 2: model.SideFrom}, got[model.CenterKey{CrosswalkID: 1, CenterID: model.CenterA}])
	assert.Equal(t, map[int64]string{1: model.SideFrom, 2: model.SideTo}, got[model.CenterKey{CrosswalkID: 1, CenterID: model.CenterB}])
}

func TestClassifySides_OneWayUsesPedEdgeMidpoint(t *testing.T) {
	cw, st := oneWayFixture()
	crosswalks := []model.Crosswalk{cw}
	streets := []model.StreetSegment{st}
	lights := []model.Streetlight{
		light(1, 200, 8),
		light(2, 200, -8),
	}
	p := DefaultParams()

	edges, _ := ClassifyEdges(crosswalks, streets, p)
	centers, _ := ResolveCenters(crosswalks, edges, streets, p)
	centers, _ = ResolveDirections(centers, streets, p)
	links, _ := JoinStreetlights(centers, lights, p)

	sides, report := ClassifySides(centers, links, lights, p)

	assert.Empty(t, report.Skipped)
	require.Len(t, sides.Classifications, 2)
	bySide := map[int64]string{}
	for _, sc := range sides.Classifications {
		bySide[sc.StreetlightID] = sc.Side
	}
	// Traffic runs south to north, so the northern light is ahead of the crossing.
	assert.Equal(t, model.SideTo, bySide[1])
	assert.Equal(t, model.SideFrom, bySide[2])
}

func TestClassifySides_SkipsUndefinedDirection(t *testing.T) {
	centers := []model.CrossingCenter{{
		CrosswalkID: 9,
		CenterID:    model.CenterA,
		Point:       local(0, 0),
		PedEdge:     [2]orb.Point{local(-1, 5), local(1, 5)},
	}}

	sides, report := ClassifySides(centers, nil, nil, DefaultParams())

	assert.Empty(t, sides.Centers)
	require.Len(t, report.Skipped, 1)
	assert.Equal(t, "direction undefined", report.Skipped[0].Reason)

	// Only classified centers are aggregated, so no result row is emitted.
	results, _ := AggregateContrast(sides.Centers, sides.Classifications, DefaultParams())
	assert.Empty(t, results)
}

// rotate turns p by quarter turns about the origin of degree space. Multiples
// of 90 degrees keep integer coordinates exact.
func rotate(p orb.Point, quarters int) orb.Point {
	for i := 0; i < quarters%4; i++ {
		p = orb.Point{-p[1], p[0]}
	}
	return p
}

func TestClassifySides_RotationInvariant(t *testing.T) {
	// Centers A=(10,0) and B=(10,10), one light on the A-B line at (10,5)
	// 5m away and one off the line.
	build := func(quarters int) ([]model.CrossingCenter, []model.ProximityLink, []model.Streetlight) {
		r := func(x, y float64) orb.Point { return rotate(orb.Point{x, y}, quarters) }
		a := model.CrossingCenter{
			CrosswalkID: 1,
			CenterID:    model.CenterA,
			Point:       r(10, 0),
			PedEdge:     [2]orb.Point{r(8, -1), r(12, -1)},
			Direction:   model.Direction{From: r(8, -1), To: r(12, -1), Defined: true},
		}
		b := model.CrossingCenter{
			CrosswalkID: 1,
			CenterID:    model.CenterB,
			Point:       r(10, 10),
			PedEdge:     [2]orb.Point{r(8, 11), r(12, 11)},
			Direction:   model.Direction{From: r(12, 11), To: r(8, 11), Defined: true},
		}
		lights := []model.Streetlight{{ID: 1, Point: r(10, 5)}, {ID: 2, Point: r(13, 2)}}
		links := []model.ProximityLink{
			{CrosswalkID: 1, CenterID: model.CenterA, Lights: []model.LightDistance{{StreetlightID: 1, DistanceM: 5}, {StreetlightID: 2, DistanceM: 7}}},
			{CrosswalkID: 1, CenterID: model.CenterB, Lights: []model.LightDistance{{StreetlightID: 1, DistanceM: 5}}},
		}
		return []model.CrossingCenter{a, b}, links, lights
	}

	p := DefaultParams()

	labels := func(sides Sides) []string {
		var out []string
		for _, sc := range sides.Classifications {
			out = append(out, sc.CenterID+":"+sc.Side)
		}
		return out
	}

	centers, links, lights := build(0)
	base, _ := ClassifySides(centers, links, lights, p)
	baseResults, _ := AggregateContrast(base.Centers, base.Classifications, p)
	require.Len(t, base.Classifications, 3)

	// Same input, same output.
	again, _ := ClassifySides(centers, links, lights, p)
	assert.Equal(t, base, again)

	for _, quarters := range []int{1, 2} {
		centers, links, lights := build(quarters)
		rotated, _ := ClassifySides(centers, links, lights, p)
		results, _ := AggregateContrast(rotated.Centers, rotated.Classifications, p)

		assert.Equal(t, labels(base), labels(rotated), "quarter turns %d", quarters)
		require.Len(t, results, len(baseResults))
		for i := range results {
			assert.InDelta(t, baseResults[i].LightHeuristic, results[i].LightHeuristic, 1e-12)
			assert.Equal(t, results[i].ToHeuristic+results[i].FromHeuristic, results[i].LightHeuristic)
		}
	}
}
