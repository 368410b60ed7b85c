package contrast

import (
	"math"

	"github.com/paulmach/orb"

	"github.com/sells-group/night-light/internal/geometry"
	"github.com/sells-group/night-light/internal/model"
)

// Sides is the output of the side classifier: the centers it could orient
// and one classification per linked streetlight of those centers.
type Sides struct {
	Centers         []model.CrossingCenter
	Classifications []model.SideClassification
}

// ClassifySides places every linked streetlight on the to or from side of
// its center.
//
// The reference axis runs from center A to center B of the same crosswalk.
// When there is no partner center (one-way crosswalks) the pedestrian-edge
// midpoint stands in for it. A light is on the to side when the axis turns
// the same way towards it as it does towards the from-to vector, otherwise
// on the from side. Zero cross products compare like any other sign.
func ClassifySides(centers []model.CrossingCenter, links []model.ProximityLink, lights []model.Streetlight, p Params) (Sides, StageReport) {
	report := StageReport{Input: len(centers)}

	byKey := make(map[model.CenterKey]model.CrossingCenter, len(centers))
	for _, c := range centers {
		byKey[c.Key()] = c
	}
	linked := make(map[model.CenterKey][]model.LightDistance, len(links))
	for _, l := range links {
		linked[model.CenterKey{CrosswalkID: l.CrosswalkID, CenterID: l.CenterID}] = l.Lights
	}
	points := make(map[int64]orb.Point, len(lights))
	for _, l := range lights {
		points[l.ID] = l.Point
	}

	var out Sides
	for _, c := range centers {
		if !c.Direction.Defined {
			report.skip(c.CrosswalkID, c.CenterID, "direction undefined")
			continue
		}

		a, b := axis(c, byKey)
		frame := geometry.NewFrame(c.Point)
		ab := frame.Vector(a, b)
		if geometry.Length(ab) == 0 {
			report.skip(c.CrosswalkID, c.CenterID, "degenerate A-B axis")
			continue
		}
		fromToSign := geometry.Sign(geometry.Cross(ab, frame.Vector(c.Direction.From, c.Direction.To)))

		for _, ld := range linked[c.Key()] {
			pt, ok := points[ld.StreetlightID]
			if !ok {
				continue
			}
			cl := frame.Vector(c.Point, pt)
			cross := geometry.Cross(ab, cl)
			angle := math.Atan2(cross, geometry.Dot(ab, cl))

			side := model.SideFrom
			if geometry.Sign(cross) == fromToSign {
				side = model.SideTo
			}
			out.Classifications = append(out.Classifications, model.SideClassification{
				CrosswalkID:   c.CrosswalkID,
				CenterID:      c.CenterID,
				StreetlightID: ld.StreetlightID,
				Light:         pt,
				Side:          side,
				DistanceM:     ld.DistanceM,
				Angle:         angle,
				AbsSin:        math.Abs(math.Sin(angle)),
			})
		}
		out.Centers = append(out.Centers, c)
	}

	report.Output = len(out.Centers)
	return out, report
}

// axis returns the endpoints of the A-B line for c.
func axis(c model.CrossingCenter, byKey map[model.CenterKey]model.CrossingCenter) (orb.Point, orb.Point) {
	if !c.IsOneway {
		a, okA := byKey[model.CenterKey{CrosswalkID: c.CrosswalkID, CenterID: model.CenterA}]
		b, okB := byKey[model.CenterKey{CrosswalkID: c.CrosswalkID, CenterID: model.CenterB}]
		if okA && okB {
			return a.Point, b.Point
		}
	}
	return c.Point, c.PedEdgeMidpoint()
}
