package contrast

import (
	"github.com/paulmach/orb"

	"github.com/sells-group/night-light/internal/geometry"
	"github.com/sells-group/night-light/internal/model"
)

// ResolveDirections labels the two pedestrian-edge vertices of every center
// as the from (approach) and to (departure) side of vehicle travel.
//
// Centers whose direction cannot be defined stay in the output with
// Direction.Defined false and are listed in the report.
func ResolveDirections(centers []model.CrossingCenter, streets []model.StreetSegment, p Params) ([]model.CrossingCenter, StageReport) {
	idx := newStreetIndex(streets)
	report := StageReport{Input: len(centers)}
	out := make([]model.CrossingCenter, 0, len(centers))

	for _, c := range centers {
		if c.IsOneway {
			street, ok := idx.byID(c.StreetSegmentID)
			if !ok {
				report.skip(c.CrosswalkID, c.CenterID, "direction undefined: street segment missing")
				c.Direction = model.Direction{}
			} else {
				c.Direction = OnewayDirection(c.PedEdge, street, p.OnewayDirection)
			}
		} else {
			c.Direction = TwowayDirection(c.Point, c.StreetCenter, c.PedEdge)
			if !c.Direction.Defined {
				report.skip(c.CrosswalkID, c.CenterID, "direction undefined: center coincides with street center")
			}
		}
		out = append(out, c)
	}

	report.Output = len(out)
	return out, report
}

// TwowayDirection orients a pedestrian edge from where the center sits
// relative to the street center. The first matching case wins:
//
//	center east of street:  from = lower vertex,  to = upper vertex
//	center west of street:  from = upper vertex,  to = lower vertex
//	center north of street: from = eastern vertex, to = western vertex
//	center south of street: from = western vertex, to = eastern vertex
//
// A center exactly on the street center has no defined direction. Equal
// vertex coordinates resolve to the second vertex as from.
func TwowayDirection(center, street orb.Point, edge [2]orb.Point) model.Direction {
	v1, v2 := edge[0], edge[1]
	pick := func(firstIsFrom bool) model.Direction {
		if firstIsFrom {
			return model.Direction{From: v1, To: v2, Defined: true}
		}
		return model.Direction{From: v2, To: v1, Defined: true}
	}

	switch {
	case center[0] > street[0]:
		return pick(v1[1] < v2[1])
	case center[0] < street[0]:
		return pick(v1[1] > v2[1])
	case center[1] > street[1]:
		return pick(v1[0] > v2[0])
	case center[1] < street[1]:
		return pick(v1[0] < v2[0])
	}
	return model.Direction{}
}

// OnewayDirection orients a one-way center's pedestrian edge against its
// street. Under OnewayDistance the vertex nearer the street's first point is
// from, with ties going to the second vertex. Under OnewayCross a
// non-negative street x edge cross product makes the first vertex from.
func OnewayDirection(edge [2]orb.Point, street model.StreetSegment, policy string) model.Direction {
	start, ok := street.FirstPoint()
	if !ok {
		return model.Direction{}
	}
	v1, v2 := edge[0], edge[1]

	firstIsFrom := false
	switch policy {
	case OnewayCross:
		end := lastPoint(street.Lines)
		firstIsFrom = geometry.Cross(geometry.Sub(end, start), geometry.Sub(v2, v1)) >= 0
	default:
		firstIsFrom = geometry.Distance(v1, start) < geometry.Distance(v2, start)
	}

	if firstIsFrom {
		return model.Direction{From: v1, To: v2, Defined: true}
	}
	return model.Direction{From: v2, To: v1, Defined: true}
}

func lastPoint(lines orb.MultiLineString) orb.Point {
	for i := len(lines) - 1; i >= 0; i-- {
		if n := len(lines[i]); n > 0 {
			return lines[i][n-1]
		}
	}
	return orb.Point{}
}
