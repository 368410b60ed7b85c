package contrast

import (
	"fmt"
	"sort"

	"github.com/paulmach/orb"

	"github.com/sells-group/night-light/internal/geometry"
	"github.com/sells-group/night-light/internal/model"
)

// ResolveCenters places the crossing centers of every classified crosswalk.
//
// A two-way crosswalk gets one center per pedestrian edge, halfway between
// the edge midpoint and the average of the points where the boundary meets
// its streets. Centers are ordered by their WKT text and the first two are
// labelled A and B. A one-way crosswalk gets a single center A at the
// centroid of its boundary/street intersection.
func ResolveCenters(crosswalks []model.Crosswalk, edges []model.CrosswalkEdge, streets []model.StreetSegment, p Params) ([]model.CrossingCenter, StageReport) {
	idx := newStreetIndex(streets)
	polygons := make(map[int64]orb.Polygon, len(crosswalks))
	for _, cw := range crosswalks {
		polygons[cw.ID] = cw.Polygon
	}

	groups, order := groupEdges(edges)
	report := StageReport{Input: len(order)}

	var out []model.CrossingCenter
	for _, id := range order {
		group := groups[id]
		poly, ok := polygons[id]
		if !ok || len(poly) == 0 {
			report.skip(id, "", "crosswalk polygon missing")
			continue
		}
		ring := poly[0]
		first := group[0]

		var centers []model.CrossingCenter
		var reason string
		if first.IsOneway {
			centers, reason = onewayCenter(ring, group, idx)
		} else {
			centers, reason = twowayCenters(ring, group, idx, p.MinIntersections)
		}
		if reason != "" {
			report.skip(id, "", reason)
			continue
		}
		out = append(out, centers...)
		report.Output++
	}

	return out, report
}

func twowayCenters(ring orb.Ring, edges []model.CrosswalkEdge, idx *streetIndex, minPoints int) ([]model.CrossingCenter, string) {
	var lines orb.MultiLineString
	for _, s := range idx.candidates(ring.Bound()) {
		lines = append(lines, s.Lines...)
	}
	pts := geometry.RingLineIntersections(ring, lines)
	if len(pts) < minPoints {
		return nil, fmt.Sprintf("unresolved: %d boundary/street intersection points, need %d", len(pts), minPoints)
	}
	streetCenter, _ := geometry.Mean(pts)

	type candidate struct {
		center model.CrossingCenter
		wkt    string
	}
	var cands []candidate
	for _, e := range edges {
		if e.IsVehicleEdge {
			continue
		}
		c := model.CrossingCenter{
			CrosswalkID:     e.CrosswalkID,
			Point:           geometry.Midpoint(e.Midpoint(), streetCenter),
			PedEdgeID:       e.EdgeID,
			PedEdge:         e.Line,
			StreetCenter:    streetCenter,
			StreetSegmentID: e.StreetSegmentID,
		}
		cands = append(cands, candidate{center: c, wkt: geometry.WKT(c.Point)})
	}
	if len(cands) < 2 {
		return nil, "fewer than 2 pedestrian edges"
	}

	sort.SliceStable(cands, func(i, j int) bool { return cands[i].wkt < cands[j].wkt })
	a, b := cands[0].center, cands[1].center
	a.CenterID, b.CenterID = model.CenterA, model.CenterB
	return []model.CrossingCenter{a, b}, ""
}

func onewayCenter(ring orb.Ring, edges []model.CrosswalkEdge, idx *streetIndex) ([]model.CrossingCenter, string) {
	street, ok := idx.byID(edges[0].StreetSegmentID)
	if !ok {
		return nil, "canonical street segment missing"
	}
	centroid, ok := geometry.Mean(geometry.RingLineIntersections(ring, street.Lines))
	if !ok {
		return nil, "unresolved: boundary does not meet its street"
	}

	var ped *model.CrosswalkEdge
	for i := range edges {
		if !edges[i].IsVehicleEdge && (ped == nil || edges[i].EdgeID < ped.EdgeID) {
			ped = &edges[i]
		}
	}
	if ped == nil {
		return nil, "no pedestrian edge"
	}

	return []model.CrossingCenter{{
		CrosswalkID:     ped.CrosswalkID,
		CenterID:        model.CenterA,
		Point:           centroid,
		PedEdgeID:       ped.EdgeID,
		PedEdge:         ped.Line,
		StreetCenter:    centroid,
		StreetSegmentID: ped.StreetSegmentID,
		IsOneway:        true,
	}}, ""
}

// groupEdges buckets edges by crosswalk, keeping first-seen crosswalk order.
func groupEdges(edges []model.CrosswalkEdge) (map[int64][]model.CrosswalkEdge, []int64) {
	groups := make(map[int64][]model.CrosswalkEdge)
	var order []int64
	for _, e := range edges {
		if _, ok := groups[e.CrosswalkID]; !ok {
			order = append(order, e.CrosswalkID)
		}
		groups[e.CrosswalkID] = append(groups[e.CrosswalkID], e)
	}
	return groups, order
}

// validateCenters checks two-way crosswalks carry exactly A and B and one-way
// crosswalks exactly A.
func validateCenters(centers []model.CrossingCenter) error {
	labels := make(map[int64][]string)
	oneway := make(map[int64]bool)
	var order []int64
	for _, c := range centers {
		if _, ok := labels[c.CrosswalkID]; !ok {
			order = append(order, c.CrosswalkID)
		}
		labels[c.CrosswalkID] = append(labels[c.CrosswalkID], c.CenterID)
		oneway[c.CrosswalkID] = c.IsOneway
	}

	var bad []int64
	for _, id := range order {
		l := labels[id]
		switch {
		case oneway[id] && (len(l) != 1 || l[0] != model.CenterA):
			bad = append(bad, id)
		case !oneway[id] && (len(l) != 2 || l[0] == l[1]):
			bad = append(bad, id)
		}
	}
	if len(bad) > 0 {
		return &StageError{Stage: model.StageCenters, IDs: bad, Err: errCenterContract}
	}
	return nil
}
