package contrast

import (
	"github.com/paulmach/orb"
	"go.uber.org/zap"

	"github.com/sells-group/night-light/internal/model"
)

// ClassifyEdges splits each crosswalk boundary into its consecutive edges and
// marks an edge as a vehicle edge when any street segment touches it. The
// lowest-id street touching the crosswalk becomes its canonical street.
//
// Crosswalks touching no street, or leaving fewer than two pedestrian edges,
// are dropped from the output and reported.
func ClassifyEdges(crosswalks []model.Crosswalk, streets []model.StreetSegment, p Params) ([]model.CrosswalkEdge, StageReport) {
	log := zap.L().With(zap.String("component", "contrast.edges"))
	report := StageReport{Input: len(crosswalks)}
	idx := newStreetIndex(streets)

	var out []model.CrosswalkEdge
	for _, cw := range crosswalks {
		edges := decompose(cw)
		if len(edges) == 0 {
			report.skip(cw.ID, "", "polygon has no edges")
			continue
		}

		touched := make(map[int64]model.StreetSegment)
		var canonical *model.StreetSegment
		peds, vehicles := 0, 0
		for i := range edges {
			hits := idx.crossing(edges[i].Line[0], edges[i].Line[1])
			edges[i].IsVehicleEdge = len(hits) > 0
			if edges[i].IsVehicleEdge {
				vehicles++
			} else {
				peds++
			}
			for _, s := range hits {
				touched[s.ID] = s
				if canonical == nil || s.ID < canonical.ID {
					c := s
					canonical = &c
				}
			}
		}

		switch {
		case canonical == nil:
			report.skip(cw.ID, "", "no intersecting street segment")
			continue
		case peds < 2:
			report.skip(cw.ID, "", "fewer than 2 pedestrian edges")
			continue
		case vehicles == 0:
			report.skip(cw.ID, "", "no vehicle edge")
			continue
		}

		if len(touched) > 1 {
			log.Debug("crosswalk touches several streets, intersections will be averaged",
				zap.Int64("crosswalk_id", cw.ID),
				zap.Int("streets", len(touched)),
			)
		}

		oneway := canonical.IsOneway(p.OnewayCode)
		for i := range edges {
			edges[i].StreetSegmentID = canonical.ID
			edges[i].IsOneway = oneway
		}
		out = append(out, edges...)
		report.Output++
	}

	return out, report
}

// decompose returns one edge per consecutive vertex pair of the outer ring,
// numbered from 1.
func decompose(cw model.Crosswalk) []model.CrosswalkEdge {
	if len(cw.Polygon) == 0 || len(cw.Polygon[0]) < 2 {
		return nil
	}
	ring := cw.Polygon[0]
	if !ring.Closed() {
		ring = append(ring[:len(ring):len(ring)], ring[0])
	}

	edges := make([]model.CrosswalkEdge, 0, len(ring)-1)
	for i := 1; i < len(ring); i++ {
		if ring[i-1] == ring[i] {
			continue
		}
		edges = append(edges, model.CrosswalkEdge{
			CrosswalkID: cw.ID,
			EdgeID:      len(edges) + 1,
			Line:        [2]orb.Point{ring[i-1], ring[i]},
		})
	}
	return edges
}

// validateEdges checks every crosswalk in edges has at least two pedestrian
// edges and one vehicle edge.
func validateEdges(edges []model.CrosswalkEdge) error {
	type tally struct{ peds, vehicles int }
	counts := make(map[int64]*tally)
	var order []int64
	for _, e := range edges {
		t, ok := counts[e.CrosswalkID]
		if !ok {
			t = &tally{}
			counts[e.CrosswalkID] = t
			order = append(order, e.CrosswalkID)
		}
		if e.IsVehicleEdge {
			t.vehicles++
		} else {
			t.peds++
		}
	}

	var bad []int64
	for _, id := range order {
		if t := counts[id]; t.peds < 2 || t.vehicles < 1 {
			bad = append(bad, id)
		}
	}
	if len(bad) > 0 {
		return &StageError{Stage: model.StageEdges, IDs: bad, Err: errEdgeContract}
	}
	return nil
}
