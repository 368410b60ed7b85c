package contrast

import (
	"github.com/sells-group/night-light/internal/model"
)

// JoinStreetlights links every center to the streetlights within
// p.SearchRadiusM meters great-circle distance. A center with no light in
// range gets a link with an empty light list.
func JoinStreetlights(centers []model.CrossingCenter, lights []model.Streetlight, p Params) ([]model.ProximityLink, StageReport) {
	idx := newLightIndex(lights)
	report := StageReport{Input: len(centers)}
	out := make([]model.ProximityLink, 0, len(centers))

	for _, c := range centers {
		out = append(out, model.ProximityLink{
			CrosswalkID: c.CrosswalkID,
			CenterID:    c.CenterID,
			Lights:      idx.within(c.Point, p.SearchRadiusM),
		})
	}

	report.Output = len(out)
	return out, report
}
