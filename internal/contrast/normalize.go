package contrast

import (
	"github.com/paulmach/orb"

	"github.com/sells-group/night-light/internal/geometry"
	"github.com/sells-group/night-light/internal/model"
)

// NormalizeCrosswalks replaces every crosswalk polygon with its minimum-area
// oriented bounding rectangle. Empty or zero-area shapes are skipped.
func NormalizeCrosswalks(crosswalks []model.Crosswalk) ([]model.Crosswalk, StageReport) {
	report := StageReport{Input: len(crosswalks)}
	out := make([]model.Crosswalk, 0, len(crosswalks))

	for _, cw := range crosswalks {
		if len(cw.Polygon) == 0 || len(distinctVertices(cw.Polygon[0])) < 3 {
			report.skip(cw.ID, "", "empty or degenerate polygon")
			continue
		}
		rect, err := geometry.OrientedRectangle(cw.Polygon)
		if err != nil {
			report.skip(cw.ID, "", "zero-area polygon")
			continue
		}
		out = append(out, model.Crosswalk{ID: cw.ID, Polygon: rect})
	}

	report.Output = len(out)
	return out, report
}

func distinctVertices(ring orb.Ring) []orb.Point {
	return geometry.Dedupe(append([]orb.Point(nil), ring...))
}
