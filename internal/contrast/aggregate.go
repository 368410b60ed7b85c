package contrast

import (
	"math"

	"github.com/sells-group/night-light/internal/model"
)

// AggregateContrast sums the inverse-square light contributions on each side
// of every center and labels the difference. Every center gets a result,
// including centers without any light in range.
func AggregateContrast(centers []model.CrossingCenter, classified []model.SideClassification, p Params) ([]model.ContrastResult, StageReport) {
	report := StageReport{Input: len(centers)}

	byCenter := make(map[model.CenterKey][]model.SideClassification)
	for _, sc := range classified {
		k := model.CenterKey{CrosswalkID: sc.CrosswalkID, CenterID: sc.CenterID}
		byCenter[k] = append(byCenter[k], sc)
	}

	out := make([]model.ContrastResult, 0, len(centers))
	for _, c := range centers {
		var to, from float64
		lights := byCenter[c.Key()]
		for _, sc := range lights {
			term := Contribution(sc, p)
			if sc.Side == model.SideTo {
				to += term
			} else {
				from += term
			}
		}

		out = append(out, model.ContrastResult{
			CrosswalkID:    c.CrosswalkID,
			CenterID:       c.CenterID,
			Point:          c.Point,
			IsOneway:       c.IsOneway,
			Direction:      c.Direction,
			ToHeuristic:    to,
			FromHeuristic:  from,
			LightHeuristic: to + from,
			Contrast:       Label(from, to, p),
			LightCount:     len(lights),
		})
	}

	report.Output = len(out)
	return out, report
}

// Contribution is one streetlight's inverse-square share, weighted by the
// absolute sine of its incidence angle when p.AngleWeighted is set.
// Distances below p.MinDistanceM are clamped. A light at zero distance has
// no defined side and contributes nothing.
func Contribution(sc model.SideClassification, p Params) float64 {
	d := math.Max(sc.DistanceM, p.MinDistanceM)
	if d == 0 {
		return 0
	}
	w := 1.0
	if p.AngleWeighted {
		w = sc.AbsSin
	}
	return w / (d * d)
}

// Label classifies the difference between the from and to heuristics.
func Label(from, to float64, p Params) string {
	diff := from - to
	if math.Abs(diff) <= p.Threshold {
		return model.ContrastNone
	}
	if !p.AngleWeighted {
		if diff > 0 {
			return model.ContrastPositive
		}
		return model.ContrastNegative
	}

	m := p.StrongMultiplier
	if from == 0 || to == 0 {
		m = p.OneSidedMultiplier
	}
	strong := math.Abs(diff) > p.Threshold*m
	switch {
	case diff > 0 && strong:
		return model.ContrastStrongPositive
	case diff > 0:
		return model.ContrastWeakPositive
	case strong:
		return model.ContrastStrongNegative
	default:
		return model.ContrastWeakNegative
	}
}

// validateResults checks light == to + from on every result.
func validateResults(results []model.ContrastResult) error {
	var bad []int64
	for _, r := range results {
		if r.LightHeuristic != r.ToHeuristic+r.FromHeuristic {
			bad = append(bad, r.CrosswalkID)
		}
	}
	if len(bad) > 0 {
		return &StageError{Stage: model.StageContrast, IDs: bad, Err: errSumContract}
	}
	return nil
}
