package contrast

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/night-light/internal/model"
)

func TestLabel_Base(t *testing.T) {
	p := DefaultParams()

	tests := []struct {
		name     string
		from, to float64
		expected string
	}{
		{name: "from side brighter", from: 0.05, to: 0.03, expected: model.ContrastPositive},
		{name: "to side brighter", from: 0.03, to: 0.05, expected: model.ContrastNegative},
		{name: "within threshold", from: 0.035, to: 0.03, expected: model.ContrastNone},
		{name: "no light", from: 0, to: 0, expected: model.ContrastNone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Label(tt.from, tt.to, p))
		})
	}

	t.Run("difference equal to threshold", func(t *testing.T) {
		q := p
		q.Threshold = 0.25
		assert.Equal(t, model.ContrastNone, Label(0.75, 0.5, q))
	})
}

func TestLabel_Weighted(t *testing.T) {
	p := DefaultParams()
	p.AngleWeighted = true

	tests := []struct {
		name     string
		from, to float64
		expected string
	}{
		{name: "within threshold", from: 0.105, to: 0.1, expected: model.ContrastNone},
		{name: "weak positive", from: 0.13, to: 0.1, expected: model.ContrastWeakPositive},
		{name: "strong positive", from: 0.2, to: 0.1, expected: model.ContrastStrongPositive},
		{name: "weak negative", from: 0.1, to: 0.13, expected: model.ContrastWeakNegative},
		{name: "strong negative", from: 0.1, to: 0.2, expected: model.ContrastStrongNegative},
		// One empty side lowers the strong band to threshold x 2.
		{name: "one-sided strong", from: 0.03, to: 0, expected: model.ContrastStrongPositive},
		{name: "one-sided weak", from: 0, to: 0.015, expected: model.ContrastWeakNegative},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Label(tt.from, tt.to, p))
		})
	}
}

func TestContribution(t *testing.T) {
	p := DefaultParams()

	assert.InDelta(t, 0.04, Contribution(model.SideClassification{DistanceM: 5, AbsSin: 0.5}, p), 1e-12)
	// Lights within a metre keep the exact inverse square.
	assert.InDelta(t, 4.0, Contribution(model.SideClassification{DistanceM: 0.5}, p), 1e-9)
	// Co-located lights are clamped to the minimum distance.
	assert.InDelta(t, 1e6, Contribution(model.SideClassification{DistanceM: 0}, p), 1e-3)

	t.Run("clamp disabled", func(t *testing.T) {
		q := DefaultParams()
		q.MinDistanceM = 0
		require.NoError(t, q.Validate())
		assert.InDelta(t, 100.0, Contribution(model.SideClassification{DistanceM: 0.1}, q), 1e-9)
		assert.Zero(t, Contribution(model.SideClassification{DistanceM: 0}, q))
	})

	p.AngleWeighted = true
	assert.InDelta(t, 0.02, Contribution(model.SideClassification{DistanceM: 5, AbsSin: 0.5}, p), 1e-12)
}

func TestAggregateContrast_PositiveContrast(t *testing.T) {
	// from = 1/20 = 0.05, to = 1/(100/3) = 0.03.
	center := model.CrossingCenter{CrosswalkID: 1, CenterID: model.CenterA, Point: local(0, 0)}
	classified := []model.SideClassification{
		{CrosswalkID: 1, CenterID: model.CenterA, StreetlightID: 1, Side: model.SideFrom, DistanceM: math.Sqrt(20)},
		{CrosswalkID: 1, CenterID: model.CenterA, StreetlightID: 2, Side: model.SideTo, DistanceM: math.Sqrt(100.0 / 3)},
	}

	results, report := AggregateContrast([]model.CrossingCenter{center}, classified, DefaultParams())

	require.Len(t, results, 1)
	assert.Equal(t, 1, report.Output)
	r := results[0]
	assert.InDelta(t, 0.05, r.FromHeuristic, 1e-12)
	assert.InDelta(t, 0.03, r.ToHeuristic, 1e-12)
	assert.Equal(t, r.ToHeuristic+r.FromHeuristic, r.LightHeuristic)
	assert.Equal(t, model.ContrastPositive, r.Contrast)
	assert.Equal(t, 2, r.LightCount)
}

func TestAggregateContrast_NoLights(t *testing.T) {
	centers := []model.CrossingCenter{
		{CrosswalkID: 1, CenterID: model.CenterA},
		{CrosswalkID: 1, CenterID: model.CenterB},
	}

	results, _ := AggregateContrast(centers, nil, DefaultParams())

	require.Len(t, results, 2)
	for _, r := range results {
		assert.Zero(t, r.ToHeuristic)
		assert.Zero(t, r.FromHeuristic)
		assert.Zero(t, r.LightHeuristic)
		assert.Equal(t, model.ContrastNone, r.Contrast)
		assert.Zero(t, r.LightCount)
	}
}

func TestAggregateContrast_LightIsSumOfSides(t *testing.T) {
	centers := []model.CrossingCenter{{CrosswalkID: 4, CenterID: model.CenterA}}
	var classified []model.SideClassification
	for i := 1; i <= 9; i++ {
		side := model.SideTo
		if i%3 == 0 {
			side = model.SideFrom
		}
		classified = append(classified, model.SideClassification{
			CrosswalkID:   4,
			CenterID:      model.CenterA,
			StreetlightID: int64(i),
			Side:          side,
			DistanceM:     float64(i) * 1.7,
			AbsSin:        1 / float64(i),
		})
	}

	for _, weighted := range []bool{false, true} {
		p := DefaultParams()
		p.AngleWeighted = weighted
		results, _ := AggregateContrast(centers, classified, p)
		require.Len(t, results, 1)
		assert.Equal(t, results[0].ToHeuristic+results[0].FromHeuristic, results[0].LightHeuristic)
		require.NoError(t, validateResults(results))
	}
}

func TestValidateResults(t *testing.T) {
	err := validateResults([]model.ContrastResult{{CrosswalkID: 3, ToHeuristic: 1, FromHeuristic: 1, LightHeuristic: 3}})

	var stageErr *StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, model.StageContrast, stageErr.Stage)
	assert.Equal(t, []int64{3}, stageErr.IDs)
	assert.Contains(t, err.Error(), "crosswalks 3")
}
