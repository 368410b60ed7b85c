package contrast

import (
	"context"
	"errors"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/night-light/internal/model"
)

// recordingSink keeps everything the pipeline hands it.
type recordingSink struct {
	run      model.Run
	stages   []model.StageResult
	status   model.RunStatus
	errMsg   string
	replaced map[string]int

	failOn string
}

func newRecordingSink() *recordingSink {
	return &recordingSink{replaced: map[string]int{}}
}

func (s *recordingSink) CreateRun(_ context.Context, params model.RunParams) (*model.Run, error) {
	s.run = model.Run{ID: "run-1", Status: model.RunStatusRunning, Params: params}
	return &s.run, nil
}

func (s *recordingSink) RecordStage(_ context.Context, _ string, stage model.StageResult) error {
	s.stages = append(s.stages, stage)
	return nil
}

func (s *recordingSink) FinishRun(_ context.Context, _ string, status model.RunStatus, errMsg string) error {
	s.status, s.errMsg = status, errMsg
	return nil
}

func (s *recordingSink) replace(table string, n int) error {
	if table == s.failOn {
		return errors.New("disk full")
	}
	s.replaced[table] = n
	return nil
}

func (s *recordingSink) ReplaceCrosswalks(_ context.Context, v []model.Crosswalk) error {
	return s.replace("crosswalks", len(v))
}

func (s *recordingSink) ReplaceEdges(_ context.Context, v []model.CrosswalkEdge) error {
	return s.replace("edges", len(v))
}

func (s *recordingSink) ReplaceCenters(_ context.Context, v []model.CrossingCenter) error {
	return s.replace("centers", len(v))
}

func (s *recordingSink) ReplaceLinks(_ context.Context, v []model.ProximityLink) error {
	return s.replace("links", len(v))
}

func (s *recordingSink) ReplaceClassifications(_ context.Context, v []model.SideClassification) error {
	return s.replace("classifications", len(v))
}

func (s *recordingSink) ReplaceResults(_ context.Context, v []model.ContrastResult) error {
	return s.replace("results", len(v))
}

func testInput() Input {
	cw1, st1 := twoWayFixture()
	cw2, st2 := oneWayFixture()
	degenerate := model.Crosswalk{ID: 3, Polygon: orb.Polygon{{local(0, 100), local(5, 100), local(10, 100), local(0, 100)}}}
	isolated := rect(4, 400, -1.5, 412, 1.5)

	return Input{
		Crosswalks: []model.Crosswalk{cw1, cw2, degenerate, isolated},
		Streets:    []model.StreetSegment{st1, st2},
		Streetlights: []model.Streetlight{
			light(1, 3, 5),
			light(2, -3, -6),
			light(3, 200, 8),
			light(4, 800, 0),
		},
	}
}

func TestPipelineRun(t *testing.T) {
	sink := newRecordingSink()

	out, err := New(DefaultParams(), sink).Run(context.Background(), testInput())
	require.NoError(t, err)

	assert.Equal(t, "run-1", out.RunID)
	assert.Equal(t, model.RunStatusComplete, sink.status)
	assert.Equal(t, 4, sink.run.Params.Crosswalks)

	require.Len(t, out.Stages, 7)
	names := make([]string, len(out.Stages))
	for i, s := range out.Stages {
		names[i] = s.Name
		assert.Equal(t, model.StageStatusComplete, s.Status)
	}
	assert.Equal(t, []string{
		model.StageNormalize, model.StageEdges, model.StageCenters, model.StageDirection,
		model.StageProximity, model.StageSides, model.StageContrast,
	}, names)
	assert.Equal(t, out.Stages, sink.stages)

	assert.Equal(t, []int64{3}, out.Stages[0].SkippedIDs())
	assert.Equal(t, []int64{4}, out.Stages[1].SkippedIDs())

	require.Len(t, out.Results, 3)
	for _, r := range out.Results {
		assert.Equal(t, r.ToHeuristic+r.FromHeuristic, r.LightHeuristic)
		assert.True(t, r.Direction.Defined)
	}
	assert.Equal(t, int64(2), out.Results[2].CrosswalkID)
	assert.True(t, out.Results[2].IsOneway)
	assert.Equal(t, 1, out.Results[2].LightCount)

	assert.Equal(t, map[string]int{
		"crosswalks":      3,
		"edges":           8,
		"centers":         3,
		"links":           3,
		"classifications": len(out.Sides.Classifications),
		"results":         3,
	}, sink.replaced)
}

func TestPipelineRun_Deterministic(t *testing.T) {
	first, err := New(DefaultParams(), nil).Run(context.Background(), testInput())
	require.NoError(t, err)
	second, err := New(DefaultParams(), nil).Run(context.Background(), testInput())
	require.NoError(t, err)

	assert.Equal(t, first.Centers, second.Centers)
	assert.Equal(t, first.Sides, second.Sides)
	assert.Equal(t, first.Results, second.Results)
}

func TestPipelineRun_InvalidParams(t *testing.T) {
	p := DefaultParams()
	p.SearchRadiusM = -1
	sink := newRecordingSink()

	_, err := New(p, sink).Run(context.Background(), testInput())
	require.Error(t, err)
	assert.Empty(t, sink.run.ID)
}

func TestPipelineRun_SinkFailureFailsRun(t *testing.T) {
	sink := newRecordingSink()
	sink.failOn = "links"

	out, err := New(DefaultParams(), sink).Run(context.Background(), testInput())
	require.Error(t, err)

	assert.Equal(t, model.RunStatusFailed, sink.status)
	assert.Contains(t, sink.errMsg, "disk full")
	last := out.Stages[len(out.Stages)-1]
	assert.Equal(t, model.StageProximity, last.Name)
	assert.Equal(t, model.StageStatusFailed, last.Status)
	assert.Empty(t, out.Results)
}

func TestPipelineRun_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	sink := newRecordingSink()

	_, err := New(DefaultParams(), sink).Run(ctx, testInput())
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, model.RunStatusFailed, sink.status)
}

func TestParamsValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Params)
	}{
		{name: "zero radius", modify: func(p *Params) { p.SearchRadiusM = 0 }},
		{name: "negative threshold", modify: func(p *Params) { p.Threshold = -0.1 }},
		{name: "no intersections", modify: func(p *Params) { p.MinIntersections = 0 }},
		{name: "negative min distance", modify: func(p *Params) { p.MinDistanceM = -1 }},
		{name: "unknown policy", modify: func(p *Params) { p.OnewayDirection = "compass" }},
		{name: "weighted multiplier below one", modify: func(p *Params) { p.AngleWeighted = true; p.StrongMultiplier = 0.5 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := DefaultParams()
			tt.modify(&p)
			require.Error(t, p.Validate())
		})
	}

	require.NoError(t, DefaultParams().Validate())
}
