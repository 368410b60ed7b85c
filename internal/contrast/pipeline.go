package contrast

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/night-light/internal/model"
)

// Sink persists run bookkeeping and the output of every stage. Each Replace
// call swaps the previous contents of its table for the given rows.
type Sink interface {
	CreateRun(ctx context.Context, params model.RunParams) (*model.Run, error)
	RecordStage(ctx context.Context, runID string, stage model.StageResult) error
	FinishRun(ctx context.Context, runID string, status model.RunStatus, errMsg string) error

	ReplaceCrosswalks(ctx context.Context, crosswalks []model.Crosswalk) error
	ReplaceEdges(ctx context.Context, edges []model.CrosswalkEdge) error
	ReplaceCenters(ctx context.Context, centers []model.CrossingCenter) error
	ReplaceLinks(ctx context.Context, links []model.ProximityLink) error
	ReplaceClassifications(ctx context.Context, sides []model.SideClassification) error
	ReplaceResults(ctx context.Context, results []model.ContrastResult) error
}

// Input holds the three source datasets of a run.
type Input struct {
	Crosswalks   []model.Crosswalk
	Streets      []model.StreetSegment
	Streetlights []model.Streetlight
}

// Output holds everything a run produced.
type Output struct {
	RunID      string
	Crosswalks []model.Crosswalk
	Edges      []model.CrosswalkEdge
	Centers    []model.CrossingCenter
	Links      []model.ProximityLink
	Sides      Sides
	Results    []model.ContrastResult
	Stages     []model.StageResult
}

// Pipeline runs the seven stages in order.
type Pipeline struct {
	params Params
	sink   Sink
}

// New creates a Pipeline. A nil sink runs without persistence.
func New(params Params, sink Sink) *Pipeline {
	if sink == nil {
		sink = nopSink{}
	}
	return &Pipeline{params: params, sink: sink}
}

// Run executes every stage over in. Each stage completes, and its output is
// handed to the sink, before the next one starts. Entities a stage cannot
// process are dropped and listed in that stage's result; a structural
// problem aborts the run with a *StageError.
func (p *Pipeline) Run(ctx context.Context, in Input) (*Output, error) {
	log := zap.L().With(zap.String("component", "contrast.pipeline"))

	if err := p.params.Validate(); err != nil {
		return nil, err
	}

	run, err := p.sink.CreateRun(ctx, model.RunParams{
		SearchRadiusM:     p.params.SearchRadiusM,
		ContrastThreshold: p.params.Threshold,
		AngleWeighted:     p.params.AngleWeighted,
		OnewayDirection:   p.params.OnewayDirection,
		Crosswalks:        len(in.Crosswalks),
		StreetSegments:    len(in.Streets),
		Streetlights:      len(in.Streetlights),
	})
	if err != nil {
		return nil, eris.Wrap(err, "contrast: create run")
	}
	log = log.With(zap.String("run_id", run.ID))
	log.Info("pipeline: starting run",
		zap.Int("crosswalks", len(in.Crosswalks)),
		zap.Int("streets", len(in.Streets)),
		zap.Int("streetlights", len(in.Streetlights)),
	)

	out := &Output{RunID: run.ID}

	trackStage := func(name string, fn func() (StageReport, error)) error {
		if err := ctx.Err(); err != nil {
			return eris.Wrapf(err, "contrast: run cancelled before %s", name)
		}

		start := time.Now()
		report, fnErr := fn()
		duration := time.Since(start).Milliseconds()

		result := report.Result(name)
		result.Duration = duration
		for _, s := range report.Skipped {
			log.Debug("pipeline: entity skipped",
				zap.String("stage", name),
				zap.Int64("crosswalk_id", s.CrosswalkID),
				zap.String("center_id", s.CenterID),
				zap.String("reason", s.Reason),
			)
		}

		if fnErr != nil {
			result.Status = model.StageStatusFailed
			result.Error = fnErr.Error()
			log.Error("pipeline: stage failed",
				zap.String("stage", name),
				zap.Int64("duration_ms", duration),
				zap.Error(fnErr),
			)
		} else {
			log.Info("pipeline: stage complete",
				zap.String("stage", name),
				zap.Int64("duration_ms", duration),
				zap.Int("input", report.Input),
				zap.Int("output", report.Output),
				zap.Int("skipped", len(report.Skipped)),
			)
		}

		out.Stages = append(out.Stages, result)
		if recErr := p.sink.RecordStage(ctx, run.ID, result); recErr != nil {
			log.Warn("pipeline: failed to record stage", zap.String("stage", name), zap.Error(recErr))
		}
		return fnErr
	}

	stages := []struct {
		name string
		fn   func() (StageReport, error)
	}{
		{model.StageNormalize, func() (StageReport, error) {
			var rep StageReport
			out.Crosswalks, rep = NormalizeCrosswalks(in.Crosswalks)
			return rep, p.sink.ReplaceCrosswalks(ctx, out.Crosswalks)
		}},
		{model.StageEdges, func() (StageReport, error) {
			var rep StageReport
			out.Edges, rep = ClassifyEdges(out.Crosswalks, in.Streets, p.params)
			if err := validateEdges(out.Edges); err != nil {
				return rep, err
			}
			return rep, p.sink.ReplaceEdges(ctx, out.Edges)
		}},
		{model.StageCenters, func() (StageReport, error) {
			var rep StageReport
			out.Centers, rep = ResolveCenters(out.Crosswalks, out.Edges, in.Streets, p.params)
			return rep, validateCenters(out.Centers)
		}},
		{model.StageDirection, func() (StageReport, error) {
			var rep StageReport
			out.Centers, rep = ResolveDirections(out.Centers, in.Streets, p.params)
			return rep, p.sink.ReplaceCenters(ctx, out.Centers)
		}},
		{model.StageProximity, func() (StageReport, error) {
			var rep StageReport
			out.Links, rep = JoinStreetlights(out.Centers, in.Streetlights, p.params)
			return rep, p.sink.ReplaceLinks(ctx, out.Links)
		}},
		{model.StageSides, func() (StageReport, error) {
			var rep StageReport
			out.Sides, rep = ClassifySides(out.Centers, out.Links, in.Streetlights, p.params)
			return rep, p.sink.ReplaceClassifications(ctx, out.Sides.Classifications)
		}},
		{model.StageContrast, func() (StageReport, error) {
			var rep StageReport
			out.Results, rep = AggregateContrast(out.Sides.Centers, out.Sides.Classifications, p.params)
			if err := validateResults(out.Results); err != nil {
				return rep, err
			}
			return rep, p.sink.ReplaceResults(ctx, out.Results)
		}},
	}

	for _, s := range stages {
		if err := trackStage(s.name, s.fn); err != nil {
			if finErr := p.sink.FinishRun(context.WithoutCancel(ctx), run.ID, model.RunStatusFailed, err.Error()); finErr != nil {
				log.Warn("pipeline: failed to mark run failed", zap.Error(finErr))
			}
			return out, err
		}
	}

	if err := p.sink.FinishRun(ctx, run.ID, model.RunStatusComplete, ""); err != nil {
		log.Warn("pipeline: failed to mark run complete", zap.Error(err))
	}
	log.Info("pipeline: run complete",
		zap.Int("centers", len(out.Results)),
		zap.Int("classified_lights", len(out.Sides.Classifications)),
	)
	return out, nil
}

// nopSink discards everything; used when persistence is disabled.
type nopSink struct{}

func (nopSink) CreateRun(_ context.Context, params model.RunParams) (*model.Run, error) {
	now := time.Now().UTC()
	return &model.Run{ID: uuid.NewString(), Status: model.RunStatusRunning, Params: params, CreatedAt: now, UpdatedAt: now}, nil
}
func (nopSink) RecordStage(context.Context, string, model.StageResult) error { return nil }
func (nopSink) FinishRun(context.Context, string, model.RunStatus, string) error { return nil }
func (nopSink) ReplaceCrosswalks(context.Context, []model.Crosswalk) error { return nil }
func (nopSink) ReplaceEdges(context.Context, []model.CrosswalkEdge) error { return nil }
func (nopSink) ReplaceCenters(context.Context, []model.CrossingCenter) error { return nil }
func (nopSink) ReplaceLinks(context.Context, []model.ProximityLink) error { return nil }
func (nopSink) ReplaceClassifications(context.Context, []model.SideClassification) error { return nil }
func (nopSink) ReplaceResults(context.Context, []model.ContrastResult) error { return nil }
