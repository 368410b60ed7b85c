package contrast

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/night-light/internal/model"
)

// Structural contracts checked between stages.
var (
	errEdgeContract   = eris.New("crosswalk needs at least 2 pedestrian edges and 1 vehicle edge")
	errCenterContract = eris.New("two-way crosswalks need centers A and B, one-way crosswalks only A")
	errSumContract    = eris.New("light heuristic differs from to + from")
)

// StageReport summarizes what a stage consumed, produced and dropped.
type StageReport struct {
	Input   int
	Output  int
	Skipped []model.Skip
}

func (r *StageReport) skip(crosswalkID int64, centerID, reason string) {
	r.Skipped = append(r.Skipped, model.Skip{CrosswalkID: crosswalkID, CenterID: centerID, Reason: reason})
}

// Result converts the report into a stage result record.
func (r StageReport) Result(stage string) model.StageResult {
	return model.StageResult{
		Name:    stage,
		Status:  model.StageStatusComplete,
		Input:   r.Input,
		Output:  r.Output,
		Skipped: r.Skipped,
	}
}

// StageError reports a structural problem in a stage's output that makes it
// unsafe to hand to the next stage.
type StageError struct {
	Stage string
	IDs   []int64
	Err   error
}

func (e *StageError) Error() string {
	if len(e.IDs) == 0 {
		return fmt.Sprintf("contrast: stage %s: %v", e.Stage, e.Err)
	}
	ids := make([]string, len(e.IDs))
	for i, id := range e.IDs {
		ids[i] = fmt.Sprint(id)
	}
	return fmt.Sprintf("contrast: stage %s: %v (crosswalks %s)", e.Stage, e.Err, strings.Join(ids, ", "))
}

func (e *StageError) Unwrap() error { return e.Err }
