package model

import "time"

// RunStatus represents the current state of a pipeline run.
type RunStatus string

const (
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// StageStatus represents the outcome of a single stage.
type StageStatus string

const (
	StageStatusComplete StageStatus = "complete"
	StageStatusFailed   StageStatus = "failed"
)

// Stage names in execution order.
const (
	StageNormalize = "normalize"
	StageEdges     = "edges"
	StageCenters   = "centers"
	StageDirection = "direction"
	StageProximity = "proximity"
	StageSides     = "sides"
	StageContrast  = "contrast"
)

// RunParams captures the parameters a run was executed with.
type RunParams struct {
	SearchRadiusM     float64 `json:"search_radius_m"`
	ContrastThreshold float64 `json:"contrast_threshold"`
	AngleWeighted     bool    `json:"angle_weighted"`
	OnewayDirection   string  `json:"oneway_direction"`
	Crosswalks        int     `json:"crosswalks"`
	StreetSegments    int     `json:"street_segments"`
	Streetlights      int     `json:"streetlights"`
}

// Run represents a single pipeline execution.
type Run struct {
	ID        string        `json:"id"`
	Status    RunStatus     `json:"status"`
	Params    RunParams     `json:"params"`
	Stages    []StageResult `json:"stages,omitempty"`
	Error     string        `json:"error,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// StageResult holds the outcome of one stage of a run.
type StageResult struct {
	Name     string      `json:"name"`
	Status   StageStatus `json:"status"`
	Input    int         `json:"input"`
	Output   int         `json:"output"`
	Skipped  []Skip      `json:"skipped,omitempty"`
	Duration int64       `json:"duration_ms"`
	Error    string      `json:"error,omitempty"`
}

// SkippedIDs returns the distinct crosswalk ids the stage skipped, in order
// of first appearance.
func (r StageResult) SkippedIDs() []int64 {
	seen := make(map[int64]bool, len(r.Skipped))
	var ids []int64
	for _, s := range r.Skipped {
		if seen[s.CrosswalkID] {
			continue
		}
		seen[s.CrosswalkID] = true
		ids = append(ids, s.CrosswalkID)
	}
	return ids
}
