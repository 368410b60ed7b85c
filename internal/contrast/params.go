// Package contrast implements the crosswalk lighting-contrast pipeline: seven
// sequential stages that turn crosswalk polygons, street centerlines and
// streetlight points into a per-crossing-center contrast label.
//
// Every stage is a pure function from typed input slices to a freshly built
// output slice plus a StageReport listing the entities it could not process.
// Pipeline wires the stages together and optionally persists each stage's
// output through a Sink.
package contrast

import (
	"github.com/rotisserie/eris"
)

// One-way direction policies.
const (
	// OnewayDistance marks the pedestrian-edge vertex nearer to the street's
	// first point as the approach side.
	OnewayDistance = "distance"
	// OnewayCross orients the pedestrian edge by the sign of the street
	// vector crossed with the edge vector.
	OnewayCross = "cross"
)

// Params tunes the pipeline stages.
type Params struct {
	SearchRadiusM      float64 // streetlight search radius in meters
	Threshold          float64 // |from - to| at or below which there is no contrast
	OnewayCode         string  // street direction code that marks a one-way street
	OnewayDirection    string  // OnewayDistance or OnewayCross
	MinIntersections   int     // boundary/street points needed to resolve a two-way crosswalk
	MinDistanceM       float64 // lower clamp on light distances; 0 disables
	AngleWeighted      bool
	StrongMultiplier   float64
	OneSidedMultiplier float64
}

// DefaultParams returns the parameters used when nothing is configured.
func DefaultParams() Params {
	return Params{
		SearchRadiusM:      20,
		Threshold:          0.01,
		OnewayCode:         "FT",
		OnewayDirection:    OnewayDistance,
		MinIntersections:   2,
		MinDistanceM:       0.001,
		StrongMultiplier:   5,
		OneSidedMultiplier: 2,
	}
}

// Validate rejects parameter sets no stage can run with.
func (p Params) Validate() error {
	switch {
	case p.SearchRadiusM <= 0:
		return eris.Errorf("contrast: search radius must be positive, got %v", p.SearchRadiusM)
	case p.Threshold < 0:
		return eris.Errorf("contrast: contrast threshold must not be negative, got %v", p.Threshold)
	case p.MinIntersections < 1:
		return eris.Errorf("contrast: min intersections must be at least 1, got %d", p.MinIntersections)
	case p.MinDistanceM < 0:
		return eris.Errorf("contrast: min distance must not be negative, got %v", p.MinDistanceM)
	case p.OnewayDirection != OnewayDistance && p.OnewayDirection != OnewayCross:
		return eris.Errorf("contrast: unknown one-way direction policy %q", p.OnewayDirection)
	case p.AngleWeighted && (p.StrongMultiplier < 1 || p.OneSidedMultiplier < 1):
		return eris.New("contrast: threshold multipliers must be at least 1")
	}
	return nil
}
