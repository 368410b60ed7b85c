// Package model defines the typed records that flow between pipeline stages.
package model

import (
	"strings"

	"github.com/paulmach/orb"
)

// Crossing center labels.
const (
	CenterA = "A"
	CenterB = "B"
)

// Side labels assigned by the side classifier.
const (
	SideTo   = "to"
	SideFrom = "from"
)

// Contrast labels. The weak/strong labels are only produced by the
// angle-weighted aggregator.
const (
	ContrastNone           = "no contrast"
	ContrastPositive       = "positive contrast"
	ContrastNegative       = "negative contrast"
	ContrastWeakPositive   = "weak positive contrast"
	ContrastWeakNegative   = "weak negative contrast"
	ContrastStrongPositive = "strong positive contrast"
	ContrastStrongNegative = "strong negative contrast"
)

// Undefined is written in place of a from/to coordinate when the direction
// resolver cannot orient a center.
const Undefined = "undefined"

// Crosswalk is a painted crossing polygon. After normalization the polygon
// holds the minimum-area rectangle enclosing the source shape.
type Crosswalk struct {
	ID      int64
	Polygon orb.Polygon
}

// StreetSegment is a street centerline with its direction-of-travel code.
type StreetSegment struct {
	ID     int64
	Lines  orb.MultiLineString
	OneWay string
}

// IsOneway reports whether the segment's direction code equals code.
func (s StreetSegment) IsOneway(code string) bool {
	return code != "" && strings.EqualFold(strings.TrimSpace(s.OneWay), code)
}

// FirstPoint returns the first vertex of the segment's first line.
func (s StreetSegment) FirstPoint() (orb.Point, bool) {
	for _, ls := range s.Lines {
		if len(ls) > 0 {
			return ls[0], true
		}
	}
	return orb.Point{}, false
}

// Bound returns the bounding box of every part of the segment.
func (s StreetSegment) Bound() orb.Bound {
	return s.Lines.Bound()
}

// Streetlight is a single light pole.
type Streetlight struct {
	ID    int64
	Point orb.Point
}

// CrosswalkEdge is one side of a crosswalk boundary.
type CrosswalkEdge struct {
	CrosswalkID     int64
	EdgeID          int
	Line            [2]orb.Point
	IsVehicleEdge   bool
	StreetSegmentID int64 // canonical street of the crosswalk, 0 when none
	IsOneway        bool
}

// Midpoint returns the midpoint of the edge.
func (e CrosswalkEdge) Midpoint() orb.Point {
	return orb.Point{(e.Line[0][0] + e.Line[1][0]) / 2, (e.Line[0][1] + e.Line[1][1]) / 2}
}

// Direction labels the two pedestrian-edge vertices relative to vehicle travel.
type Direction struct {
	From    orb.Point
	To      orb.Point
	Defined bool
}

// CrossingCenter approximates where a pedestrian waits for one direction of
// traffic. Two-way crosswalks carry centers A and B, one-way crosswalks only A.
type CrossingCenter struct {
	CrosswalkID     int64
	CenterID        string
	Point           orb.Point
	PedEdgeID       int
	PedEdge         [2]orb.Point
	StreetCenter    orb.Point
	StreetSegmentID int64
	IsOneway        bool
	Direction       Direction
}

// Key identifies the center within a run.
func (c CrossingCenter) Key() CenterKey {
	return CenterKey{CrosswalkID: c.CrosswalkID, CenterID: c.CenterID}
}

// PedEdgeMidpoint returns the midpoint of the center's pedestrian edge.
func (c CrossingCenter) PedEdgeMidpoint() orb.Point {
	return orb.Point{(c.PedEdge[0][0] + c.PedEdge[1][0]) / 2, (c.PedEdge[0][1] + c.PedEdge[1][1]) / 2}
}

// CenterKey is the composite identity of a crossing center.
type CenterKey struct {
	CrosswalkID int64
	CenterID    string
}

// LightDistance is a streetlight matched to a center by the spatial join.
type LightDistance struct {
	StreetlightID int64
	DistanceM     float64
}

// ProximityLink lists every streetlight within the search radius of a center.
type ProximityLink struct {
	CrosswalkID int64
	CenterID    string
	Lights      []LightDistance
}

// SideClassification places one streetlight on the to or from side of a center.
type SideClassification struct {
	CrosswalkID   int64
	CenterID      string
	StreetlightID int64
	Light         orb.Point
	Side          string
	DistanceM     float64
	Angle         float64 // radians between the A-B axis and the center-to-light vector
	AbsSin        float64
}

// ContrastResult is the aggregated illuminance heuristic for one center.
type ContrastResult struct {
	CrosswalkID    int64
	CenterID       string
	Point          orb.Point
	IsOneway       bool
	Direction      Direction
	ToHeuristic    float64
	FromHeuristic  float64
	LightHeuristic float64
	Contrast       string
	LightCount     int
}

// Skip records an entity a stage could not process.
type Skip struct {
	CrosswalkID int64  `json:"crosswalk_id"`
	CenterID    string `json:"center_id,omitempty"`
	Reason      string `json:"reason"`
}
