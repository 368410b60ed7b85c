// Package export writes run results to flat files for analysts and map tools.
package export

import (
	"github.com/sells-group/night-light/internal/geometry"
	"github.com/sells-group/night-light/internal/model"
)

// CenterRow is one crossing center with its contrast heuristic.
type CenterRow struct {
	CrosswalkID    int64   `csv:"crosswalk_id" parquet:"crosswalk_id"`
	CenterID       string  `csv:"center_id" parquet:"center_id"`
	Geometry       string  `csv:"geometry" parquet:"geometry"`
	IsOneway       bool    `csv:"is_oneway" parquet:"is_oneway"`
	From           string  `csv:"from" parquet:"from"`
	To             string  `csv:"to" parquet:"to"`
	ToHeuristic    float64 `csv:"to_heuristic" parquet:"to_heuristic"`
	FromHeuristic  float64 `csv:"from_heuristic" parquet:"from_heuristic"`
	LightHeuristic float64 `csv:"light_heuristic" parquet:"light_heuristic"`
	Contrast       string  `csv:"contrast" parquet:"contrast"`
	LightCount     int64   `csv:"light_count" parquet:"light_count"`
}

// StreetlightRow is one streetlight classified against one center.
type StreetlightRow struct {
	CrosswalkID   int64   `csv:"crosswalk_id" parquet:"crosswalk_id"`
	CenterID      string  `csv:"center_id" parquet:"center_id"`
	StreetlightID int64   `csv:"streetlight_id" parquet:"streetlight_id"`
	Geometry      string  `csv:"geometry" parquet:"geometry"`
	Side          string  `csv:"side" parquet:"side"`
	DistanceM     float64 `csv:"distance_m" parquet:"distance_m"`
	Angle         float64 `csv:"angle" parquet:"angle"`
	AbsSin        float64 `csv:"abs_sin" parquet:"abs_sin"`
}

// LinkRow is one streetlight within the search radius of a center.
type LinkRow struct {
	CrosswalkID   int64   `csv:"crosswalk_id" parquet:"crosswalk_id"`
	CenterID      string  `csv:"center_id" parquet:"center_id"`
	StreetlightID int64   `csv:"streetlight_id" parquet:"streetlight_id"`
	DistanceM     float64 `csv:"distance_m" parquet:"distance_m"`
}

// Tables holds the flattened output of a run.
type Tables struct {
	Centers      []CenterRow
	Streetlights []StreetlightRow
	Links        []LinkRow
}

// NewTables flattens results, classifications and proximity links.
func NewTables(results []model.ContrastResult, sides []model.SideClassification, links []model.ProximityLink) Tables {
	t := Tables{
		Centers:      make([]CenterRow, 0, len(results)),
		Streetlights: make([]StreetlightRow, 0, len(sides)),
	}
	for _, r := range results {
		t.Centers = append(t.Centers, centerRow(r))
	}
	for _, sc := range sides {
		t.Streetlights = append(t.Streetlights, StreetlightRow{
			CrosswalkID:   sc.CrosswalkID,
			CenterID:      sc.CenterID,
			StreetlightID: sc.StreetlightID,
			Geometry:      geometry.WKT(sc.Light),
			Side:          sc.Side,
			DistanceM:     sc.DistanceM,
			Angle:         sc.Angle,
			AbsSin:        sc.AbsSin,
		})
	}
	for _, l := range links {
		for _, ld := range l.Lights {
			t.Links = append(t.Links, LinkRow{
				CrosswalkID:   l.CrosswalkID,
				CenterID:      l.CenterID,
				StreetlightID: ld.StreetlightID,
				DistanceM:     ld.DistanceM,
			})
		}
	}
	return t
}

func centerRow(r model.ContrastResult) CenterRow {
	from, to := model.Undefined, model.Undefined
	if r.Direction.Defined {
		from, to = geometry.WKT(r.Direction.From), geometry.WKT(r.Direction.To)
	}
	return CenterRow{
		CrosswalkID:    r.CrosswalkID,
		CenterID:       r.CenterID,
		Geometry:       geometry.WKT(r.Point),
		IsOneway:       r.IsOneway,
		From:           from,
		To:             to,
		ToHeuristic:    r.ToHeuristic,
		FromHeuristic:  r.FromHeuristic,
		LightHeuristic: r.LightHeuristic,
		Contrast:       r.Contrast,
		LightCount:     int64(r.LightCount),
	}
}

func (r CenterRow) cells() []any {
	return []any{
		r.CrosswalkID, r.CenterID, r.Geometry, r.IsOneway, r.From, r.To,
		r.ToHeuristic, r.FromHeuristic, r.LightHeuristic, r.Contrast, r.LightCount,
	}
}

func (r StreetlightRow) cells() []any {
	return []any{r.CrosswalkID, r.CenterID, r.StreetlightID, r.Geometry, r.Side, r.DistanceM, r.Angle, r.AbsSin}
}

var (
	centerHeader      = []string{"crosswalk_id", "center_id", "geometry", "is_oneway", "from", "to", "to_heuristic", "from_heuristic", "light_heuristic", "contrast", "light_count"}
	streetlightHeader = []string{"crosswalk_id", "center_id", "streetlight_id", "geometry", "side", "distance_m", "angle", "abs_sin"}
)
