package store

import (
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/rotisserie/eris"

	"github.com/sells-group/night-light/internal/geometry"
	"github.com/sells-group/night-light/internal/model"
)

// table is a derived table that is rewritten wholesale on every run.
type table struct {
	name    string
	columns []string
}

var (
	crosswalksTable = table{"crosswalks", []string{
		"crosswalk_id", "geom",
	}}
	edgesTable = table{"crosswalk_edges", []string{
		"crosswalk_id", "edge_id", "geom", "is_vehicle_edge", "street_segment_id", "is_oneway",
	}}
	centersTable = table{"crossing_centers", []string{
		"crosswalk_id", "center_id", "geom", "ped_edge_id", "ped_edge", "street_center",
		"street_segment_id", "is_oneway", "direction_defined", "from_geom", "to_geom",
	}}
	linksTable = table{"proximity_links", []string{
		"crosswalk_id", "center_id", "streetlight_id", "distance_m",
	}}
	classificationsTable = table{"side_classifications", []string{
		"crosswalk_id", "center_id", "streetlight_id", "geom", "side", "distance_m", "angle", "abs_sin",
	}}
	resultsTable = table{"contrast_results", []string{
		"crosswalk_id", "center_id", "geom", "is_oneway", "direction_defined", "from_geom", "to_geom",
		"to_heuristic", "from_heuristic", "light_heuristic", "contrast", "light_count",
	}}
)

func (t table) columnList() string {
	return strings.Join(t.columns, ", ")
}

// placeholders returns "?, ?, ..." or "$1, $2, ..." for one row.
func (t table) placeholders(numbered bool) string {
	ph := make([]string, len(t.columns))
	for i := range ph {
		if numbered {
			ph[i] = "$" + strconv.Itoa(i+1)
		} else {
			ph[i] = "?"
		}
	}
	return strings.Join(ph, ", ")
}

func buildRows[T any](items []T, row func(T) ([]any, error)) ([][]any, error) {
	rows := make([][]any, 0, len(items))
	for _, it := range items {
		r, err := row(it)
		if err != nil {
			return nil, err
		}
		rows = append(rows, r)
	}
	return rows, nil
}

// ewkb encodes a geometry, wrapping the error with the owning entity.
func ewkb(g orb.Geometry, crosswalkID int64) ([]byte, error) {
	data, err := geometry.EncodeEWKB(g)
	if err != nil {
		return nil, eris.Wrapf(err, "store: encode geometry of crosswalk %d", crosswalkID)
	}
	return data, nil
}

// directionGeoms returns the from/to points, or nils when undefined.
func directionGeoms(d model.Direction, crosswalkID int64) (from, to []byte, err error) {
	if !d.Defined {
		return nil, nil, nil
	}
	if from, err = ewkb(d.From, crosswalkID); err != nil {
		return nil, nil, err
	}
	if to, err = ewkb(d.To, crosswalkID); err != nil {
		return nil, nil, err
	}
	return from, to, nil
}

func crosswalkRow(c model.Crosswalk) ([]any, error) {
	g, err := ewkb(c.Polygon, c.ID)
	if err != nil {
		return nil, err
	}
	return []any{c.ID, g}, nil
}

func edgeRow(e model.CrosswalkEdge) ([]any, error) {
	g, err := ewkb(geometry.SegmentLine(e.Line), e.CrosswalkID)
	if err != nil {
		return nil, err
	}
	return []any{e.CrosswalkID, e.EdgeID, g, e.IsVehicleEdge, e.StreetSegmentID, e.IsOneway}, nil
}

func centerRow(c model.CrossingCenter) ([]any, error) {
	pt, err := ewkb(c.Point, c.CrosswalkID)
	if err != nil {
		return nil, err
	}
	ped, err := ewkb(geometry.SegmentLine(c.PedEdge), c.CrosswalkID)
	if err != nil {
		return nil, err
	}
	street, err := ewkb(c.StreetCenter, c.CrosswalkID)
	if err != nil {
		return nil, err
	}
	from, to, err := directionGeoms(c.Direction, c.CrosswalkID)
	if err != nil {
		return nil, err
	}
	return []any{
		c.CrosswalkID, c.CenterID, pt, c.PedEdgeID, ped, street,
		c.StreetSegmentID, c.IsOneway, c.Direction.Defined, from, to,
	}, nil
}

// linkRows flattens proximity links to one row per (center, light).
func linkRows(links []model.ProximityLink) [][]any {
	var rows [][]any
	for _, l := range links {
		for _, ld := range l.Lights {
			rows = append(rows, []any{l.CrosswalkID, l.CenterID, ld.StreetlightID, ld.DistanceM})
		}
	}
	return rows
}

func classificationRow(sc model.SideClassification) ([]any, error) {
	g, err := ewkb(sc.Light, sc.CrosswalkID)
	if err != nil {
		return nil, err
	}
	return []any{sc.CrosswalkID, sc.CenterID, sc.StreetlightID, g, sc.Side, sc.DistanceM, sc.Angle, sc.AbsSin}, nil
}

func resultRow(r model.ContrastResult) ([]any, error) {
	pt, err := ewkb(r.Point, r.CrosswalkID)
	if err != nil {
		return nil, err
	}
	from, to, err := directionGeoms(r.Direction, r.CrosswalkID)
	if err != nil {
		return nil, err
	}
	return []any{
		r.CrosswalkID, r.CenterID, pt, r.IsOneway, r.Direction.Defined, from, to,
		r.ToHeuristic, r.FromHeuristic, r.LightHeuristic, r.Contrast, r.LightCount,
	}, nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanResult(row scannable) (model.ContrastResult, error) {
	var (
		r            model.ContrastResult
		pt, from, to []byte
	)
	err := row.Scan(
		&r.CrosswalkID, &r.CenterID, &pt, &r.IsOneway, &r.Direction.Defined, &from, &to,
		&r.ToHeuristic, &r.FromHeuristic, &r.LightHeuristic, &r.Contrast, &r.LightCount,
	)
	if err != nil {
		return r, eris.Wrap(err, "store: scan result")
	}
	if r.Point, err = geometry.DecodePointEWKB(pt); err != nil {
		return r, err
	}
	if r.Direction.Defined {
		if r.Direction.From, err = geometry.DecodePointEWKB(from); err != nil {
			return r, err
		}
		if r.Direction.To, err = geometry.DecodePointEWKB(to); err != nil {
			return r, err
		}
	}
	return r, nil
}

func scanClassification(row scannable) (model.SideClassification, error) {
	var (
		sc model.SideClassification
		g  []byte
	)
	err := row.Scan(&sc.CrosswalkID, &sc.CenterID, &sc.StreetlightID, &g, &sc.Side, &sc.DistanceM, &sc.Angle, &sc.AbsSin)
	if err != nil {
		return sc, eris.Wrap(err, "store: scan classification")
	}
	sc.Light, err = geometry.DecodePointEWKB(g)
	return sc, err
}
