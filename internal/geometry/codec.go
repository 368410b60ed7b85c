package geometry

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkt"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/ewkb"
)

// SRID of every geometry the pipeline stores.
const SRID = 4326

// EncodeEWKB converts an orb geometry to EWKB bytes with SRID 4326.
// Returns nil, nil for nil geometries.
func EncodeEWKB(g orb.Geometry) ([]byte, error) {
	if g == nil {
		return nil, nil
	}

	var t geom.T
	switch v := g.(type) {
	case orb.Point:
		t = geom.NewPointFlat(geom.XY, []float64{v[0], v[1]}).SetSRID(SRID)
	case orb.LineString:
		t = geom.NewLineStringFlat(geom.XY, flatCoords(v)).SetSRID(SRID)
	case orb.Ring:
		t = geom.NewLineStringFlat(geom.XY, flatCoords(v)).SetSRID(SRID)
	case orb.Polygon:
		var flat []float64
		ends := make([]int, 0, len(v))
		for _, r := range v {
			flat = append(flat, flatCoords(r)...)
			ends = append(ends, len(flat))
		}
		t = geom.NewPolygonFlat(geom.XY, flat, ends).SetSRID(SRID)
	default:
		return nil, eris.Errorf("geometry: unsupported geometry type %s", g.GeoJSONType())
	}

	data, err := ewkb.Marshal(t, ewkb.NDR)
	if err != nil {
		return nil, eris.Wrap(err, "geometry: encode EWKB")
	}
	return data, nil
}

// DecodeEWKB parses EWKB bytes produced by EncodeEWKB.
func DecodeEWKB(data []byte) (orb.Geometry, error) {
	if len(data) == 0 {
		return nil, nil
	}

	t, err := ewkb.Unmarshal(data)
	if err != nil {
		return nil, eris.Wrap(err, "geometry: decode EWKB")
	}

	switch v := t.(type) {
	case *geom.Point:
		return orb.Point{v.X(), v.Y()}, nil
	case *geom.LineString:
		return orb.LineString(toPoints(v.Coords())), nil
	case *geom.Polygon:
		poly := make(orb.Polygon, 0, v.NumLinearRings())
		for i := 0; i < v.NumLinearRings(); i++ {
			poly = append(poly, orb.Ring(toPoints(v.LinearRing(i).Coords())))
		}
		return poly, nil
	default:
		return nil, eris.Errorf("geometry: unsupported EWKB geometry %T", t)
	}
}

// DecodePointEWKB parses EWKB bytes that must hold a point.
func DecodePointEWKB(data []byte) (orb.Point, error) {
	g, err := DecodeEWKB(data)
	if err != nil {
		return orb.Point{}, err
	}
	p, ok := g.(orb.Point)
	if !ok {
		return orb.Point{}, eris.Errorf("geometry: expected point, got %T", g)
	}
	return p, nil
}

// WKT returns the well-known text of g.
func WKT(g orb.Geometry) string {
	return wkt.MarshalString(g)
}

// ParsePointWKT parses a WKT point.
func ParsePointWKT(s string) (orb.Point, error) {
	p, err := wkt.UnmarshalPoint(s)
	if err != nil {
		return orb.Point{}, eris.Wrapf(err, "geometry: parse point %q", s)
	}
	return p, nil
}

// SegmentLine converts a two-point segment to a line string.
func SegmentLine(seg [2]orb.Point) orb.LineString {
	return orb.LineString{seg[0], seg[1]}
}

func flatCoords[T ~[]orb.Point](pts T) []float64 {
	flat := make([]float64, 0, len(pts)*2)
	for _, p := range pts {
		flat = append(flat, p[0], p[1])
	}
	return flat
}

func toPoints(coords []geom.Coord) []orb.Point {
	pts := make([]orb.Point, 0, len(coords))
	for _, c := range coords {
		pts = append(pts, orb.Point{c.X(), c.Y()})
	}
	return pts
}
