// Package loader reads the three source datasets of a run (crosswalk
// polygons, street centerlines and streetlight points) from GeoJSON,
// ESRI shapefiles or WKT-bearing CSV files.
package loader

import (
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/jszwec/csvutil"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkt"
	"github.com/paulmach/orb/geojson"
	"github.com/rotisserie/eris"
)

// feature is one source record with its attributes.
type feature struct {
	record   int // 1-based position in the file
	id       any // native feature id, used when the id property is absent
	props    map[string]any
	geometry orb.Geometry
}

// readFeatures reads every record of path, picking the reader by extension.
func readFeatures(path string) ([]feature, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".geojson", ".json":
		return readGeoJSON(path)
	case ".shp":
		return readShapefile(path)
	case ".csv":
		return readWKTCSV(path)
	default:
		return nil, eris.Errorf("loader: unsupported input format %q", filepath.Ext(path))
	}
}

func readGeoJSON(path string) ([]feature, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "loader: read %s", path)
	}
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, eris.Wrapf(err, "loader: parse GeoJSON %s", path)
	}

	out := make([]feature, 0, len(fc.Features))
	for i, f := range fc.Features {
		out = append(out, feature{record: i + 1, id: f.ID, props: f.Properties, geometry: f.Geometry})
	}
	return out, nil
}

func readShapefile(path string) ([]feature, error) {
	reader, err := shp.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "loader: open shapefile %s", path)
	}
	defer func() { _ = reader.Close() }()

	fields := reader.Fields()
	if len(fields) == 0 {
		return nil, eris.Errorf("loader: shapefile %s has no attribute fields (missing .dbf?)", path)
	}
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = strings.TrimRight(f.String(), "\x00")
	}

	var out []feature
	for reader.Next() {
		n, shape := reader.Shape()
		props := make(map[string]any, len(names))
		for i, name := range names {
			props[name] = strings.TrimSpace(strings.TrimRight(reader.Attribute(i), "\x00"))
		}
		out = append(out, feature{record: n + 1, props: props, geometry: shapeGeometry(shape)})
	}
	if err := reader.Err(); err != nil {
		return nil, eris.Wrapf(err, "loader: read shapefile %s", path)
	}
	return out, nil
}

// shapeGeometry converts a shapefile shape to orb. Polygon parts become
// separate polygons; rings are not nested into holes.
func shapeGeometry(s shp.Shape) orb.Geometry {
	switch v := s.(type) {
	case *shp.Point:
		return orb.Point{v.X, v.Y}
	case *shp.PolyLine:
		return orb.MultiLineString(shapeParts[orb.LineString](v.Parts, v.Points))
	case *shp.Polygon:
		var mp orb.MultiPolygon
		for _, r := range shapeParts[orb.Ring](v.Parts, v.Points) {
			mp = append(mp, orb.Polygon{r})
		}
		return mp
	default:
		return nil
	}
}

func shapeParts[T ~[]orb.Point](parts []int32, points []shp.Point) []T {
	out := make([]T, 0, len(parts))
	for i, start := range parts {
		end := int32(len(points))
		if i+1 < len(parts) {
			end = parts[i+1]
		}
		if start < 0 || start > end || int(end) > len(points) {
			continue
		}
		part := make(T, 0, end-start)
		for _, p := range points[start:end] {
			part = append(part, orb.Point{p.X, p.Y})
		}
		out = append(out, part)
	}
	return out
}

// wktColumns are the header names recognised as the geometry column of a CSV.
var wktColumns = []string{"wkt", "geometry", "geom", "the_geom"}

// wktRow is the fixed shape every CSV record is decoded into once the
// geometry column has been renamed.
type wktRow struct {
	WKT string `csv:"wkt"`
}

func readWKTCSV(path string) ([]feature, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "loader: open %s", path)
	}
	defer func() { _ = f.Close() }()

	r := csv.NewReader(f)
	header, err := r.Read()
	if err != nil {
		return nil, eris.Wrapf(err, "loader: read CSV header %s", path)
	}
	geomCol := -1
	for i, h := range header {
		for _, c := range wktColumns {
			if strings.EqualFold(strings.TrimSpace(h), c) {
				geomCol = i
			}
		}
	}
	if geomCol < 0 {
		return nil, eris.Errorf("loader: %s has no geometry column (one of %s)", path, strings.Join(wktColumns, ", "))
	}
	renamed := append([]string(nil), header...)
	renamed[geomCol] = "wkt"

	dec, err := csvutil.NewDecoder(r, renamed...)
	if err != nil {
		return nil, eris.Wrapf(err, "loader: CSV decoder %s", path)
	}

	var out []feature
	for rec := 1; ; rec++ {
		var row wktRow
		if err := dec.Decode(&row); err == io.EOF {
			break
		} else if err != nil {
			return nil, eris.Wrapf(err, "loader: decode %s record %d", path, rec)
		}

		props := make(map[string]any, len(header))
		for i, v := range dec.Record() {
			if i != geomCol && i < len(header) {
				props[header[i]] = v
			}
		}

		ft := feature{record: rec, props: props}
		if g, err := wkt.Unmarshal(row.WKT); err == nil {
			ft.geometry = g
		}
		out = append(out, ft)
	}
	return out, nil
}
