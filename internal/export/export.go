package export

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"

	"github.com/jszwec/csvutil"
	"github.com/parquet-go/parquet-go"
	"github.com/paulmach/orb/geojson"
	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/sells-group/night-light/internal/geometry"
)

// Output formats.
const (
	FormatCSV     = "csv"
	FormatParquet = "parquet"
	FormatXLSX    = "xlsx"
	FormatGeoJSON = "geojson"
)

// Base names of the exported files.
const (
	CentersFile      = "crosswalk_centers_contrast"
	StreetlightsFile = "classified_streetlights"
	LinksFile        = "crosswalk_centers_lights"
	WorkbookFile     = "crosswalk_contrast"
)

// Formats lists every supported format in write order.
var Formats = []string{FormatCSV, FormatParquet, FormatXLSX, FormatGeoJSON}

// ParseFormats normalizes and validates a format list.
func ParseFormats(formats []string) ([]string, error) {
	seen := make(map[string]bool, len(formats))
	var out []string
	for _, f := range formats {
		f = strings.ToLower(strings.TrimSpace(f))
		switch f {
		case FormatCSV, FormatParquet, FormatXLSX, FormatGeoJSON:
		default:
			return nil, eris.Errorf("export: unknown format %q", f)
		}
		if !seen[f] {
			seen[f] = true
			out = append(out, f)
		}
	}
	return out, nil
}

// Exporter writes Tables to a directory in the configured formats.
type Exporter struct {
	dir     string
	formats []string
}

// New creates an Exporter.
func New(dir string, formats []string) (*Exporter, error) {
	parsed, err := ParseFormats(formats)
	if err != nil {
		return nil, err
	}
	return &Exporter{dir: dir, formats: parsed}, nil
}

// Export writes every configured format and returns the written paths.
func (e *Exporter) Export(ctx context.Context, t Tables) ([]string, error) {
	log := zap.L().With(zap.String("component", "export"))

	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return nil, eris.Wrapf(err, "export: create %s", e.dir)
	}

	var written []string
	for _, format := range e.formats {
		if err := ctx.Err(); err != nil {
			return written, eris.Wrap(err, "export: cancelled")
		}

		var (
			paths []string
			err   error
		)
		switch format {
		case FormatCSV:
			paths, err = e.writeCSV(t)
		case FormatParquet:
			paths, err = e.writeParquet(t)
		case FormatXLSX:
			paths, err = e.writeXLSX(t)
		case FormatGeoJSON:
			paths, err = e.writeGeoJSON(t)
		}
		if err != nil {
			return written, err
		}
		written = append(written, paths...)
		log.Info("export: format written", zap.String("format", format), zap.Strings("files", paths))
	}
	return written, nil
}

func (e *Exporter) path(base, ext string) string {
	return filepath.Join(e.dir, base+"."+ext)
}

func (e *Exporter) writeCSV(t Tables) ([]string, error) {
	paths := []string{
		e.path(CentersFile, FormatCSV),
		e.path(StreetlightsFile, FormatCSV),
		e.path(LinksFile, FormatCSV),
	}
	if err := WriteCSV(paths[0], t.Centers); err != nil {
		return nil, err
	}
	if err := WriteCSV(paths[1], t.Streetlights); err != nil {
		return nil, err
	}
	if err := WriteCSV(paths[2], t.Links); err != nil {
		return nil, err
	}
	return paths, nil
}

// WriteCSV writes rows to path with a header taken from the csv tags of T.
func WriteCSV[T any](path string, rows []T) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "export: create %s", path)
	}
	defer func() { _ = f.Close() }()

	w := csv.NewWriter(f)
	enc := csvutil.NewEncoder(w)
	if len(rows) == 0 {
		var zero T
		err = enc.EncodeHeader(zero)
	} else {
		err = enc.Encode(rows)
	}
	if err != nil {
		return eris.Wrapf(err, "export: encode %s", path)
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return eris.Wrapf(err, "export: flush %s", path)
	}
	return eris.Wrapf(f.Close(), "export: close %s", path)
}

func (e *Exporter) writeParquet(t Tables) ([]string, error) {
	paths := []string{
		e.path(CentersFile, FormatParquet),
		e.path(StreetlightsFile, FormatParquet),
		e.path(LinksFile, FormatParquet),
	}
	if err := parquet.WriteFile(paths[0], t.Centers); err != nil {
		return nil, eris.Wrapf(err, "export: write %s", paths[0])
	}
	if err := parquet.WriteFile(paths[1], t.Streetlights); err != nil {
		return nil, eris.Wrapf(err, "export: write %s", paths[1])
	}
	if err := parquet.WriteFile(paths[2], t.Links); err != nil {
		return nil, eris.Wrapf(err, "export: write %s", paths[2])
	}
	return paths, nil
}

// Sheet names of the workbook.
const (
	CentersSheet      = "centers"
	StreetlightsSheet = "streetlights"
)

func (e *Exporter) writeXLSX(t Tables) ([]string, error) {
	path := e.path(WorkbookFile, FormatXLSX)
	f := xlsx.NewFile()

	centers := make([][]any, len(t.Centers))
	for i, r := range t.Centers {
		centers[i] = r.cells()
	}
	if err := addSheet(f, CentersSheet, centerHeader, centers); err != nil {
		return nil, err
	}

	lights := make([][]any, len(t.Streetlights))
	for i, r := range t.Streetlights {
		lights[i] = r.cells()
	}
	if err := addSheet(f, StreetlightsSheet, streetlightHeader, lights); err != nil {
		return nil, err
	}

	if err := f.Save(path); err != nil {
		return nil, eris.Wrapf(err, "export: save %s", path)
	}
	return []string{path}, nil
}

func addSheet(f *xlsx.File, name string, header []string, rows [][]any) error {
	sheet, err := f.AddSheet(name)
	if err != nil {
		return eris.Wrapf(err, "export: add sheet %s", name)
	}

	hr := sheet.AddRow()
	for _, h := range header {
		hr.AddCell().SetString(h)
	}
	for _, values := range rows {
		row := sheet.AddRow()
		for _, v := range values {
			cell := row.AddCell()
			switch t := v.(type) {
			case string:
				cell.SetString(t)
			case int64:
				cell.SetInt64(t)
			case float64:
				cell.SetFloat(t)
			case bool:
				cell.SetBool(t)
			}
		}
	}
	return nil
}

func (e *Exporter) writeGeoJSON(t Tables) ([]string, error) {
	path := e.path(CentersFile, FormatGeoJSON)

	fc, err := CentersFeatureCollection(t.Centers)
	if err != nil {
		return nil, err
	}
	data, err := fc.MarshalJSON()
	if err != nil {
		return nil, eris.Wrap(err, "export: marshal GeoJSON")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return nil, eris.Wrapf(err, "export: write %s", path)
	}
	return []string{path}, nil
}

// CentersFeatureCollection converts center rows to point features whose
// properties mirror the CSV columns.
func CentersFeatureCollection(rows []CenterRow) (*geojson.FeatureCollection, error) {
	fc := geojson.NewFeatureCollection()
	for _, r := range rows {
		f, err := pointFeature(r.Geometry, centerHeader, r.cells())
		if err != nil {
			return nil, eris.Wrapf(err, "export: crosswalk %d center %s", r.CrosswalkID, r.CenterID)
		}
		fc.Append(f)
	}
	return fc, nil
}

// StreetlightsFeatureCollection converts classified streetlights to point
// features at the light positions.
func StreetlightsFeatureCollection(rows []StreetlightRow) (*geojson.FeatureCollection, error) {
	fc := geojson.NewFeatureCollection()
	for _, r := range rows {
		f, err := pointFeature(r.Geometry, streetlightHeader, r.cells())
		if err != nil {
			return nil, eris.Wrapf(err, "export: crosswalk %d streetlight %d", r.CrosswalkID, r.StreetlightID)
		}
		fc.Append(f)
	}
	return fc, nil
}

func pointFeature(wkt string, header []string, values []any) (*geojson.Feature, error) {
	pt, err := geometry.ParsePointWKT(wkt)
	if err != nil {
		return nil, err
	}
	f := geojson.NewFeature(pt)
	for i, name := range header {
		if name != "geometry" {
			f.Properties[name] = values[i]
		}
	}
	return f, nil
}
