package loader

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"github.com/rotisserie/eris"
	"github.com/spf13/cast"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/night-light/internal/contrast"
	"github.com/sells-group/night-light/internal/model"
)

// Dataset names used in reports.
const (
	DatasetCrosswalks   = "crosswalks"
	DatasetStreets      = "streets"
	DatasetStreetlights = "streetlights"
)

// Options names the attribute properties read from every dataset.
type Options struct {
	IDProperty     string
	OnewayProperty string
}

// DefaultOptions returns the property names used by the city's open data exports.
func DefaultOptions() Options {
	return Options{IDProperty: "OBJECTID", OnewayProperty: "ONEWAY"}
}

// Paths locates the three input datasets.
type Paths struct {
	Crosswalks   string
	Streets      string
	Streetlights string
}

// RecordSkip is a source record that was not loaded.
type RecordSkip struct {
	Record int    `json:"record"`
	Reason string `json:"reason"`
}

// Report summarizes one dataset load.
type Report struct {
	Dataset string       `json:"dataset"`
	Path    string       `json:"path"`
	Records int          `json:"records"`
	Loaded  int          `json:"loaded"`
	Skipped []RecordSkip `json:"skipped,omitempty"`
}

// convertFunc turns a feature with a parsed id into a typed record, or
// returns a skip reason.
type convertFunc[T any] func(f feature, id int64) (T, string)

func load[T any](dataset, path string, opts Options, convert convertFunc[T]) ([]T, Report, error) {
	log := zap.L().With(zap.String("component", "loader"), zap.String("dataset", dataset))
	report := Report{Dataset: dataset, Path: path}

	features, err := readFeatures(path)
	if err != nil {
		return nil, report, eris.Wrapf(err, "loader: load %s", dataset)
	}
	report.Records = len(features)

	skip := func(record int, reason string) {
		report.Skipped = append(report.Skipped, RecordSkip{Record: record, Reason: reason})
		log.Debug("record skipped", zap.Int("record", record), zap.String("reason", reason))
	}

	out := make([]T, 0, len(features))
	seen := make(map[int64]bool, len(features))
	for _, f := range features {
		id, err := featureID(f, opts.IDProperty)
		if err != nil {
			skip(f.record, err.Error())
			continue
		}
		if seen[id] {
			skip(f.record, fmt.Sprintf("duplicate id %d", id))
			continue
		}
		v, reason := convert(f, id)
		if reason != "" {
			skip(f.record, reason)
			continue
		}
		seen[id] = true
		out = append(out, v)
	}
	report.Loaded = len(out)

	log.Info("dataset loaded",
		zap.String("path", path),
		zap.Int("records", report.Records),
		zap.Int("loaded", report.Loaded),
		zap.Int("skipped", len(report.Skipped)),
	)
	return out, report, nil
}

// LoadCrosswalks reads crosswalk polygons. A multipolygon keeps its largest
// member.
func LoadCrosswalks(path string, opts Options) ([]model.Crosswalk, Report, error) {
	return load(DatasetCrosswalks, path, opts, func(f feature, id int64) (model.Crosswalk, string) {
		var poly orb.Polygon
		switch g := f.geometry.(type) {
		case orb.Polygon:
			poly = g
		case orb.MultiPolygon:
			poly = largestPolygon(g)
		case nil:
			return model.Crosswalk{}, "missing geometry"
		default:
			return model.Crosswalk{}, fmt.Sprintf("unsupported geometry type %s", g.GeoJSONType())
		}
		if len(poly) == 0 || len(poly[0]) == 0 {
			return model.Crosswalk{}, "empty geometry"
		}
		return model.Crosswalk{ID: id, Polygon: poly}, ""
	})
}

func largestPolygon(mp orb.MultiPolygon) orb.Polygon {
	var (
		best orb.Polygon
		area = -1.0
	)
	for _, p := range mp {
		if len(p) == 0 {
			continue
		}
		if a := math.Abs(planar.Area(p)); a > area {
			best, area = p, a
		}
	}
	return best
}

// LoadStreets reads street centerlines with their one-way codes.
func LoadStreets(path string, opts Options) ([]model.StreetSegment, Report, error) {
	return load(DatasetStreets, path, opts, func(f feature, id int64) (model.StreetSegment, string) {
		var lines orb.MultiLineString
		switch g := f.geometry.(type) {
		case orb.LineString:
			lines = orb.MultiLineString{g}
		case orb.MultiLineString:
			lines = g
		case nil:
			return model.StreetSegment{}, "missing geometry"
		default:
			return model.StreetSegment{}, fmt.Sprintf("unsupported geometry type %s", g.GeoJSONType())
		}

		kept := lines[:0:0]
		for _, ls := range lines {
			if len(ls) >= 2 {
				kept = append(kept, ls)
			}
		}
		if len(kept) == 0 {
			return model.StreetSegment{}, "empty geometry"
		}
		oneway := strings.TrimSpace(cast.ToString(f.props[opts.OnewayProperty]))
		return model.StreetSegment{ID: id, Lines: kept, OneWay: oneway}, ""
	})
}

// LoadStreetlights reads streetlight points.
func LoadStreetlights(path string, opts Options) ([]model.Streetlight, Report, error) {
	return load(DatasetStreetlights, path, opts, func(f feature, id int64) (model.Streetlight, string) {
		switch g := f.geometry.(type) {
		case orb.Point:
			return model.Streetlight{ID: id, Point: g}, ""
		case orb.MultiPoint:
			if len(g) != 1 {
				return model.Streetlight{}, fmt.Sprintf("multipoint with %d points", len(g))
			}
			return model.Streetlight{ID: id, Point: g[0]}, ""
		case nil:
			return model.Streetlight{}, "missing geometry"
		default:
			return model.Streetlight{}, fmt.Sprintf("unsupported geometry type %s", g.GeoJSONType())
		}
	})
}

// LoadAll reads the three datasets concurrently. Reports are returned in
// crosswalk, street, streetlight order.
func LoadAll(ctx context.Context, paths Paths, opts Options) (contrast.Input, []Report, error) {
	var (
		in      contrast.Input
		reports = make([]Report, 3)
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := gctx.Err(); err != nil {
			return err
		}
		var err error
		in.Crosswalks, reports[0], err = LoadCrosswalks(paths.Crosswalks, opts)
		return err
	})
	g.Go(func() error {
		if err := gctx.Err(); err != nil {
			return err
		}
		var err error
		in.Streets, reports[1], err = LoadStreets(paths.Streets, opts)
		return err
	})
	g.Go(func() error {
		if err := gctx.Err(); err != nil {
			return err
		}
		var err error
		in.Streetlights, reports[2], err = LoadStreetlights(paths.Streetlights, opts)
		return err
	})

	if err := g.Wait(); err != nil {
		return contrast.Input{}, nil, eris.Wrap(err, "loader: load inputs")
	}
	return in, reports, nil
}

// featureID reads the id property, falling back to the native feature id.
func featureID(f feature, prop string) (int64, error) {
	v, ok := f.props[prop]
	if !ok || isBlank(v) {
		v = f.id
	}
	if isBlank(v) {
		return 0, eris.New("missing id")
	}
	return parseID(v)
}

func isBlank(v any) bool {
	if v == nil {
		return true
	}
	s, ok := v.(string)
	return ok && strings.TrimSpace(s) == ""
}

// parseID accepts integers and integral floats. Strings are read in base 10
// so zero-padded ids are not taken as octal.
func parseID(v any) (int64, error) {
	switch t := v.(type) {
	case string:
		s := strings.TrimSpace(t)
		if id, err := strconv.ParseInt(s, 10, 64); err == nil {
			return id, nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, eris.Errorf("non-numeric id %q", t)
		}
		return integralID(f)
	case float64:
		return integralID(t)
	case float32:
		return integralID(float64(t))
	default:
		id, err := cast.ToInt64E(v)
		if err != nil {
			return 0, eris.Errorf("invalid id %v", v)
		}
		return id, nil
	}
}

func integralID(f float64) (int64, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, eris.Errorf("non-integral id %v", f)
	}
	return int64(f), nil
}
