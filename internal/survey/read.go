// Package survey compares computed contrast heuristics with field
// observations collected at night.
package survey

import (
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// Observation is one surveyed crossing center. Blank measurements are nil.
type Observation struct {
	CrosswalkID         int64    `csv:"Crosswalk ID"`
	CenterID            string   `csv:"Center ID"`
	PerceivedContrast   *float64 `csv:"Perceived Contrast,omitempty"`
	PerceivedVisibility *float64 `csv:"Perceived Visibility (1-5),omitempty"`
	LuxTowardCar        *float64 `csv:"Average Lux (toward car),omitempty"`
	LuxAwayCar          *float64 `csv:"Average Lux (away from car),omitempty"`
	NetLux              *float64 `csv:"Net lux,omitempty"`
}

// ReadOptions selects the worksheet of an XLSX survey.
type ReadOptions struct {
	SheetIndex int    // default 0
	SheetName  string // if set, overrides SheetIndex
}

// ReadObservations reads a survey from CSV or XLSX. The first row must be
// the header; unknown columns are ignored.
func ReadObservations(path string, opts ReadOptions) ([]Observation, error) {
	var (
		r   csvutil.Reader
		err error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		f, openErr := os.Open(path)
		if openErr != nil {
			return nil, eris.Wrapf(openErr, "survey: open %s", path)
		}
		defer func() { _ = f.Close() }()
		cr := csv.NewReader(f)
		cr.FieldsPerRecord = -1
		r = cr
	case ".xlsx":
		rows, readErr := readXLSX(path, opts)
		if readErr != nil {
			return nil, readErr
		}
		r = &sliceReader{rows: rows}
	default:
		return nil, eris.Errorf("survey: unsupported file type %q", filepath.Ext(path))
	}

	dec, err := csvutil.NewDecoder(r)
	if err != nil {
		return nil, eris.Wrapf(err, "survey: read header of %s", path)
	}
	dec.Map = trimValue

	var out []Observation
	for {
		var o Observation
		if err := dec.Decode(&o); err == io.EOF {
			break
		} else if err != nil {
			return nil, eris.Wrapf(err, "survey: decode %s", path)
		}
		o.CenterID = strings.ToUpper(strings.TrimSpace(o.CenterID))
		out = append(out, o)
	}
	return out, nil
}

func trimValue(field, _ string, _ any) string {
	return strings.TrimSpace(field)
}

// sliceReader feeds pre-read rows to csvutil.
type sliceReader struct {
	rows [][]string
	pos  int
}

func (s *sliceReader) Read() ([]string, error) {
	if s.pos >= len(s.rows) {
		return nil, io.EOF
	}
	row := s.rows[s.pos]
	s.pos++
	return row, nil
}

// readXLSX returns every non-empty row of the selected sheet.
func readXLSX(path string, opts ReadOptions) ([][]string, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "survey: open xlsx")
	}

	sheet, err := getSheet(f, opts)
	if err != nil {
		return nil, err
	}

	var rows [][]string
	width := 0
	for i, row := range sheet.Rows {
		cells := make([]string, len(row.Cells))
		blank := true
		for j, cell := range row.Cells {
			cells[j] = cell.String()
			if strings.TrimSpace(cells[j]) != "" {
				blank = false
			}
		}
		if blank {
			continue
		}
		if i == 0 || width == 0 {
			width = len(cells)
		}
		// Pad short rows so csvutil sees the header width.
		for len(cells) < width {
			cells = append(cells, "")
		}
		rows = append(rows, cells)
	}
	return rows, nil
}

func getSheet(f *xlsx.File, opts ReadOptions) (*xlsx.Sheet, error) {
	if opts.SheetName != "" {
		sheet, ok := f.Sheet[opts.SheetName]
		if !ok {
			return nil, eris.Errorf("survey: sheet %q not found", opts.SheetName)
		}
		return sheet, nil
	}

	if opts.SheetIndex >= len(f.Sheets) {
		return nil, eris.Errorf("survey: sheet index %d out of range (file has %d sheets)", opts.SheetIndex, len(f.Sheets))
	}
	return f.Sheets[opts.SheetIndex], nil
}
