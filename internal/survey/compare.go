package survey

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/night-light/internal/export"
	"github.com/sells-group/night-light/internal/model"
)

// CompareFile is the base name of the comparison table.
const CompareFile = "crosswalk_compare"

// Row is one surveyed center joined to its computed heuristics.
type Row struct {
	CrosswalkID         int64    `csv:"crosswalk_id"`
	CenterID            string   `csv:"center_id"`
	LightHeuristic      float64  `csv:"light_heuristic"`
	PerceivedVisibility *float64 `csv:"perceived_visibility,omitempty"`
	LuxTowardCar        *float64 `csv:"lux_toward_car,omitempty"`
	ToHeuristic         float64  `csv:"to_heuristic"`
	LuxAwayCar          *float64 `csv:"lux_away_car,omitempty"`
	FromHeuristic       float64  `csv:"from_heuristic"`
	ContrastHeuristic   string   `csv:"contrast_heuristic"`
	PerceivedContrast   *float64 `csv:"perceived_contrast,omitempty"`
	NetLux              *float64 `csv:"net_lux,omitempty"`
	ContrastAlignment   bool     `csv:"contrast_alignment"`
}

// Summary counts how well the heuristic agrees with the survey.
type Summary struct {
	Observations int
	Matched      int
	Rated        int // matched rows with a perceived contrast
	Aligned      int
	Unmatched    []string
}

// AgreementRate is Aligned over Rated, or 0 when nothing was rated.
func (s Summary) AgreementRate() float64 {
	if s.Rated == 0 {
		return 0
	}
	return float64(s.Aligned) / float64(s.Rated)
}

// Compare joins observations to results on (crosswalk id, center id).
// Observations without a computed result are listed in Summary.Unmatched.
func Compare(results []model.ContrastResult, observations []Observation) ([]Row, Summary) {
	index := make(map[string]model.ContrastResult, len(results))
	for _, r := range results {
		index[key(r.CrosswalkID, r.CenterID)] = r
	}

	sum := Summary{Observations: len(observations)}
	rows := make([]Row, 0, len(observations))
	for _, o := range observations {
		k := key(o.CrosswalkID, o.CenterID)
		r, ok := index[k]
		if !ok {
			sum.Unmatched = append(sum.Unmatched, k)
			continue
		}
		sum.Matched++

		row := Row{
			CrosswalkID:         o.CrosswalkID,
			CenterID:            r.CenterID,
			LightHeuristic:      r.LightHeuristic,
			PerceivedVisibility: o.PerceivedVisibility,
			LuxTowardCar:        o.LuxTowardCar,
			ToHeuristic:         r.ToHeuristic,
			LuxAwayCar:          o.LuxAwayCar,
			FromHeuristic:       r.FromHeuristic,
			ContrastHeuristic:   r.Contrast,
			PerceivedContrast:   o.PerceivedContrast,
			NetLux:              o.NetLux,
		}
		if o.PerceivedContrast != nil {
			sum.Rated++
			row.ContrastAlignment = Aligned(r.Contrast, *o.PerceivedContrast)
			if row.ContrastAlignment {
				sum.Aligned++
			}
		}
		rows = append(rows, row)
	}

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].CrosswalkID != rows[j].CrosswalkID {
			return rows[i].CrosswalkID < rows[j].CrosswalkID
		}
		return rows[i].CenterID < rows[j].CenterID
	})
	return rows, sum
}

// Aligned reports whether a contrast label agrees in sign with a perceived
// contrast score. Weak and strong labels count as their base sign.
func Aligned(label string, perceived float64) bool {
	switch Sign(label) {
	case 1:
		return perceived > 0
	case -1:
		return perceived < 0
	case 0:
		return perceived == 0
	}
	return false
}

// Sign maps a contrast label to 1, -1 or 0. Unknown labels return 2.
func Sign(label string) int {
	switch label {
	case model.ContrastPositive, model.ContrastWeakPositive, model.ContrastStrongPositive:
		return 1
	case model.ContrastNegative, model.ContrastWeakNegative, model.ContrastStrongNegative:
		return -1
	case model.ContrastNone:
		return 0
	}
	return 2
}

// Write stores rows as crosswalk_compare.csv in dir.
func Write(dir string, rows []Row) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", eris.Wrapf(err, "survey: create %s", dir)
	}
	path := filepath.Join(dir, CompareFile+".csv")
	if err := export.WriteCSV(path, rows); err != nil {
		return "", err
	}

	zap.L().With(zap.String("component", "survey")).Info("survey: comparison written",
		zap.String("path", path),
		zap.Int("rows", len(rows)),
	)
	return path, nil
}

func key(crosswalkID int64, centerID string) string {
	return fmt.Sprintf("%d%s", crosswalkID, strings.ToUpper(strings.TrimSpace(centerID)))
}
