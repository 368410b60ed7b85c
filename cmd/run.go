package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/night-light/internal/config"
	"github.com/sells-group/night-light/internal/contrast"
	"github.com/sells-group/night-light/internal/export"
	"github.com/sells-group/night-light/internal/loader"
	"github.com/sells-group/night-light/internal/model"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the contrast pipeline over the configured inputs",
	Long:  "Loads crosswalks, streets and streetlights, runs all seven stages, stores the derived tables and writes the export files.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		applyRunFlags(cmd, cfg)
		if err := cfg.Validate(config.ModeRun); err != nil {
			return err
		}

		in, reports, err := loader.LoadAll(ctx, cfg.InputPaths(), cfg.LoaderOptions())
		if err != nil {
			return err
		}

		var sink contrast.Sink
		noStore, _ := cmd.Flags().GetBool("no-store")
		if !noStore {
			st, err := initStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close() //nolint:errcheck
			sink = st
		}

		out, err := contrast.New(cfg.PipelineParams(), sink).Run(ctx, in)
		if err != nil {
			var stageErr *contrast.StageError
			if errors.As(err, &stageErr) {
				fmt.Fprintf(os.Stderr, "stage %s failed for crosswalks %v\n", stageErr.Stage, stageErr.IDs)
			}
			return eris.Wrap(err, "pipeline run")
		}

		exp, err := export.New(cfg.Output.Dir, cfg.Output.Formats)
		if err != nil {
			return err
		}
		files, err := exp.Export(ctx, export.NewTables(out.Results, out.Sides.Classifications, out.Links))
		if err != nil {
			return eris.Wrap(err, "export results")
		}

		zap.L().Info("run complete",
			zap.String("run_id", out.RunID),
			zap.Int("centers", len(out.Results)),
			zap.Int("files", len(files)),
		)

		formatRunSummary(os.Stdout, reports, out, files)
		return nil
	},
}

// applyRunFlags copies explicitly set flags over the loaded configuration.
func applyRunFlags(cmd *cobra.Command, c *config.Config) {
	f := cmd.Flags()
	if f.Changed("radius") {
		c.Pipeline.SearchRadiusM, _ = f.GetFloat64("radius")
	}
	if f.Changed("threshold") {
		c.Pipeline.ContrastThreshold, _ = f.GetFloat64("threshold")
	}
	if f.Changed("weighted") {
		c.Pipeline.AngleWeighted, _ = f.GetBool("weighted")
	}
	if f.Changed("oneway-direction") {
		c.Pipeline.OnewayDirection, _ = f.GetString("oneway-direction")
	}
	if f.Changed("crosswalks") {
		c.Input.Crosswalks, _ = f.GetString("crosswalks")
	}
	if f.Changed("streets") {
		c.Input.Streets, _ = f.GetString("streets")
	}
	if f.Changed("streetlights") {
		c.Input.Streetlights, _ = f.GetString("streetlights")
	}
	if f.Changed("out") {
		c.Output.Dir, _ = f.GetString("out")
	}
	if f.Changed("formats") {
		c.Output.Formats, _ = f.GetStringSlice("formats")
	}
}

// formatRunSummary writes load counts, per-stage counts with skipped
// crosswalk ids, and the written files to out.
func formatRunSummary(out io.Writer, reports []loader.Report, res *contrast.Output, files []string) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)

	_, _ = fmt.Fprintln(w, "DATASET\tRECORDS\tLOADED\tSKIPPED")
	for _, r := range reports {
		_, _ = fmt.Fprintf(w, "%s\t%d\t%d\t%d\n", r.Dataset, r.Records, r.Loaded, len(r.Skipped))
	}
	_, _ = fmt.Fprintln(w)

	_, _ = fmt.Fprintf(w, "Run:\t%s\n", res.RunID)
	formatStages(w, res.Stages)
	_ = w.Flush()

	_, _ = fmt.Fprintf(out, "\nCenters: %d  classified lights: %d\n", len(res.Results), len(res.Sides.Classifications))
	counts := labelCounts(res)
	for _, label := range contrastLabels {
		if n := counts[label]; n > 0 {
			_, _ = fmt.Fprintf(out, "  %-26s %d\n", label, n)
		}
	}

	if len(files) > 0 {
		_, _ = fmt.Fprintln(out, "\nWrote:")
		for _, f := range files {
			_, _ = fmt.Fprintf(out, "  %s\n", f)
		}
	}
}

// contrastLabels orders the label counts in summaries.
var contrastLabels = []string{
	model.ContrastStrongPositive,
	model.ContrastPositive,
	model.ContrastWeakPositive,
	model.ContrastNone,
	model.ContrastWeakNegative,
	model.ContrastNegative,
	model.ContrastStrongNegative,
}

func labelCounts(res *contrast.Output) map[string]int {
	counts := make(map[string]int)
	for _, r := range res.Results {
		counts[r.Contrast]++
	}
	return counts
}

func joinIDs(ids []int64) string {
	s := make([]string, len(ids))
	for i, id := range ids {
		s[i] = fmt.Sprint(id)
	}
	return strings.Join(s, ",")
}

func init() {
	registerRunFlags(runCmd)
	rootCmd.AddCommand(runCmd)
}

func registerRunFlags(cmd *cobra.Command) {
	cmd.Flags().Float64("radius", 0, "streetlight search radius in meters (default from config)")
	cmd.Flags().Float64("threshold", 0, "contrast threshold (default from config)")
	cmd.Flags().Bool("weighted", false, "weight light contributions by crossing angle")
	cmd.Flags().String("oneway-direction", "", "one-way direction policy: distance or cross")
	cmd.Flags().Bool("no-store", false, "skip writing derived tables to the store")
	cmd.Flags().String("crosswalks", "", "crosswalk polygons (GeoJSON, shapefile or WKT CSV)")
	cmd.Flags().String("streets", "", "street centerlines")
	cmd.Flags().String("streetlights", "", "streetlight points")
	cmd.Flags().String("out", "", "output directory (default from config)")
	cmd.Flags().StringSlice("formats", nil, "export formats: csv, parquet, xlsx, geojson")
}
