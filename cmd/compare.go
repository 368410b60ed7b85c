package main

import (
	"fmt"
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/night-light/internal/config"
	"github.com/sells-group/night-light/internal/store"
	"github.com/sells-group/night-light/internal/survey"
)

var compareCmd = &cobra.Command{
	Use:   "compare",
	Short: "Compare stored contrast labels with a field survey",
	Long:  "Joins a night survey (CSV or XLSX) to the stored results by crosswalk and center id, marks whether each label agrees in sign with the perceived contrast, and writes crosswalk_compare.csv.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate(config.ModeCompare); err != nil {
			return err
		}

		path, _ := cmd.Flags().GetString("survey")
		sheet, _ := cmd.Flags().GetString("sheet")
		outDir, _ := cmd.Flags().GetString("out")
		if outDir == "" {
			outDir = cfg.Output.Dir
		}

		observations, err := survey.ReadObservations(path, survey.ReadOptions{SheetName: sheet})
		if err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		results, err := st.ListResults(ctx, store.ResultFilter{})
		if err != nil {
			return eris.Wrap(err, "compare: list results")
		}
		if len(results) == 0 {
			return eris.New("compare: no stored results, run the pipeline first")
		}

		rows, summary := survey.Compare(results, observations)
		file, err := survey.Write(outDir, rows)
		if err != nil {
			return err
		}

		formatCompareSummary(os.Stdout, summary, file)
		return nil
	},
}

// formatCompareSummary writes match and agreement counts to out.
func formatCompareSummary(out io.Writer, s survey.Summary, file string) {
	_, _ = fmt.Fprintf(out, "Observations: %d\n", s.Observations)
	_, _ = fmt.Fprintf(out, "Matched:      %d\n", s.Matched)
	_, _ = fmt.Fprintf(out, "Rated:        %d\n", s.Rated)
	_, _ = fmt.Fprintf(out, "Aligned:      %d (%.1f%%)\n", s.Aligned, s.AgreementRate()*100)
	if len(s.Unmatched) > 0 {
		_, _ = fmt.Fprintf(out, "Unmatched:    %v\n", s.Unmatched)
	}
	_, _ = fmt.Fprintf(out, "Wrote %s\n", file)
}

func init() {
	compareCmd.Flags().String("survey", "", "survey file (.csv or .xlsx)")
	compareCmd.Flags().String("sheet", "", "worksheet name for .xlsx surveys (default first sheet)")
	compareCmd.Flags().String("out", "", "output directory (default from config)")
	_ = compareCmd.MarkFlagRequired("survey")
	rootCmd.AddCommand(compareCmd)
}
