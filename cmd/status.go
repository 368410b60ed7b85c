package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/night-light/internal/config"
	"github.com/sells-group/night-light/internal/model"
	"github.com/sells-group/night-light/internal/store"
)

var statusCmd = &cobra.Command{
	Use:   "status [run-id]",
	Short: "Show the latest run, a given run, or the run history",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate(config.ModeStatus); err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		list, _ := cmd.Flags().GetBool("list")
		if list {
			status, _ := cmd.Flags().GetString("status")
			limit, _ := cmd.Flags().GetInt("limit")
			runs, err := st.ListRuns(ctx, store.RunFilter{Status: model.RunStatus(status), Limit: limit})
			if err != nil {
				return eris.Wrap(err, "status list")
			}
			if len(runs) == 0 {
				fmt.Fprintln(os.Stderr, "No runs found.")
				return nil
			}
			formatRunsList(os.Stdout, runs)
			return nil
		}

		var run *model.Run
		if len(args) == 1 {
			run, err = st.GetRun(ctx, args[0])
		} else {
			run, err = st.LatestRun(ctx)
		}
		if eris.Is(err, store.ErrNotFound) {
			fmt.Fprintln(os.Stderr, "No runs found.")
			return nil
		}
		if err != nil {
			return eris.Wrap(err, "status")
		}

		asJSON, _ := cmd.Flags().GetBool("json")
		if asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(run)
		}
		formatRun(os.Stdout, run)
		return nil
	},
}

func init() {
	statusCmd.Flags().Bool("list", false, "list recent runs instead of showing one")
	statusCmd.Flags().String("status", "", "with --list, filter by run status (running, complete, failed)")
	statusCmd.Flags().Int("limit", 20, "with --list, max number of runs to display")
	statusCmd.Flags().Bool("json", false, "print the run as JSON")
	rootCmd.AddCommand(statusCmd)
}

// formatRun writes one run with its parameters and stages to out.
func formatRun(out io.Writer, r *model.Run) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Run:\t%s\n", r.ID)
	_, _ = fmt.Fprintf(w, "Status:\t%s\n", r.Status)
	_, _ = fmt.Fprintf(w, "Created:\t%s\n", r.CreatedAt.Format("2006-01-02 15:04:05"))
	_, _ = fmt.Fprintf(w, "Duration:\t%s\n", r.UpdatedAt.Sub(r.CreatedAt).Round(time.Millisecond))
	_, _ = fmt.Fprintf(w, "Inputs:\t%d crosswalks, %d streets, %d streetlights\n",
		r.Params.Crosswalks, r.Params.StreetSegments, r.Params.Streetlights)
	_, _ = fmt.Fprintf(w, "Radius:\t%gm\n", r.Params.SearchRadiusM)
	_, _ = fmt.Fprintf(w, "Threshold:\t%g\n", r.Params.ContrastThreshold)
	if r.Params.AngleWeighted {
		_, _ = fmt.Fprintln(w, "Weighted:\tyes")
	}
	if r.Error != "" {
		_, _ = fmt.Fprintf(w, "Error:\t%s\n", r.Error)
	}
	_, _ = fmt.Fprintln(w)
	formatStages(w, r.Stages)
	_ = w.Flush()
}

// formatStages writes one line per stage. The caller owns and flushes w.
func formatStages(w io.Writer, stages []model.StageResult) {
	_, _ = fmt.Fprintln(w, "STAGE\tSTATUS\tIN\tOUT\tSKIPPED\tDURATION\tSKIPPED_IDS")
	_, _ = fmt.Fprintln(w, "-----\t------\t--\t---\t-------\t--------\t-----------")
	for _, s := range stages {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t%dms\t%s\n",
			s.Name,
			s.Status,
			s.Input,
			s.Output,
			len(s.Skipped),
			s.Duration,
			joinIDs(s.SkippedIDs()),
		)
	}
}

// formatRunsList writes a tabular list of runs to w.
func formatRunsList(out io.Writer, runs []model.Run) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tSTATUS\tCROSSWALKS\tRADIUS\tCREATED\tDURATION")
	_, _ = fmt.Fprintln(w, "--\t------\t----------\t------\t-------\t--------")

	for _, r := range runs {
		dur := r.UpdatedAt.Sub(r.CreatedAt).Round(time.Second).String()

		_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%gm\t%s\t%s\n",
			truncateID(r.ID),
			r.Status,
			r.Params.Crosswalks,
			r.Params.SearchRadiusM,
			r.CreatedAt.Format("2006-01-02 15:04"),
			dur,
		)
	}
	_ = w.Flush()
}

// truncateID returns the first 8 characters of a UUID for compact display.
func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
