package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"framecheck/internal/models"
	"framecheck/internal/services/verify"

	"github.com/spf13/cobra"
)

func historyCommand() *cobra.Command {
	var (
		limit  int
		format string
		remove bool
	)

	cmd := &cobra.Command{
		Use:   "history [RUN-ID]",
		Short: "List stored verification runs or show one of them",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := setup(cmd)
			if err != nil {
				return err
			}
			defer env.Close()

			repo, err := env.app.Reports()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if remove {
				if len(args) != 1 {
					return fmt.Errorf("--delete needs a run id")
				}
				if err := repo.DeleteRun(args[0]); err != nil {
					return err
				}
				fmt.Fprintf(out, "Deleted run %s\n", args[0])
				return nil
			}

			if len(args) == 1 {
				run, err := repo.GetRun(args[0])
				if err != nil {
					return err
				}
				files, err := repo.GetFileResults(run.ID)
				if err != nil {
					return err
				}
				report := &models.BatchReport{
					RunID:     run.ID,
					Directory: run.Directory,
					CreatedAt: run.CreatedAt,
					Files:     files,
					Correct:   run.Correct,
					Incorrect: run.Incorrect,
					Total:     run.Total,
				}
				if format == "json" {
					return verify.RenderJSON(out, report)
				}
				fmt.Fprintf(out, "Run %s (%s, %s)\n\n", run.ID, run.Directory, run.CreatedAt.Local().Format(time.DateTime))
				return verify.Render(out, report)
			}

			runs, err := repo.ListRuns(limit)
			if err != nil {
				return err
			}
			if format == "json" {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(runs)
			}
			if len(runs) == 0 {
				fmt.Fprintln(out, "No verification runs stored")
				return nil
			}

			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tCREATED\tDIRECTORY\tCORRECT\tINCORRECT\tTOTAL")
			for _, r := range runs {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%d\n",
					r.ID, r.CreatedAt.Local().Format(time.DateTime), r.Directory, r.Correct, r.Incorrect, r.Total)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of runs to list, 0 for all")
	cmd.Flags().StringVarP(&format, "format", "f", "text", "Output format: text or json")
	cmd.Flags().BoolVar(&remove, "delete", false, "Delete the given run")
	return cmd
}
