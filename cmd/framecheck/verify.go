package main

import (
	"fmt"
	"path/filepath"

	"framecheck/internal/services/storage"
	"framecheck/internal/services/verify"

	"github.com/spf13/cobra"
)

func verifyCommand() *cobra.Command {
	var (
		expectFile      string
		expect          string
		format          string
		save            bool
		failOnIncorrect bool
	)

	cmd := &cobra.Command{
		Use:   "verify [DIR]",
		Short: "Check record files against expected per-class counts",
		Long: `Verify reads every record file in DIR (default <output>/labels) and compares
the number of detections of each expected class with the required count.

Expected counts come from a YAML or JSON file (--expected) or inline
(--expect K=2,E=1). Classes not listed are ignored; a class listed with 0
must not appear at all.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			expected, err := loadExpected(expectFile, expect)
			if err != nil {
				return err
			}

			env, err := setup(cmd)
			if err != nil {
				return err
			}
			defer env.Close()

			dir := filepath.Join(env.cfg.OutputDirectory, storage.LabelsDir)
			if len(args) == 1 {
				dir = args[0]
			}

			report, err := env.app.Verify(cmd.Context(), dir, expected, save)
			if err != nil {
				return err
			}

			switch format {
			case "json":
				err = verify.RenderJSON(cmd.OutOrStdout(), report)
			default:
				err = verify.Render(cmd.OutOrStdout(), report)
			}
			if err != nil {
				return err
			}

			if failOnIncorrect && report.Incorrect > 0 {
				return fmt.Errorf("%d of %d file(s) incorrect", report.Incorrect, report.Total)
			}
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&expectFile, "expected", "e", "", "YAML or JSON file mapping labels to required counts")
	flags.StringVar(&expect, "expect", "", "Inline expected counts, e.g. K=2,E=1,2=1")
	flags.StringVarP(&format, "format", "f", "text", "Output format: text or json")
	flags.BoolVar(&save, "save", true, "Store the run in the report history")
	flags.BoolVar(&failOnIncorrect, "fail-on-incorrect", false, "Exit with an error when any file is incorrect")
	flags.StringP("output", "o", "", "Output directory of the processing run (default ./results)")
	flags.Int("workers", 0, "Files verified in parallel (default 4)")
	flags.Bool("strict", false, "Fail on malformed record lines instead of skipping them")
	return cmd
}

func loadExpected(file, inline string) (map[string]int, error) {
	switch {
	case file != "" && inline != "":
		return nil, fmt.Errorf("use either --expected or --expect, not both")
	case file != "":
		return verify.LoadExpected(file)
	case inline != "":
		return verify.ParseExpected(inline)
	default:
		return nil, fmt.Errorf("expected counts are required (--expected FILE or --expect K=2,...)")
	}
}
