package verify

import (
	"encoding/json"
	"fmt"
	"io"

	"framecheck/internal/models"
)

// Render writes the human readable report: the list of problem files (or a
// confirmation that all files are correct) followed by the statistics.
func Render(w io.Writer, report *models.BatchReport) error {
	problems := report.Problems()

	if len(problems) == 0 {
		if _, err := fmt.Fprintln(w, "All files correct"); err != nil {
			return err
		}
	} else {
		if _, err := fmt.Fprintln(w, "Files with detection problems:"); err != nil {
			return err
		}
		for _, p := range problems {
			if _, err := fmt.Fprintf(w, "%s: %s\n", p.Filename, p.Details()); err != nil {
				return err
			}
		}
	}

	_, err := fmt.Fprintf(w, "\nStatistics:\nCorrect: %d\nIncorrect: %d\nTotal: %d\n",
		report.Correct, report.Incorrect, report.Total)
	return err
}

// RenderJSON writes the report as indented JSON.
func RenderJSON(w io.Writer, report *models.BatchReport) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}
