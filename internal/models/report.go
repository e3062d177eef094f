package models

import (
	"fmt"
	"strings"
	"time"
)

// Discrepancy describes one expected class whose observed count differs from
// the required count.
type Discrepancy struct {
	ClassID  int    `json:"class_id"`
	Label    string `json:"label"`
	Required int    `json:"required"`
	Found    int    `json:"found"`
}

func (d Discrepancy) String() string {
	return fmt.Sprintf("%s (required: %d, found: %d)", d.Label, d.Required, d.Found)
}

// FileResult is the verification outcome of one record file.
type FileResult struct {
	Filename string        `json:"filename"`
	Counts   map[int]int   `json:"counts"` // observed count per expected class id
	Missing  []Discrepancy `json:"missing,omitempty"`
	Excess   []Discrepancy `json:"excess,omitempty"`
	Correct  bool          `json:"correct"`
}

// Details renders the discrepancies, e.g.
// "Missing -> K (required: 2, found: 1) | Excess -> car (required: 0, found: 2)".
// It is empty for a correct file.
func (r FileResult) Details() string {
	var parts []string
	if len(r.Missing) > 0 {
		parts = append(parts, "Missing -> "+joinDiscrepancies(r.Missing))
	}
	if len(r.Excess) > 0 {
		parts = append(parts, "Excess -> "+joinDiscrepancies(r.Excess))
	}
	return strings.Join(parts, " | ")
}

func joinDiscrepancies(ds []Discrepancy) string {
	items := make([]string, len(ds))
	for i, d := range ds {
		items[i] = d.String()
	}
	return strings.Join(items, ", ")
}

// BatchReport aggregates the results of one verification run.
type BatchReport struct {
	RunID     string       `json:"run_id,omitempty"`
	Directory string       `json:"directory"`
	CreatedAt time.Time    `json:"created_at"`
	Files     []FileResult `json:"files"`
	Correct   int          `json:"correct"`
	Incorrect int          `json:"incorrect"`
	Total     int          `json:"total"`
}

// Problems returns the incorrect files in report order.
func (b *BatchReport) Problems() []FileResult {
	var out []FileResult
	for _, f := range b.Files {
		if !f.Correct {
			out = append(out, f)
		}
	}
	return out
}

// RunSummary is a stored verification run without its per-file results.
type RunSummary struct {
	ID        string    `json:"id"`
	Directory string    `json:"directory"`
	CreatedAt time.Time `json:"created_at"`
	Correct   int       `json:"correct"`
	Incorrect int       `json:"incorrect"`
	Total     int       `json:"total"`
}
