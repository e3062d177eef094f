// Package verify compares the detections stored in record files against
// expected per-class counts.
package verify

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"framecheck/internal/catalog"
	"framecheck/internal/logger"
	"framecheck/internal/metrics"
	"framecheck/internal/models"

	"golang.org/x/sync/errgroup"
)

// MalformedRecordError is returned in strict mode for a line whose first
// token is not a class id.
type MalformedRecordError struct {
	File string
	Line int
	Text string
}

func (e *MalformedRecordError) Error() string {
	return fmt.Sprintf("%s:%d: malformed record %q", e.File, e.Line, e.Text)
}

// Options control how record files are found and parsed.
type Options struct {
	Extension string // record file extension, ".txt"
	Workers   int    // files verified concurrently
	Strict    bool   // fail on malformed lines instead of skipping them
}

// Verifier runs PARSE -> COUNT -> COMPARE -> CLASSIFY over record files.
type Verifier struct {
	catalog *catalog.Catalog
	opts    Options
	metrics *metrics.Metrics
	logger  *logger.Logger
}

// NewVerifier creates a verifier. m may be nil.
func NewVerifier(cat *catalog.Catalog, opts Options, m *metrics.Metrics, logger *logger.Logger) *Verifier {
	if opts.Extension == "" {
		opts.Extension = ".txt"
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	return &Verifier{
		catalog: cat,
		opts:    opts,
		metrics: m,
		logger:  logger,
	}
}

// Verify checks every record file in dir against expectedByLabel. Unknown
// labels fail the whole run before any file is read. The report carries no
// run id or timestamp; both are assigned when the run is stored, so two runs
// over the same files give equal reports.
func (v *Verifier) Verify(ctx context.Context, dir string, expectedByLabel map[string]int) (*models.BatchReport, error) {
	expected, err := v.catalog.MapLabelsToIds(expectedByLabel)
	if err != nil {
		return nil, err
	}

	files, err := ListRecordFiles(dir, v.opts.Extension)
	if err != nil {
		return nil, err
	}
	v.logger.Info("Verifying %d record file(s) in %s", len(files), dir)

	results := make([]models.FileResult, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(v.opts.Workers)
	for i, name := range files {
		i, name := i, name
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			result, err := v.VerifyFile(filepath.Join(dir, name), expected)
			if err != nil {
				return err
			}
			results[i] = result
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	report := &models.BatchReport{
		Directory: dir,
		Files:     results,
		Total:     len(results),
	}
	for _, r := range results {
		if r.Correct {
			report.Correct++
		} else {
			report.Incorrect++
		}
	}

	v.metrics.RunCompleted()
	v.logger.Info("Verification finished: %d correct, %d incorrect, %d total", report.Correct, report.Incorrect, report.Total)
	return report, nil
}

// VerifyFile verifies a single record file against id keyed expected counts.
func (v *Verifier) VerifyFile(path string, expected map[int]int) (models.FileResult, error) {
	counts, err := v.CountFile(path, expected)
	if err != nil {
		return models.FileResult{}, err
	}

	result := v.Compare(filepath.Base(path), counts, expected)
	v.metrics.FileVerified(result.Correct, labelsOf(result.Missing), labelsOf(result.Excess))
	if !result.Correct {
		v.logger.Debug("%s: %s", result.Filename, result.Details())
	}
	return result, nil
}

// CountFile parses a record file and counts the records of each expected class.
// Records of classes outside expected are parsed but not counted.
func (v *Verifier) CountFile(path string, expected map[int]int) (map[int]int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open record file: %w", err)
	}
	defer f.Close()

	counts := make(map[int]int, len(expected))
	for id := range expected {
		counts[id] = 0
	}

	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()

		id, ok := ParseClassID(line)
		if !ok {
			if v.opts.Strict && strings.TrimSpace(line) != "" {
				return nil, &MalformedRecordError{File: filepath.Base(path), Line: lineNo, Text: line}
			}
			continue
		}
		if _, wanted := counts[id]; wanted {
			counts[id]++
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return counts, nil
}

// Compare classifies observed counts against expected counts. A required
// count of zero still takes part: any observation of that class is excess.
func (v *Verifier) Compare(filename string, counts, expected map[int]int) models.FileResult {
	ids := make([]int, 0, len(expected))
	for id := range expected {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	result := models.FileResult{
		Filename: filename,
		Counts:   make(map[int]int, len(expected)),
	}
	for _, id := range ids {
		required, found := expected[id], counts[id]
		result.Counts[id] = found

		d := models.Discrepancy{
			ClassID:  id,
			Label:    v.catalog.LabelOrID(id),
			Required: required,
			Found:    found,
		}
		switch {
		case found < required:
			result.Missing = append(result.Missing, d)
		case found > required:
			result.Excess = append(result.Excess, d)
		}
	}
	result.Correct = len(result.Missing) == 0 && len(result.Excess) == 0
	return result
}

// UnknownID is the id ParseClassID reports for a record whose class id is too
// large for an int. No catalog holds it, so such records are never counted.
const UnknownID = -1

// ParseClassID returns the class id of a record line: the first whitespace
// delimited token, when it is a non-negative base-10 integer.
func ParseClassID(line string) (int, bool) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return 0, false
	}
	token := fields[0]
	for i := 0; i < len(token); i++ {
		if token[i] < '0' || token[i] > '9' {
			return 0, false
		}
	}
	id, err := strconv.Atoi(token)
	if err != nil {
		// only digits, so the one possible failure is a range error
		return UnknownID, true
	}
	return id, true
}

// ListRecordFiles returns the names of the regular files in dir with the given
// extension, sorted lexicographically.
func ListRecordFiles(dir, ext string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read record directory: %w", err)
	}

	var names []string
	for _, e := range entries {
		if !e.Type().IsRegular() || !strings.HasSuffix(e.Name(), ext) {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

func labelsOf(ds []models.Discrepancy) []string {
	if len(ds) == 0 {
		return nil
	}
	out := make([]string, len(ds))
	for i, d := range ds {
		out[i] = d.Label
	}
	return out
}
