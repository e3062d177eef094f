package sqlite

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"framecheck/internal/models"
	"framecheck/internal/repository"

	"github.com/google/uuid"
)

// ReportRepository implements repository.ReportRepository for SQLite.
type ReportRepository struct {
	db *DB
}

// NewReportRepository creates a new SQLite report repository.
func NewReportRepository(db *DB) *ReportRepository {
	return &ReportRepository{db: db}
}

// Save stores a verification run with all its file results in one
// transaction. A run id is generated when report.RunID is empty and written
// back to the report.
func (r *ReportRepository) Save(report *models.BatchReport) (string, error) {
	r.db.Lock()
	defer r.db.Unlock()

	if report.RunID == "" {
		report.RunID = uuid.NewString()
	}
	if report.CreatedAt.IsZero() {
		report.CreatedAt = time.Now().UTC()
	}

	tx, err := r.db.Conn().Begin()
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`
		INSERT INTO verification_runs (id, directory, created_at, correct, incorrect, total)
		VALUES (?, ?, ?, ?, ?, ?)
	`, report.RunID, report.Directory, report.CreatedAt.UTC(), report.Correct, report.Incorrect, report.Total); err != nil {
		return "", fmt.Errorf("failed to insert run: %w", err)
	}

	fileStmt, err := tx.Prepare(`INSERT INTO file_results (run_id, filename, correct, counts) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return "", fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer fileStmt.Close()

	discStmt, err := tx.Prepare(`
		INSERT INTO discrepancies (file_id, kind, class_id, label, required, found)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return "", fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer discStmt.Close()

	for _, f := range report.Files {
		counts, err := json.Marshal(f.Counts)
		if err != nil {
			return "", fmt.Errorf("failed to encode counts of %s: %w", f.Filename, err)
		}
		result, err := fileStmt.Exec(report.RunID, f.Filename, f.Correct, string(counts))
		if err != nil {
			return "", fmt.Errorf("failed to insert file result: %w", err)
		}
		fileID, err := result.LastInsertId()
		if err != nil {
			return "", err
		}

		for _, d := range f.Missing {
			if _, err := discStmt.Exec(fileID, "missing", d.ClassID, d.Label, d.Required, d.Found); err != nil {
				return "", fmt.Errorf("failed to insert discrepancy: %w", err)
			}
		}
		for _, d := range f.Excess {
			if _, err := discStmt.Exec(fileID, "excess", d.ClassID, d.Label, d.Required, d.Found); err != nil {
				return "", fmt.Errorf("failed to insert discrepancy: %w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit run: %w", err)
	}
	return report.RunID, nil
}

// ListRuns returns the most recent runs first. limit <= 0 returns all runs.
func (r *ReportRepository) ListRuns(limit int) ([]models.RunSummary, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	if limit <= 0 {
		limit = -1
	}
	rows, err := r.db.Conn().Query(`
		SELECT id, directory, created_at, correct, incorrect, total
		FROM verification_runs ORDER BY created_at DESC, rowid DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	runs := []models.RunSummary{}
	for rows.Next() {
		var run models.RunSummary
		if err := rows.Scan(&run.ID, &run.Directory, &run.CreatedAt, &run.Correct, &run.Incorrect, &run.Total); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// GetRun retrieves a single run summary.
func (r *ReportRepository) GetRun(id string) (*models.RunSummary, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	var run models.RunSummary
	err := r.db.Conn().QueryRow(`
		SELECT id, directory, created_at, correct, incorrect, total
		FROM verification_runs WHERE id = ?
	`, id).Scan(&run.ID, &run.Directory, &run.CreatedAt, &run.Correct, &run.Incorrect, &run.Total)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return &run, nil
}

// GetFileResults returns the file results of a run in the order they were
// verified, with their discrepancies.
func (r *ReportRepository) GetFileResults(runID string) ([]models.FileResult, error) {
	if _, err := r.GetRun(runID); err != nil {
		return nil, err
	}

	r.db.RLock()
	defer r.db.RUnlock()

	rows, err := r.db.Conn().Query(`
		SELECT id, filename, correct, counts FROM file_results WHERE run_id = ? ORDER BY id
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query file results: %w", err)
	}

	var ids []int64
	results := []models.FileResult{}
	for rows.Next() {
		var (
			id     int64
			f      models.FileResult
			counts string
		)
		if err := rows.Scan(&id, &f.Filename, &f.Correct, &counts); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan file result: %w", err)
		}
		if err := json.Unmarshal([]byte(counts), &f.Counts); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to decode counts of %s: %w", f.Filename, err)
		}
		ids = append(ids, id)
		results = append(results, f)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i, id := range ids {
		if err := r.loadDiscrepancies(id, &results[i]); err != nil {
			return nil, err
		}
	}
	return results, nil
}

func (r *ReportRepository) loadDiscrepancies(fileID int64, f *models.FileResult) error {
	rows, err := r.db.Conn().Query(`
		SELECT kind, class_id, label, required, found FROM discrepancies WHERE file_id = ? ORDER BY id
	`, fileID)
	if err != nil {
		return fmt.Errorf("failed to query discrepancies: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			kind string
			d    models.Discrepancy
		)
		if err := rows.Scan(&kind, &d.ClassID, &d.Label, &d.Required, &d.Found); err != nil {
			return fmt.Errorf("failed to scan discrepancy: %w", err)
		}
		if kind == "missing" {
			f.Missing = append(f.Missing, d)
		} else {
			f.Excess = append(f.Excess, d)
		}
	}
	return rows.Err()
}

// DeleteRun removes a run; its file results and discrepancies cascade.
func (r *ReportRepository) DeleteRun(id string) error {
	r.db.Lock()
	defer r.db.Unlock()

	result, err := r.db.Conn().Exec(`DELETE FROM verification_runs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return repository.ErrRunNotFound
	}
	return nil
}

var _ repository.ReportRepository = (*ReportRepository)(nil)
