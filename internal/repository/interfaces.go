package repository

import (
	"errors"

	"framecheck/internal/models"
)

// ErrRunNotFound is returned when a verification run id is unknown.
var ErrRunNotFound = errors.New("verification run not found")

// ReportRepository stores verification runs and their per-file results.
type ReportRepository interface {
	// Create operations
	Save(report *models.BatchReport) (string, error)

	// Read operations
	ListRuns(limit int) ([]models.RunSummary, error)
	GetRun(id string) (*models.RunSummary, error)
	GetFileResults(runID string) ([]models.FileResult, error)

	// Delete operations
	DeleteRun(id string) error
}
