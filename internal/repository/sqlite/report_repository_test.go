package sqlite

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"framecheck/internal/models"
	"framecheck/internal/repository"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(filepath.Join(t.TempDir(), "data", "test.db"))
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func sampleReport(dir string, created time.Time) *models.BatchReport {
	return &models.BatchReport{
		Directory: dir,
		CreatedAt: created,
		Files: []models.FileResult{
			{Filename: "frame_000000.txt", Counts: map[int]int{12: 2, 6: 1}, Correct: true},
			{
				Filename: "frame_000001.txt",
				Counts:   map[int]int{12: 1, 6: 1, 0: 2},
				Missing:  []models.Discrepancy{{ClassID: 12, Label: "K", Required: 2, Found: 1}},
				Excess:   []models.Discrepancy{{ClassID: 0, Label: "car", Required: 0, Found: 2}},
			},
		},
		Correct:   1,
		Incorrect: 1,
		Total:     2,
	}
}

func TestDatabase_CreatesFile(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "dir", "test.db")
	db, err := New(dbPath)
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}
	defer db.Close()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("Database file should exist")
	}
}

func TestReportRepository_SaveAndGet(t *testing.T) {
	repo := NewReportRepository(newTestDB(t))
	created := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	report := sampleReport("results/labels", created)
	id, err := repo.Save(report)
	if err != nil {
		t.Fatalf("Failed to save report: %v", err)
	}
	if id == "" || report.RunID != id {
		t.Fatalf("Expected run id to be set on the report, got %q / %q", id, report.RunID)
	}

	run, err := repo.GetRun(id)
	if err != nil {
		t.Fatalf("Failed to get run: %v", err)
	}
	if run.Directory != "results/labels" || run.Correct != 1 || run.Incorrect != 1 || run.Total != 2 {
		t.Errorf("Unexpected run: %+v", run)
	}
	if !run.CreatedAt.Equal(created) {
		t.Errorf("Expected created_at %v, got %v", created, run.CreatedAt)
	}

	files, err := repo.GetFileResults(id)
	if err != nil {
		t.Fatalf("Failed to get file results: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("Expected 2 file results, got %d", len(files))
	}
	if files[0].Filename != "frame_000000.txt" || !files[0].Correct {
		t.Errorf("Unexpected first file: %+v", files[0])
	}
	if files[0].Counts[12] != 2 || files[0].Counts[6] != 1 {
		t.Errorf("Unexpected counts: %v", files[0].Counts)
	}
	if len(files[0].Missing) != 0 || len(files[0].Excess) != 0 {
		t.Errorf("Correct file should have no discrepancies: %+v", files[0])
	}

	second := files[1]
	if second.Correct {
		t.Error("Second file should be incorrect")
	}
	if got := second.Details(); got != "Missing -> K (required: 2, found: 1) | Excess -> car (required: 0, found: 2)" {
		t.Errorf("Unexpected details: %q", got)
	}
}

func TestReportRepository_KeepsGivenRunID(t *testing.T) {
	repo := NewReportRepository(newTestDB(t))

	report := sampleReport("labels", time.Now().UTC())
	report.RunID = "fixed-id"
	id, err := repo.Save(report)
	if err != nil {
		t.Fatalf("Failed to save report: %v", err)
	}
	if id != "fixed-id" {
		t.Errorf("Expected fixed-id, got %s", id)
	}

	// same id twice violates the primary key
	if _, err := repo.Save(report); err == nil {
		t.Error("Expected error saving a duplicate run id")
	}
}

func TestReportRepository_ListRuns(t *testing.T) {
	repo := NewReportRepository(newTestDB(t))
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	var ids []string
	for i := 0; i < 3; i++ {
		id, err := repo.Save(sampleReport("labels", base.Add(time.Duration(i)*time.Hour)))
		if err != nil {
			t.Fatalf("Failed to save report %d: %v", i, err)
		}
		ids = append(ids, id)
	}

	runs, err := repo.ListRuns(0)
	if err != nil {
		t.Fatalf("Failed to list runs: %v", err)
	}
	if len(runs) != 3 {
		t.Fatalf("Expected 3 runs, got %d", len(runs))
	}
	if runs[0].ID != ids[2] || runs[2].ID != ids[0] {
		t.Errorf("Runs should be newest first: %v", runs)
	}

	limited, err := repo.ListRuns(2)
	if err != nil {
		t.Fatalf("Failed to list runs: %v", err)
	}
	if len(limited) != 2 || limited[0].ID != ids[2] {
		t.Errorf("Unexpected limited list: %v", limited)
	}
}

func TestReportRepository_ListRunsEmpty(t *testing.T) {
	repo := NewReportRepository(newTestDB(t))

	runs, err := repo.ListRuns(10)
	if err != nil {
		t.Fatalf("Failed to list runs: %v", err)
	}
	if runs == nil || len(runs) != 0 {
		t.Errorf("Expected empty non-nil list, got %v", runs)
	}
}

func TestReportRepository_NotFound(t *testing.T) {
	repo := NewReportRepository(newTestDB(t))

	if _, err := repo.GetRun("missing"); !errors.Is(err, repository.ErrRunNotFound) {
		t.Errorf("Expected ErrRunNotFound, got %v", err)
	}
	if _, err := repo.GetFileResults("missing"); !errors.Is(err, repository.ErrRunNotFound) {
		t.Errorf("Expected ErrRunNotFound, got %v", err)
	}
	if err := repo.DeleteRun("missing"); !errors.Is(err, repository.ErrRunNotFound) {
		t.Errorf("Expected ErrRunNotFound, got %v", err)
	}
}

func TestReportRepository_DeleteCascades(t *testing.T) {
	db := newTestDB(t)
	repo := NewReportRepository(db)

	id, err := repo.Save(sampleReport("labels", time.Now().UTC()))
	if err != nil {
		t.Fatalf("Failed to save report: %v", err)
	}
	if err := repo.DeleteRun(id); err != nil {
		t.Fatalf("Failed to delete run: %v", err)
	}

	var files, discrepancies int
	if err := db.Conn().QueryRow(`SELECT COUNT(*) FROM file_results`).Scan(&files); err != nil {
		t.Fatalf("Failed to count file results: %v", err)
	}
	if err := db.Conn().QueryRow(`SELECT COUNT(*) FROM discrepancies`).Scan(&discrepancies); err != nil {
		t.Fatalf("Failed to count discrepancies: %v", err)
	}
	if files != 0 || discrepancies != 0 {
		t.Errorf("Expected cascade delete, got %d files and %d discrepancies", files, discrepancies)
	}
}
