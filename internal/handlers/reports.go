package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"path/filepath"
	"strconv"

	"framecheck/internal/catalog"
	"framecheck/internal/logger"
	"framecheck/internal/models"
	"framecheck/internal/repository"
	"framecheck/internal/services/storage"
	"framecheck/internal/services/verify"
)

type RunDetails struct {
	Run   *models.RunSummary  `json:"run"`
	Files []models.FileResult `json:"files"`
}

// VerifyRequest is the body of POST /api/verify.
type VerifyRequest struct {
	Directory string         `json:"directory"`
	Expected  map[string]int `json:"expected"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}, logger *logger.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("Error encoding JSON response: %v", err)
	}
}

// ListReportsHandler returns the stored runs, newest first.
func ListReportsHandler(repo repository.ReportRepository, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
		if limit <= 0 || err != nil {
			limit = 20
		}

		runs, err := repo.ListRuns(limit)
		if err != nil {
			logger.Error("Failed to list runs: %v", err)
			http.Error(w, "Unable to list reports", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, runs, logger)
	}
}

// ReportFilesHandler returns one run with its file results. DELETE removes
// the run.
func ReportFilesHandler(repo repository.ReportRepository, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodDelete {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		id := r.URL.Query().Get("id")
		if id == "" {
			http.Error(w, "Missing run id", http.StatusBadRequest)
			return
		}

		if r.Method == http.MethodDelete {
			err := repo.DeleteRun(id)
			if errors.Is(err, repository.ErrRunNotFound) {
				http.Error(w, "Report not found", http.StatusNotFound)
				return
			}
			if err != nil {
				logger.Error("Failed to delete run %s: %v", id, err)
				http.Error(w, "Unable to delete report", http.StatusInternalServerError)
				return
			}
			logger.Info("Deleted run %s", id)
			w.WriteHeader(http.StatusNoContent)
			return
		}

		run, err := repo.GetRun(id)
		if errors.Is(err, repository.ErrRunNotFound) {
			http.Error(w, "Report not found", http.StatusNotFound)
			return
		}
		if err != nil {
			logger.Error("Failed to get run %s: %v", id, err)
			http.Error(w, "Unable to read report", http.StatusInternalServerError)
			return
		}

		files, err := repo.GetFileResults(id)
		if err != nil {
			logger.Error("Failed to get file results of %s: %v", id, err)
			http.Error(w, "Unable to read report", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, RunDetails{Run: run, Files: files}, logger)
	}
}

// VerifyHandler verifies a record directory under root, stores the run and
// returns the report. The request directory is relative to root and defaults
// to its labels directory; paths leaving root are rejected.
func VerifyHandler(verifier *verify.Verifier, repo repository.ReportRepository, root string, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		var req VerifyRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		if req.Directory == "" {
			req.Directory = storage.LabelsDir
		}
		if !filepath.IsLocal(req.Directory) {
			http.Error(w, "Directory must be relative to the output directory", http.StatusBadRequest)
			return
		}
		if err := verify.ValidateExpected(req.Expected); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		dir := filepath.Join(root, req.Directory)

		report, err := verifier.Verify(r.Context(), dir, req.Expected)
		if err != nil {
			var unknown *catalog.UnknownClassError
			if errors.As(err, &unknown) {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			var malformed *verify.MalformedRecordError
			if errors.As(err, &malformed) {
				http.Error(w, err.Error(), http.StatusUnprocessableEntity)
				return
			}
			logger.Error("Verification of %s failed: %v", dir, err)
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		if _, err := repo.Save(report); err != nil {
			logger.Error("Failed to store run: %v", err)
			http.Error(w, "Unable to store report", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, report, logger)
	}
}
