package handlers

import (
	"net/http"
	"os"
	"path/filepath"

	"framecheck/internal/logger"
)

// logFiles are the files the logger writes, by level.
var logFiles = map[string]string{
	"info":    "info.log",
	"warning": "warning.log",
	"error":   "error.log",
}

// ShowLogsHandler serves the log file of the level in the "level" query
// parameter (info, warning or error).
func ShowLogsHandler(logDir string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filename, ok := logFiles[r.URL.Query().Get("level")]
		if !ok {
			http.Error(w, "Unknown log level", http.StatusBadRequest)
			return
		}
		serveLogFile(w, r, logDir, filename)
	}
}

func serveLogFile(w http.ResponseWriter, r *http.Request, logDir, filename string) {
	filePath := filepath.Join(logDir, filename)

	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		http.Error(w, "Log file not found: "+filename, http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	http.ServeFile(w, r, filePath)
}

// ClearLogsHandler truncates the log file of the given level.
func ClearLogsHandler(logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		filename, ok := logFiles[r.URL.Query().Get("level")]
		if !ok {
			http.Error(w, "Unknown log level", http.StatusBadRequest)
			return
		}
		if err := logger.CleanLogs(filename); err != nil {
			logger.Error("Failed to clear %s: %v", filename, err)
			http.Error(w, "Unable to clear log", http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
