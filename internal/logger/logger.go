package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
)

// Logger provides leveled logging (debug/info/warning/error) to files and stdout/stderr.
type Logger struct {
	debugLog   *log.Logger
	infoLog    *log.Logger
	warningLog *log.Logger
	errorLog   *log.Logger
	files      []*os.File
	logDir     string
	debug      bool
	mu         sync.Mutex
}

// NewLogger creates a Logger writing to logDir and the console.
// Debug entries are dropped unless debug is set.
func NewLogger(logDir string, debug bool) (*Logger, error) {
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	l := &Logger{
		logDir: logDir,
		debug:  debug,
	}
	if err := l.setupLoggers(); err != nil {
		l.Close()
		return nil, err
	}
	return l, nil
}

// NewDiscard returns a Logger that writes nowhere. Used by tests and by
// commands that must keep stdout clean.
func NewDiscard() *Logger {
	l := &Logger{}
	l.debugLog = log.New(io.Discard, "", 0)
	l.infoLog = log.New(io.Discard, "", 0)
	l.warningLog = log.New(io.Discard, "", 0)
	l.errorLog = log.New(io.Discard, "", 0)
	return l
}

func (l *Logger) setupLoggers() error {
	infoFile, err := l.openLogFile("info.log")
	if err != nil {
		return err
	}
	warningFile, err := l.openLogFile("warning.log")
	if err != nil {
		return err
	}
	errorFile, err := l.openLogFile("error.log")
	if err != nil {
		return err
	}

	// Console output goes to stderr so reports printed on stdout stay clean.
	infoWriter := io.MultiWriter(os.Stderr, infoFile)
	warningWriter := io.MultiWriter(os.Stderr, warningFile)
	errorWriter := io.MultiWriter(os.Stderr, errorFile)

	flags := log.Ldate | log.Ltime | log.Lshortfile
	l.debugLog = log.New(infoWriter, "DEBUG   ", flags)
	l.infoLog = log.New(infoWriter, "INFO    ", flags)
	l.warningLog = log.New(warningWriter, "WARNING ", flags)
	l.errorLog = log.New(errorWriter, "ERROR   ", flags)
	return nil
}

// openLogFile opens or creates a log file for appending.
func (l *Logger) openLogFile(name string) (*os.File, error) {
	file, err := os.OpenFile(filepath.Join(l.logDir, name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file %s: %w", name, err)
	}
	l.files = append(l.files, file)
	return file, nil
}

// Debug writes a formatted debug-level log entry.
func (l *Logger) Debug(format string, v ...interface{}) {
	if !l.debug {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.debugLog.Output(2, fmt.Sprintf(format, v...))
}

// Info writes a formatted info-level log entry.
func (l *Logger) Info(format string, v ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.infoLog.Output(2, fmt.Sprintf(format, v...))
}

// Warning writes a formatted warning-level log entry.
func (l *Logger) Warning(format string, v ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warningLog.Output(2, fmt.Sprintf(format, v...))
}

// Error writes a formatted error-level log entry.
func (l *Logger) Error(format string, v ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errorLog.Output(2, fmt.Sprintf(format, v...))
}

// CleanLogs truncates the specified log file.
func (l *Logger) CleanLogs(fileName string) error {
	if l.logDir == "" {
		return nil
	}
	filePath := filepath.Join(l.logDir, filepath.Base(fileName))
	file, err := os.OpenFile(filePath, os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("failed to truncate %s: %w", fileName, err)
	}
	defer file.Close()

	l.Info("Log file %s has been cleared", fileName)
	return nil
}

// Close releases the log files.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	var firstErr error
	for _, f := range l.files {
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	l.files = nil
	return firstErr
}
