package sqlite

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "github.com/mattn/go-sqlite3"
)

// DB wraps the SQLite database connection with thread-safe access.
type DB struct {
	conn *sql.DB
	mu   sync.RWMutex
}

// New opens (and creates if needed) the database at dbPath and migrates it.
func New(dbPath string) (*DB, error) {
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	conn, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)
	conn.SetConnMaxLifetime(0)

	db := &DB{conn: conn}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return db, nil
}

// migrate creates the necessary tables if they don't exist.
func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS verification_runs (
		id TEXT PRIMARY KEY,
		directory TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		correct INTEGER NOT NULL DEFAULT 0,
		incorrect INTEGER NOT NULL DEFAULT 0,
		total INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS file_results (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		filename TEXT NOT NULL,
		correct BOOLEAN NOT NULL,
		counts TEXT NOT NULL DEFAULT '{}',
		FOREIGN KEY (run_id) REFERENCES verification_runs(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS discrepancies (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		file_id INTEGER NOT NULL,
		kind TEXT NOT NULL CHECK (kind IN ('missing', 'excess')),
		class_id INTEGER NOT NULL,
		label TEXT NOT NULL,
		required INTEGER NOT NULL,
		found INTEGER NOT NULL,
		FOREIGN KEY (file_id) REFERENCES file_results(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_runs_created_at ON verification_runs(created_at);
	CREATE INDEX IF NOT EXISTS idx_file_results_run_id ON file_results(run_id);
	CREATE INDEX IF NOT EXISTS idx_discrepancies_file_id ON discrepancies(file_id);
	`

	_, err := db.conn.Exec(schema)
	return err
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Conn returns the underlying database connection for use by repositories.
func (db *DB) Conn() *sql.DB {
	return db.conn
}

// Lock acquires a write lock.
func (db *DB) Lock() {
	db.mu.Lock()
}

// Unlock releases the write lock.
func (db *DB) Unlock() {
	db.mu.Unlock()
}

// RLock acquires a read lock.
func (db *DB) RLock() {
	db.mu.RLock()
}

// RUnlock releases the read lock.
func (db *DB) RUnlock() {
	db.mu.RUnlock()
}
