// Package journal records completed indexing runs in SQLite so index
// statistics and resets survive restarts. It is bookkeeping only: the
// vector store remains the source of truth for the vectors themselves.
package journal

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// openDB is a package-level var to allow test injection.
var openDB = sql.Open

// Entry is one task's most recent indexing run.
type Entry struct {
	TaskID     string   `json:"task_id"`
	ChunkCount int      `json:"chunk_count"`
	VectorDim  int      `json:"vector_dim"`
	PointIDs   []string `json:"point_ids"`
	IndexedAt  string   `json:"indexed_at"`
}

// Stats holds aggregate indexing statistics.
type Stats struct {
	TasksIndexed  int    `json:"tasks_indexed"`
	TotalChunks   int    `json:"total_chunks"`
	LastIndexedAt string `json:"last_indexed_at,omitempty"`
}

// Config holds journal configuration.
type Config struct {
	DataDir string
}

// DefaultConfig returns the default journal configuration.
func DefaultConfig() Config {
	home, _ := os.UserHomeDir()
	return Config{DataDir: filepath.Join(home, ".trellis")}
}

// Journal is the SQLite-backed index run log.
type Journal struct {
	db *sql.DB
}

// New creates the data directory if needed, opens SQLite with WAL mode,
// and runs migrations.
func New(cfg Config) (*Journal, error) {
	if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
		return nil, fmt.Errorf("journal: create data dir: %w", err)
	}

	dbPath := filepath.Join(cfg.DataDir, "journal.db")
	db, err := openDB("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("journal: open database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return nil, fmt.Errorf("journal: pragma %q: %w", p, err)
		}
	}

	j := &Journal{db: db}
	if err := j.migrate(); err != nil {
		return nil, fmt.Errorf("journal: migration: %w", err)
	}
	return j, nil
}

// Close closes the underlying database connection.
func (j *Journal) Close() error {
	return j.db.Close()
}

func (j *Journal) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS index_runs (
			task_id     TEXT PRIMARY KEY,
			chunk_count INTEGER NOT NULL,
			vector_dim  INTEGER NOT NULL,
			point_ids   TEXT NOT NULL,
			indexed_at  TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_runs_indexed ON index_runs(indexed_at DESC);
	`
	_, err := j.db.Exec(schema)
	return err
}

// RecordIndexed upserts the run for one task. Re-indexing a task
// replaces its previous run.
func (j *Journal) RecordIndexed(taskID string, pointIDs []string, vectorDim int) error {
	ids, err := json.Marshal(pointIDs)
	if err != nil {
		return fmt.Errorf("journal: encode point ids: %w", err)
	}
	_, err = j.db.Exec(
		`INSERT INTO index_runs (task_id, chunk_count, vector_dim, point_ids, indexed_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(task_id) DO UPDATE SET
		     chunk_count = excluded.chunk_count,
		     vector_dim  = excluded.vector_dim,
		     point_ids   = excluded.point_ids,
		     indexed_at  = excluded.indexed_at`,
		taskID, len(pointIDs), vectorDim, string(ids), time.Now().UTC().Format(time.RFC3339),
	)
	return err
}

// Get returns the recorded run for one task, or sql.ErrNoRows wrapped
// when none exists.
func (j *Journal) Get(taskID string) (*Entry, error) {
	row := j.db.QueryRow(
		`SELECT task_id, chunk_count, vector_dim, point_ids, indexed_at
		 FROM index_runs WHERE task_id = ?`, taskID,
	)
	var e Entry
	var ids string
	if err := row.Scan(&e.TaskID, &e.ChunkCount, &e.VectorDim, &ids, &e.IndexedAt); err != nil {
		return nil, fmt.Errorf("journal: task %s: %w", taskID, err)
	}
	if err := json.Unmarshal([]byte(ids), &e.PointIDs); err != nil {
		return nil, fmt.Errorf("journal: decode point ids for %s: %w", taskID, err)
	}
	return &e, nil
}

// Stats returns aggregate indexing statistics.
func (j *Journal) Stats() (*Stats, error) {
	stats := &Stats{}
	err := j.db.QueryRow(
		`SELECT COUNT(*), COALESCE(SUM(chunk_count), 0), COALESCE(MAX(indexed_at), '')
		 FROM index_runs`,
	).Scan(&stats.TasksIndexed, &stats.TotalChunks, &stats.LastIndexedAt)
	if err != nil {
		return nil, fmt.Errorf("journal: stats: %w", err)
	}
	return stats, nil
}

// Reset clears all recorded runs. Returns the number of rows dropped.
func (j *Journal) Reset() (int64, error) {
	res, err := j.db.Exec(`DELETE FROM index_runs`)
	if err != nil {
		return 0, fmt.Errorf("journal: reset: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
