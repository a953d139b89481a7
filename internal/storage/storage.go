// Package storage mirrors terminal job snapshots into sqlite. The
// mirror is an optional bolt-on: core correctness never depends on
// it, and the in-memory registries stay authoritative.
package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/vibestudy/vibestudy-reviewer/internal/types"
)

const schema = `
CREATE TABLE IF NOT EXISTS review_jobs (
  id TEXT PRIMARY KEY,
  repo_url TEXT NOT NULL,
  status TEXT NOT NULL,
  results TEXT NOT NULL,
  suggestions TEXT NOT NULL,
  error TEXT,
  created_at TEXT NOT NULL,
  completed_at TEXT
);

CREATE TABLE IF NOT EXISTS grade_jobs (
  id TEXT PRIMARY KEY,
  repo_url TEXT NOT NULL,
  curriculum_id TEXT,
  task_id TEXT,
  status TEXT NOT NULL,
  overall_score REAL NOT NULL,
  percentage INTEGER NOT NULL,
  grade TEXT NOT NULL,
  summary TEXT NOT NULL,
  tasks TEXT NOT NULL,
  error TEXT,
  created_at TEXT NOT NULL,
  completed_at TEXT
);

CREATE INDEX IF NOT EXISTS idx_grade_jobs_curriculum ON grade_jobs(curriculum_id, task_id);
`

// DB is the sqlite mirror of terminal jobs.
type DB struct {
	*sql.DB
}

// Open opens or creates the database at dbPath.
func Open(dbPath string) (*DB, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return &DB{db}, nil
}

// ArchiveReview upserts a terminal review snapshot.
func (db *DB) ArchiveReview(snap types.ReviewSnapshot) error {
	results, err := json.Marshal(snap.Results)
	if err != nil {
		return fmt.Errorf("encode results: %w", err)
	}
	suggestions, err := json.Marshal(snap.Suggestions)
	if err != nil {
		return fmt.Errorf("encode suggestions: %w", err)
	}

	_, err = db.Exec(`
		INSERT INTO review_jobs (id, repo_url, status, results, suggestions, error, created_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
		  status = excluded.status,
		  results = excluded.results,
		  suggestions = excluded.suggestions,
		  error = excluded.error,
		  completed_at = excluded.completed_at`,
		snap.ID, snap.RepoURL, string(snap.Status), string(results), string(suggestions),
		nullable(snap.Error), msToRFC3339(snap.CreatedAt), nullableTime(snap.CompletedAt))
	return err
}

// ArchiveGrade upserts a terminal grade snapshot.
func (db *DB) ArchiveGrade(snap types.GradeSnapshot) error {
	tasks, err := json.Marshal(snap.Tasks)
	if err != nil {
		return fmt.Errorf("encode tasks: %w", err)
	}

	_, err = db.Exec(`
		INSERT INTO grade_jobs (id, repo_url, curriculum_id, task_id, status, overall_score,
		  percentage, grade, summary, tasks, error, created_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
		  status = excluded.status,
		  overall_score = excluded.overall_score,
		  percentage = excluded.percentage,
		  grade = excluded.grade,
		  summary = excluded.summary,
		  tasks = excluded.tasks,
		  error = excluded.error,
		  completed_at = excluded.completed_at`,
		snap.ID, snap.RepoURL, nullable(snap.CurriculumID), nullable(snap.TaskID),
		string(snap.Status), snap.OverallScore, snap.Percentage, snap.Grade, snap.Summary,
		string(tasks), nullable(snap.Error), msToRFC3339(snap.CreatedAt), nullableTime(snap.CompletedAt))
	return err
}

// GetGrade loads an archived grade snapshot.
func (db *DB) GetGrade(id string) (*types.GradeSnapshot, error) {
	var snap types.GradeSnapshot
	var tasks string
	var curriculumID, taskID, errMsg, createdAt sql.NullString
	var completedAt sql.NullString

	err := db.QueryRow(`
		SELECT id, repo_url, curriculum_id, task_id, status, overall_score,
		  percentage, grade, summary, tasks, error, created_at, completed_at
		FROM grade_jobs WHERE id = ?`, id).Scan(
		&snap.ID, &snap.RepoURL, &curriculumID, &taskID, (*string)(&snap.Status),
		&snap.OverallScore, &snap.Percentage, &snap.Grade, &snap.Summary,
		&tasks, &errMsg, &createdAt, &completedAt)
	if err != nil {
		return nil, err
	}

	snap.CurriculumID = curriculumID.String
	snap.TaskID = taskID.String
	snap.Error = errMsg.String
	snap.CreatedAt = rfc3339ToMS(createdAt.String)
	if completedAt.Valid {
		snap.CompletedAt = rfc3339ToMS(completedAt.String)
	}
	if err := json.Unmarshal([]byte(tasks), &snap.Tasks); err != nil {
		return nil, fmt.Errorf("decode tasks: %w", err)
	}
	return &snap, nil
}

// GetReview loads an archived review snapshot.
func (db *DB) GetReview(id string) (*types.ReviewSnapshot, error) {
	var snap types.ReviewSnapshot
	var results, suggestions string
	var errMsg, createdAt, completedAt sql.NullString

	err := db.QueryRow(`
		SELECT id, repo_url, status, results, suggestions, error, created_at, completed_at
		FROM review_jobs WHERE id = ?`, id).Scan(
		&snap.ID, &snap.RepoURL, (*string)(&snap.Status),
		&results, &suggestions, &errMsg, &createdAt, &completedAt)
	if err != nil {
		return nil, err
	}

	snap.Error = errMsg.String
	snap.CreatedAt = rfc3339ToMS(createdAt.String)
	if completedAt.Valid {
		snap.CompletedAt = rfc3339ToMS(completedAt.String)
	}
	if err := json.Unmarshal([]byte(results), &snap.Results); err != nil {
		return nil, fmt.Errorf("decode results: %w", err)
	}
	if err := json.Unmarshal([]byte(suggestions), &snap.Suggestions); err != nil {
		return nil, fmt.Errorf("decode suggestions: %w", err)
	}
	return &snap, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullableTime(ms int64) any {
	if ms == 0 {
		return nil
	}
	return msToRFC3339(ms)
}

func msToRFC3339(ms int64) string {
	return time.UnixMilli(ms).UTC().Format(time.RFC3339Nano)
}

func rfc3339ToMS(s string) int64 {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return 0
	}
	return t.UnixMilli()
}
