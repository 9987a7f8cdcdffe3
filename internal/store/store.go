// Package store keeps graded batches in an in-memory SQLite database so they
// can be queried and corrected while the server runs.
package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/rahibchy/exam-grading-system/internal/model"

	_ "modernc.org/sqlite"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrUnknownScript   = errors.New("unknown script")
	ErrUnknownQuestion = errors.New("unknown question")
	ErrInvalidScore    = errors.New("score out of range")
)

type Store struct {
	db *sql.DB
}

// BatchInfo is a row of the batch listing.
type BatchInfo struct {
	ID          string    `json:"id"`
	CreatedAt   time.Time `json:"created_at"`
	Scripts     int       `json:"scripts"`
	NeedsReview int       `json:"needs_review"`
}

// Batch is a stored batch with its exam definition and ordered results.
type Batch struct {
	BatchInfo
	Questions []model.Question     `json:"questions"`
	Results   []model.ScriptResult `json:"results"`
}

// New opens a private in-memory database. Batches live as long as the Store.
func New() (*Store, error) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// Every new connection to :memory: is a separate empty database.
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS batches (
		id TEXT PRIMARY KEY,
		questions TEXT NOT NULL,
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS scripts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		batch_id TEXT NOT NULL,
		position INTEGER NOT NULL,
		script_name TEXT NOT NULL,
		disposition TEXT NOT NULL,
		total_score REAL,
		needs_review INTEGER NOT NULL DEFAULT 0,
		result TEXT NOT NULL,
		UNIQUE (batch_id, position),
		FOREIGN KEY (batch_id) REFERENCES batches(id)
	);

	CREATE TABLE IF NOT EXISTS score_overrides (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		script_id INTEGER NOT NULL,
		question_id TEXT NOT NULL,
		previous_score REAL,
		new_score REAL NOT NULL,
		overridden_by TEXT NOT NULL,
		overridden_at DATETIME NOT NULL,
		FOREIGN KEY (script_id) REFERENCES scripts(id)
	);

	CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		active INTEGER NOT NULL DEFAULT 1,
		created_at DATETIME NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// SaveBatch stores results in input order under a new batch ID.
func (s *Store) SaveBatch(questions []model.Question, results []model.ScriptResult) (string, error) {
	qs, err := json.Marshal(questions)
	if err != nil {
		return "", fmt.Errorf("marshal questions: %w", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	id := uuid.NewString()
	if _, err := tx.Exec(`INSERT INTO batches (id, questions, created_at) VALUES (?, ?, ?)`, id, string(qs), time.Now()); err != nil {
		return "", fmt.Errorf("insert batch: %w", err)
	}
	for i, r := range results {
		data, err := json.Marshal(r)
		if err != nil {
			return "", fmt.Errorf("marshal result %s: %w", r.ScriptName, err)
		}
		_, err = tx.Exec(
			`INSERT INTO scripts (batch_id, position, script_name, disposition, total_score, needs_review, result)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			id, i, r.ScriptName, r.Disposition, r.Total, r.NeedsReview(), string(data),
		)
		if err != nil {
			return "", fmt.Errorf("insert script %s: %w", r.ScriptName, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return "", err
	}
	slog.Info("saved batch", "batch", id, "scripts", len(results))
	return id, nil
}

// ListBatches returns all batches, newest first.
func (s *Store) ListBatches() ([]BatchInfo, error) {
	rows, err := s.db.Query(
		`SELECT b.id, b.created_at, COUNT(sc.id), COALESCE(SUM(sc.needs_review), 0)
		 FROM batches b LEFT JOIN scripts sc ON sc.batch_id = b.id
		 GROUP BY b.id ORDER BY b.created_at DESC, b.rowid DESC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var batches []BatchInfo
	for rows.Next() {
		var b BatchInfo
		if err := rows.Scan(&b.ID, &b.CreatedAt, &b.Scripts, &b.NeedsReview); err != nil {
			return nil, err
		}
		batches = append(batches, b)
	}
	return batches, rows.Err()
}

// GetBatch returns a stored batch with results in input order.
func (s *Store) GetBatch(id string) (*Batch, error) {
	b := &Batch{}
	var qs string
	err := s.db.QueryRow(`SELECT id, questions, created_at FROM batches WHERE id = ?`, id).
		Scan(&b.ID, &qs, &b.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(qs), &b.Questions); err != nil {
		return nil, fmt.Errorf("decode questions: %w", err)
	}

	b.Results, err = s.queryResults(`SELECT result FROM scripts WHERE batch_id = ? ORDER BY position`, id)
	if err != nil {
		return nil, err
	}
	b.Scripts = len(b.Results)
	for _, r := range b.Results {
		if r.NeedsReview() {
			b.NeedsReview++
		}
	}
	return b, nil
}

// ReviewResults returns the manual-review subset of a batch in input order.
func (s *Store) ReviewResults(batchID string) ([]model.ScriptResult, error) {
	if err := s.batchExists(batchID); err != nil {
		return nil, err
	}
	return s.queryResults(`SELECT result FROM scripts WHERE batch_id = ? AND needs_review = 1 ORDER BY position`, batchID)
}

func (s *Store) batchExists(id string) error {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM batches WHERE id = ?`, id).Scan(&n); err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) queryResults(query string, args ...any) ([]model.ScriptResult, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	results := []model.ScriptResult{}
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var r model.ScriptResult
		if err := json.Unmarshal([]byte(data), &r); err != nil {
			return nil, fmt.Errorf("decode result: %w", err)
		}
		results = append(results, r)
	}
	return results, rows.Err()
}
