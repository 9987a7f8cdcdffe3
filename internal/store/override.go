package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/rahibchy/exam-grading-system/internal/model"
)

// Override is an audit record of a manual score change.
type Override struct {
	ScriptName    string    `json:"script_name"`
	Position      int       `json:"position"`
	QuestionID    string    `json:"question_id"`
	PreviousScore *float64  `json:"previous_score"`
	NewScore      float64   `json:"new_score"`
	OverriddenBy  string    `json:"overridden_by"`
	OverriddenAt  time.Time `json:"overridden_at"`
}

// OverrideScore replaces a question's final score on a stored script and
// recomputes the script total. The disposition is left as graded. The score
// must lie within [0, marks] for the question.
func (s *Store) OverrideScore(batchID string, position int, questionID string, score float64, by string) (model.ScriptResult, error) {
	var result model.ScriptResult

	questions, err := s.batchQuestions(batchID)
	if err != nil {
		return result, err
	}
	var question *model.Question
	for i := range questions {
		if questions[i].ID == questionID {
			question = &questions[i]
			break
		}
	}
	if question == nil {
		return result, fmt.Errorf("%w: %s", ErrUnknownQuestion, questionID)
	}
	if score < 0 || score > float64(question.MaxMarks) {
		return result, fmt.Errorf("%w: %v not in [0, %d]", ErrInvalidScore, score, question.MaxMarks)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return result, err
	}
	defer tx.Rollback()

	var scriptID int64
	var data string
	err = tx.QueryRow(`SELECT id, result FROM scripts WHERE batch_id = ? AND position = ?`, batchID, position).
		Scan(&scriptID, &data)
	if errors.Is(err, sql.ErrNoRows) {
		return result, fmt.Errorf("%w: position %d", ErrUnknownScript, position)
	}
	if err != nil {
		return result, err
	}
	if err := json.Unmarshal([]byte(data), &result); err != nil {
		return result, fmt.Errorf("decode result: %w", err)
	}

	qr := result.Question(questionID)
	if qr == nil {
		// PDF_ERROR scripts carry no question results to correct.
		return result, fmt.Errorf("%w: %s has no result for %s", ErrUnknownQuestion, result.ScriptName, questionID)
	}
	previous := qr.FinalScore
	qr.FinalScore = model.Ptr(score)
	result.RecomputeTotal()

	updated, err := json.Marshal(result)
	if err != nil {
		return result, fmt.Errorf("marshal result: %w", err)
	}
	_, err = tx.Exec(
		`UPDATE scripts SET result = ?, total_score = ?, needs_review = ? WHERE id = ?`,
		string(updated), result.Total, result.NeedsReview(), scriptID,
	)
	if err != nil {
		return result, fmt.Errorf("update script: %w", err)
	}
	_, err = tx.Exec(
		`INSERT INTO score_overrides (script_id, question_id, previous_score, new_score, overridden_by, overridden_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		scriptID, questionID, previous, score, by, time.Now(),
	)
	if err != nil {
		return result, fmt.Errorf("record override: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return result, err
	}

	slog.Info("score overridden", "batch", batchID, "script", result.ScriptName, "question", questionID,
		"score", score, "total", *result.Total, "by", by)
	return result, nil
}

// ListOverrides returns the override history of a batch, oldest first.
func (s *Store) ListOverrides(batchID string) ([]Override, error) {
	if err := s.batchExists(batchID); err != nil {
		return nil, err
	}
	rows, err := s.db.Query(
		`SELECT sc.script_name, sc.position, o.question_id, o.previous_score, o.new_score, o.overridden_by, o.overridden_at
		 FROM score_overrides o JOIN scripts sc ON sc.id = o.script_id
		 WHERE sc.batch_id = ? ORDER BY o.id`, batchID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	overrides := []Override{}
	for rows.Next() {
		var o Override
		if err := rows.Scan(&o.ScriptName, &o.Position, &o.QuestionID, &o.PreviousScore, &o.NewScore, &o.OverriddenBy, &o.OverriddenAt); err != nil {
			return nil, err
		}
		overrides = append(overrides, o)
	}
	return overrides, rows.Err()
}

func (s *Store) batchQuestions(batchID string) ([]model.Question, error) {
	var qs string
	err := s.db.QueryRow(`SELECT questions FROM batches WHERE id = ?`, batchID).Scan(&qs)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var questions []model.Question
	if err := json.Unmarshal([]byte(qs), &questions); err != nil {
		return nil, fmt.Errorf("decode questions: %w", err)
	}
	return questions, nil
}
