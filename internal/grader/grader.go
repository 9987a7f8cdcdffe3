// Package grader turns an answer fragment and its quality verdict into a
// provisional score.
package grader

import (
	"context"
	"math"
	"unicode/utf8"

	"github.com/rahibchy/exam-grading-system/internal/model"
)

// Grader scores one answer fragment. Implementations must return a nil score
// for unreadable fragments and never fail: errors degrade to a fallback score.
type Grader interface {
	Grade(ctx context.Context, fragment *string, maxMarks int, verdict model.Verdict) (*float64, model.Provenance)
}

type questionKey struct{}

// WithQuestion attaches the question being graded to ctx, so graders that
// need more than the marks (a model prompt) can read it.
func WithQuestion(ctx context.Context, q model.Question) context.Context {
	return context.WithValue(ctx, questionKey{}, q)
}

// QuestionFromContext returns the question set by WithQuestion.
func QuestionFromContext(ctx context.Context) (model.Question, bool) {
	q, ok := ctx.Value(questionKey{}).(model.Question)
	return q, ok
}

// Score ratios per verdict and the length that earns full marks for a clean answer.
const (
	tooShortRatio  = 0.3
	suspectRatio   = 0.6
	fullLengthRune = 200
)

// Heuristic scores by verdict and, for clean fragments, by length. It is a
// stand-in for real assessment.
type Heuristic struct{}

// Grade implements Grader.
func (Heuristic) Grade(_ context.Context, fragment *string, maxMarks int, verdict model.Verdict) (*float64, model.Provenance) {
	marks := float64(maxMarks)
	switch verdict {
	case model.VerdictUnreadable:
		return nil, model.ProvenanceUnreadable
	case model.VerdictTooShort:
		return model.Ptr(model.Round1(marks * tooShortRatio)), model.ProvenanceLow
	case model.VerdictSuspectOCR:
		return model.Ptr(model.Round1(marks * suspectRatio)), model.ProvenanceMedium
	}
	if verdict == model.VerdictOK && fragment != nil {
		ratio := math.Min(float64(utf8.RuneCountInString(*fragment))/fullLengthRune, 1.0)
		return model.Ptr(model.Round1(marks * (0.5 + 0.5*ratio))), model.ProvenanceHigh
	}
	return nil, model.ProvenanceNoAnswer
}
