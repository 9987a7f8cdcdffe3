// Package pipeline grades one transcribed exam script.
package pipeline

import (
	"context"
	"log/slog"

	"github.com/rahibchy/exam-grading-system/internal/grader"
	"github.com/rahibchy/exam-grading-system/internal/identity"
	"github.com/rahibchy/exam-grading-system/internal/model"
	"github.com/rahibchy/exam-grading-system/internal/quality"
	"github.com/rahibchy/exam-grading-system/internal/segment"
)

// Pipeline holds the exam configuration and the components applied to every
// script. It carries no per-script state and may be shared across goroutines
// as long as its grader and recognizer are.
type Pipeline struct {
	questions []model.Question
	markers   []*segment.Marker
	segmenter segment.Segmenter
	assessor  quality.Assessor
	grader    grader.Grader
	identity  *identity.Extractor
}

// New compiles the question markers once for the whole batch.
func New(cfg model.GradingConfig, rec identity.RegionRecognizer, g grader.Grader) *Pipeline {
	if g == nil {
		g = grader.Heuristic{}
	}
	p := &Pipeline{
		questions: cfg.Questions,
		segmenter: segment.New(cfg),
		assessor:  quality.New(cfg),
		grader:    g,
		identity:  identity.New(rec, cfg),
	}
	p.markers = make([]*segment.Marker, len(cfg.Questions))
	for i, q := range cfg.Questions {
		p.markers[i] = p.segmenter.Compile(q.Marker)
	}
	return p
}

// Questions returns the exam definition in order.
func (p *Pipeline) Questions() []model.Question {
	return p.questions
}

// Run grades one script. A nil transcript yields a PDF_ERROR result with no
// identity or question data.
func (p *Pipeline) Run(ctx context.Context, scriptName string, tr *model.Transcript) model.ScriptResult {
	logCtx := slog.With("script", scriptName)
	result := model.ScriptResult{ScriptName: scriptName}

	if tr == nil {
		logCtx.Warn("no transcript, marking script as PDF error")
		result.Disposition = model.DispositionPDFError
		return result
	}

	result.Identity = p.identity.Extract(ctx, tr.FirstPage)
	logCtx.Debug("identity extracted", "identity", identity.String(result.Identity))

	allUnreadable := true
	someReadable := false
	needsReview := false
	result.Questions = make([]model.QuestionResult, 0, len(p.questions))

	for i, q := range p.questions {
		var next *segment.Marker
		if i+1 < len(p.markers) {
			next = p.markers[i+1]
		}

		fragment := p.segmenter.Segment(tr.Text, p.markers[i], next)
		verdict, flag := p.assessor.Assess(fragment, q.MinLength)
		score, provenance := p.grade(ctx, q, fragment, verdict)

		if verdict != model.VerdictUnreadable {
			allUnreadable = false
			someReadable = true
		}
		if verdict != model.VerdictOK {
			needsReview = true
		}

		result.Questions = append(result.Questions, model.QuestionResult{
			QuestionID:  q.ID,
			Fragment:    fragment,
			Verdict:     verdict,
			Flag:        flag,
			AIScore:     score,
			FinalScore:  score,
			Provenance:  provenance,
			NeedsReview: verdict != model.VerdictOK,
		})
		logCtx.Debug("question graded", "question", q.ID, "verdict", verdict, "flag", flag, "provenance", provenance)
	}

	switch {
	case allUnreadable, !someReadable:
		result.Disposition = model.DispositionFullManual
	case needsReview:
		result.Disposition = model.DispositionPartialManual
	default:
		result.Disposition = model.DispositionAutoComplete
	}
	result.RecomputeTotal()

	logCtx.Info("script graded", "disposition", result.Disposition, "total", *result.Total, "id_status", result.Identity.Status)
	return result
}

// grade falls back to the heuristic when the configured grader panics.
func (p *Pipeline) grade(ctx context.Context, q model.Question, fragment *string, verdict model.Verdict) (score *float64, provenance model.Provenance) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("grader panicked, using heuristic", "question", q.ID, "panic", r)
			score, provenance = grader.Heuristic{}.Grade(ctx, fragment, q.MaxMarks, verdict)
		}
	}()
	return p.grader.Grade(grader.WithQuestion(ctx, q), fragment, q.MaxMarks, verdict)
}
