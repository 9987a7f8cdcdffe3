// Package batch grades many scripts and splits out the ones needing a human.
package batch

import (
	"context"
	"errors"
	"log/slog"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/rahibchy/exam-grading-system/internal/model"
	"github.com/rahibchy/exam-grading-system/internal/ocr"
	"github.com/rahibchy/exam-grading-system/internal/pipeline"
)

// Script is one uploaded document.
type Script struct {
	Name string
	Data []byte
}

// Batch holds every result in input order plus the manual-review subset.
type Batch struct {
	Results []model.ScriptResult
	Review  []model.ScriptResult
}

// Runner transcribes and grades scripts on a bounded worker pool.
type Runner struct {
	Transcriber ocr.Transcriber
	Pipeline    *pipeline.Pipeline
	Workers     int
}

// New returns a runner; workers <= 0 means one worker per CPU.
func New(t ocr.Transcriber, p *pipeline.Pipeline, workers int) *Runner {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Runner{Transcriber: t, Pipeline: p, Workers: workers}
}

// Run grades every script. Results are collected by input index, so output
// order never depends on completion order. A failed transcription becomes a
// PDF_ERROR row. If ctx is cancelled, scripts not yet finished are skipped and
// the completed ones are returned together with ctx.Err().
func (r *Runner) Run(ctx context.Context, scripts []Script) (Batch, error) {
	slots := make([]*model.ScriptResult, len(scripts))

	var eg errgroup.Group
	eg.SetLimit(r.Workers)
	for i, s := range scripts {
		if ctx.Err() != nil {
			break
		}
		eg.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			if res, ok := r.runOne(ctx, s); ok {
				slots[i] = &res
			}
			return nil
		})
	}
	_ = eg.Wait()

	results := make([]model.ScriptResult, 0, len(scripts))
	for _, res := range slots {
		if res != nil {
			results = append(results, *res)
		}
	}
	b := Collect(results)

	if err := ctx.Err(); err != nil {
		slog.Warn("batch cancelled", "completed", len(results), "total", len(scripts))
		return b, err
	}
	slog.Info("batch complete", "scripts", len(results), "review", len(b.Review))
	return b, nil
}

// runOne reports false when ctx ended before the script was fully graded.
// Such a script is left out rather than recorded as a PDF or identity error.
func (r *Runner) runOne(ctx context.Context, s Script) (model.ScriptResult, bool) {
	tr, err := r.Transcriber.Transcribe(ctx, s.Data)
	if err != nil {
		if interrupted(ctx, err) {
			slog.Debug("transcription interrupted", "script", s.Name, "error", err)
			return model.ScriptResult{}, false
		}
		slog.Error("transcription failed", "script", s.Name, "error", err)
		tr = nil
	}
	res := r.Pipeline.Run(ctx, s.Name, tr)
	if ctx.Err() != nil {
		slog.Debug("grading interrupted", "script", s.Name)
		return model.ScriptResult{}, false
	}
	return res, true
}

func interrupted(ctx context.Context, err error) bool {
	return ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// Collect builds a batch from results that are already in input order.
func Collect(results []model.ScriptResult) Batch {
	b := Batch{Results: results}
	for _, res := range results {
		if res.NeedsReview() {
			b.Review = append(b.Review, res)
		}
	}
	return b
}
