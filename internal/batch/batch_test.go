package batch

import (
	"context"
	"errors"
	"fmt"
	"image"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rahibchy/exam-grading-system/internal/model"
	"github.com/rahibchy/exam-grading-system/internal/pipeline"
)

var testQuestions = []model.Question{
	{ID: "Q1", Name: "Chart Summary", MaxMarks: 15, Marker: "Summarize the information", MinLength: 40},
	{ID: "Q2", Name: "Public Transport in Dhaka", MaxMarks: 7, Marker: "Public Transportation In Dhaka", MinLength: 40},
}

type nopRecognizer struct{}

func (nopRecognizer) Recognize(context.Context, image.Image) (string, error) { return "", nil }

// fakeTranscriber treats the document bytes as the transcript text. Documents
// starting with "bad" fail, and delay staggers completion in reverse order.
type fakeTranscriber struct {
	delay func(doc string) time.Duration
	calls atomic.Int32
}

func (f *fakeTranscriber) Transcribe(ctx context.Context, doc []byte) (*model.Transcript, error) {
	f.calls.Add(1)
	text := string(doc)
	if f.delay != nil {
		select {
		case <-time.After(f.delay(text)):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if strings.HasPrefix(text, "bad") {
		return nil, errors.New("not a pdf")
	}
	return &model.Transcript{Text: text}, nil
}

func goodScript() string {
	return "Summarize the information " + strings.Repeat("the chart shows rising sales ", 6) +
		" Public Transportation In Dhaka " + strings.Repeat("buses are crowded daily ", 6)
}

func newRunner(t *fakeTranscriber, workers int) *Runner {
	return New(t, pipeline.New(model.DefaultGradingConfig(testQuestions), nopRecognizer{}, nil), workers)
}

func TestRunPreservesInputOrder(t *testing.T) {
	var scripts []Script
	for i := 0; i < 8; i++ {
		scripts = append(scripts, Script{Name: fmt.Sprintf("s%d.pdf", i), Data: []byte(fmt.Sprintf("%d ", i) + goodScript())})
	}
	tr := &fakeTranscriber{delay: func(doc string) time.Duration {
		var n int
		fmt.Sscanf(doc, "%d", &n)
		return time.Duration(8-n) * time.Millisecond
	}}

	b, err := newRunner(tr, 4).Run(context.Background(), scripts)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(b.Results) != len(scripts) {
		t.Fatalf("got %d results, want %d", len(b.Results), len(scripts))
	}
	for i, res := range b.Results {
		if res.ScriptName != scripts[i].Name {
			t.Errorf("result %d = %s, want %s", i, res.ScriptName, scripts[i].Name)
		}
	}
}

func TestRunTranscriptionFailure(t *testing.T) {
	scripts := []Script{
		{Name: "ok.pdf", Data: []byte(goodScript())},
		{Name: "broken.pdf", Data: []byte("bad bytes")},
		{Name: "empty.pdf", Data: []byte("nothing recognisable here")},
	}
	b, err := newRunner(&fakeTranscriber{}, 2).Run(context.Background(), scripts)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if got := b.Results[0].Disposition; got != model.DispositionAutoComplete {
		t.Errorf("ok.pdf disposition = %s, want AUTO_COMPLETE", got)
	}
	if got := b.Results[1].Disposition; got != model.DispositionPDFError {
		t.Errorf("broken.pdf disposition = %s, want PDF_ERROR", got)
	}
	if got := b.Results[2].Disposition; got != model.DispositionFullManual {
		t.Errorf("empty.pdf disposition = %s, want FULL_MANUAL", got)
	}

	if len(b.Review) != 2 {
		t.Fatalf("review has %d entries, want 2", len(b.Review))
	}
	if b.Review[0].ScriptName != "broken.pdf" || b.Review[1].ScriptName != "empty.pdf" {
		t.Errorf("review = [%s %s], want [broken.pdf empty.pdf]", b.Review[0].ScriptName, b.Review[1].ScriptName)
	}
}

func TestRunEmpty(t *testing.T) {
	b, err := newRunner(&fakeTranscriber{}, 2).Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(b.Results) != 0 || len(b.Review) != 0 {
		t.Errorf("expected empty batch, got %+v", b)
	}
}

func TestRunCancelledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	tr := &fakeTranscriber{}
	scripts := []Script{{Name: "a.pdf", Data: []byte(goodScript())}, {Name: "b.pdf", Data: []byte(goodScript())}}
	b, err := newRunner(tr, 1).Run(ctx, scripts)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if len(b.Results) != 0 {
		t.Errorf("got %d results after cancellation, want 0", len(b.Results))
	}
	if tr.calls.Load() != 0 {
		t.Errorf("transcriber called %d times, want 0", tr.calls.Load())
	}
}

func TestCollect(t *testing.T) {
	results := []model.ScriptResult{
		{ScriptName: "a", Disposition: model.DispositionAutoComplete, Total: model.Ptr(12.0)},
		{ScriptName: "b", Disposition: model.DispositionAutoComplete, Total: model.Ptr(0.0)},
		{ScriptName: "c", Disposition: model.DispositionPartialManual, Total: model.Ptr(5.0)},
	}
	b := Collect(results)
	if len(b.Review) != 2 || b.Review[0].ScriptName != "b" || b.Review[1].ScriptName != "c" {
		t.Errorf("Collect() review = %+v", b.Review)
	}
}

func TestNewDefaultsWorkers(t *testing.T) {
	r := New(&fakeTranscriber{}, nil, 0)
	if r.Workers < 1 {
		t.Errorf("Workers = %d, want at least 1", r.Workers)
	}
}

func TestRunCancelledInFlight(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tr := &fakeTranscriber{delay: func(doc string) time.Duration {
		if strings.HasPrefix(doc, "slow") {
			return 10 * time.Second
		}
		return 0
	}}
	scripts := []Script{
		{Name: "fast.pdf", Data: []byte("fast " + goodScript())},
		{Name: "slow1.pdf", Data: []byte("slow " + goodScript())},
		{Name: "slow2.pdf", Data: []byte("slow " + goodScript())},
	}
	time.AfterFunc(50*time.Millisecond, cancel)

	b, err := newRunner(tr, 3).Run(ctx, scripts)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	for _, res := range b.Results {
		if res.Disposition == model.DispositionPDFError {
			t.Errorf("%s recorded as PDF_ERROR after cancellation", res.ScriptName)
		}
	}
	if len(b.Results) != 1 || b.Results[0].ScriptName != "fast.pdf" {
		t.Errorf("results = %+v, want only fast.pdf", b.Results)
	}
	if len(b.Review) != 0 {
		t.Errorf("review = %+v, want empty", b.Review)
	}
}

type pageTranscriber struct{}

func (pageTranscriber) Transcribe(_ context.Context, doc []byte) (*model.Transcript, error) {
	return &model.Transcript{Text: string(doc), FirstPage: image.NewGray(image.Rect(0, 0, 10, 10))}, nil
}

// cancellingRecognizer ends the batch while the header is being read.
type cancellingRecognizer struct {
	cancel context.CancelFunc
}

func (r cancellingRecognizer) Recognize(ctx context.Context, _ image.Image) (string, error) {
	r.cancel()
	return "", ctx.Err()
}

func TestRunCancelledDuringIdentity(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p := pipeline.New(model.DefaultGradingConfig(testQuestions), cancellingRecognizer{cancel: cancel}, nil)
	b, err := New(pageTranscriber{}, p, 1).Run(ctx, []Script{{Name: "a.pdf", Data: []byte(goodScript())}})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if len(b.Results) != 0 {
		t.Errorf("got %+v, want no results for an interrupted script", b.Results)
	}
}
