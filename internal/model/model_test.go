package model

import "testing"

func TestRecomputeTotal(t *testing.T) {
	r := ScriptResult{
		Disposition: DispositionPartialManual,
		Questions: []QuestionResult{
			{QuestionID: "Q1", FinalScore: Ptr(4.5)},
			{QuestionID: "Q2", FinalScore: Ptr(3.0)},
			{QuestionID: "Q3", FinalScore: Ptr(6.8)},
			{QuestionID: "Q4"},
		},
	}
	r.RecomputeTotal()
	if r.Total == nil || *r.Total != 14.3 {
		t.Fatalf("RecomputeTotal() = %v, want 14.3", r.Total)
	}

	r.Disposition = DispositionPDFError
	r.RecomputeTotal()
	if r.Total != nil {
		t.Errorf("PDF_ERROR total = %v, want nil", *r.Total)
	}
}

func TestScriptNeedsReview(t *testing.T) {
	tests := []struct {
		name string
		r    ScriptResult
		want bool
	}{
		{"complete with score", ScriptResult{Disposition: DispositionAutoComplete, Total: Ptr(12.0)}, false},
		{"complete with zero", ScriptResult{Disposition: DispositionAutoComplete, Total: Ptr(0.0)}, true},
		{"complete without total", ScriptResult{Disposition: DispositionAutoComplete}, true},
		{"partial", ScriptResult{Disposition: DispositionPartialManual, Total: Ptr(5.0)}, true},
		{"pdf error", ScriptResult{Disposition: DispositionPDFError}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.r.NeedsReview(); got != tt.want {
				t.Errorf("NeedsReview() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGradingConfigValidate(t *testing.T) {
	q := Question{ID: "Q1", Name: "Essay", MaxMarks: 10, Marker: "Write an essay", MinLength: 40}

	if err := DefaultGradingConfig([]Question{q}).Validate(); err != nil {
		t.Fatalf("Validate() unexpected error: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*GradingConfig)
	}{
		{"no questions", func(c *GradingConfig) { c.Questions = nil }},
		{"duplicate id", func(c *GradingConfig) { c.Questions = []Question{q, q} }},
		{"empty marker", func(c *GradingConfig) { c.Questions = []Question{{ID: "Q1", MaxMarks: 1}} }},
		{"zero marks", func(c *GradingConfig) { c.Questions = []Question{{ID: "Q1", Marker: "x y"}} }},
		{"threshold", func(c *GradingConfig) { c.NoiseThreshold = 1.5 }},
		{"keywords", func(c *GradingConfig) { c.MarkerKeyWords = 1 }},
		{"header", func(c *GradingConfig) { c.HeaderFraction = 0 }},
		{"tail", func(c *GradingConfig) { c.TailCap = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultGradingConfig([]Question{q})
			tt.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Validate() = nil, want error")
			}
		})
	}
}

func TestSummarize(t *testing.T) {
	results := []ScriptResult{
		{Disposition: DispositionAutoComplete, Total: Ptr(20.0)},
		{Disposition: DispositionAutoComplete, Total: Ptr(0.0)},
		{Disposition: DispositionPartialManual, Total: Ptr(4.0)},
		{Disposition: DispositionFullManual, Total: Ptr(0.0)},
		{Disposition: DispositionPDFError},
	}
	got := Summarize(results)
	want := Summary{Total: 5, AutoComplete: 2, PartialManual: 1, FullManual: 1, PDFError: 1, NeedsReview: 4}
	if got != want {
		t.Errorf("Summarize() = %+v, want %+v", got, want)
	}
}
