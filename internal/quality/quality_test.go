package quality

import (
	"strings"
	"testing"

	"github.com/rahibchy/exam-grading-system/internal/model"
)

func TestAssess(t *testing.T) {
	prose := strings.Repeat("plain words ", 10)

	tests := []struct {
		name        string
		fragment    *string
		minLength   int
		wantVerdict model.Verdict
		wantFlag    model.Flag
	}{
		{"missing", nil, 40, model.VerdictUnreadable, model.FlagMissingText},
		{"too short", model.Ptr("short answer"), 40, model.VerdictTooShort, model.FlagLengthCheck},
		{"short noise is still too short", model.Ptr("#$%^&*()"), 40, model.VerdictTooShort, model.FlagLengthCheck},
		{"clean prose", model.Ptr(prose), 40, model.VerdictOK, model.FlagPass},
		{"garbled", model.Ptr(strings.Repeat("a|", 30)), 40, model.VerdictSuspectOCR, model.FlagHighGarbage},
		{"empty with zero minimum", model.Ptr(""), 0, model.VerdictOK, model.FlagPass},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, f := Assess(tt.fragment, tt.minLength)
			if v != tt.wantVerdict || f != tt.wantFlag {
				t.Errorf("Assess() = (%s, %s), want (%s, %s)", v, f, tt.wantVerdict, tt.wantFlag)
			}
		})
	}
}

func TestAssessThresholdBoundary(t *testing.T) {
	atThreshold := strings.Repeat("#", 30) + strings.Repeat("a", 70)
	v, _ := Assess(&atThreshold, 40)
	if v != model.VerdictOK {
		t.Errorf("ratio 0.30: verdict = %s, want OK", v)
	}

	over := strings.Repeat("#", 31) + strings.Repeat("a", 69)
	v, f := Assess(&over, 40)
	if v != model.VerdictSuspectOCR || f != model.FlagHighGarbage {
		t.Errorf("ratio 0.31: Assess() = (%s, %s), want (SUSPECT_OCR, HIGH_GARBAGE)", v, f)
	}
}

func TestAssessCountsRunes(t *testing.T) {
	// 40 runes, but more than 40 bytes.
	s := strings.Repeat("é", 40)
	if v, _ := Assess(&s, 40); v != model.VerdictOK {
		t.Errorf("Assess() = %s, want OK", v)
	}
}

func TestAssessorOverrides(t *testing.T) {
	a := Assessor{NoiseChars: "x", Threshold: 0.1}
	s := "xxxxxaaaaaaaaaaaaaaa"
	if v, _ := a.Assess(&s, 10); v != model.VerdictSuspectOCR {
		t.Errorf("custom assessor verdict = %s, want SUSPECT_OCR", v)
	}
	if v, _ := Assess(&s, 10); v != model.VerdictOK {
		t.Errorf("default assessor verdict = %s, want OK", v)
	}
}

func TestAssessIsTotal(t *testing.T) {
	valid := map[model.Verdict]bool{
		model.VerdictOK:         true,
		model.VerdictTooShort:   true,
		model.VerdictSuspectOCR: true,
		model.VerdictUnreadable: true,
	}
	inputs := []string{"", " ", "\x00\xff", "||||||||||", "{}[]()<>~`", strings.Repeat("z", 5000)}
	for _, in := range inputs {
		for _, min := range []int{0, 1, 40, 10000} {
			s := in
			v, _ := Assess(&s, min)
			if !valid[v] {
				t.Errorf("Assess(%q, %d) = %q, not a known verdict", in, min, v)
			}
		}
	}
}

func TestNoiseRatio(t *testing.T) {
	if got := Default.NoiseRatio(""); got != 0 {
		t.Errorf("NoiseRatio(\"\") = %v, want 0", got)
	}
	if got := Default.NoiseRatio(`\/`); got != 1 {
		t.Errorf("NoiseRatio(slashes) = %v, want 1", got)
	}
}
