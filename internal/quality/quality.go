// Package quality classifies how far an OCR'd answer fragment can be trusted.
package quality

import (
	"strings"
	"unicode/utf8"

	"github.com/rahibchy/exam-grading-system/internal/model"
)

// Assessor holds the noise character set and the ratio above which a fragment
// is considered garbled.
type Assessor struct {
	NoiseChars string
	Threshold  float64
}

// Default is the assessor used by the package-level Assess.
var Default = Assessor{
	NoiseChars: model.DefaultNoiseChars,
	Threshold:  model.DefaultNoiseThreshold,
}

// New returns an assessor configured from cfg.
func New(cfg model.GradingConfig) Assessor {
	return Assessor{NoiseChars: cfg.NoiseChars, Threshold: cfg.NoiseThreshold}
}

// Assess classifies fragment with the default assessor.
func Assess(fragment *string, minLength int) (model.Verdict, model.Flag) {
	return Default.Assess(fragment, minLength)
}

// Assess classifies fragment. The length check takes precedence over noise.
func (a Assessor) Assess(fragment *string, minLength int) (model.Verdict, model.Flag) {
	if fragment == nil {
		return model.VerdictUnreadable, model.FlagMissingText
	}
	if utf8.RuneCountInString(*fragment) < minLength {
		return model.VerdictTooShort, model.FlagLengthCheck
	}
	if a.NoiseRatio(*fragment) > a.Threshold {
		return model.VerdictSuspectOCR, model.FlagHighGarbage
	}
	return model.VerdictOK, model.FlagPass
}

// NoiseRatio is the share of runes in text that belong to the noise set.
func (a Assessor) NoiseRatio(text string) float64 {
	total := 0
	noise := 0
	for _, r := range text {
		total++
		if strings.ContainsRune(a.NoiseChars, r) {
			noise++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(noise) / float64(total)
}
