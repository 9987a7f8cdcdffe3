package model

import (
	"errors"
	"fmt"
	"image"
	"math"
	"strings"
)

// PageBreak is appended after every page when page texts are joined into a transcript.
const PageBreak = "\n\n=== PAGE BREAK ===\n\n"

// IdentityStatus describes how much of the student identity was recovered.
type IdentityStatus string

const (
	IdentityOK             IdentityStatus = "OK"
	IdentityPartial        IdentityStatus = "PARTIAL"
	IdentityNeedsManualFix IdentityStatus = "NEEDS_MANUAL_FIX"
	IdentityError          IdentityStatus = "ERROR"
	IdentityNoImage        IdentityStatus = "NO_IMAGE"
)

// Verdict is the OCR-quality classification of an answer fragment.
type Verdict string

const (
	VerdictOK         Verdict = "OK"
	VerdictTooShort   Verdict = "TOO_SHORT"
	VerdictSuspectOCR Verdict = "SUSPECT_OCR"
	VerdictUnreadable Verdict = "UNREADABLE"
)

// Flag explains why a verdict was reached.
type Flag string

const (
	FlagPass        Flag = "PASS"
	FlagLengthCheck Flag = "LENGTH_CHECK"
	FlagHighGarbage Flag = "HIGH_GARBAGE"
	FlagMissingText Flag = "MISSING_TEXT"
)

// Provenance tags where a provisional score came from.
type Provenance string

const (
	ProvenanceHigh       Provenance = "AUTO_HIGH"
	ProvenanceMedium     Provenance = "AUTO_MEDIUM"
	ProvenanceLow        Provenance = "AUTO_LOW"
	ProvenanceUnreadable Provenance = "UNREADABLE"
	ProvenanceNoAnswer   Provenance = "NO_ANSWER"
	ProvenanceModel      Provenance = "AI_MODEL"
)

// Disposition is the script-level routing decision.
type Disposition string

const (
	DispositionAutoComplete  Disposition = "AUTO_COMPLETE"
	DispositionPartialManual Disposition = "PARTIAL_MANUAL"
	DispositionFullManual    Disposition = "FULL_MANUAL"
	DispositionPDFError      Disposition = "PDF_ERROR"
)

// Question is one entry of the exam definition. Order within the exam matters:
// the next question's marker bounds the current answer.
type Question struct {
	ID        string `json:"id" yaml:"id" mapstructure:"id"`
	Name      string `json:"name" yaml:"name" mapstructure:"name"`
	MaxMarks  int    `json:"marks" yaml:"marks" mapstructure:"marks"`
	Marker    string `json:"marker_text" yaml:"marker_text" mapstructure:"marker_text"`
	MinLength int    `json:"min_length" yaml:"min_length" mapstructure:"min_length"`
}

// Transcript is the OCR output of one script. A nil *Transcript means the
// transcription collaborator could not produce one.
type Transcript struct {
	Text      string
	FirstPage image.Image
}

// Identity holds the name and registration number found in the page header.
type Identity struct {
	Name   *string        `json:"name"`
	RegNo  *string        `json:"reg_no"`
	Status IdentityStatus `json:"status"`
}

// QuestionResult is the per-question outcome for one script.
type QuestionResult struct {
	QuestionID  string     `json:"question_id"`
	Fragment    *string    `json:"fragment"`
	Verdict     Verdict    `json:"ocr_status"`
	Flag        Flag       `json:"ocr_flag"`
	AIScore     *float64   `json:"ai_score"`
	FinalScore  *float64   `json:"final_score"`
	Provenance  Provenance `json:"ai_status"`
	NeedsReview bool       `json:"needs_review"`
}

// ScriptResult aggregates everything produced for one uploaded script.
type ScriptResult struct {
	ScriptName  string           `json:"script_name"`
	Identity    Identity         `json:"identity"`
	Questions   []QuestionResult `json:"questions"`
	Total       *float64         `json:"total_score"`
	Disposition Disposition      `json:"script_status"`
}

// NeedsReview reports whether the script belongs in the manual-review subset.
func (r ScriptResult) NeedsReview() bool {
	if r.Disposition != DispositionAutoComplete {
		return true
	}
	return r.Total == nil || *r.Total == 0
}

// Question returns the result for the given question ID, or nil.
func (r *ScriptResult) Question(id string) *QuestionResult {
	for i := range r.Questions {
		if r.Questions[i].QuestionID == id {
			return &r.Questions[i]
		}
	}
	return nil
}

// RecomputeTotal sums all non-nil final scores, rounded to one decimal.
func (r *ScriptResult) RecomputeTotal() {
	if r.Disposition == DispositionPDFError {
		r.Total = nil
		return
	}
	var sum float64
	for _, q := range r.Questions {
		if q.FinalScore != nil {
			sum += *q.FinalScore
		}
	}
	total := Round1(sum)
	r.Total = &total
}

// Round1 rounds to one decimal place.
func Round1(v float64) float64 {
	return math.Round(v*10) / 10
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T {
	return &v
}

// Default noise configuration.
const (
	DefaultNoiseChars     = "!@#$%^&*()[]{}|\\/<>~`"
	DefaultNoiseThreshold = 0.3
	DefaultMarkerKeyWords = 3
	DefaultHeaderFraction = 0.25
	DefaultTailCap        = 1000
)

// GradingConfig is the read-only exam configuration passed into each component.
type GradingConfig struct {
	Questions      []Question
	NoiseChars     string
	NoiseThreshold float64
	MarkerKeyWords int     // words chained by the last-resort marker pattern
	HeaderFraction float64 // share of the first page searched for identity
	TailCap        int     // max characters captured for the last question
}

// DefaultGradingConfig returns a config for the given questions with default thresholds.
func DefaultGradingConfig(questions []Question) GradingConfig {
	return GradingConfig{
		Questions:      questions,
		NoiseChars:     DefaultNoiseChars,
		NoiseThreshold: DefaultNoiseThreshold,
		MarkerKeyWords: DefaultMarkerKeyWords,
		HeaderFraction: DefaultHeaderFraction,
		TailCap:        DefaultTailCap,
	}
}

// Validate checks the configuration for values the pipeline cannot work with.
func (c GradingConfig) Validate() error {
	if len(c.Questions) == 0 {
		return errors.New("no questions configured")
	}
	seen := make(map[string]bool, len(c.Questions))
	for i, q := range c.Questions {
		if strings.TrimSpace(q.ID) == "" {
			return fmt.Errorf("question %d: missing id", i+1)
		}
		if seen[q.ID] {
			return fmt.Errorf("question %s: duplicate id", q.ID)
		}
		seen[q.ID] = true
		if strings.TrimSpace(q.Marker) == "" {
			return fmt.Errorf("question %s: missing marker_text", q.ID)
		}
		if q.MaxMarks <= 0 {
			return fmt.Errorf("question %s: marks must be positive", q.ID)
		}
		if q.MinLength < 0 {
			return fmt.Errorf("question %s: min_length must not be negative", q.ID)
		}
	}
	if c.NoiseThreshold < 0 || c.NoiseThreshold > 1 {
		return fmt.Errorf("noise threshold %v out of range [0,1]", c.NoiseThreshold)
	}
	if c.MarkerKeyWords < 2 {
		return fmt.Errorf("marker keyword count %d must be at least 2", c.MarkerKeyWords)
	}
	if c.HeaderFraction <= 0 || c.HeaderFraction > 1 {
		return fmt.Errorf("header fraction %v out of range (0,1]", c.HeaderFraction)
	}
	if c.TailCap <= 0 {
		return fmt.Errorf("tail cap %d must be positive", c.TailCap)
	}
	return nil
}
