// Package report renders graded batches as marksheets and review lists.
package report

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/rahibchy/exam-grading-system/internal/i18n"
	"github.com/rahibchy/exam-grading-system/internal/model"
)

// Unknown stands in for an identity field that could not be read.
const Unknown = "UNKNOWN"

var baseColumns = []string{
	"script_name", "name_raw", "reg_raw", "name_clean", "reg_clean", "id_status", "script_status",
}

var questionColumns = []string{
	"final_score", "ai_score", "ocr_status", "ocr_flag", "ai_status", "ai_flag",
}

// Columns returns the marksheet header for the given exam.
func Columns(questions []model.Question) []string {
	cols := append([]string(nil), baseColumns...)
	for _, q := range questions {
		for _, c := range questionColumns {
			cols = append(cols, q.ID+"_"+c)
		}
	}
	return append(cols, "total_score")
}

// Row renders one result in Columns order. Absent values are blank.
func Row(r model.ScriptResult, questions []model.Question) []string {
	nameClean, regClean := cleanIdentity(r)
	row := []string{
		r.ScriptName,
		str(r.Identity.Name),
		str(r.Identity.RegNo),
		nameClean,
		regClean,
		string(r.Identity.Status),
		string(r.Disposition),
	}
	for _, q := range questions {
		qr := r.Question(q.ID)
		if qr == nil {
			row = append(row, make([]string, len(questionColumns))...)
			continue
		}
		aiFlag := "OK"
		if qr.NeedsReview {
			aiFlag = "NEEDS_REVIEW"
		}
		row = append(row,
			num(qr.FinalScore),
			num(qr.AIScore),
			string(qr.Verdict),
			string(qr.Flag),
			string(qr.Provenance),
			aiFlag,
		)
	}
	return append(row, num(r.Total))
}

// WriteCSV writes the marksheet with a header row.
func WriteCSV(w io.Writer, questions []model.Question, results []model.ScriptResult) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns(questions)); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, r := range results {
		if err := cw.Write(Row(r, questions)); err != nil {
			return fmt.Errorf("write row %s: %w", r.ScriptName, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// Issues lists what a reviewer should look at, localized from ctx.
func Issues(ctx context.Context, r model.ScriptResult) []string {
	if r.Disposition == model.DispositionPDFError {
		return []string{i18n.T(ctx, "IssuePDFError")}
	}

	var issues []string
	switch r.Identity.Status {
	case model.IdentityPartial, model.IdentityNeedsManualFix, model.IdentityError, model.IdentityNoImage:
		issues = append(issues, i18n.T(ctx, "IssueUnreadableID"))
	}
	for _, qr := range r.Questions {
		var key string
		switch qr.Verdict {
		case model.VerdictUnreadable:
			key = "IssueQuestionUnreadable"
		case model.VerdictSuspectOCR:
			key = "IssueQuestionSuspectOCR"
		case model.VerdictTooShort:
			key = "IssueQuestionTooShort"
		default:
			continue
		}
		issues = append(issues, i18n.Td(ctx, key, map[string]any{"Question": qr.QuestionID}))
	}
	if r.Total == nil || *r.Total == 0 {
		issues = append(issues, i18n.T(ctx, "IssueBlankScore"))
	}
	return issues
}

// Review builds review entries for every result that needs a human.
func Review(ctx context.Context, results []model.ScriptResult) []model.ReviewEntry {
	entries := []model.ReviewEntry{}
	for _, r := range results {
		if !r.NeedsReview() {
			continue
		}
		entries = append(entries, model.ReviewEntry{
			ScriptName: r.ScriptName,
			Student:    Student(r),
			Status:     r.Disposition,
			Issues:     Issues(ctx, r),
		})
	}
	return entries
}

// Student renders the "name (reg)" label used in review lists.
func Student(r model.ScriptResult) string {
	if r.Disposition == model.DispositionPDFError {
		return ""
	}
	name, reg := cleanIdentity(r)
	return name + " (" + reg + ")"
}

// WriteReviewCSV writes the review list, joining issues with "; ".
func WriteReviewCSV(w io.Writer, entries []model.ReviewEntry) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"script_name", "student", "status", "issues"}); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, e := range entries {
		if err := cw.Write([]string{e.ScriptName, e.Student, string(e.Status), strings.Join(e.Issues, "; ")}); err != nil {
			return fmt.Errorf("write review row %s: %w", e.ScriptName, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// Export assembles the full JSON document for a batch.
func Export(ctx context.Context, batchID string, questions []model.Question, results []model.ScriptResult) model.BatchExport {
	if results == nil {
		results = []model.ScriptResult{}
	}
	return model.BatchExport{
		BatchID:   batchID,
		Questions: questions,
		Summary:   model.Summarize(results),
		Results:   results,
		Review:    Review(ctx, results),
	}
}

// WriteJSON writes v as indented JSON.
func WriteJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal export: %w", err)
	}
	data = append(data, '\n')
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write export: %w", err)
	}
	return nil
}

// SummaryLine renders a one-line localized batch summary.
func SummaryLine(ctx context.Context, s model.Summary) string {
	line := i18n.Td(ctx, "SummaryLine", map[string]any{
		"Total":         s.Total,
		"AutoComplete":  s.AutoComplete,
		"PartialManual": s.PartialManual,
		"FullManual":    s.FullManual,
		"PDFError":      s.PDFError,
	})
	if s.NeedsReview > 0 {
		line += "; " + i18n.Tp(ctx, "ScriptsNeedReview", s.NeedsReview)
	}
	return line
}

func cleanIdentity(r model.ScriptResult) (name, reg string) {
	if r.Disposition == model.DispositionPDFError {
		return "", ""
	}
	name, reg = Unknown, Unknown
	if r.Identity.Name != nil {
		name = *r.Identity.Name
	}
	if r.Identity.RegNo != nil {
		reg = *r.Identity.RegNo
	}
	return name, reg
}

func str(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func num(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}
