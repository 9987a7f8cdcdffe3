package model

// BatchExport is the top-level JSON structure for a graded batch.
type BatchExport struct {
	BatchID   string         `json:"batch_id,omitempty"`
	Questions []Question     `json:"questions"`
	Summary   Summary        `json:"summary"`
	Results   []ScriptResult `json:"results"`
	Review    []ReviewEntry  `json:"review"`
}

// Summary counts scripts per disposition.
type Summary struct {
	Total         int `json:"total"`
	AutoComplete  int `json:"auto_complete"`
	PartialManual int `json:"partial_manual"`
	FullManual    int `json:"full_manual"`
	PDFError      int `json:"pdf_error"`
	NeedsReview   int `json:"needs_review"`
}

// ReviewEntry is one row of the manual-review list.
type ReviewEntry struct {
	ScriptName string      `json:"script_name"`
	Student    string      `json:"student"`
	Status     Disposition `json:"status"`
	Issues     []string    `json:"issues"`
}

// Summarize counts dispositions across results.
func Summarize(results []ScriptResult) Summary {
	s := Summary{Total: len(results)}
	for _, r := range results {
		switch r.Disposition {
		case DispositionAutoComplete:
			s.AutoComplete++
		case DispositionPartialManual:
			s.PartialManual++
		case DispositionFullManual:
			s.FullManual++
		case DispositionPDFError:
			s.PDFError++
		}
		if r.NeedsReview() {
			s.NeedsReview++
		}
	}
	return s
}
