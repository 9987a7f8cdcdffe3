package segment

import (
	"strings"
	"testing"
)

func strOrNil(s *string) string {
	if s == nil {
		return "<nil>"
	}
	return *s
}

func TestFindStrategies(t *testing.T) {
	tests := []struct {
		name       string
		transcript string
		marker     string
		next       string
		want       string
	}{
		{
			name:       "literal match",
			transcript: "Q1 Summarize the information shown in the chart below. Next Part",
			marker:     "Summarize the information",
			next:       "Next Part",
			want:       "shown in the chart below.",
		},
		{
			name:       "case insensitive",
			transcript: "SUMMARIZE THE INFORMATION the bars rise steadily",
			marker:     "Summarize the information",
			want:       "the bars rise steadily",
		},
		{
			name:       "split whitespace",
			transcript: "Summarize  the\ninformation the bars rise steadily",
			marker:     "Summarize the information",
			want:       "the bars rise steadily",
		},
		{
			name:       "noise between words",
			transcript: "Summarize|| the ~~information the bars rise steadily",
			marker:     "Summarize the information",
			want:       "the bars rise steadily",
		},
		{
			name:       "leading key words",
			transcript: "An increasing ... number of folk buy online because prices are low",
			marker:     "An increasing number of people are buying",
			want:       "of folk buy online because prices are low",
		},
		{
			name:       "next marker by key words",
			transcript: "Summarize the information rainfall doubled in July Public  Transportation in Dhaka buses",
			marker:     "Summarize the information",
			next:       "Public Transportation In Dhaka",
			want:       "rainfall doubled in July",
		},
		{
			name:       "next marker missing runs to end",
			transcript: "Summarize the information rainfall doubled in July",
			marker:     "Summarize the information",
			next:       "Public Transportation In Dhaka",
			want:       "rainfall doubled in July",
		},
		{
			name:       "marker missing",
			transcript: "nothing relevant here at all",
			marker:     "Summarize the information",
			want:       "<nil>",
		},
		{
			name:       "degenerate span",
			transcript: "Summarize the information  abcde  ",
			marker:     "Summarize the information",
			want:       "<nil>",
		},
		{
			name:       "six characters kept",
			transcript: "Summarize the information abcdef",
			marker:     "Summarize the information",
			want:       "abcdef",
		},
		{
			name:       "single word marker",
			transcript: "Essay: my holiday was long and sunny",
			marker:     "Essay:",
			want:       "my holiday was long and sunny",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := strOrNil(Default.Find(tt.transcript, tt.marker, tt.next))
			if got != tt.want {
				t.Errorf("Find() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestLastQuestionTailCap(t *testing.T) {
	body := strings.Repeat("a", 1500)
	got := Default.Find("Marker here "+body, "Marker here", "")
	if got == nil {
		t.Fatal("Find() = nil, want capped answer")
	}
	// One space after the marker is trimmed from the 1000-char window.
	if n := len(*got); n != 999 {
		t.Errorf("len(answer) = %d, want 999", n)
	}

	s := Segmenter{KeyWords: 3, TailCap: 10}
	got = s.Find("Marker here 0123456789abcdef", "Marker here", "")
	if strOrNil(got) != "012345678" {
		t.Errorf("Find() with TailCap 10 = %q, want %q", strOrNil(got), "012345678")
	}
}

func TestTailCapCountsRunes(t *testing.T) {
	s := Segmenter{KeyWords: 3, TailCap: 8}
	got := s.Find("Marker here ééééééééé", "Marker here", "")
	if strOrNil(got) != "ééééééé" {
		t.Errorf("Find() = %q, want seven runes", strOrNil(got))
	}
}

func TestKeyWordsTunable(t *testing.T) {
	transcript := "Describe your ## favourite ## city in detail: Paris is lovely in spring"
	two := Segmenter{KeyWords: 2, TailCap: 1000}
	got := two.Find(transcript, "Describe favourite town please", "")
	if strOrNil(got) != "## city in detail: Paris is lovely in spring" {
		t.Errorf("two key words: Find() = %q", strOrNil(got))
	}

	three := Segmenter{KeyWords: 3, TailCap: 1000}
	if got := three.Find(transcript, "Describe favourite town please", ""); got != nil {
		t.Errorf("three key words: Find() = %q, want nil", *got)
	}
}

func TestSegmentIdempotent(t *testing.T) {
	transcript := "Summarize the information sales rose then fell\n\n=== PAGE BREAK ===\n\nPublic Transportation In Dhaka is crowded"
	m := Default.Compile("Summarize the information")
	n := Default.Compile("Public Transportation In Dhaka")

	first := Default.Segment(transcript, m, n)
	second := Default.Segment(transcript, m, n)
	if strOrNil(first) != strOrNil(second) {
		t.Errorf("Segment() not idempotent: %q vs %q", strOrNil(first), strOrNil(second))
	}
	if strOrNil(first) != "sales rose then fell\n\n=== PAGE BREAK ===" {
		t.Errorf("Segment() = %q", strOrNil(first))
	}
}

func TestCompileEscapesMetacharacters(t *testing.T) {
	got := Default.Find("Online Shopping A&D (part 2) advantages outweigh costs", "A&D (part 2)", "")
	if strOrNil(got) != "advantages outweigh costs" {
		t.Errorf("Find() = %q", strOrNil(got))
	}
}
