// Package segment locates answer spans in an OCR transcript using the marker
// phrases that introduce each question.
package segment

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/rahibchy/exam-grading-system/internal/model"
)

// minFragment is the longest trimmed span still treated as noise.
const minFragment = 5

// Marker is a compiled marker phrase. The start and end strategy lists are
// tried in order and the first match wins.
type Marker struct {
	Phrase string
	start  []*regexp.Regexp
	end    []*regexp.Regexp
}

// Segmenter extracts answer fragments.
type Segmenter struct {
	KeyWords int // words chained by the last-resort pattern
	TailCap  int // characters captured for the last question
}

// Default uses three key words and a 1000 character tail.
var Default = Segmenter{KeyWords: model.DefaultMarkerKeyWords, TailCap: model.DefaultTailCap}

// New returns a segmenter configured from cfg.
func New(cfg model.GradingConfig) Segmenter {
	return Segmenter{KeyWords: cfg.MarkerKeyWords, TailCap: cfg.TailCap}
}

// Compile builds the match strategies for phrase.
//
// Start strategies: literal, words split by whitespace runs, words split by
// any characters, then the leading key words split by any characters.
// End strategies: literal, then the leading key words.
func (s Segmenter) Compile(phrase string) *Marker {
	words := strings.Fields(phrase)
	quoted := make([]string, len(words))
	for i, w := range words {
		quoted[i] = regexp.QuoteMeta(w)
	}
	leading := quoted
	if s.KeyWords > 0 && len(leading) > s.KeyWords {
		leading = leading[:s.KeyWords]
	}

	m := &Marker{Phrase: phrase}
	literal := compile(regexp.QuoteMeta(phrase))
	m.start = append(m.start, literal)
	if len(words) > 0 {
		m.start = append(m.start,
			compile(strings.Join(quoted, `\s+`)),
			compile(strings.Join(quoted, `.*?`)),
		)
	}
	if len(words) >= 2 {
		m.start = append(m.start, compile(strings.Join(leading, `.*?`)))
	}

	m.end = append(m.end, literal)
	if len(words) > 0 {
		m.end = append(m.end, compile(strings.Join(leading, `.*?`)))
	}
	return m
}

func compile(pattern string) *regexp.Regexp {
	return regexp.MustCompile(`(?is)` + pattern)
}

// Segment returns the answer following marker, bounded by next (nil for the
// last question). The result is nil when the marker cannot be located or the
// trimmed span is degenerate.
func (s Segmenter) Segment(transcript string, marker, next *Marker) *string {
	loc := firstMatch(marker.start, transcript)
	if loc == nil {
		return nil
	}
	start := loc[1]

	var end int
	if next != nil {
		end = len(transcript)
		if nl := firstMatch(next.end, transcript[start:]); nl != nil {
			end = start + nl[0]
		}
	} else {
		end = advanceRunes(transcript, start, s.TailCap)
	}

	answer := strings.TrimSpace(transcript[start:end])
	if answer == "" || utf8.RuneCountInString(answer) <= minFragment {
		return nil
	}
	return &answer
}

// Find is Segment with phrases compiled on the fly. An empty next phrase marks
// the last question.
func (s Segmenter) Find(transcript, marker, next string) *string {
	var nm *Marker
	if next != "" {
		nm = s.Compile(next)
	}
	return s.Segment(transcript, s.Compile(marker), nm)
}

func firstMatch(strategies []*regexp.Regexp, text string) []int {
	for _, re := range strategies {
		if loc := re.FindStringIndex(text); loc != nil {
			return loc
		}
	}
	return nil
}

// advanceRunes returns the byte offset n runes past start, clamped to len(s).
func advanceRunes(s string, start, n int) int {
	i := start
	for count := 0; count < n && i < len(s); count++ {
		_, size := utf8.DecodeRuneInString(s[i:])
		i += size
	}
	return i
}
