// Package identity reads the student's name and registration number from the
// header of a script's first page.
package identity

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"regexp"
	"strings"

	"golang.org/x/image/draw"

	"github.com/rahibchy/exam-grading-system/internal/model"
)

// RegionRecognizer returns the text found in an image region.
type RegionRecognizer interface {
	Recognize(ctx context.Context, region image.Image) (string, error)
}

// Patterns are tried in order; earlier ones are more specific.
var (
	namePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?m)[Nn]ame\s*:?\s*([A-Za-z][A-Za-z\s\.]+?)(?:\n|[Rr]eg|$)`),
		regexp.MustCompile(`(?m)Student\s*[Nn]ame\s*:?\s*([A-Za-z][A-Za-z\s\.]+?)(?:\n|[Rr]eg|$)`),
		regexp.MustCompile(`(?m)^\s*([A-Z][a-z]+\s+[A-Z][a-z]+)`),
	}
	regPatterns = []*regexp.Regexp{
		regexp.MustCompile(`[Rr]eg(?:istration)?\s*[Nn]o?\.?\s*:?\s*([0-9]+)`),
		regexp.MustCompile(`[Rr]oll\s*[Nn]o?\.?\s*:?\s*([0-9]+)`),
		regexp.MustCompile(`[Ii][Dd]\s*:?\s*([0-9]+)`),
		regexp.MustCompile(`\b([0-9]{6,10})\b`),
	}
	nameNoise = regexp.MustCompile(`[^A-Za-z\s\.]`)
)

const (
	minNameLen = 4
	minRegLen  = 4
)

// Extractor finds identity fields in the header band of a page image.
type Extractor struct {
	Recognizer     RegionRecognizer
	HeaderFraction float64
}

// New returns an extractor reading the configured header band.
func New(r RegionRecognizer, cfg model.GradingConfig) *Extractor {
	return &Extractor{Recognizer: r, HeaderFraction: cfg.HeaderFraction}
}

// Extract never fails: recognition errors and panics surface as IdentityError.
func (e *Extractor) Extract(ctx context.Context, page image.Image) (id model.Identity) {
	if page == nil {
		return model.Identity{Status: model.IdentityNoImage}
	}
	defer func() {
		if r := recover(); r != nil {
			slog.Error("identity extraction panicked", "panic", r)
			id = model.Identity{Status: model.IdentityError}
		}
	}()

	header := CropHeader(page, e.HeaderFraction)
	text, err := e.Recognizer.Recognize(ctx, header)
	if err != nil {
		slog.Warn("header recognition failed", "error", err)
		return model.Identity{Status: model.IdentityError}
	}
	return Parse(text)
}

// Parse applies the name and registration patterns to recognized header text.
func Parse(text string) model.Identity {
	id := model.Identity{
		Name:  findName(text),
		RegNo: findReg(text),
	}
	switch {
	case id.Name != nil && id.RegNo != nil:
		id.Status = model.IdentityOK
	case id.Name != nil || id.RegNo != nil:
		id.Status = model.IdentityPartial
	default:
		id.Status = model.IdentityNeedsManualFix
	}
	return id
}

func findName(text string) *string {
	for _, re := range namePatterns {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		name := strings.TrimSpace(nameNoise.ReplaceAllString(m[1], ""))
		if len(name) >= minNameLen {
			return &name
		}
	}
	return nil
}

func findReg(text string) *string {
	for _, re := range regPatterns {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		reg := strings.TrimSpace(m[1])
		if len(reg) >= minRegLen {
			return &reg
		}
	}
	return nil
}

// CropHeader copies the top fraction of page, full width, into a new image
// anchored at the origin.
func CropHeader(page image.Image, fraction float64) image.Image {
	b := page.Bounds()
	h := int(float64(b.Dy()) * fraction)
	if h < 1 {
		h = 1
	}
	src := image.Rect(b.Min.X, b.Min.Y, b.Max.X, b.Min.Y+h).Intersect(b)
	dst := image.NewRGBA(image.Rect(0, 0, src.Dx(), src.Dy()))
	draw.Copy(dst, image.Point{}, page, src, draw.Src, nil)
	return dst
}

// String renders an identity for log lines.
func String(id model.Identity) string {
	return fmt.Sprintf("%s (%s) %s", deref(id.Name), deref(id.RegNo), id.Status)
}

func deref(s *string) string {
	if s == nil {
		return "-"
	}
	return *s
}
