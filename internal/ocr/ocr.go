// Package ocr turns uploaded exam PDFs into transcripts: scanned page images
// are pulled out of the document and passed through an OCR engine.
package ocr

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"log/slog"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	pdfmodel "github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	_ "golang.org/x/image/tiff"

	"github.com/rahibchy/exam-grading-system/internal/model"
)

// ErrNoPages is returned when a document has neither page images nor a text layer.
var ErrNoPages = errors.New("document has no readable pages")

// Transcriber converts a document into a transcript. Any error means the
// script cannot be processed.
type Transcriber interface {
	Transcribe(ctx context.Context, doc []byte) (*model.Transcript, error)
}

// Recognizer is an OCR engine working on a single image.
type Recognizer interface {
	Recognize(ctx context.Context, img image.Image) (string, error)
}

// PDFTranscriber OCRs the largest embedded image of every page. Documents
// without images fall back to their text layer and carry no first page image.
type PDFTranscriber struct {
	Engine Recognizer
}

// NewPDFTranscriber returns a transcriber using engine for page OCR.
func NewPDFTranscriber(engine Recognizer) *PDFTranscriber {
	return &PDFTranscriber{Engine: engine}
}

// Transcribe implements Transcriber.
func (t *PDFTranscriber) Transcribe(ctx context.Context, doc []byte) (*model.Transcript, error) {
	pages, err := PageImages(doc)
	if err != nil {
		return nil, err
	}
	if len(pages) == 0 {
		texts, err := TextLayer(doc)
		if err != nil {
			return nil, err
		}
		if len(texts) == 0 {
			return nil, ErrNoPages
		}
		slog.Debug("no page images, using text layer", "pages", len(texts))
		return &model.Transcript{Text: JoinPages(texts)}, nil
	}
	return t.transcribePages(ctx, pages)
}

func (t *PDFTranscriber) transcribePages(ctx context.Context, pages []Page) (*model.Transcript, error) {
	texts := make([]string, 0, len(pages))
	for _, p := range pages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		text, err := t.Engine.Recognize(ctx, p.Image)
		if err != nil {
			return nil, fmt.Errorf("recognize page %d: %w", p.Number, err)
		}
		texts = append(texts, text)
	}
	tr := &model.Transcript{Text: JoinPages(texts)}
	if pages[0].Number == 1 {
		tr.FirstPage = pages[0].Image
	} else {
		slog.Warn("first page has no image, identity header unavailable", "first_image_page", pages[0].Number)
	}
	return tr, nil
}

// JoinPages concatenates page texts, appending the page break after each page.
func JoinPages(texts []string) string {
	var sb strings.Builder
	for _, t := range texts {
		sb.WriteString(t)
		sb.WriteString(model.PageBreak)
	}
	return sb.String()
}

// Page is the scanned image of one PDF page. Number is 1-based.
type Page struct {
	Number int
	Image  image.Image
}

// PageImages extracts one image per page (the largest by area), in page order.
// Images that cannot be decoded are skipped, as are pages without any image.
func PageImages(doc []byte) ([]Page, error) {
	conf := pdfmodel.NewDefaultConfiguration()
	conf.ValidationMode = pdfmodel.ValidationRelaxed

	byPage := make(map[int]image.Image)
	maxPage := 0
	err := api.ExtractImages(bytes.NewReader(doc), nil, func(img pdfmodel.Image, _ bool, _ int) error {
		decoded, _, err := image.Decode(img)
		if err != nil {
			slog.Debug("skipping undecodable page image", "page", img.PageNr, "name", img.Name, "type", img.FileType, "error", err)
			return nil
		}
		if cur, ok := byPage[img.PageNr]; ok && area(cur) >= area(decoded) {
			return nil
		}
		byPage[img.PageNr] = decoded
		if img.PageNr > maxPage {
			maxPage = img.PageNr
		}
		return nil
	}, conf)
	if err != nil {
		return nil, fmt.Errorf("extract page images: %w", err)
	}

	pages := make([]Page, 0, len(byPage))
	for n := 1; n <= maxPage; n++ {
		if img, ok := byPage[n]; ok {
			pages = append(pages, Page{Number: n, Image: img})
		}
	}
	return pages, nil
}

func area(img image.Image) int {
	b := img.Bounds()
	return b.Dx() * b.Dy()
}

// TextLayer returns the plain text of every page that has any.
func TextLayer(doc []byte) ([]string, error) {
	r, err := pdf.NewReader(bytes.NewReader(doc), int64(len(doc)))
	if err != nil {
		return nil, fmt.Errorf("open text layer: %w", err)
	}
	var texts []string
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		content, err := page.GetPlainText(nil)
		if err != nil {
			slog.Debug("skipping page text", "page", i, "error", err)
			continue
		}
		if strings.TrimSpace(content) != "" {
			texts = append(texts, content)
		}
	}
	return texts, nil
}
