// Package tesseract implements OCR with the gosseract bindings.
package tesseract

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"strconv"

	"github.com/otiai10/gosseract/v2"
)

// Engine recognizes text in a single image. A new client is created per call,
// so one Engine is safe for concurrent use.
type Engine struct {
	Languages   []string
	PageSegMode gosseract.PageSegMode
	DPI         int
}

// New returns an engine for English text laid out as a single uniform block,
// which suits both handwritten answer pages and sparse header lines.
func New() *Engine {
	return &Engine{
		Languages:   []string{"eng"},
		PageSegMode: gosseract.PSM_SINGLE_BLOCK,
		DPI:         300,
	}
}

// Recognize implements ocr.Recognizer and identity.RegionRecognizer.
func (e *Engine) Recognize(ctx context.Context, img image.Image) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", fmt.Errorf("encode image: %w", err)
	}

	c := gosseract.NewClient()
	defer c.Close()

	if len(e.Languages) > 0 {
		if err := c.SetLanguage(e.Languages...); err != nil {
			return "", fmt.Errorf("set languages: %w", err)
		}
	}
	if err := c.SetPageSegMode(e.PageSegMode); err != nil {
		return "", fmt.Errorf("set page segmentation mode: %w", err)
	}
	if e.DPI > 0 {
		if err := c.SetVariable(gosseract.SettableVariable("user_defined_dpi"), strconv.Itoa(e.DPI)); err != nil {
			return "", fmt.Errorf("set dpi: %w", err)
		}
	}
	if err := c.SetImageFromBytes(buf.Bytes()); err != nil {
		return "", fmt.Errorf("set image: %w", err)
	}
	text, err := c.Text()
	if err != nil {
		return "", fmt.Errorf("recognize text: %w", err)
	}
	return text, nil
}
