//go:build ocr

// Package ocr recognizes text in scanned document pages via the
// Tesseract engine (gosseract). It turns page images into positioned
// words so the geometric locator can find grading placeholders in
// documents that carry no native text.
//
// Tesseract must be installed on the system. On macOS:
//
//	brew install tesseract
//
// On Ubuntu/Debian:
//
//	apt-get install tesseract-ocr
//
// Recognizing Chinese labels additionally needs the chi_sim traineddata
// package and SetLanguage("eng+chi_sim").
package ocr

import (
	"fmt"
	"strings"

	"github.com/otiai10/gosseract/v2"

	"github.com/tsawler/redpen/geometric"
)

// minConfidence drops noise words that Tesseract is unsure about.
const minConfidence = 30.0

// Client wraps Tesseract for word-level recognition. It implements
// geometric.Recognizer.
type Client struct {
	client *gosseract.Client
}

// New creates a new OCR client. The client should be closed when no
// longer needed to release resources.
func New() (*Client, error) {
	return &Client{client: gosseract.NewClient()}, nil
}

// Close releases OCR resources.
func (c *Client) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

// SetLanguage sets the language(s) for recognition. Multiple languages
// can be specified as a "+" separated string (e.g. "eng+chi_sim").
// Default is "eng".
func (c *Client) SetLanguage(lang string) error {
	return c.client.SetLanguage(lang)
}

// Words recognizes the image (PNG, TIFF, JPEG, ...) and returns each
// word with its pixel bounding box. Low-confidence and empty results
// are dropped.
func (c *Client) Words(imageData []byte) ([]geometric.Word, error) {
	if err := c.client.SetImageFromBytes(imageData); err != nil {
		return nil, fmt.Errorf("setting OCR image: %w", err)
	}

	boxes, err := c.client.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		return nil, fmt.Errorf("recognizing words: %w", err)
	}

	words := make([]geometric.Word, 0, len(boxes))
	for _, b := range boxes {
		text := strings.TrimSpace(b.Word)
		if text == "" || b.Confidence < minConfidence {
			continue
		}
		words = append(words, geometric.Word{Text: text, Box: b.Box})
	}
	return words, nil
}
