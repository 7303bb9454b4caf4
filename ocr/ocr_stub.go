//go:build !ocr

// Package ocr recognizes text in scanned document pages via the
// Tesseract engine (gosseract).
//
// This is the stub implementation used when the "ocr" build tag is not
// set. All operations return ErrNotEnabled, and scanned pages simply
// yield no placeholder matches. To enable recognition, rebuild with the
// "ocr" build tag and Tesseract installed:
//
//	go build -tags ocr
package ocr

import (
	"errors"

	"github.com/tsawler/redpen/geometric"
)

// ErrNotEnabled is returned when recognition is requested but OCR
// support was not compiled in. Rebuild with -tags ocr to enable it.
var ErrNotEnabled = errors.New("OCR support not enabled; rebuild with -tags ocr")

// Client is the stub recognizer. It satisfies geometric.Recognizer so
// callers can wire it unconditionally.
type Client struct{}

// New returns a stub client. Unlike the OCR-enabled build it never
// fails, so construction does not depend on build tags.
func New() (*Client, error) {
	return &Client{}, nil
}

// Close is a no-op for the stub client.
func (c *Client) Close() error {
	return nil
}

// SetLanguage returns ErrNotEnabled.
func (c *Client) SetLanguage(lang string) error {
	return ErrNotEnabled
}

// Words returns ErrNotEnabled.
func (c *Client) Words(imageData []byte) ([]geometric.Word, error) {
	return nil, ErrNotEnabled
}
