// Package ocr defines the Provider interface for optical character
// recognition backends.
//
// The screen loop hands a Provider the captured frame and receives plain
// text back, one line per detected text region. Lines carry the region's
// bounding box so the LLM can reason about screen layout:
//
//	[x1, y1, x2, y2] detected text
//
// Implementations must be safe for concurrent use; the screen loop issues at
// most one ExtractText at a time but tests may not.
package ocr

import (
	"context"
	"errors"
	"image"
)

// Errors returned by Provider implementations.
var (
	// ErrInitFailed is returned by constructors when the engine cannot be
	// initialised.
	ErrInitFailed = errors.New("ocr: engine init failed")

	// ErrExtractFailed wraps per-frame extraction failures. The screen loop
	// logs these and keeps the previous text.
	ErrExtractFailed = errors.New("ocr: text extraction failed")
)

// Provider extracts positioned text from a single image.
type Provider interface {
	// ExtractText runs OCR on img and returns the positioned-line rendering
	// described in the package comment. An image with no recognisable text
	// yields ("", nil). Errors wrap ErrExtractFailed.
	ExtractText(ctx context.Context, img image.Image) (string, error)
}
