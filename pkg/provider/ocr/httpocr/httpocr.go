// Package httpocr implements ocr.Provider against a RapidOCR sidecar served
// over HTTP. The sidecar accepts a JPEG body on POST /ocr and answers with a
// JSON array of detected regions.
//
// Running the ONNX recognition model out of process keeps CGO out of this
// binary and lets the sidecar be scaled or swapped independently.
package httpocr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/jpeg"
	"net/http"
	"strings"
	"time"

	"github.com/bigear-ai/bigear/pkg/provider/ocr"
)

// Compile-time assertion.
var _ ocr.Provider = (*Provider)(nil)

// DefaultBaseURL is where a locally started sidecar listens.
const DefaultBaseURL = "http://localhost:8900"

const jpegQuality = 80

// Region is one detected text region in the sidecar response.
type Region struct {
	// Box is [x1, y1, x2, y2] in source-image pixels.
	Box [4]int `json:"box"`

	// Text is the recognised content of the region.
	Text string `json:"text"`
}

// Provider posts frames to the OCR sidecar.
type Provider struct {
	baseURL    string
	httpClient *http.Client
}

// Option is a functional option for Provider.
type Option func(*Provider)

// WithTimeout sets the per-request HTTP timeout. Defaults to 30 s; OCR on a
// full-resolution frame can be slow on CPU-only hosts.
func WithTimeout(d time.Duration) Option {
	return func(p *Provider) { p.httpClient.Timeout = d }
}

// New creates a Provider talking to the sidecar at baseURL. An empty baseURL
// selects DefaultBaseURL.
func New(baseURL string, opts ...Option) *Provider {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	p := &Provider{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// ExtractText implements ocr.Provider.
func (p *Provider) ExtractText(ctx context.Context, img image.Image) (string, error) {
	if img == nil {
		return "", nil
	}

	var body bytes.Buffer
	if err := jpeg.Encode(&body, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return "", fmt.Errorf("httpocr: encode frame: %v: %w", err, ocr.ErrExtractFailed)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/ocr", &body)
	if err != nil {
		return "", fmt.Errorf("httpocr: build request: %v: %w", err, ocr.ErrExtractFailed)
	}
	req.Header.Set("Content-Type", "image/jpeg")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("httpocr: post frame: %v: %w", err, ocr.ErrExtractFailed)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("httpocr: sidecar returned %s: %w", resp.Status, ocr.ErrExtractFailed)
	}

	var regions []Region
	if err := json.NewDecoder(resp.Body).Decode(&regions); err != nil {
		return "", fmt.Errorf("httpocr: decode response: %v: %w", err, ocr.ErrExtractFailed)
	}

	return Render(regions), nil
}

// Render formats regions as positioned lines, skipping empty text.
func Render(regions []Region) string {
	lines := make([]string, 0, len(regions))
	for _, r := range regions {
		if r.Text == "" {
			continue
		}
		lines = append(lines, fmt.Sprintf("[%d, %d, %d, %d] %s", r.Box[0], r.Box[1], r.Box[2], r.Box[3], r.Text))
	}
	return strings.Join(lines, "\n")
}
