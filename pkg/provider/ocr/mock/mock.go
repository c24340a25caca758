// Package mock provides a scriptable ocr.Provider test double.
package mock

import (
	"context"
	"image"
	"sync"

	"github.com/bigear-ai/bigear/pkg/provider/ocr"
)

// Compile-time assertion.
var _ ocr.Provider = (*Provider)(nil)

// Provider replays scripted OCR texts. When Texts is exhausted, Text is
// returned for every further call.
type Provider struct {
	mu sync.Mutex

	Texts []string
	Text  string
	Err   error

	Calls int
}

// ExtractText implements ocr.Provider.
func (p *Provider) ExtractText(_ context.Context, _ image.Image) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.Calls++
	if p.Err != nil {
		return "", p.Err
	}
	if len(p.Texts) > 0 {
		t := p.Texts[0]
		p.Texts = p.Texts[1:]
		return t, nil
	}
	return p.Text, nil
}

// CallCount reports the number of ExtractText invocations.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.Calls
}
