// Package gemini implements llm.Provider with the official Google GenAI SDK.
// Gemini is the default provider: it is vision-capable, so the captured
// screen frame rides along as an inline JPEG part, and it supports native
// function calling for the store_memory tool.
package gemini

import (
	"context"
	"encoding/json"
	"fmt"

	"google.golang.org/genai"

	"github.com/bigear-ai/bigear/pkg/provider/llm"
)

// Compile-time assertion.
var _ llm.Provider = (*Provider)(nil)

// DefaultModel is used when no model is configured.
const DefaultModel = "gemini-2.0-flash"

// Provider streams completions from the Gemini API.
type Provider struct {
	client *genai.Client
	model  string
}

// New creates a Provider. apiKey must be non-empty; a missing key surfaces as
// llm.ErrNotConfigured so the caller can fail startup with a clear message.
func New(ctx context.Context, apiKey, model string) (*Provider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini: missing API key: %w", llm.ErrNotConfigured)
	}
	if model == "" {
		model = DefaultModel
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}
	return &Provider{client: client, model: model}, nil
}

// Stream implements llm.Provider.
func (p *Provider) Stream(ctx context.Context, req llm.Request) (<-chan llm.Chunk, error) {
	cfg := &genai.GenerateContentConfig{}
	if req.System != "" {
		cfg.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: req.System}},
		}
	}
	for _, td := range req.Tools {
		cfg.Tools = append(cfg.Tools, &genai.Tool{
			FunctionDeclarations: []*genai.FunctionDeclaration{{
				Name:            td.Name,
				Description:     td.Description,
				ParametersJsonSchema: td.Parameters,
			}},
		})
	}

	parts := []*genai.Part{{Text: req.Prompt}}
	if len(req.ImageJPEG) > 0 {
		parts = append(parts, &genai.Part{
			InlineData: &genai.Blob{MIMEType: "image/jpeg", Data: req.ImageJPEG},
		})
	}
	contents := []*genai.Content{{Role: genai.RoleUser, Parts: parts}}

	ch := make(chan llm.Chunk, 32)
	go func() {
		defer close(ch)

		var toolCalls []llm.ToolCall
		for resp, err := range p.client.Models.GenerateContentStream(ctx, p.model, contents, cfg) {
			if err != nil {
				emit(ctx, ch, llm.Chunk{Err: fmt.Errorf("gemini: stream: %w", err)})
				return
			}
			if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
				continue
			}
			for _, part := range resp.Candidates[0].Content.Parts {
				switch {
				case part.Text != "":
					if !emit(ctx, ch, llm.Chunk{Text: part.Text}) {
						return
					}
				case part.FunctionCall != nil:
					args, _ := json.Marshal(part.FunctionCall.Args)
					toolCalls = append(toolCalls, llm.ToolCall{
						Name:      part.FunctionCall.Name,
						Arguments: string(args),
					})
				}
			}
		}
		if len(toolCalls) > 0 {
			emit(ctx, ch, llm.Chunk{ToolCalls: toolCalls})
		}
	}()
	return ch, nil
}

// emit sends c unless ctx is done; reports whether the send happened.
func emit(ctx context.Context, ch chan<- llm.Chunk, c llm.Chunk) bool {
	select {
	case ch <- c:
		return true
	case <-ctx.Done():
		return false
	}
}
