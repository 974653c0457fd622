// Package classify turns a detection image into a normalized species
// classification by calling an external multimodal description model
// and defensively parsing its output.
package classify

import (
	"context"
	"fmt"
	"time"

	genai "google.golang.org/genai"
)

// Provider describes an image and returns the model's raw text output.
// Implementations must tolerate being called concurrently.
type Provider interface {
	Describe(ctx context.Context, image []byte, mimeType, prompt string) (string, error)
}

// GeminiProvider is a thin wrapper around the official genai client.
type GeminiProvider struct {
	cli     *genai.Client
	model   string
	retries int
}

// NewGeminiProvider builds a Gemini-backed provider. The API key is
// read by the client from its config/environment.
func NewGeminiProvider(ctx context.Context, apiKey, model string, retries int) (*GeminiProvider, error) {
	cfg := &genai.ClientConfig{Backend: genai.BackendGeminiAPI}
	if apiKey != "" {
		cfg.APIKey = apiKey
	}
	cli, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("creating genai client: %w", err)
	}
	if retries < 1 {
		retries = 1
	}
	return &GeminiProvider{cli: cli, model: model, retries: retries}, nil
}

// Describe sends the image plus instruction and returns the text of the
// first non-empty response part. Truncated or safety-filtered responses
// still return whatever text is present; the parser deals with shape.
func (g *GeminiProvider) Describe(ctx context.Context, image []byte, mimeType, prompt string) (string, error) {
	contents := []*genai.Content{{
		Parts: []*genai.Part{
			{Text: prompt},
			{InlineData: &genai.Blob{MIMEType: mimeType, Data: image}},
		},
	}}
	config := &genai.GenerateContentConfig{ResponseMIMEType: "application/json"}

	var lastErr error
	for attempt := 0; attempt < g.retries; attempt++ {
		resp, err := g.cli.Models.GenerateContent(ctx, g.model, contents, config)
		if err != nil {
			lastErr = err
		} else if txt := firstText(resp); txt != "" {
			return txt, nil
		} else {
			lastErr = fmt.Errorf("model returned no text content")
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(time.Duration(300*(1<<attempt)) * time.Millisecond):
		}
	}
	return "", lastErr
}

// firstText extracts the first non-empty text segment of a response.
func firstText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	for _, cand := range resp.Candidates {
		if cand == nil || cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if part != nil && part.Text != "" {
				return part.Text
			}
		}
	}
	return ""
}
