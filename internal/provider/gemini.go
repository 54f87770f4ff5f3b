package provider

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"
)

// GeminiProvider generates chat and structured-JSON completions through the
// Google Gemini API.
type GeminiProvider struct {
	name   string
	model  string
	client *genai.Client
	maxTok int32
	temp   float32
}

// NewGeminiProvider creates a Gemini-backed provider.
func NewGeminiProvider(ctx context.Context, apiKey, model string, maxTokens int32, temperature float32) (*GeminiProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is required; set GEMINI_API_KEY or ai.gemini.api_key")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &GeminiProvider{
		name:   "gemini/" + model,
		model:  model,
		client: client,
		maxTok: maxTokens,
		temp:   temperature,
	}, nil
}

// Name returns the provider identifier used for cool-down tracking.
func (g *GeminiProvider) Name() string {
	return g.name
}

// Generate satisfies chat and JSON requests. Image requests are rejected so
// the invoker advances to an image-capable provider.
func (g *GeminiProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	if req.Kind == KindImage {
		return nil, &StatusError{Code: 400, Message: "gemini provider does not synthesize images"}
	}

	prompt := req.User
	if req.System != "" {
		prompt = req.System + "\n\n" + req.User
	}
	if req.Kind == KindJSON {
		prompt += "\n\nRespond with a single JSON object and nothing else."
	}

	contents := []*genai.Content{{
		Parts: []*genai.Part{{Text: prompt}},
		Role:  "user",
	}}

	cfg := &genai.GenerateContentConfig{
		MaxOutputTokens: g.maxTok,
		Temperature:     genai.Ptr(g.temp),
	}
	if req.Kind == KindJSON {
		cfg.ResponseMIMEType = "application/json"
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, cfg)
	if err != nil {
		return nil, wrapGeminiError(err)
	}

	text := resp.Text()
	if text == "" {
		return nil, fmt.Errorf("empty response from model")
	}

	return &Response{Text: text, Model: g.model}, nil
}

// wrapGeminiError converts SDK errors into StatusError so the invoker can
// classify them.
func wrapGeminiError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return &StatusError{Code: apiErr.Code, Message: apiErr.Message}
	}
	return err
}
