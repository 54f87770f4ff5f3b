package provider

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAIProvider generates chat completions and synthesized images through
// the OpenAI API.
type OpenAIProvider struct {
	name       string
	model      string
	imageModel string
	client     openai.Client
}

// NewOpenAIProvider creates an OpenAI-backed provider. A custom base URL
// allows pointing at API-compatible backends.
func NewOpenAIProvider(apiKey, model, imageModel, baseURL string) (*OpenAIProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai API key is required; set OPENAI_API_KEY or ai.openai.api_key")
	}

	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}

	return &OpenAIProvider{
		name:       "openai/" + model,
		model:      model,
		imageModel: imageModel,
		client:     openai.NewClient(opts...),
	}, nil
}

// Name returns the provider identifier used for cool-down tracking.
func (o *OpenAIProvider) Name() string {
	return o.name
}

// Generate satisfies chat, JSON, and image requests.
func (o *OpenAIProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	if req.Kind == KindImage {
		return o.generateImage(ctx, req)
	}
	return o.generateText(ctx, req)
}

func (o *OpenAIProvider) generateText(ctx context.Context, req Request) (*Response, error) {
	system := req.System
	if req.Kind == KindJSON {
		system += "\nRespond with a single JSON object and nothing else."
	}

	msgs := []openai.ChatCompletionMessageParamUnion{}
	if system != "" {
		msgs = append(msgs, openai.SystemMessage(system))
	}
	msgs = append(msgs, openai.UserMessage(req.User))

	resp, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(o.model),
		Messages: msgs,
	})
	if err != nil {
		return nil, wrapOpenAIError(err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("openai: empty choices")
	}

	return &Response{Text: resp.Choices[0].Message.Content, Model: o.model}, nil
}

func (o *OpenAIProvider) generateImage(ctx context.Context, req Request) (*Response, error) {
	size := req.Size
	if size == "" {
		size = "1024x1024"
	}

	resp, err := o.client.Images.Generate(ctx, openai.ImageGenerateParams{
		Model:  openai.ImageModel(o.imageModel),
		Prompt: req.User,
		Size:   openai.ImageGenerateParamsSize(size),
	})
	if err != nil {
		return nil, wrapOpenAIError(err)
	}
	if len(resp.Data) == 0 || resp.Data[0].B64JSON == "" {
		return nil, fmt.Errorf("openai: no image data in response")
	}

	raw, err := base64.StdEncoding.DecodeString(resp.Data[0].B64JSON)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image payload: %w", err)
	}

	return &Response{Image: raw, Model: o.imageModel}, nil
}

// wrapOpenAIError converts SDK errors into StatusError so the invoker can
// classify them.
func wrapOpenAIError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return &StatusError{Code: apiErr.StatusCode, Message: apiErr.Message}
	}
	return err
}
