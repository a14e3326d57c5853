package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/philoflow/philoflow/internal/model"
)

// OpenAIAnalyzer implements the analysis port with the official openai-go
// SDK. A custom BaseURL makes it work against any OpenAI-compatible
// service, which is how the "custom" provider kind is configured.
type OpenAIAnalyzer struct {
	cfg  ProviderConfig
	opts []option.RequestOption
}

// NewOpenAIAnalyzer creates an analysis client for an OpenAI-compatible
// endpoint.
func NewOpenAIAnalyzer(cfg ProviderConfig) *OpenAIAnalyzer {
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &OpenAIAnalyzer{cfg: cfg, opts: opts}
}

// Analyze asks the chat model for the structural concept of one segment.
func (c *OpenAIAnalyzer) Analyze(ctx context.Context, req AnalysisRequest) (*model.Concept, error) {
	client := openai.NewClient(c.opts...)

	resp, err := client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.cfg.Model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemInstruction(req.Mode, req.Language)),
			openai.UserMessage(req.Segment),
		},
	})
	if err != nil {
		return nil, classifySDKError(err)
	}
	if len(resp.Choices) == 0 {
		return nil, Fatal("empty choices in analysis response")
	}

	var concept model.Concept
	raw := stripFence(resp.Choices[0].Message.Content)
	if err := json.Unmarshal([]byte(raw), &concept); err != nil {
		return nil, Fatal(fmt.Sprintf("malformed concept JSON: %v", err))
	}
	if concept.VisualPrompt == "" {
		return nil, Fatal("analysis response missing visual prompt")
	}
	return &concept, nil
}

// OpenAIIllustrator implements the illustration port via the Images API.
type OpenAIIllustrator struct {
	cfg  ProviderConfig
	opts []option.RequestOption
}

// NewOpenAIIllustrator creates an image client for an OpenAI-compatible
// endpoint.
func NewOpenAIIllustrator(cfg ProviderConfig) *OpenAIIllustrator {
	if cfg.Model == "" {
		cfg.Model = string(openai.ImageModelDallE3)
	}
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &OpenAIIllustrator{cfg: cfg, opts: opts}
}

// Illustrate renders the styled prompt and returns a base64 data URL.
// HD maps to the API's "hd" quality tier rather than a separate model.
func (c *OpenAIIllustrator) Illustrate(ctx context.Context, req IllustrationRequest) (string, error) {
	client := openai.NewClient(c.opts...)

	params := openai.ImageGenerateParams{
		Prompt:         finalPrompt(req),
		Model:          openai.ImageModel(c.cfg.Model),
		Size:           imageSize(aspectRatio(req)),
		ResponseFormat: openai.ImageGenerateParamsResponseFormatB64JSON,
	}
	if req.HD {
		params.Quality = openai.ImageGenerateParamsQualityHD
	}

	resp, err := client.Images.Generate(ctx, params)
	if err != nil {
		return "", classifySDKError(err)
	}
	if len(resp.Data) == 0 || resp.Data[0].B64JSON == "" {
		return "", Fatal("no image data found in response")
	}
	return "data:image/png;base64," + resp.Data[0].B64JSON, nil
}

// imageSize maps the requested aspect ratio to the closest supported size.
func imageSize(ratio string) openai.ImageGenerateParamsSize {
	switch ratio {
	case "16:9":
		return openai.ImageGenerateParamsSize1792x1024
	case "9:16":
		return openai.ImageGenerateParamsSize1024x1792
	default:
		return openai.ImageGenerateParamsSize1024x1024
	}
}

// classifySDKError maps an openai-go error to a classified RemoteError.
func classifySDKError(err error) error {
	var apierr *openai.Error
	if errors.As(err, &apierr) {
		return Classify(apierr.StatusCode, apierr.Error())
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	// Transport-level failure: treat as transient.
	return &RemoteError{Detail: err.Error(), Retryable: true, Quota: IsQuotaError(err.Error())}
}
