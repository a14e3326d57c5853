package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/philoflow/philoflow/internal/model"
)

const geminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// Default Gemini models per port.
const (
	GeminiTextModel    = "gemini-2.5-flash"
	GeminiImageModelSD = "gemini-2.5-flash-image"
	GeminiImageModelHD = "gemini-3-pro-image-preview"
)

// GeminiAnalyzer implements the analysis port against the Google
// Generative AI REST API. Calls are single-shot; retry belongs to the
// scheduler's RetryPolicy, not the client.
type GeminiAnalyzer struct {
	cfg        ProviderConfig
	httpClient *http.Client
}

// NewGeminiAnalyzer creates an analysis client for the given credentials.
func NewGeminiAnalyzer(cfg ProviderConfig, timeout time.Duration) *GeminiAnalyzer {
	if cfg.Model == "" {
		cfg.Model = GeminiTextModel
	}
	return &GeminiAnalyzer{cfg: cfg, httpClient: &http.Client{Timeout: timeout}}
}

type geminiRequest struct {
	Contents          []geminiContent  `json:"contents"`
	SystemInstruction *geminiContent   `json:"systemInstruction,omitempty"`
	GenerationConfig  *geminiGenConfig `json:"generationConfig,omitempty"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inlineData,omitempty"`
}

type geminiInlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type geminiGenConfig struct {
	ResponseMimeType string             `json:"responseMimeType,omitempty"`
	ImageConfig      *geminiImageConfig `json:"imageConfig,omitempty"`
}

type geminiImageConfig struct {
	AspectRatio string `json:"aspectRatio,omitempty"`
	ImageSize   string `json:"imageSize,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Status  string `json:"status"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Analyze sends one segment for structural analysis and parses the JSON
// concept from the response.
func (c *GeminiAnalyzer) Analyze(ctx context.Context, req AnalysisRequest) (*model.Concept, error) {
	body := geminiRequest{
		Contents:          []geminiContent{{Parts: []geminiPart{{Text: req.Segment}}}},
		SystemInstruction: &geminiContent{Parts: []geminiPart{{Text: systemInstruction(req.Mode, req.Language)}}},
		GenerationConfig:  &geminiGenConfig{ResponseMimeType: "application/json"},
	}

	resp, err := geminiCall(ctx, c.httpClient, c.cfg.APIKey, c.cfg.Model, body)
	if err != nil {
		return nil, err
	}

	text := firstText(resp)
	if text == "" {
		return nil, Fatal("empty analysis response")
	}
	var concept model.Concept
	if err := json.Unmarshal([]byte(stripFence(text)), &concept); err != nil {
		return nil, Fatal(fmt.Sprintf("malformed concept JSON: %v", err))
	}
	if concept.VisualPrompt == "" {
		return nil, Fatal("analysis response missing visual prompt")
	}
	return &concept, nil
}

// GeminiIllustrator implements the illustration port against the same API.
type GeminiIllustrator struct {
	cfg        ProviderConfig
	hdModel    string
	httpClient *http.Client
}

// NewGeminiIllustrator creates an illustration client. cfg.Model overrides
// the standard-quality model; HD requests always use hdModel.
func NewGeminiIllustrator(cfg ProviderConfig, hdModel string, timeout time.Duration) *GeminiIllustrator {
	if cfg.Model == "" {
		cfg.Model = GeminiImageModelSD
	}
	if hdModel == "" {
		hdModel = GeminiImageModelHD
	}
	return &GeminiIllustrator{cfg: cfg, hdModel: hdModel, httpClient: &http.Client{Timeout: timeout}}
}

// Illustrate renders the styled prompt and returns the image as a base64
// data URL.
func (c *GeminiIllustrator) Illustrate(ctx context.Context, req IllustrationRequest) (string, error) {
	imgCfg := &geminiImageConfig{AspectRatio: aspectRatio(req)}
	mdl := c.cfg.Model
	if req.HD {
		mdl = c.hdModel
		imgCfg.ImageSize = "2K"
	}

	body := geminiRequest{
		Contents:         []geminiContent{{Parts: []geminiPart{{Text: finalPrompt(req)}}}},
		GenerationConfig: &geminiGenConfig{ImageConfig: imgCfg},
	}

	resp, err := geminiCall(ctx, c.httpClient, c.cfg.APIKey, mdl, body)
	if err != nil {
		return "", err
	}

	for _, cand := range resp.Candidates {
		for _, part := range cand.Content.Parts {
			if part.InlineData != nil {
				return fmt.Sprintf("data:%s;base64,%s", part.InlineData.MimeType, part.InlineData.Data), nil
			}
		}
	}
	// The model answered with text only, e.g. a safety refusal.
	return "", Fatal("no image data found in response")
}

// geminiCall performs one generateContent request and maps transport and
// API failures to classified RemoteErrors.
func geminiCall(ctx context.Context, client *http.Client, apiKey, mdl string, body geminiRequest) (*geminiResponse, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, Fatal(fmt.Sprintf("marshal request: %v", err))
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", geminiBaseURL, mdl)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, Fatal(err.Error())
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", apiKey)

	resp, err := client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		// Network-level failures are treated as transient server trouble.
		return nil, &RemoteError{Detail: err.Error(), Retryable: true}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, Fatal(fmt.Sprintf("read response: %v", err))
	}

	if resp.StatusCode != http.StatusOK {
		return nil, Classify(resp.StatusCode, string(respBody))
	}

	var out geminiResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, Fatal(fmt.Sprintf("unmarshal response: %v", err))
	}
	if out.Error != nil {
		return nil, Classify(out.Error.Code, out.Error.Message)
	}
	return &out, nil
}

func firstText(resp *geminiResponse) string {
	for _, cand := range resp.Candidates {
		for _, part := range cand.Content.Parts {
			if part.Text != "" {
				return part.Text
			}
		}
	}
	return ""
}

// stripFence removes a surrounding markdown code fence, which some models
// emit even when asked for raw JSON.
func stripFence(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	return strings.TrimSpace(s)
}
