package openai

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"permit-backend/internal/analysis"
	"permit-backend/internal/extract"
	"permit-backend/internal/shared/telemetry"
)

const (
	DefaultModel = "gpt-4o"
	maxTokens    = 1500
)

// Options configures the analyzer. BaseURL and HTTPClient are overridable for tests.
type Options struct {
	APIKey     string
	Model      string
	BaseURL    string
	HTTPClient *http.Client
}

// Analyzer sends plans to a vision-capable chat model and parses a JSON analysis.
type Analyzer struct {
	client *openai.Client
	model  string
}

// New builds an Analyzer. The API key is required.
func New(opts Options) (*Analyzer, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, errors.New("OPENAI_API_KEY is required")
	}
	cfg := openai.DefaultConfig(opts.APIKey)
	if opts.BaseURL != "" {
		cfg.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	}
	if opts.HTTPClient != nil {
		cfg.HTTPClient = opts.HTTPClient
	} else {
		cfg.HTTPClient = &http.Client{Timeout: 120 * time.Second}
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = DefaultModel
	}
	return &Analyzer{client: openai.NewClientWithConfig(cfg), model: model}, nil
}

// Analyze implements analysis.Analyzer. Output that fails to parse gets one repair pass.
func (a *Analyzer) Analyze(ctx context.Context, in analysis.Input) (analysis.Analysis, error) {
	msg, err := planMessage(ctx, in)
	if err != nil {
		return analysis.Analysis{}, err
	}
	messages := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
		msg,
	}

	raw, err := a.complete(ctx, messages)
	if err != nil {
		return analysis.Analysis{}, err
	}
	result, parseErr := parse(raw)
	if parseErr == nil {
		return result, nil
	}

	telemetry.Warn("analysis.openai.repair", map[string]any{"model": a.model, "error": parseErr})
	raw, err = a.complete(ctx, []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: systemPromptFixJSON},
		{Role: openai.ChatMessageRoleUser, Content: fixUserPrompt(raw)},
	})
	if err != nil {
		return analysis.Analysis{}, err
	}
	return parse(raw)
}

func (a *Analyzer) complete(ctx context.Context, messages []openai.ChatCompletionMessage) (string, error) {
	req := openai.ChatCompletionRequest{
		Model: a.model,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: messages,
	}
	if usesCompletionTokens(a.model) {
		req.MaxCompletionTokens = maxTokens
	} else {
		req.MaxTokens = maxTokens
	}

	resp, err := a.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("openai chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("openai response missing choices")
	}
	telemetry.Info("analysis.openai.usage", map[string]any{
		"model":             a.model,
		"prompt_tokens":     resp.Usage.PromptTokens,
		"completion_tokens": resp.Usage.CompletionTokens,
	})
	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return "", errors.New("openai response empty content")
	}
	return content, nil
}

func planMessage(ctx context.Context, in analysis.Input) (openai.ChatCompletionMessage, error) {
	mime := in.MimeType
	if mime == "" {
		mime = extract.DetectMime(in.Image, "")
	}
	if extract.IsImage(mime) {
		uri := "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(in.Image)
		return openai.ChatCompletionMessage{
			Role: openai.ChatMessageRoleUser,
			MultiContent: []openai.ChatMessagePart{
				{Type: openai.ChatMessagePartTypeText, Text: userPrompt(in.City)},
				{Type: openai.ChatMessagePartTypeImageURL, ImageURL: &openai.ChatMessageImageURL{
					URL:    uri,
					Detail: openai.ImageURLDetailHigh,
				}},
			},
		}, nil
	}
	text, err := extract.PlanText(ctx, in.Image, mime)
	if err != nil {
		return openai.ChatCompletionMessage{}, err
	}
	if text == "" {
		return openai.ChatCompletionMessage{}, errors.New("plan has no readable content")
	}
	return openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: textPlanPrompt(in.City, text)}, nil
}

func parse(raw string) (analysis.Analysis, error) {
	var out analysis.Analysis
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return analysis.Analysis{}, fmt.Errorf("parse analysis json: %w", err)
	}
	if err := out.Validate(); err != nil {
		return analysis.Analysis{}, err
	}
	return out.Normalize(), nil
}

// Reasoning models reject max_tokens.
func usesCompletionTokens(model string) bool {
	for _, prefix := range []string{"o1", "o3", "o4", "gpt-5"} {
		if strings.HasPrefix(model, prefix) {
			return true
		}
	}
	return false
}

var _ analysis.Analyzer = (*Analyzer)(nil)
