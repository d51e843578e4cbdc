package review

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"hackreview/internal/config"
	"hackreview/internal/services/llm"
)

const anthropicVersion = "2023-06-01"

type anthropicReviewer struct {
	cfg    config.LLMConfig
	client *llm.Client
}

func newAnthropic(cfg config.LLMConfig, s settings) *anthropicReviewer {
	return &anthropicReviewer{cfg: cfg, client: s.client(cfg.TimeoutSeconds)}
}

type anthropicRequest struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	System    string             `json:"system,omitempty"`
	Messages  []anthropicMessage `json:"messages"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

func (a *anthropicReviewer) Name() string { return config.ProviderAnthropic }

func (a *anthropicReviewer) Review(ctx context.Context, input CodeInput) (CodeResult, error) {
	const op = "anthropic messages"
	maxTokens := a.cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 2000
	}
	payload := anthropicRequest{
		Model:     a.cfg.Model,
		MaxTokens: maxTokens,
		System:    codeReviewSystemPrompt,
		Messages:  []anthropicMessage{{Role: "user", Content: BuildCodeReviewPrompt(input)}},
	}
	headers := map[string]string{
		"x-api-key":         a.cfg.APIKey,
		"anthropic-version": anthropicVersion,
	}
	body, err := a.client.PostJSON(ctx, a.cfg.BaseURL, headers, payload)
	if err != nil {
		return CodeResult{}, err
	}
	var resp anthropicResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return CodeResult{}, llm.InvalidResponse(ctx, op, body, err)
	}
	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if strings.TrimSpace(text.String()) == "" {
		return CodeResult{}, llm.InvalidResponse(ctx, op, body, errors.New("empty content (stop_reason="+resp.StopReason+")"))
	}
	result, err := parseCodeReview(ctx, op, text.String(), input.Criteria)
	if err != nil {
		return CodeResult{}, err
	}
	result.Provider = config.ProviderAnthropic
	result.Model = a.cfg.Model
	result.InputTokens = resp.Usage.InputTokens
	result.OutputTokens = resp.Usage.OutputTokens
	return result, nil
}
