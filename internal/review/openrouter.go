package review

import (
	"context"

	"hackreview/internal/config"
	"hackreview/internal/services/llm"
)

const (
	openRouterReferer = "https://github.com/hackreview/hackreview"
	openRouterTitle   = "hackreview"
)

type openRouterReviewer struct {
	cfg    config.LLMConfig
	client *llm.Client
}

func newOpenRouter(cfg config.LLMConfig, s settings) *openRouterReviewer {
	return &openRouterReviewer{cfg: cfg, client: s.client(cfg.TimeoutSeconds)}
}

func (o *openRouterReviewer) Name() string { return config.ProviderOpenRouter }

func (o *openRouterReviewer) Review(ctx context.Context, input CodeInput) (CodeResult, error) {
	content, err := o.client.Chat(ctx, llm.ChatRequest{
		Endpoint:     o.cfg.BaseURL,
		APIKey:       o.cfg.APIKey,
		Model:        o.cfg.Model,
		SystemPrompt: codeReviewSystemPrompt,
		UserPrompt:   BuildCodeReviewPrompt(input),
		MaxTokens:    o.cfg.MaxTokens,
		JSON:         true,
		Referer:      openRouterReferer,
		Title:        openRouterTitle,
	})
	if err != nil {
		return CodeResult{}, err
	}
	result, err := parseCodeReview(ctx, "openrouter chat", content, input.Criteria)
	if err != nil {
		return CodeResult{}, err
	}
	result.Provider = config.ProviderOpenRouter
	result.Model = o.cfg.Model
	return result, nil
}
