package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"transhub/internal/config"
	"transhub/internal/errs"
	"transhub/internal/model"
)

const AnthropicName = "anthropic"

func init() {
	Register(AnthropicName, newAnthropicEngine)
}

// AnthropicEngine translates through the Anthropic messages API.
type AnthropicEngine struct {
	client anthropic.Client
	model  string
}

func newAnthropicEngine(cfg config.EngineConfig) (Engine, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: anthropic: api key is required", errs.ErrConfiguration)
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("%w: anthropic: model is required", errs.ErrConfiguration)
	}
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &AnthropicEngine{
		client: anthropic.NewClient(opts...),
		model:  cfg.Model,
	}, nil
}

func (e *AnthropicEngine) Name() string { return AnthropicName }

func (e *AnthropicEngine) Version() string { return "anthropic/" + e.model }

func (e *AnthropicEngine) MaxBatchSize() int { return 20 }

func (e *AnthropicEngine) Initialize(ctx context.Context) error { return nil }

func (e *AnthropicEngine) Close() error { return nil }

func (e *AnthropicEngine) ValidateAndParseContext(raw model.Context) (any, error) {
	return parseLLMContext(raw)
}

func (e *AnthropicEngine) TranslateBatch(ctx context.Context, sourceLang *string, targetLang string, items []string, engineContext any) ([]Result, error) {
	extra := ""
	if lc, ok := engineContext.(*llmContext); ok && lc != nil {
		extra = lc.Prompt
	}
	payload, err := encodeItems(items)
	if err != nil {
		return failAll(len(items), err.Error(), false), nil
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(e.model),
		MaxTokens: 4096,
		System: []anthropic.TextBlockParam{
			{Text: buildTranslatePrompt(sourceLang, targetLang, extra)},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(payload)),
		},
	}

	resp, err := e.client.Messages.New(ctx, params)
	if err != nil {
		return classifyAnthropicErr(err, len(items))
	}

	var content string
	for _, block := range resp.Content {
		switch v := block.AsAny().(type) {
		case anthropic.TextBlock:
			content = v.Text
		}
	}
	if content == "" {
		return failAll(len(items), "anthropic: empty response", true), nil
	}

	translated, err := decodeItems(content, len(items))
	if err != nil {
		return failAll(len(items), err.Error(), true), nil
	}

	results := make([]Result, len(items))
	for i, text := range translated {
		results[i] = Success(text)
	}
	return results, nil
}

func classifyAnthropicErr(err error, n int) ([]Result, error) {
	if errors.Is(err, context.Canceled) {
		return nil, err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return failAll(n, "anthropic: request timed out", true), nil
	}
	var apierr *anthropic.Error
	if errors.As(err, &apierr) {
		msg := fmt.Sprintf("anthropic: api error (status %d): %v", apierr.StatusCode, err)
		return failAll(n, msg, retryableStatus(apierr.StatusCode)), nil
	}
	return failAll(n, fmt.Sprintf("anthropic: %v", err), true), nil
}
