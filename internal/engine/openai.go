package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"transhub/internal/config"
	"transhub/internal/errs"
	"transhub/internal/model"
)

const OpenAIName = "openai"

func init() {
	Register(OpenAIName, newOpenAIEngine)
}

// OpenAIEngine translates through the OpenAI chat completions API.
type OpenAIEngine struct {
	client openai.Client
	model  string
}

func newOpenAIEngine(cfg config.EngineConfig) (Engine, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: openai: api key is required", errs.ErrConfiguration)
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("%w: openai: model is required", errs.ErrConfiguration)
	}
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &OpenAIEngine{
		client: openai.NewClient(opts...),
		model:  cfg.Model,
	}, nil
}

func (e *OpenAIEngine) Name() string { return OpenAIName }

// Version pins results to the configured model so cached rows stay
// attributable after a model change.
func (e *OpenAIEngine) Version() string { return "openai/" + e.model }

func (e *OpenAIEngine) MaxBatchSize() int { return 20 }

// Initialize is a no-op; credentials are verified on the first call so
// startup does not depend on the remote API.
func (e *OpenAIEngine) Initialize(ctx context.Context) error { return nil }

func (e *OpenAIEngine) Close() error { return nil }

func (e *OpenAIEngine) ValidateAndParseContext(raw model.Context) (any, error) {
	return parseLLMContext(raw)
}

func (e *OpenAIEngine) TranslateBatch(ctx context.Context, sourceLang *string, targetLang string, items []string, engineContext any) ([]Result, error) {
	extra := ""
	if lc, ok := engineContext.(*llmContext); ok && lc != nil {
		extra = lc.Prompt
	}
	payload, err := encodeItems(items)
	if err != nil {
		return failAll(len(items), err.Error(), false), nil
	}

	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(e.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(buildTranslatePrompt(sourceLang, targetLang, extra)),
			openai.UserMessage(payload),
		},
	}

	resp, err := e.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return classifyOpenAIErr(err, len(items))
	}
	if len(resp.Choices) == 0 {
		return failAll(len(items), "openai: empty response", true), nil
	}

	translated, err := decodeItems(resp.Choices[0].Message.Content, len(items))
	if err != nil {
		// A malformed response is usually transient model misbehavior.
		return failAll(len(items), err.Error(), true), nil
	}

	results := make([]Result, len(items))
	for i, text := range translated {
		results[i] = Success(text)
	}
	return results, nil
}

// classifyOpenAIErr maps an SDK error onto per-item outcomes so the
// coordinator drives retries uniformly. Caller cancellation propagates as a
// wholesale error; everything else becomes per-item results.
func classifyOpenAIErr(err error, n int) ([]Result, error) {
	if errors.Is(err, context.Canceled) {
		return nil, err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return failAll(n, "openai: request timed out", true), nil
	}
	var apierr *openai.Error
	if errors.As(err, &apierr) {
		msg := fmt.Sprintf("openai: api error (status %d): %v", apierr.StatusCode, err)
		return failAll(n, msg, retryableStatus(apierr.StatusCode)), nil
	}
	// Network-level failure.
	return failAll(n, fmt.Sprintf("openai: %v", err), true), nil
}

func retryableStatus(code int) bool {
	return code == 408 || code == 429 || code >= 500
}

func failAll(n int, message string, retryable bool) []Result {
	results := make([]Result, n)
	for i := range results {
		results[i] = Failure(message, retryable)
	}
	return results
}
