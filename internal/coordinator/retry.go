package coordinator

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"

	"transhub/internal/engine"
	"transhub/internal/errs"
	"transhub/internal/model"
)

// retryPolicy bounds the engine retry loop. maxAttempts counts the first
// attempt.
type retryPolicy struct {
	maxAttempts    int
	initialBackoff time.Duration
	maxBackoff     time.Duration
}

// schedule builds the deterministic exponential backoff sequence
// initial * 2^(attempt-1), capped at maxBackoff.
func (p retryPolicy) schedule() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.initialBackoff
	b.RandomizationFactor = 0
	b.Multiplier = 2
	b.MaxInterval = p.maxBackoff
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

// translateWithRetry drives the engine over items until every item either
// succeeds or fails terminally. Between attempts only the still-retryable
// subset is re-sent. The rate limiter is consulted before every engine call,
// regardless of retry depth. A non-nil error means the run was cancelled and
// no outcome should be committed.
func (c *Coordinator) translateWithRetry(ctx context.Context, eng engine.Engine, targetLang string, items []model.ContentItem, engineCtx any, policy retryPolicy) (map[int64]itemOutcome, error) {
	outcomes := make(map[int64]itemOutcome, len(items))
	outstanding := items
	sourceLang := c.sourceLang()
	schedule := policy.schedule()

	for attempt := 1; ; attempt++ {
		if err := c.limiter.Acquire(ctx, 1); err != nil {
			return nil, err
		}

		texts := make([]string, len(outstanding))
		for i, item := range outstanding {
			texts[i] = item.Value
		}

		results, err := c.callEngine(ctx, eng, sourceLang, targetLang, texts, engineCtx)
		switch {
		case err != nil && ctx.Err() != nil:
			return nil, ctx.Err()
		case err != nil:
			// A wholesale crash becomes per-item retryable errors so one bad
			// call cannot stall the pipeline.
			msg := fmt.Sprintf("%v: %v", errs.ErrAPI, err)
			results = make([]engine.Result, len(outstanding))
			for i := range results {
				results[i] = engine.Failure(msg, true)
			}
		case len(results) != len(outstanding):
			msg := fmt.Sprintf("%v: engine returned %d results for %d items", errs.ErrAPI, len(results), len(outstanding))
			results = make([]engine.Result, len(outstanding))
			for i := range results {
				results[i] = engine.Failure(msg, true)
			}
		}

		var retryable []model.ContentItem
		for i, item := range outstanding {
			result := results[i]
			switch {
			case result.Error == nil:
				outcomes[item.TranslationID] = itemOutcome{
					translatedText: result.TranslatedText,
					engineName:     eng.Name(),
					attempts:       attempt,
				}
			case result.Error.Retryable && attempt < policy.maxAttempts:
				retryable = append(retryable, item)
			default:
				// Non-retryable, or retries exhausted: terminal.
				outcomes[item.TranslationID] = itemOutcome{
					err:        result.Error,
					engineName: eng.Name(),
					attempts:   attempt,
				}
			}
		}

		if len(retryable) == 0 {
			return outcomes, nil
		}
		outstanding = retryable

		select {
		case <-time.After(schedule.NextBackOff()):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// callEngine performs one TranslateBatch call under the configured per-call
// timeout. Engines report a timed-out call as per-item retryable errors.
func (c *Coordinator) callEngine(ctx context.Context, eng engine.Engine, sourceLang *string, targetLang string, texts []string, engineCtx any) ([]engine.Result, error) {
	if c.cfg.EngineCallTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.EngineCallTimeout)
		defer cancel()
	}
	return eng.TranslateBatch(ctx, sourceLang, targetLang, texts, engineCtx)
}

// sourceLang returns the configured default source language, nil meaning
// auto-detect.
func (c *Coordinator) sourceLang() *string {
	if c.cfg.SourceLang == "" {
		return nil
	}
	lang := c.cfg.SourceLang
	return &lang
}

func errNotInitialized() error {
	return fmt.Errorf("%w: coordinator not initialized", errs.ErrConfiguration)
}
