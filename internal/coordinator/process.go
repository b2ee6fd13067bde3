package coordinator

import (
	"context"
	"errors"
	"time"

	"transhub/internal/cache"
	"transhub/internal/engine"
	"transhub/internal/logger"
	"transhub/internal/model"
	"transhub/internal/store"
)

// ProcessOptions tunes one ProcessPending run. Zero values fall back to the
// coordinator configuration.
type ProcessOptions struct {
	BatchSize      int
	Limit          int // 0 = unbounded
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

func (c *Coordinator) policy(opts ProcessOptions) retryPolicy {
	p := retryPolicy{
		maxAttempts:    opts.MaxAttempts,
		initialBackoff: opts.InitialBackoff,
		maxBackoff:     opts.MaxBackoff,
	}
	if p.maxAttempts <= 0 {
		p.maxAttempts = c.cfg.Retry.MaxAttempts
	}
	if p.initialBackoff <= 0 {
		p.initialBackoff = c.cfg.Retry.InitialBackoff
	}
	if p.maxBackoff <= 0 {
		p.maxBackoff = c.cfg.Retry.MaxBackoff
	}
	return p
}

// ProcessPending drains the queue for targetLang: it claims batches of
// PENDING and FAILED rows, runs them through the active engine under the
// retry policy, commits outcomes (dead-lettering terminal failures) and
// streams the results in store order. The result channel closes when the
// queue is drained or ctx is cancelled; fatal errors arrive on the error
// channel and end the stream. A claimed batch is always either committed or
// released back to PENDING before the stream honors cancellation.
func (c *Coordinator) ProcessPending(ctx context.Context, targetLang string, opts ProcessOptions) (<-chan model.TranslationResult, <-chan error, error) {
	if err := validateLang(targetLang); err != nil {
		return nil, nil, err
	}
	eng := c.ActiveEngine()
	if eng == nil {
		return nil, nil, errNotInitialized()
	}

	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = c.cfg.BatchSize
	}
	if max := eng.MaxBatchSize(); batchSize > max {
		batchSize = max
	}
	policy := c.policy(opts)

	resultCh := make(chan model.TranslationResult)
	errCh := make(chan error, 1)

	go func() {
		defer close(resultCh)
		defer close(errCh)

		// Internal cancel stops the claim stream as soon as processing
		// aborts, so no further batches are claimed for a dead consumer.
		sctx, cancel := context.WithCancel(ctx)
		defer cancel()

		statuses := []model.Status{model.StatusPending, model.StatusFailed}
		batchCh, streamErrCh := c.store.StreamTranslatable(sctx, targetLang, statuses, batchSize, opts.Limit)

		for batch := range batchCh {
			// Re-read the active engine so batches claimed after a
			// SwitchEngine use the new one.
			eng := c.ActiveEngine()

			results, err := c.processBatch(ctx, eng, targetLang, batch, policy)
			if err != nil {
				if !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
					errCh <- err
				}
				return
			}
			for _, result := range results {
				select {
				case resultCh <- result:
				case <-ctx.Done():
					// The batch is already committed; no claim is lost.
					return
				}
			}
		}
		if err := <-streamErrCh; err != nil {
			errCh <- err
		}
	}()

	return resultCh, errCh, nil
}

// itemOutcome is the resolved fate of one claimed item.
type itemOutcome struct {
	translatedText string
	engineName     string
	err            *engine.ItemError
	attempts       int
}

// processBatch runs one claimed batch end to end: group by context, consult
// the cache, translate with retries, commit everything in one transaction.
// On cancellation before the commit the whole claim is released; on a storage
// error the rows stay TRANSLATING for stale-claim recovery.
func (c *Coordinator) processBatch(ctx context.Context, eng engine.Engine, targetLang string, batch []model.ContentItem, policy retryPolicy) ([]model.TranslationResult, error) {
	outcomes := make(map[int64]itemOutcome, len(batch))

	// Group by context hash: one engine call shares one context.
	groupOrder := make([]string, 0, len(batch))
	groups := make(map[string][]model.ContentItem)
	for _, item := range batch {
		if _, seen := groups[item.ContextHash]; !seen {
			groupOrder = append(groupOrder, item.ContextHash)
		}
		groups[item.ContextHash] = append(groups[item.ContextHash], item)
	}

	for _, hash := range groupOrder {
		group := groups[hash]

		engineCtx, err := eng.ValidateAndParseContext(group[0].Context)
		if err != nil {
			// The whole group shares the invalid context: terminal for all.
			msg := err.Error()
			for _, item := range group {
				outcomes[item.TranslationID] = itemOutcome{
					err:        &engine.ItemError{Message: msg, Retryable: false},
					engineName: eng.Name(),
				}
			}
			continue
		}

		var toTranslate []model.ContentItem
		for _, item := range group {
			key := cache.Key{Text: item.Value, TargetLang: targetLang, ContextHash: item.ContextHash}
			if entry, ok := c.cache.Get(key); ok {
				outcomes[item.TranslationID] = itemOutcome{
					translatedText: entry.TranslatedText,
					engineName:     entry.EngineName,
				}
				continue
			}
			toTranslate = append(toTranslate, item)
		}

		if len(toTranslate) > 0 {
			translated, err := c.translateWithRetry(ctx, eng, targetLang, toTranslate, engineCtx, policy)
			if err != nil {
				c.releaseClaim(batch)
				return nil, err
			}
			for id, outcome := range translated {
				outcomes[id] = outcome
			}
			for _, item := range toTranslate {
				if o := outcomes[item.TranslationID]; o.err == nil {
					key := cache.Key{Text: item.Value, TargetLang: targetLang, ContextHash: item.ContextHash}
					c.cache.Set(key, cache.Entry{TranslatedText: o.translatedText, EngineName: o.engineName})
				}
			}
		}
	}

	// Assemble save items and results in the order the store produced the
	// batch, enriching each with a business id once per (content, context).
	saveItems := make([]store.SaveItem, 0, len(batch))
	results := make([]model.TranslationResult, 0, len(batch))
	type enrichKey struct {
		contentID   int64
		contextHash string
	}
	businessIDs := make(map[enrichKey]*string)

	for _, item := range batch {
		outcome := outcomes[item.TranslationID]

		ek := enrichKey{item.ContentID, item.ContextHash}
		businessID, known := businessIDs[ek]
		if !known {
			id, err := c.store.GetBusinessIDForContent(ctx, item.ContentID, item.ContextHash)
			if err != nil {
				logger.Warn("business id lookup failed", "module", "coordinator", "action", "enrich", "resource", "source", "result", "failed", "content_id", item.ContentID, "error", err)
			} else {
				businessID = id
			}
			businessIDs[ek] = businessID
		}

		save := store.SaveItem{
			TranslationID: item.TranslationID,
			ContentID:     item.ContentID,
			TargetLang:    targetLang,
			ContextHash:   item.ContextHash,
			EngineName:    outcome.engineName,
			EngineVersion: eng.Version(),
			Attempts:      outcome.attempts,
		}
		result := model.TranslationResult{
			OriginalContent: item.Value,
			TargetLang:      targetLang,
			ContextHash:     item.ContextHash,
			BusinessID:      businessID,
			FromCache:       false,
		}
		if outcome.engineName != "" {
			engineName := outcome.engineName
			result.Engine = &engineName
		}

		if outcome.err != nil {
			message := outcome.err.Message
			save.Status = model.StatusFailed
			save.Error = &message
			result.Status = model.StatusFailed
			result.Error = &message
		} else {
			text := outcome.translatedText
			save.Status = model.StatusTranslated
			save.TranslatedText = &text
			result.Status = model.StatusTranslated
			result.TranslatedContent = &text
		}

		saveItems = append(saveItems, save)
		results = append(results, result)
	}

	if err := ctx.Err(); err != nil {
		c.releaseClaim(batch)
		return nil, err
	}
	if err := c.store.SaveTranslations(ctx, saveItems); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			c.releaseClaim(batch)
		}
		// Otherwise the rows stay TRANSLATING and are recovered by
		// stale-claim reclaim on a later run.
		return nil, err
	}
	return results, nil
}

// releaseClaim returns a claimed batch to PENDING on the cancellation path.
// Uses a fresh context because the caller's is already cancelled.
func (c *Coordinator) releaseClaim(batch []model.ContentItem) {
	ids := make([]int64, len(batch))
	for i, item := range batch {
		ids[i] = item.TranslationID
	}
	rctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := c.store.ReleaseClaims(rctx, ids); err != nil {
		logger.Error("claim release failed", "module", "coordinator", "action", "release", "resource", "translation", "result", "failed", "count", len(ids), "error", err)
	}
}
