// Package coordinator orchestrates the translation pipeline: it accepts fast
// durable Register calls, drains the persistent queue through the active
// engine under rate-limit and retry policies, and serves cached lookups.
package coordinator

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"transhub/internal/cache"
	"transhub/internal/config"
	"transhub/internal/engine"
	"transhub/internal/errs"
	"transhub/internal/logger"
	"transhub/internal/model"
	"transhub/internal/ratelimit"
	"transhub/internal/store"
)

// langPattern accepts BCP-47-shaped codes: a 2-3 letter primary subtag plus
// optional alphanumeric subtags ("en", "zh-CN", "sr-Latn-RS").
var langPattern = regexp.MustCompile(`^[a-zA-Z]{2,3}(-[a-zA-Z0-9]{2,8})*$`)

// Coordinator composes the store, cache, rate limiter and engines. All
// dependencies are injected at construction; there are no process-wide
// singletons.
type Coordinator struct {
	cfg     config.Config
	store   *store.Store
	cache   cache.Cache
	limiter *ratelimit.Limiter

	mu      sync.RWMutex
	active  engine.Engine
	engines map[string]engine.Engine // instantiated engines, by name
}

// New builds a Coordinator. Initialize must be called before use.
func New(cfg config.Config, st *store.Store) (*Coordinator, error) {
	c, err := cache.New(cfg.Cache.Type, cfg.Cache.MaxSize, cfg.Cache.TTL)
	if err != nil {
		return nil, fmt.Errorf("%w: cache: %v", errs.ErrConfiguration, err)
	}
	return &Coordinator{
		cfg:     cfg,
		store:   st,
		cache:   c,
		limiter: ratelimit.New(cfg.RateLimiter.Capacity, cfg.RateLimiter.RefillRate),
		engines: make(map[string]engine.Engine),
	}, nil
}

// Initialize opens the store and activates the configured engine.
func (c *Coordinator) Initialize(ctx context.Context) error {
	if err := c.store.Initialize(ctx); err != nil {
		return err
	}
	if err := c.SwitchEngine(ctx, c.cfg.ActiveEngine); err != nil {
		return err
	}
	logger.Info("coordinator initialized", "module", "coordinator", "action", "initialize", "resource", "coordinator", "result", "ok", "engine", c.cfg.ActiveEngine)
	return nil
}

// Close closes every instantiated engine and then the store.
func (c *Coordinator) Close() error {
	c.mu.Lock()
	engines := c.engines
	c.engines = make(map[string]engine.Engine)
	c.active = nil
	c.mu.Unlock()

	var firstErr error
	for name, eng := range engines {
		if err := eng.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close engine %s: %w", name, err)
		}
	}
	if err := c.store.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// SwitchEngine activates the named engine for subsequent batches. In-flight
// batches complete with the engine they started with; previously instantiated
// engines stay open until Close.
func (c *Coordinator) SwitchEngine(ctx context.Context, name string) error {
	c.mu.RLock()
	eng, ok := c.engines[name]
	c.mu.RUnlock()

	if !ok {
		var err error
		eng, err = engine.New(name, c.cfg.EngineConfigs[name])
		if err != nil {
			return err
		}
		if err := eng.Initialize(ctx); err != nil {
			return fmt.Errorf("%w: initialize engine %s: %v", errs.ErrConfiguration, name, err)
		}
	}

	c.mu.Lock()
	c.engines[name] = eng
	c.active = eng
	c.mu.Unlock()
	logger.Info("engine switched", "module", "coordinator", "action", "switch", "resource", "engine", "result", "ok", "engine", name)
	return nil
}

// ActiveEngine returns the engine used for new batches.
func (c *Coordinator) ActiveEngine() engine.Engine {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.active
}

// RequestParams carries one Register call.
type RequestParams struct {
	TargetLangs []string
	Text        string
	BusinessID  *string
	Context     model.Context
	SourceLang  *string
}

// Request validates the inputs and durably records a PENDING translation per
// target language. Fast path: returns once the write commits, no engine call.
func (c *Coordinator) Request(ctx context.Context, p RequestParams) error {
	if err := validateText(p.Text); err != nil {
		return err
	}
	if err := validateLangs(p.TargetLangs); err != nil {
		return err
	}
	if p.SourceLang != nil {
		if err := validateLang(*p.SourceLang); err != nil {
			return err
		}
	}
	if p.BusinessID != nil && strings.TrimSpace(*p.BusinessID) == "" {
		return fmt.Errorf("%w: business id must not be blank", errs.ErrValidation)
	}

	contextHash, contextJSON, err := p.Context.Canonicalize()
	if err != nil {
		return fmt.Errorf("%w: %v", errs.ErrValidation, err)
	}

	sourceLang := p.SourceLang
	if sourceLang == nil && c.cfg.SourceLang != "" {
		lang := c.cfg.SourceLang
		sourceLang = &lang
	}

	var jsonPtr *string
	if contextJSON != "" {
		jsonPtr = &contextJSON
	}

	eng := c.ActiveEngine()
	if eng == nil {
		return fmt.Errorf("%w: coordinator not initialized", errs.ErrConfiguration)
	}

	enqueued, err := c.store.EnsurePending(ctx, store.EnsurePendingParams{
		Text:          p.Text,
		TargetLangs:   p.TargetLangs,
		SourceLang:    sourceLang,
		EngineVersion: eng.Version(),
		BusinessID:    p.BusinessID,
		ContextHash:   contextHash,
		ContextJSON:   jsonPtr,
	})
	if err != nil {
		return err
	}
	logger.Debug("request registered", "module", "coordinator", "action", "register", "resource", "translation", "result", "ok", "langs", len(p.TargetLangs), "enqueued", enqueued)
	return nil
}

// GetTranslation returns the finished translation for (text, targetLang,
// context), or nil when none exists. The in-memory cache is consulted first;
// a store hit backfills it, so the second identical lookup is served from
// cache with FromCache set.
func (c *Coordinator) GetTranslation(ctx context.Context, text, targetLang string, reqContext model.Context) (*model.TranslationResult, error) {
	if err := validateText(text); err != nil {
		return nil, err
	}
	if err := validateLang(targetLang); err != nil {
		return nil, err
	}
	contextHash, _, err := reqContext.Canonicalize()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrValidation, err)
	}

	key := cache.Key{Text: text, TargetLang: targetLang, ContextHash: contextHash}
	if entry, ok := c.cache.Get(key); ok {
		translated := entry.TranslatedText
		engineName := entry.EngineName
		return &model.TranslationResult{
			OriginalContent:   text,
			TranslatedContent: &translated,
			TargetLang:        targetLang,
			Status:            model.StatusTranslated,
			Engine:            &engineName,
			FromCache:         true,
			ContextHash:       contextHash,
		}, nil
	}

	row, err := c.store.GetTranslation(ctx, text, targetLang, contextHash)
	if err != nil {
		return nil, err
	}
	if row == nil || row.TranslatedText == nil {
		return nil, nil
	}

	engineName := ""
	if row.EngineName != nil {
		engineName = *row.EngineName
	}
	c.cache.Set(key, cache.Entry{TranslatedText: *row.TranslatedText, EngineName: engineName})

	result := &model.TranslationResult{
		OriginalContent:   text,
		TranslatedContent: row.TranslatedText,
		TargetLang:        targetLang,
		Status:            row.Status,
		Engine:            row.EngineName,
		FromCache:         false,
		ContextHash:       contextHash,
	}
	if businessID, err := c.store.GetBusinessIDForContent(ctx, row.ContentID, contextHash); err == nil {
		result.BusinessID = businessID
	}
	return result, nil
}

// RunGC delegates to the store. retentionDays <= 0 uses the configured
// default.
func (c *Coordinator) RunGC(ctx context.Context, retentionDays int, dryRun bool) (model.GCReport, error) {
	if retentionDays <= 0 {
		retentionDays = c.cfg.GCRetentionDays
	}
	return c.store.GarbageCollect(ctx, retentionDays, dryRun)
}

// ReclaimStale recovers claims abandoned by crashed workers.
func (c *Coordinator) ReclaimStale(ctx context.Context) (int64, error) {
	return c.store.ReclaimStale(ctx, c.cfg.StaleClaimAfter)
}

// ListDeadLetters exposes the dead-letter queue for inspection.
func (c *Coordinator) ListDeadLetters(ctx context.Context, limit int) ([]model.DeadLetter, error) {
	return c.store.ListDeadLetters(ctx, limit)
}

func validateText(text string) error {
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("%w: text must not be empty", errs.ErrValidation)
	}
	return nil
}

func validateLang(lang string) error {
	if !langPattern.MatchString(lang) {
		return fmt.Errorf("%w: malformed language code %q", errs.ErrValidation, lang)
	}
	return nil
}

func validateLangs(langs []string) error {
	if len(langs) == 0 {
		return fmt.Errorf("%w: at least one target language is required", errs.ErrValidation)
	}
	for _, lang := range langs {
		if err := validateLang(lang); err != nil {
			return err
		}
	}
	return nil
}
