package engine

import (
	"context"
	"fmt"
	"sync"

	"transhub/internal/config"
	"transhub/internal/model"
)

const DebugName = "debug"

func init() {
	Register(DebugName, func(cfg config.EngineConfig) (Engine, error) {
		return NewDebug(), nil
	})
}

// DebugEngine is a deterministic in-process translator used by tests and the
// demo server. It translates via an explicit mapping when one is set (either
// on the engine or through the request context) and otherwise prefixes the
// text with the target language. Failures can be scripted per text.
type DebugEngine struct {
	mu       sync.Mutex
	mapping  map[string]string
	failures map[string]*scriptedFailure
	calls    map[string]int
	batches  int
}

type scriptedFailure struct {
	remaining int // negative = never recovers
	retryable bool
	message   string
}

// NewDebug creates an empty debug engine.
func NewDebug() *DebugEngine {
	return &DebugEngine{
		mapping:  make(map[string]string),
		failures: make(map[string]*scriptedFailure),
		calls:    make(map[string]int),
	}
}

// SetMapping fixes the translation for a given text.
func (e *DebugEngine) SetMapping(text, translated string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.mapping[text] = translated
}

// FailTimes makes the next n attempts for text fail with the given message.
func (e *DebugEngine) FailTimes(text string, n int, retryable bool, message string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.failures[text] = &scriptedFailure{remaining: n, retryable: retryable, message: message}
}

// FailAlways makes every attempt for text fail.
func (e *DebugEngine) FailAlways(text string, retryable bool, message string) {
	e.FailTimes(text, -1, retryable, message)
}

// Calls reports how many TranslateBatch attempts included text.
func (e *DebugEngine) Calls(text string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls[text]
}

// BatchCalls reports the total number of TranslateBatch invocations.
func (e *DebugEngine) BatchCalls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.batches
}

func (e *DebugEngine) Name() string    { return DebugName }
func (e *DebugEngine) Version() string { return "1.0.0" }

func (e *DebugEngine) MaxBatchSize() int { return 100 }

func (e *DebugEngine) Initialize(ctx context.Context) error { return nil }
func (e *DebugEngine) Close() error                         { return nil }

// ValidateAndParseContext accepts an optional "mapping" key: an object of
// text to translation overrides scoped to the context group.
func (e *DebugEngine) ValidateAndParseContext(raw model.Context) (any, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	v, ok := raw["mapping"]
	if !ok {
		return map[string]string(nil), nil
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("context key %q must be an object", "mapping")
	}
	mapping := make(map[string]string, len(obj))
	for text, tr := range obj {
		s, ok := tr.(string)
		if !ok {
			return nil, fmt.Errorf("context mapping for %q must be a string", text)
		}
		mapping[text] = s
	}
	return mapping, nil
}

func (e *DebugEngine) TranslateBatch(ctx context.Context, sourceLang *string, targetLang string, items []string, engineContext any) ([]Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var override map[string]string
	if m, ok := engineContext.(map[string]string); ok {
		override = m
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.batches++

	results := make([]Result, len(items))
	for i, text := range items {
		e.calls[text]++

		if f, ok := e.failures[text]; ok && f.remaining != 0 {
			if f.remaining > 0 {
				f.remaining--
			}
			results[i] = Failure(f.message, f.retryable)
			continue
		}
		if translated, ok := override[text]; ok {
			results[i] = Success(translated)
			continue
		}
		if translated, ok := e.mapping[text]; ok {
			results[i] = Success(translated)
			continue
		}
		results[i] = Success(fmt.Sprintf("[%s] %s", targetLang, text))
	}
	return results, nil
}
