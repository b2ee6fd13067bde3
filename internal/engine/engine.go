// Package engine defines the translator contract and its implementations.
// Engines are looked up by name through the registry and instantiated lazily
// by the coordinator.
package engine

import (
	"context"

	"transhub/internal/model"
)

// ItemError is a per-item failure. Retryable errors re-enter the retry loop;
// the rest are terminal on first occurrence.
type ItemError struct {
	Message   string
	Retryable bool
}

// Result is one outcome of a batch call, in input order. Exactly one of
// TranslatedText and Error is meaningful.
type Result struct {
	TranslatedText string
	Error          *ItemError
}

// Success builds a successful outcome.
func Success(text string) Result {
	return Result{TranslatedText: text}
}

// Failure builds a failed outcome.
func Failure(message string, retryable bool) Result {
	return Result{Error: &ItemError{Message: message, Retryable: retryable}}
}

// Engine is a polymorphic translator.
//
// TranslateBatch returns one Result per input item, in input order. The call
// itself may fail wholesale only for unrecoverable conditions; transient
// wholesale failures must be reported as per-item retryable errors so the
// coordinator drives retry policy uniformly.
type Engine interface {
	// Name is the registry name of the implementation.
	Name() string
	// Version is a stable identifier recorded per translation row.
	Version() string
	// MaxBatchSize is the upper bound on items per TranslateBatch call.
	MaxBatchSize() int
	// Initialize is called once before first use.
	Initialize(ctx context.Context) error
	// Close releases resources.
	Close() error
	// ValidateAndParseContext normalizes a request context into an
	// engine-specific value. A validation error is non-retryable and fails
	// the whole context group.
	ValidateAndParseContext(raw model.Context) (any, error)
	// TranslateBatch translates items into targetLang. sourceLang nil means
	// auto-detect.
	TranslateBatch(ctx context.Context, sourceLang *string, targetLang string, items []string, engineContext any) ([]Result, error)
}
