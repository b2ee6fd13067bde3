// Package errs defines the error taxonomy shared by the coordinator core.
// Every error is rooted in ErrCore so callers can match all core errors with
// a single errors.Is check.
package errs

import (
	"errors"
	"fmt"
)

// ErrCore is the shared parent of all core errors.
var ErrCore = errors.New("transhub")

var (
	ErrConfiguration  = fmt.Errorf("%w: configuration error", ErrCore)
	ErrEngineNotFound = fmt.Errorf("%w: engine not found", ErrCore)
	ErrAPI            = fmt.Errorf("%w: engine api error", ErrCore)
	ErrStorage        = fmt.Errorf("%w: storage error", ErrCore)
	ErrValidation     = fmt.Errorf("%w: validation error", ErrCore)
	// ErrConflict marks unique-constraint violations that indicate a bug:
	// store operations are designed to be idempotent, so a surviving
	// constraint error means an invariant was broken upstream.
	ErrConflict = fmt.Errorf("%w: conflict", ErrCore)
)
