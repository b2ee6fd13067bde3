package engine

import (
	"fmt"
	"sort"
	"sync"

	"transhub/internal/config"
	"transhub/internal/errs"
)

// Factory builds an engine from its opaque configuration sub-structure.
// Invalid configuration must surface as an ErrConfiguration-rooted error.
type Factory func(cfg config.EngineConfig) (Engine, error)

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Factory)
)

// Register adds an engine factory under name. Engine implementations call it
// from init; registering the same name twice panics.
func Register(name string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, dup := registry[name]; dup {
		panic(fmt.Sprintf("engine %q registered twice", name))
	}
	registry[name] = factory
}

// New instantiates the named engine with its configuration.
func New(name string, cfg config.EngineConfig) (Engine, error) {
	registryMu.RLock()
	factory, ok := registry[name]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q (known: %v)", errs.ErrEngineNotFound, name, Names())
	}
	return factory(cfg)
}

// Names lists registered engine names, sorted.
func Names() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
