package engine

import (
	"testing"

	"github.com/stretchr/testify/require"

	"transhub/internal/config"
	"transhub/internal/errs"
)

func TestRegistryKnowsBuiltins(t *testing.T) {
	names := Names()
	require.Contains(t, names, DebugName)
	require.Contains(t, names, OpenAIName)
	require.Contains(t, names, AnthropicName)
}

func TestNewUnknownEngine(t *testing.T) {
	_, err := New("nonexistent", config.EngineConfig{})
	require.ErrorIs(t, err, errs.ErrEngineNotFound)
}

func TestNewDebugEngine(t *testing.T) {
	eng, err := New(DebugName, config.EngineConfig{})
	require.NoError(t, err)
	require.Equal(t, DebugName, eng.Name())
}

func TestLLMEnginesRequireConfig(t *testing.T) {
	_, err := New(OpenAIName, config.EngineConfig{Model: "gpt-4o-mini"})
	require.ErrorIs(t, err, errs.ErrConfiguration)

	_, err = New(OpenAIName, config.EngineConfig{APIKey: "sk-test"})
	require.ErrorIs(t, err, errs.ErrConfiguration)

	_, err = New(AnthropicName, config.EngineConfig{Model: "claude-sonnet-4-5"})
	require.ErrorIs(t, err, errs.ErrConfiguration)
}
