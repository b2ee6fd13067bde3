package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"transhub/internal/model"
)

func TestDebugEngineTranslates(t *testing.T) {
	eng := NewDebug()
	eng.SetMapping("Hello", "Bonjour")

	results, err := eng.TranslateBatch(context.Background(), nil, "fr", []string{"Hello", "World"}, nil)
	require.NoError(t, err)
	require.Len(t, results, 2)
	require.Equal(t, "Bonjour", results[0].TranslatedText)
	require.Equal(t, "[fr] World", results[1].TranslatedText)
	require.Equal(t, 1, eng.BatchCalls())
}

func TestDebugEngineScriptedFailures(t *testing.T) {
	eng := NewDebug()
	eng.SetMapping("Flaky", "Instable")
	eng.FailTimes("Flaky", 1, true, "busy")

	results, err := eng.TranslateBatch(context.Background(), nil, "fr", []string{"Flaky"}, nil)
	require.NoError(t, err)
	require.NotNil(t, results[0].Error)
	require.True(t, results[0].Error.Retryable)
	require.Equal(t, "busy", results[0].Error.Message)

	results, err = eng.TranslateBatch(context.Background(), nil, "fr", []string{"Flaky"}, nil)
	require.NoError(t, err)
	require.Nil(t, results[0].Error)
	require.Equal(t, "Instable", results[0].TranslatedText)
	require.Equal(t, 2, eng.Calls("Flaky"))
}

func TestDebugEngineContextMapping(t *testing.T) {
	eng := NewDebug()

	parsed, err := eng.ValidateAndParseContext(model.Context{
		"mapping": map[string]any{"Wrench": "Schraubenschlüssel"},
	})
	require.NoError(t, err)

	results, err := eng.TranslateBatch(context.Background(), nil, "de", []string{"Wrench"}, parsed)
	require.NoError(t, err)
	require.Equal(t, "Schraubenschlüssel", results[0].TranslatedText)

	_, err = eng.ValidateAndParseContext(model.Context{"mapping": 42})
	require.Error(t, err)

	_, err = eng.ValidateAndParseContext(model.Context{"mapping": map[string]any{"x": 1}})
	require.Error(t, err)
}
