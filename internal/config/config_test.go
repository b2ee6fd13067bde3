package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	require.Equal(t, ":8080", cfg.Addr)
	require.Equal(t, "debug", cfg.ActiveEngine)
	require.Equal(t, 50, cfg.BatchSize)
	require.Equal(t, 30, cfg.GCRetentionDays)
	require.Equal(t, 10*time.Minute, cfg.StaleClaimAfter)
	require.Equal(t, "ttl", cfg.Cache.Type)
	require.Equal(t, 3, cfg.Retry.MaxAttempts)
	require.Equal(t, time.Second, cfg.Retry.InitialBackoff)
	require.Equal(t, 10, cfg.RateLimiter.Capacity)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("TRANSHUB_ADDR", ":9090")
	t.Setenv("TRANSHUB_ACTIVE_ENGINE", "openai")
	t.Setenv("TRANSHUB_SOURCE_LANG", "en")
	t.Setenv("TRANSHUB_TARGET_LANGS", "fr, de ,ja")
	t.Setenv("TRANSHUB_BATCH_SIZE", "25")
	t.Setenv("TRANSHUB_STALE_CLAIM_AFTER", "5m")
	t.Setenv("TRANSHUB_CACHE_TYPE", "lru")
	t.Setenv("TRANSHUB_RATE_REFILL", "2.5")

	cfg := Load()
	require.Equal(t, ":9090", cfg.Addr)
	require.Equal(t, "openai", cfg.ActiveEngine)
	require.Equal(t, "en", cfg.SourceLang)
	require.Equal(t, []string{"fr", "de", "ja"}, cfg.TargetLangs)
	require.Equal(t, 25, cfg.BatchSize)
	require.Equal(t, 5*time.Minute, cfg.StaleClaimAfter)
	require.Equal(t, "lru", cfg.Cache.Type)
	require.InDelta(t, 2.5, cfg.RateLimiter.RefillRate, 0.001)
}

func TestLoadEngineConfigs(t *testing.T) {
	t.Setenv("TRANSHUB_ENGINE_OPENAI_API_KEY", "sk-test")
	t.Setenv("TRANSHUB_ENGINE_OPENAI_MODEL", "gpt-4o-mini")
	t.Setenv("TRANSHUB_ENGINE_ANTHROPIC_BASE_URL", "http://localhost:9999")

	cfg := Load()
	require.Equal(t, "sk-test", cfg.EngineConfigs["openai"].APIKey)
	require.Equal(t, "gpt-4o-mini", cfg.EngineConfigs["openai"].Model)
	require.Equal(t, "http://localhost:9999", cfg.EngineConfigs["anthropic"].BaseURL)
}
