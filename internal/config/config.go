package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const (
	AppName    = "Trans-Hub"
	AppVersion = "1.0.0"
)

// CacheConfig selects the bounding policy for the in-memory translation cache.
type CacheConfig struct {
	Type    string // "ttl" or "lru"
	MaxSize int
	TTL     time.Duration
}

// RetryConfig drives the engine retry loop.
type RetryConfig struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// RateLimiterConfig parameterizes the token bucket gating engine calls.
type RateLimiterConfig struct {
	Capacity   int
	RefillRate float64 // tokens per second
}

// EngineConfig is the opaque per-engine sub-structure. The core never
// interprets it; each engine validates its own fields.
type EngineConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

type Config struct {
	Addr    string
	DataDir string
	DBPath  string

	ActiveEngine string
	SourceLang   string
	TargetLangs  []string

	BatchSize         int
	GCRetentionDays   int
	StaleClaimAfter   time.Duration
	EngineCallTimeout time.Duration

	Cache       CacheConfig
	Retry       RetryConfig
	RateLimiter RateLimiterConfig

	EngineConfigs map[string]EngineConfig

	LogLevel string
}

// Load materializes the configuration from TRANSHUB_* environment variables.
// The coordinator core only ever sees the resulting struct.
func Load() Config {
	dataDir := envStr("TRANSHUB_DATA_DIR", "./data")
	dbPath := os.Getenv("TRANSHUB_DB_PATH")
	if dbPath == "" {
		dbPath = filepath.Join(dataDir, "transhub.db")
	}

	cfg := Config{
		Addr:    envStr("TRANSHUB_ADDR", ":8080"),
		DataDir: filepath.Clean(dataDir),
		DBPath:  filepath.Clean(dbPath),

		ActiveEngine: envStr("TRANSHUB_ACTIVE_ENGINE", "debug"),
		SourceLang:   os.Getenv("TRANSHUB_SOURCE_LANG"),
		TargetLangs:  envList("TRANSHUB_TARGET_LANGS"),

		BatchSize:         envInt("TRANSHUB_BATCH_SIZE", 50),
		GCRetentionDays:   envInt("TRANSHUB_GC_RETENTION_DAYS", 30),
		StaleClaimAfter:   envDuration("TRANSHUB_STALE_CLAIM_AFTER", 10*time.Minute),
		EngineCallTimeout: envDuration("TRANSHUB_ENGINE_TIMEOUT", time.Minute),

		Cache: CacheConfig{
			Type:    envStr("TRANSHUB_CACHE_TYPE", "ttl"),
			MaxSize: envInt("TRANSHUB_CACHE_MAXSIZE", 4096),
			TTL:     envDuration("TRANSHUB_CACHE_TTL", time.Hour),
		},
		Retry: RetryConfig{
			MaxAttempts:    envInt("TRANSHUB_RETRY_MAX_ATTEMPTS", 3),
			InitialBackoff: envDuration("TRANSHUB_RETRY_INITIAL_BACKOFF", time.Second),
			MaxBackoff:     envDuration("TRANSHUB_RETRY_MAX_BACKOFF", 30*time.Second),
		},
		RateLimiter: RateLimiterConfig{
			Capacity:   envInt("TRANSHUB_RATE_CAPACITY", 10),
			RefillRate: envFloat("TRANSHUB_RATE_REFILL", 10),
		},

		EngineConfigs: loadEngineConfigs(),

		LogLevel: envStr("TRANSHUB_LOG_LEVEL", "info"),
	}
	return cfg
}

// loadEngineConfigs collects TRANSHUB_ENGINE_<NAME>_{API_KEY,BASE_URL,MODEL}
// into per-engine sub-structures keyed by lowercase engine name.
func loadEngineConfigs() map[string]EngineConfig {
	configs := make(map[string]EngineConfig)
	for _, kv := range os.Environ() {
		if !strings.HasPrefix(kv, "TRANSHUB_ENGINE_") {
			continue
		}
		key, value, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		rest := strings.TrimPrefix(key, "TRANSHUB_ENGINE_")
		var name, field string
		switch {
		case strings.HasSuffix(rest, "_API_KEY"):
			name, field = strings.TrimSuffix(rest, "_API_KEY"), "api_key"
		case strings.HasSuffix(rest, "_BASE_URL"):
			name, field = strings.TrimSuffix(rest, "_BASE_URL"), "base_url"
		case strings.HasSuffix(rest, "_MODEL"):
			name, field = strings.TrimSuffix(rest, "_MODEL"), "model"
		default:
			continue
		}
		name = strings.ToLower(name)
		ec := configs[name]
		switch field {
		case "api_key":
			ec.APIKey = value
		case "base_url":
			ec.BaseURL = value
		case "model":
			ec.Model = value
		}
		configs[name] = ec
	}
	return configs
}

func envStr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func envList(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
