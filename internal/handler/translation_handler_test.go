package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"

	"transhub/internal/config"
	"transhub/internal/coordinator"
	"transhub/internal/engine"
	"transhub/internal/model"
	"transhub/internal/snowflake"
	"transhub/internal/store"
)

func TestMain(m *testing.M) {
	if err := snowflake.Init(3); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

func newTestServer(t *testing.T) (*echo.Echo, *engine.DebugEngine) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	cfg := config.Config{
		DBPath:            dbPath,
		ActiveEngine:      engine.DebugName,
		BatchSize:         50,
		GCRetentionDays:   30,
		StaleClaimAfter:   10 * time.Minute,
		EngineCallTimeout: time.Minute,
		Cache:             config.CacheConfig{Type: "lru", MaxSize: 64},
		Retry: config.RetryConfig{
			MaxAttempts:    2,
			InitialBackoff: time.Millisecond,
			MaxBackoff:     2 * time.Millisecond,
		},
		RateLimiter: config.RateLimiterConfig{Capacity: 100, RefillRate: 1000},
	}
	coord, err := coordinator.New(cfg, store.New(dbPath))
	require.NoError(t, err)
	require.NoError(t, coord.Initialize(context.Background()))
	t.Cleanup(func() { _ = coord.Close() })

	dbg, ok := coord.ActiveEngine().(*engine.DebugEngine)
	require.True(t, ok)

	e := echo.New()
	NewTranslationHandler(coord).RegisterRoutes(e.Group("/api"))
	return e, dbg
}

func do(e *echo.Echo, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	e, _ := newTestServer(t)
	rec := do(e, http.MethodGet, "/api/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestRegisterProcessAndQuery(t *testing.T) {
	e, dbg := newTestServer(t)
	dbg.SetMapping("Hello", "Bonjour")

	rec := do(e, http.MethodPost, "/api/requests",
		`{"text": "Hello", "target_langs": ["fr"], "business_id": "btn.ok"}`)
	require.Equal(t, http.StatusAccepted, rec.Code)

	rec = do(e, http.MethodPost, "/api/process/fr", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var results []model.TranslationResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &results))
	require.Len(t, results, 1)
	require.Equal(t, "Bonjour", *results[0].TranslatedContent)

	rec = do(e, http.MethodGet, "/api/translations?text=Hello&lang=fr", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var result model.TranslationResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	require.Equal(t, "Bonjour", *result.TranslatedContent)
	require.Equal(t, model.StatusTranslated, result.Status)
}

func TestQueryWithContext(t *testing.T) {
	e, _ := newTestServer(t)

	reqContext := `{"mapping": {"Wrench": "Schraubenschlüssel"}}`
	body, err := json.Marshal(map[string]any{
		"text":         "Wrench",
		"target_langs": []string{"de"},
		"context":      json.RawMessage(reqContext),
	})
	require.NoError(t, err)
	rec := do(e, http.MethodPost, "/api/requests", string(body))
	require.Equal(t, http.StatusAccepted, rec.Code)

	rec = do(e, http.MethodPost, "/api/process/de", "")
	require.Equal(t, http.StatusOK, rec.Code)

	target := "/api/translations?text=Wrench&lang=de&context=" + url.QueryEscape(reqContext)
	rec = do(e, http.MethodGet, target, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var result model.TranslationResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	require.Equal(t, "Schraubenschlüssel", *result.TranslatedContent)

	// Without the context the lookup misses.
	rec = do(e, http.MethodGet, "/api/translations?text=Wrench&lang=de", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRegisterValidation(t *testing.T) {
	e, _ := newTestServer(t)

	rec := do(e, http.MethodPost, "/api/requests", `{"text": " ", "target_langs": ["fr"]}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(e, http.MethodPost, "/api/requests", `{"text": "x", "target_langs": []}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(e, http.MethodGet, "/api/translations?text=x&lang=not--valid", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSwitchEngine(t *testing.T) {
	e, _ := newTestServer(t)

	rec := do(e, http.MethodPost, "/api/engine/nonexistent", "")
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(e, http.MethodPost, "/api/engine/debug", "")
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestRunGC(t *testing.T) {
	e, _ := newTestServer(t)

	rec := do(e, http.MethodPost, "/api/gc?dry_run=true", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var report model.GCReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	require.Zero(t, report.DeletedContent)
}

func TestListDeadLetters(t *testing.T) {
	e, dbg := newTestServer(t)
	dbg.FailAlways("Doomed", true, "upstream said no")

	rec := do(e, http.MethodGet, "/api/dead-letters", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, "[]", rec.Body.String())

	rec = do(e, http.MethodPost, "/api/requests", `{"text": "Doomed", "target_langs": ["fr"]}`)
	require.Equal(t, http.StatusAccepted, rec.Code)
	rec = do(e, http.MethodPost, "/api/process/fr", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(e, http.MethodGet, "/api/dead-letters", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var entries []model.DeadLetter
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entries))
	require.Len(t, entries, 1)
	require.Equal(t, "upstream said no", entries[0].LastError)
	require.Equal(t, 2, entries[0].Attempts)
	require.Equal(t, "fr", entries[0].TargetLang)
}
