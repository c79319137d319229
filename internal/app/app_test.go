package app

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mediaplan/mediaplan/internal/observability"
	"github.com/mediaplan/mediaplan/internal/shared"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("PG_DSN", "postgres://example/db")
	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.AppAddr)
	assert.Equal(t, 10*time.Minute, cfg.CatalogCacheTTL)
	assert.Equal(t, "0 6 * * *", cfg.PacingScanCron)
	assert.Equal(t, 120, cfg.RateLimitPerMinute)
	assert.False(t, cfg.IsProduction())
}

func TestConfigValidate(t *testing.T) {
	base := Config{PGDSN: "postgres://x", RateLimitPerMinute: 10, WorkerConcurrency: 1}
	require.NoError(t, base.Validate())

	noDSN := base
	noDSN.PGDSN = ""
	assert.Error(t, noDSN.Validate())

	noRate := base
	noRate.RateLimitPerMinute = 0
	assert.Error(t, noRate.Validate())

	noWorkers := base
	noWorkers.WorkerConcurrency = -1
	assert.Error(t, noWorkers.Validate())
}

func TestLoggerAddsEnvironment(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&Config{AppEnv: "staging", LogFormat: "json"}, &buf)
	logger.Info("hello")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "staging", entry["env"])
	assert.Equal(t, "hello", entry["msg"])
}

func TestActorMiddleware(t *testing.T) {
	var got shared.Actor
	handler := ActorMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = shared.ActorFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderUserID, "6f1c1f9e-3c55-4c1b-9d61-0f3f7a0b6a11")
	req.Header.Set(HeaderEnvironmentID, " 0d3c9a9b-8a0e-4b7e-a4a5-2a8e35c1b0f2 ")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "6f1c1f9e-3c55-4c1b-9d61-0f3f7a0b6a11", got.UserID)
	assert.Equal(t, "0d3c9a9b-8a0e-4b7e-a4a5-2a8e35c1b0f2", got.EnvironmentID)
}

func TestActorMiddlewareAllowsAnonymous(t *testing.T) {
	called := false
	handler := ActorMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		assert.Equal(t, shared.Actor{}, shared.ActorFromContext(r.Context()))
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.True(t, called)
}

func TestActorMiddlewareRejectsMalformedIDs(t *testing.T) {
	handler := ActorMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderEnvironmentID, "prod")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), HeaderEnvironmentID)
}

func TestRouterHealthAndMetrics(t *testing.T) {
	router := NewRouter(RouterParams{
		Config:  &Config{AppEnv: "test", RateLimitPerMinute: 100},
		Metrics: observability.NewMetrics(),
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "mediaplan_http_requests_total")
}

func TestRouterRateLimits(t *testing.T) {
	router := NewRouter(RouterParams{Config: &Config{RateLimitPerMinute: 2}})
	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
		req.RemoteAddr = "10.0.0.1:5000"
		router.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestTestModeParsesBooleans(t *testing.T) {
	for value, want := range map[string]bool{"1": true, "true": true, "TRUE": true, "0": false, "no": false, "": false} {
		t.Setenv(TestModeEnv, value)
		RefreshTestMode()
		assert.Equal(t, want, InTestMode(), value)
	}
}
