package v1_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowstate-app/gateway/internal/crypto"
	"github.com/flowstate-app/gateway/internal/keystore"
	"github.com/flowstate-app/gateway/internal/provider"
	"github.com/flowstate-app/gateway/internal/registry"
	"github.com/flowstate-app/gateway/internal/server/middleware"
	v1 "github.com/flowstate-app/gateway/internal/server/v1"
	"github.com/flowstate-app/gateway/internal/store/cache/memory"
	"github.com/flowstate-app/gateway/pkg/api"
)

func testRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	reg := registry.New()
	reg.Register(registry.Mapping{ModelID: "claude", ProviderID: "anthropic", UpstreamID: "claude-sonnet-4-20250514", DisplayName: "Claude"})
	reg.Register(registry.Mapping{ModelID: "chatgpt", ProviderID: "openai", UpstreamID: "gpt-4o", DisplayName: "ChatGPT"})
	reg.Register(registry.Mapping{ModelID: "gemini", ProviderID: "google", UpstreamID: "gemini-2.0-flash", DisplayName: "Gemini"})
	return reg
}

func newKeysEngine(t *testing.T) (*gin.Engine, *keystore.Store) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	vault, err := crypto.NewVault("0123456789abcdef0123456789abcdef")
	require.NoError(t, err)
	keys := keystore.New(vault)

	handler := v1.NewKeysHandler(keys, testRegistry(t), memory.New(), &http.Client{})

	engine := gin.New()
	engine.Use(middleware.Session())
	engine.POST("/api/keys", handler.Submit)
	engine.GET("/api/keys/status", handler.Status)
	engine.DELETE("/api/keys/:provider", handler.Remove)
	return engine, keys
}

func TestSubmitStoresValidKey(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "sk-ant-test", r.Header.Get("x-api-key"))
		w.WriteHeader(http.StatusOK)
	}))
	defer upstream.Close()
	restore := provider.SetValidationURL("anthropic", upstream.URL)
	defer restore()

	engine, _ := newKeysEngine(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/api/keys", strings.NewReader(`{"model":"claude","apiKey":"sk-ant-test"}`))
	req.Header.Set("Content-Type", "application/json")
	engine.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var resp api.KeyResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Valid)
	assert.Equal(t, "anthropic", resp.Provider)
	assert.Equal(t, "claude", resp.Model)

	// Key visible on status for the same session
	cookie := w.Result().Cookies()
	w2 := httptest.NewRecorder()
	req2 := httptest.NewRequest("GET", "/api/keys/status", nil)
	for _, c := range cookie {
		req2.AddCookie(c)
	}
	engine.ServeHTTP(w2, req2)

	require.Equal(t, http.StatusOK, w2.Code)
	var status api.KeyStatusResponse
	require.NoError(t, json.Unmarshal(w2.Body.Bytes(), &status))
	assert.True(t, status.Configured["anthropic"])
	assert.False(t, status.Configured["openai"])
}

func TestSubmitRejectsInvalidKey(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer upstream.Close()
	restore := provider.SetValidationURL("anthropic", upstream.URL)
	defer restore()

	engine, _ := newKeysEngine(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/api/keys", strings.NewReader(`{"model":"claude","apiKey":"bad-key"}`))
	req.Header.Set("Content-Type", "application/json")
	engine.ServeHTTP(w, req)

	require.Equal(t, http.StatusUnauthorized, w.Code)
	var resp api.KeyResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Valid)
	assert.Equal(t, "Invalid API key", resp.Error)
}

func TestSubmitRejectsFreeModel(t *testing.T) {
	engine, _ := newKeysEngine(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/api/keys", strings.NewReader(`{"model":"gemini","apiKey":"whatever"}`))
	req.Header.Set("Content-Type", "application/json")
	engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "does not require an API key")
}

func TestSubmitCachesVerdict(t *testing.T) {
	hits := 0
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.WriteHeader(http.StatusOK)
	}))
	defer upstream.Close()
	restore := provider.SetValidationURL("anthropic", upstream.URL)
	defer restore()

	engine, _ := newKeysEngine(t)

	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		req := httptest.NewRequest("POST", "/api/keys", strings.NewReader(`{"model":"claude","apiKey":"sk-ant-cached"}`))
		req.Header.Set("Content-Type", "application/json")
		engine.ServeHTTP(w, req)
		require.Equal(t, http.StatusOK, w.Code)
	}

	assert.Equal(t, 1, hits)
}

func TestRemoveKey(t *testing.T) {
	engine, keys := newKeysEngine(t)
	require.NoError(t, keys.SetKey("some-session", "openai", "sk-test"))

	w := httptest.NewRecorder()
	req := httptest.NewRequest("DELETE", "/api/keys/openai", nil)
	engine.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"removed":true`)
}

func TestRemoveRejectsFreeProvider(t *testing.T) {
	engine, _ := newKeysEngine(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("DELETE", "/api/keys/google", nil)
	engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Not a paid provider")
}
