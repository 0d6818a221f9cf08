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

	"github.com/flowstate-app/gateway/internal/config"
	v1 "github.com/flowstate-app/gateway/internal/server/v1"
	"github.com/flowstate-app/gateway/pkg/api"
)

func newRunEngine(t *testing.T, baseURL string) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	handler := v1.NewRunHandler(config.Judge0Config{BaseURL: baseURL, AuthToken: "test-token"}, &http.Client{})
	engine := gin.New()
	engine.POST("/api/run", handler.Run)
	return engine
}

func postRun(t *testing.T, engine *gin.Engine, body string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/api/run", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	engine.ServeHTTP(w, req)
	return w
}

func TestRunSuccessfulSubmission(t *testing.T) {
	judge0 := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == "POST" {
			assert.Equal(t, "test-token", r.Header.Get("X-Auth-Token"))
			var req map[string]interface{}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, float64(71), req["language_id"])
			assert.Equal(t, `print("hi")`, req["source_code"])
			json.NewEncoder(w).Encode(map[string]string{"token": "abc-123"})
			return
		}
		assert.Contains(t, r.URL.Path, "abc-123")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status": map[string]interface{}{"id": 3, "description": "Accepted"},
			"stdout": "hi\n",
		})
	}))
	defer judge0.Close()

	engine := newRunEngine(t, judge0.URL)
	w := postRun(t, engine, `{"language":"python","code":"print(\"hi\")"}`)

	require.Equal(t, http.StatusOK, w.Code)
	var resp api.RunResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "hi\n", resp.Stdout)
	assert.Equal(t, []string{"hi"}, resp.OutputLines)
	assert.Equal(t, 0, resp.ExitCode)
	assert.Nil(t, resp.ErrorType)
	assert.Nil(t, resp.CompileExit)
}

func TestRunCompilationError(t *testing.T) {
	judge0 := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == "POST" {
			json.NewEncoder(w).Encode(map[string]string{"token": "abc-123"})
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status":         map[string]interface{}{"id": 6, "description": "Compilation Error"},
			"compile_output": "main.c:1: error: expected ';'",
		})
	}))
	defer judge0.Close()

	engine := newRunEngine(t, judge0.URL)
	w := postRun(t, engine, `{"language":"c","code":"int main() { return 0 }"}`)

	require.Equal(t, http.StatusOK, w.Code)
	var resp api.RunResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotNil(t, resp.ErrorType)
	assert.Equal(t, "Compilation Error", *resp.ErrorType)
	require.NotNil(t, resp.CompileExit)
	assert.Equal(t, 1, *resp.CompileExit)
	require.NotNil(t, resp.Error)
	assert.Contains(t, *resp.Error, "expected ';'")
}

func TestRunRuntimeError(t *testing.T) {
	judge0 := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == "POST" {
			json.NewEncoder(w).Encode(map[string]string{"token": "abc-123"})
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status": map[string]interface{}{"id": 11, "description": "Runtime Error (SIGSEGV)"},
			"stderr": "segmentation fault",
		})
	}))
	defer judge0.Close()

	engine := newRunEngine(t, judge0.URL)
	w := postRun(t, engine, `{"language":"cpp","code":"int main() {}"}`)

	require.Equal(t, http.StatusOK, w.Code)
	var resp api.RunResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotNil(t, resp.ErrorType)
	assert.Equal(t, "RuntimeError", *resp.ErrorType)
	assert.Equal(t, 1, resp.ExitCode)
}

func TestRunQueueFull(t *testing.T) {
	judge0 := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(map[string]string{"error": "queue is full"})
	}))
	defer judge0.Close()

	engine := newRunEngine(t, judge0.URL)
	w := postRun(t, engine, `{"language":"python","code":"pass"}`)

	require.Equal(t, http.StatusBadGateway, w.Code)
	assert.Contains(t, w.Body.String(), "QueueFull")
}

func TestRunRejectsUnknownLanguage(t *testing.T) {
	engine := newRunEngine(t, "http://judge0.invalid")
	w := postRun(t, engine, `{"language":"rust","code":"fn main() {}"}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
