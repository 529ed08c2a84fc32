package observability

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"
	"github.com/kart-io/logger/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/verbatim-rag/pkg/infra/middleware/common"
	mwopts "github.com/kart-io/verbatim-rag/pkg/options/middleware"
)

// captureAccessLog routes the global logger to a JSON file and returns a
// function that flushes it and yields the access log entries.
func captureAccessLog(t *testing.T) func() []map[string]interface{} {
	t.Helper()

	path := filepath.Join(t.TempDir(), "access.log")
	opt := option.DefaultLogOption()
	opt.Format = "json"
	opt.Level = "info"
	opt.OutputPaths = []string{path}
	log, err := logger.New(opt)
	require.NoError(t, err)

	prev := logger.Global()
	logger.SetGlobal(log)
	t.Cleanup(func() { logger.SetGlobal(prev) })

	return func() []map[string]interface{} {
		_ = log.Flush()
		data, err := os.ReadFile(path)
		require.NoError(t, err)

		var entries []map[string]interface{}
		for _, line := range strings.Split(string(data), "\n") {
			if !strings.Contains(line, "HTTP Request") {
				continue
			}
			entry := map[string]interface{}{}
			require.NoError(t, json.Unmarshal([]byte(line), &entry))
			entries = append(entries, entry)
		}
		return entries
	}
}

func newLoggedEngine() *gin.Engine {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Request = c.Request.WithContext(common.WithRequestID(c.Request.Context(), "req-42"))
		c.Next()
	})
	r.Use(LoggerWithOptions(mwopts.LoggerOptions{SkipPaths: []string{"/health"}}))
	r.GET("/query", func(c *gin.Context) { c.Status(http.StatusTeapot) })
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func TestLoggerWritesAccessFields(t *testing.T) {
	entries := captureAccessLog(t)
	r := newLoggedEngine()

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/query?q=x", nil))

	got := entries()
	require.Len(t, got, 1)
	entry := got[0]
	assert.Equal(t, "GET", entry["method"])
	assert.Equal(t, "/query", entry["path"])
	assert.EqualValues(t, http.StatusTeapot, entry["status"])
	assert.Equal(t, "req-42", entry["request_id"])
	assert.Contains(t, entry, "latency_ms")
	assert.NotContains(t, entry, "trace_id")
}

func TestLoggerSkipsConfiguredPaths(t *testing.T) {
	entries := captureAccessLog(t)
	r := newLoggedEngine()

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/query", nil))

	got := entries()
	require.Len(t, got, 1)
	assert.Equal(t, "/query", got[0]["path"])
}
