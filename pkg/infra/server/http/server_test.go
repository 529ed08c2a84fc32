package http

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	options "github.com/kart-io/verbatim-rag/pkg/options/server/http"
	apierrors "github.com/kart-io/verbatim-rag/pkg/utils/errors"
)

func TestServer_NoRouteEnvelope(t *testing.T) {
	s := NewServer(options.NewOptions())

	w := httptest.NewRecorder()
	s.Engine().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/missing", nil))

	assert.Equal(t, http.StatusNotFound, w.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.EqualValues(t, apierrors.ErrRouteNotFound.Code, body["code"])
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestServer_StartStop(t *testing.T) {
	s := NewServer(options.NewOptions(options.WithAddr("127.0.0.1:0")))
	s.Engine().GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	require.NoError(t, s.Start(context.Background()))

	resp, err := http.Get("http://" + s.Addr() + "/ping")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	assert.Equal(t, "pong", string(body))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))

	_, open := <-s.Err()
	assert.False(t, open)
}
