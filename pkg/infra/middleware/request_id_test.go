package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/kart-io/verbatim-rag/pkg/infra/middleware/common"
	mwopts "github.com/kart-io/verbatim-rag/pkg/options/middleware"
)

func serveWithRequestID(t *testing.T, opts mwopts.RequestIDOptions, incoming string) (*httptest.ResponseRecorder, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	var seen string
	w := httptest.NewRecorder()
	_, r := gin.CreateTestContext(w)
	r.Use(RequestIDWithOptions(opts))
	r.GET("/test", func(c *gin.Context) {
		seen = common.GetRequestID(c.Request.Context())
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	if incoming != "" {
		req.Header.Set(opts.Header, incoming)
	}
	r.ServeHTTP(w, req)
	return w, seen
}

func TestRequestID(t *testing.T) {
	tests := []struct {
		name      string
		generator string
		incoming  string
		wantLen   int
	}{
		{name: "random hex", generator: mwopts.GeneratorRandom, wantLen: 32},
		{name: "ulid", generator: mwopts.GeneratorULID, wantLen: 26},
		{name: "reuse incoming header", generator: mwopts.GeneratorULID, incoming: "req-123", wantLen: 7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := mwopts.RequestIDOptions{Header: "X-Request-ID", GeneratorType: tt.generator}
			w, seen := serveWithRequestID(t, opts, tt.incoming)

			got := w.Header().Get("X-Request-ID")
			assert.Len(t, got, tt.wantLen)
			assert.Equal(t, got, seen)
			if tt.incoming != "" {
				assert.Equal(t, tt.incoming, got)
			}
		})
	}
}

func TestULIDGeneratorMonotonic(t *testing.T) {
	gen := common.NewULIDGenerator()
	prev := gen.Generate()
	for i := 0; i < 100; i++ {
		next := gen.Generate()
		assert.Less(t, prev, next)
		prev = next
	}
}
