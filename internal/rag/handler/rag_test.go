package handler_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/verbatim-rag/internal/rag/biz"
	"github.com/kart-io/verbatim-rag/internal/rag/handler"
	"github.com/kart-io/verbatim-rag/internal/rag/metrics"
	"github.com/kart-io/verbatim-rag/internal/rag/router"
	"github.com/kart-io/verbatim-rag/pkg/utils/errors"
)

type fakeService struct {
	queryFn    func(ctx context.Context, question string, debug bool) (*biz.QueryResponse, error)
	reindexFn  func(ctx context.Context) (int, error)
	stats      *biz.Stats
	statsErr   error
	lastDebug  bool
	lastQuery  string
	queryCalls int
}

func (f *fakeService) Query(ctx context.Context, question string, debug bool) (*biz.QueryResponse, error) {
	f.queryCalls++
	f.lastQuery = question
	f.lastDebug = debug
	return f.queryFn(ctx, question, debug)
}

func (f *fakeService) Reindex(ctx context.Context) (int, error) {
	return f.reindexFn(ctx)
}

func (f *fakeService) Stats(context.Context) (*biz.Stats, error) {
	return f.stats, f.statsErr
}

func newEngine(svc biz.Service, timeout time.Duration) *gin.Engine {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	router.Register(engine, handler.NewRAGHandler(svc, metrics.NewRAGMetrics(), timeout))
	return engine
}

func do(engine *gin.Engine, method, target string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, target, nil)
	engine.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestHealth(t *testing.T) {
	w := do(newEngine(&fakeService{}, 0), http.MethodGet, "/health")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestQuery(t *testing.T) {
	svc := &fakeService{queryFn: func(context.Context, string, bool) (*biz.QueryResponse, error) {
		return &biz.QueryResponse{Answer: "Python, Go, Rust"}, nil
	}}
	w := do(newEngine(svc, 0), http.MethodPost, "/query?q=What+are+the+skills%3F")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"answer":"Python, Go, Rust"}`, w.Body.String())
	assert.Equal(t, "What are the skills?", svc.lastQuery)
	assert.False(t, svc.lastDebug)
}

func TestQueryDebug(t *testing.T) {
	svc := &fakeService{queryFn: func(_ context.Context, _ string, debug bool) (*biz.QueryResponse, error) {
		return &biz.QueryResponse{
			Answer: biz.NotFound,
			Debug: &biz.DebugInfo{
				Config:  &biz.CollaboratorInfo{Collection: "docs", TopK: 3},
				Results: &biz.DebugResults{IDs: []string{}, Documents: []string{}, Metadatas: []map[string]any{}, Distances: []float64{}},
			},
		}, nil
	}}
	w := do(newEngine(svc, 0), http.MethodPost, "/query?q=x&debug=true")

	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "NOT_FOUND", body["answer"])
	debug, ok := body["debug"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "docs", debug["config"].(map[string]any)["collection"])
	assert.Contains(t, debug["results"], "distances")
	assert.True(t, svc.lastDebug)
}

func TestQueryBadRequest(t *testing.T) {
	tests := []struct {
		name   string
		target string
	}{
		{"missing q", "/query"},
		{"invalid debug", "/query?q=x&debug=maybe"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeService{}
			w := do(newEngine(svc, 0), http.MethodPost, tt.target)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			body := decode(t, w)
			assert.EqualValues(t, errors.ErrRAGInvalidRequest.Code, body["code"])
			assert.Zero(t, svc.queryCalls)
		})
	}
}

func TestQueryErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   int
	}{
		{"embedding", biz.ErrEmbedding.WithCause(assert.AnError), http.StatusBadGateway, errors.ErrRAGEmbedding.Code},
		{"generation", biz.ErrGeneration.WithCause(assert.AnError), http.StatusBadGateway, errors.ErrRAGGeneration.Code},
		{"store", biz.ErrStore.WithCause(assert.AnError), http.StatusInternalServerError, errors.ErrRAGStore.Code},
		{"unknown", assert.AnError, http.StatusInternalServerError, errors.ErrInternal.Code},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeService{queryFn: func(context.Context, string, bool) (*biz.QueryResponse, error) {
				return nil, tt.err
			}}
			w := do(newEngine(svc, 0), http.MethodPost, "/query?q=x")

			assert.Equal(t, tt.status, w.Code)
			assert.EqualValues(t, tt.code, decode(t, w)["code"])
		})
	}
}

func TestQueryTimeout(t *testing.T) {
	svc := &fakeService{queryFn: func(ctx context.Context, _ string, _ bool) (*biz.QueryResponse, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}}
	w := do(newEngine(svc, 20*time.Millisecond), http.MethodPost, "/query?q=x")

	assert.Equal(t, http.StatusRequestTimeout, w.Code)
	assert.EqualValues(t, errors.ErrRAGQueryTimeout.Code, decode(t, w)["code"])
}

func TestIndex(t *testing.T) {
	svc := &fakeService{reindexFn: func(context.Context) (int, error) { return 2, nil }}
	w := do(newEngine(svc, 0), http.MethodPost, "/v1/rag/index")

	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.EqualValues(t, 0, body["code"])
	assert.EqualValues(t, 2, body["data"].(map[string]any)["chunks"])
}

func TestIndexMissingDocument(t *testing.T) {
	svc := &fakeService{reindexFn: func(context.Context) (int, error) {
		return 0, biz.ErrMissingSourceDocument.WithCause(assert.AnError)
	}}
	w := do(newEngine(svc, 0), http.MethodPost, "/v1/rag/index")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.EqualValues(t, errors.ErrRAGMissingDocument.Code, decode(t, w)["code"])
}

func TestIndexUnexpectedError(t *testing.T) {
	svc := &fakeService{reindexFn: func(context.Context) (int, error) { return 0, assert.AnError }}
	w := do(newEngine(svc, 0), http.MethodPost, "/v1/rag/index")

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.EqualValues(t, errors.ErrRAGIndexFailed.Code, decode(t, w)["code"])
}

func TestStats(t *testing.T) {
	svc := &fakeService{stats: &biz.Stats{Collection: "docs", Backend: "memory", RecordCount: 2}}
	w := do(newEngine(svc, 0), http.MethodGet, "/v1/rag/stats")

	require.Equal(t, http.StatusOK, w.Code)
	data := decode(t, w)["data"].(map[string]any)
	assert.Equal(t, "docs", data["collection"])
	assert.EqualValues(t, 2, data["record_count"])

	svc.stats, svc.statsErr = nil, assert.AnError
	w = do(newEngine(svc, 0), http.MethodGet, "/v1/rag/stats")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestMetrics(t *testing.T) {
	w := do(newEngine(&fakeService{}, 0), http.MethodGet, "/metrics")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "verbatim_rag_queries_total 0")
}
