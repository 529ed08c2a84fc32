// Package handler provides HTTP handlers for RAG service.
package handler

import (
	"context"
	stderrors "errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"

	"github.com/kart-io/verbatim-rag/internal/pkg/httputils"
	"github.com/kart-io/verbatim-rag/internal/pkg/rag/textutil"
	"github.com/kart-io/verbatim-rag/internal/rag/biz"
	"github.com/kart-io/verbatim-rag/internal/rag/metrics"
	"github.com/kart-io/verbatim-rag/pkg/utils/errors"
)

// RAGHandler handles RAG HTTP requests.
type RAGHandler struct {
	service      biz.Service
	metrics      *metrics.RAGMetrics
	queryTimeout time.Duration
}

// NewRAGHandler creates a new RAGHandler. m may be nil, in which case /metrics is empty.
func NewRAGHandler(service biz.Service, m *metrics.RAGMetrics, queryTimeout time.Duration) *RAGHandler {
	if queryTimeout <= 0 {
		queryTimeout = 60 * time.Second
	}
	return &RAGHandler{
		service:      service,
		metrics:      m,
		queryTimeout: queryTimeout,
	}
}

// Health reports liveness.
func (h *RAGHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Query answers the question given in the q query parameter.
// The body is {"answer": ..., "debug": ...}; failures use the error envelope.
func (h *RAGHandler) Query(c *gin.Context) {
	question, ok := c.GetQuery("q")
	if !ok {
		httputils.WriteResponse(c, errors.ErrRAGInvalidRequest.WithMessage("query parameter 'q' is required"), nil)
		return
	}

	debug := false
	if raw := c.Query("debug"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			httputils.WriteResponse(c, errors.ErrRAGInvalidRequest.WithMessage("query parameter 'debug' must be a boolean"), nil)
			return
		}
		debug = v
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.queryTimeout)
	defer cancel()

	resp, err := h.service.Query(ctx, question, debug)
	if err != nil {
		if stderrors.Is(ctx.Err(), context.DeadlineExceeded) {
			err = errors.ErrRAGQueryTimeout.WithCause(err)
		}
		logger.Warnw("query failed",
			"question", textutil.TruncateString(question, 80),
			"error", err.Error(),
		)
		httputils.WriteResponse(c, err, nil)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// IndexResponse is returned by Index.
type IndexResponse struct {
	Chunks int `json:"chunks"`
}

// Index rebuilds the index from the configured source document.
func (h *RAGHandler) Index(c *gin.Context) {
	n, err := h.service.Reindex(c.Request.Context())
	if err != nil {
		if errors.GetCode(err) == -1 {
			err = errors.ErrRAGIndexFailed.WithCause(err)
		}
		httputils.WriteResponse(c, err, nil)
		return
	}
	httputils.WriteResponse(c, nil, &IndexResponse{Chunks: n})
}

// Stats returns knowledge base statistics.
func (h *RAGHandler) Stats(c *gin.Context) {
	stats, err := h.service.Stats(c.Request.Context())
	if err != nil {
		httputils.WriteResponse(c, errors.ErrRAGStatsUnavailable.WithCause(err), nil)
		return
	}
	httputils.WriteResponse(c, nil, stats)
}

// Metrics exposes query and indexing counters in Prometheus text format.
func (h *RAGHandler) Metrics(c *gin.Context) {
	var body string
	if h.metrics != nil {
		body = h.metrics.Export("verbatim", "rag")
	}
	c.Data(http.StatusOK, "text/plain; version=0.0.4; charset=utf-8", []byte(body))
}
