// Package observability provides access logging and tracing middleware.
package observability

import (
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"

	"github.com/kart-io/verbatim-rag/pkg/infra/middleware/common"
	"github.com/kart-io/verbatim-rag/pkg/infra/tracing"
	mwopts "github.com/kart-io/verbatim-rag/pkg/options/middleware"
)

// fieldsPool reuses the key/value slices passed to the logger.
var fieldsPool = sync.Pool{
	New: func() interface{} {
		s := make([]interface{}, 0, 16)
		return &s
	},
}

// Logger returns a middleware that logs HTTP requests with default options.
func Logger() gin.HandlerFunc {
	return LoggerWithOptions(*mwopts.NewLoggerOptions())
}

// LoggerWithOptions 返回访问日志中间件，SkipPaths 中的路径不记录。
func LoggerWithOptions(opts mwopts.LoggerOptions) gin.HandlerFunc {
	skip := make(map[string]struct{}, len(opts.SkipPaths))
	for _, p := range opts.SkipPaths {
		skip[p] = struct{}{}
	}

	return func(c *gin.Context) {
		path := c.Request.URL.Path
		if _, ok := skip[path]; ok {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()
		latency := time.Since(start)

		fields := fieldsPool.Get().(*[]interface{})
		defer func() {
			*fields = (*fields)[:0]
			fieldsPool.Put(fields)
		}()

		*fields = append(*fields,
			"method", c.Request.Method,
			"path", path,
			"status", c.Writer.Status(),
			"remote_addr", c.Request.RemoteAddr,
			"latency", latency.String(),
			"latency_ms", latency.Milliseconds(),
		)
		if requestID := common.GetRequestID(c.Request.Context()); requestID != "" {
			*fields = append(*fields, "request_id", requestID)
		}
		if traceID := tracing.TraceID(c.Request.Context()); traceID != "" {
			*fields = append(*fields, "trace_id", traceID)
		}
		if len(c.Errors) > 0 {
			*fields = append(*fields, "errors", c.Errors.String())
		}
		logger.Infow("HTTP Request", (*fields)...)
	}
}
