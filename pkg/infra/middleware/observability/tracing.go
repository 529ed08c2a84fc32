package observability

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/kart-io/verbatim-rag/pkg/infra/middleware/common"
	"github.com/kart-io/verbatim-rag/pkg/infra/tracing"
	mwopts "github.com/kart-io/verbatim-rag/pkg/options/middleware"
)

// Tracing returns a server span middleware with default options.
func Tracing() gin.HandlerFunc {
	return TracingWithOptions(*mwopts.NewTracingOptions())
}

// TracingWithOptions 为每个请求创建服务端 span，并从请求头恢复上游 trace 上下文。
// span 名为 "METHOD route"，未匹配路由时使用原始路径。
func TracingWithOptions(opts mwopts.TracingOptions) gin.HandlerFunc {
	skip := make(map[string]struct{}, len(opts.SkipPaths))
	for _, p := range opts.SkipPaths {
		skip[p] = struct{}{}
	}

	return func(c *gin.Context) {
		req := c.Request
		if _, ok := skip[req.URL.Path]; ok {
			c.Next()
			return
		}

		route := c.FullPath()
		if route == "" {
			route = req.URL.Path
		}

		attrs := []attribute.KeyValue{
			attribute.String("http.request.method", req.Method),
			attribute.String("http.route", route),
			attribute.String("url.path", req.URL.Path),
			attribute.String("server.address", req.Host),
		}
		if ua := req.UserAgent(); ua != "" {
			attrs = append(attrs, attribute.String("user_agent.original", ua))
		}
		if id := common.GetRequestID(req.Context()); id != "" {
			attrs = append(attrs, attribute.String("http.request_id", id))
		}

		ctx := otel.GetTextMapPropagator().Extract(req.Context(), propagation.HeaderCarrier(req.Header))
		ctx, span := otel.Tracer(tracing.TracerName).Start(ctx, req.Method+" "+route,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(attrs...),
		)
		defer span.End()

		c.Request = req.WithContext(ctx)
		c.Next()

		status := c.Writer.Status()
		span.SetAttributes(attribute.Int("http.response.status_code", status))
		if status >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(status))
		}
		if err := c.Errors.Last(); err != nil {
			span.RecordError(err.Err)
		}
	}
}
