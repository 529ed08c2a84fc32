// Package middleware provides the gin middleware used by the HTTP server.
package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/kart-io/verbatim-rag/pkg/infra/middleware/common"
	mwopts "github.com/kart-io/verbatim-rag/pkg/options/middleware"
)

// RequestID returns a middleware that adds a unique request ID to each request.
func RequestID() gin.HandlerFunc {
	return RequestIDWithOptions(*mwopts.NewRequestIDOptions())
}

// RequestIDWithOptions returns a RequestID middleware with custom options.
// An incoming header value is reused; otherwise a new ID is generated.
// The ID is written to the response header and stored in the request context.
func RequestIDWithOptions(opts mwopts.RequestIDOptions) gin.HandlerFunc {
	header := opts.Header
	if header == "" {
		header = common.HeaderXRequestID
	}
	generate := common.NewGenerator(opts.GeneratorType)

	return func(c *gin.Context) {
		requestID := c.GetHeader(header)
		if requestID == "" {
			requestID = generate()
		}

		c.Header(header, requestID)
		c.Request = c.Request.WithContext(common.WithRequestID(c.Request.Context(), requestID))
		c.Next()
	}
}
