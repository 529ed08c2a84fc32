// Package httputils holds helpers shared by the gin handlers.
package httputils

import (
	"github.com/gin-gonic/gin"

	"github.com/kart-io/verbatim-rag/pkg/utils/response"
)

// WriteResponse writes data in the success envelope, or err in the error
// envelope when err is non-nil.
func WriteResponse(c *gin.Context, err error, data any) {
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, data)
}
