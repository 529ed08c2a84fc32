// Package response writes the JSON envelope used by the management endpoints.
// Error envelopes carry the Errno code, its HTTP status and a message in the
// language the client asked for.
package response

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kart-io/verbatim-rag/pkg/infra/middleware/common"
	"github.com/kart-io/verbatim-rag/pkg/utils/errors"
)

// Response is the envelope body.
type Response struct {
	// Code is the Errno code, 0 on success.
	Code      int    `json:"code"`
	HTTPCode  int    `json:"http_code,omitempty"`
	Message   string `json:"message"`
	Data      any    `json:"data,omitempty"`
	RequestID string `json:"request_id,omitempty"`
	// Timestamp is in Unix milliseconds.
	Timestamp int64 `json:"timestamp,omitempty"`
}

// Success builds a success envelope.
func Success(data any) *Response {
	return &Response{
		Code:     errors.OK.Code,
		HTTPCode: http.StatusOK,
		Message:  "success",
		Data:     data,
	}
}

// Err builds an error envelope for e in the given language.
func Err(e *errors.Errno, lang string) *Response {
	if e == nil {
		return Success(nil)
	}
	return &Response{
		Code:     e.Code,
		HTTPCode: e.HTTPStatus(),
		Message:  e.Message(lang),
	}
}

// OK writes a success envelope.
func OK(c *gin.Context, data any) {
	write(c, Success(data))
}

// Fail writes an error envelope and aborts the handler chain. Errors that are
// not an Errno are reported as an internal error.
func Fail(c *gin.Context, err error) {
	write(c, Err(errors.FromError(err), language(c)))
	c.Abort()
}

func write(c *gin.Context, resp *Response) {
	resp.Timestamp = time.Now().UnixMilli()
	if id := common.GetRequestID(c.Request.Context()); id != "" {
		resp.RequestID = id
	}
	status := resp.HTTPCode
	if status == 0 {
		status = http.StatusOK
	}
	c.JSON(status, resp)
}

// language returns the primary tag of Accept-Language, e.g. "zh-CN".
func language(c *gin.Context) string {
	al := c.GetHeader("Accept-Language")
	if i := strings.IndexAny(al, ",;"); i >= 0 {
		al = al[:i]
	}
	return strings.TrimSpace(al)
}
