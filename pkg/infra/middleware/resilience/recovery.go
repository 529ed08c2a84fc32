// Package resilience provides middleware that keeps the server answering under faults.
package resilience

import (
	"fmt"
	"os"
	"runtime/debug"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"

	mwopts "github.com/kart-io/verbatim-rag/pkg/options/middleware"
	"github.com/kart-io/verbatim-rag/pkg/utils/errors"
	"github.com/kart-io/verbatim-rag/pkg/utils/response"
)

// PanicHandler 定义 panic 处理器类型。
type PanicHandler func(ctx *gin.Context, err interface{}, stack []byte)

// Recovery returns a middleware that recovers from panics with default options.
func Recovery() gin.HandlerFunc {
	return RecoveryWithOptions(*mwopts.NewRecoveryOptions(), nil)
}

// RecoveryWithOptions 返回 Recovery 中间件。
// panic 总是连同完整堆栈写入日志；只有在非生产环境且开启 EnableStackTrace 时才把堆栈返回给客户端。
func RecoveryWithOptions(opts mwopts.RecoveryOptions, onPanic PanicHandler) gin.HandlerFunc {
	withStack := opts.EnableStackTrace
	if withStack && isProduction() {
		logger.Warn("Stack trace is enabled but running in production; it will only be logged.")
		withStack = false
	}

	return func(c *gin.Context) {
		defer func() {
			r := recover()
			if r == nil {
				return
			}
			stack := debug.Stack()

			logger.Errorw("panic recovered",
				"panic", r,
				"stack_trace", string(stack),
				"path", c.Request.URL.Path,
				"method", c.Request.Method,
			)
			if onPanic != nil {
				onPanic(c, r, stack)
			}

			msg := fmt.Sprintf("panic: %v", r)
			if withStack {
				msg += "\n" + string(stack)
			}
			response.Fail(c, errors.ErrPanic.WithMessage(msg))
		}()
		c.Next()
	}
}

// isProduction checks APP_ENV, then GO_ENV.
func isProduction() bool {
	env := os.Getenv("APP_ENV")
	if env == "" {
		env = os.Getenv("GO_ENV")
	}
	switch strings.ToLower(env) {
	case "production", "prod":
		return true
	default:
		return false
	}
}
