package middleware

import (
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"bff-service/internal/logger"
	"bff-service/internal/response"
)

// Recovery turns panics into an INTERNAL_ERROR envelope. The stack trace
// is always logged and returned to the client only when exposeStack is set.
func Recovery(exposeStack bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if rec := recover(); rec != nil {
				stack := debug.Stack()

				logger.Ctx(c.Request.Context()).Error().
					Interface("panic", rec).
					Bytes("stack", stack).
					Str("route", c.FullPath()).
					Msg("panic.recovered")

				var exposed string
				if exposeStack {
					exposed = string(stack)
				}
				response.Panic(c.Writer, c.Request, exposed)
				c.Abort()
			}
		}()
		c.Next()
	}
}
