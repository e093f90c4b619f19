package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// GinAuth adapts the net/http AuthMiddleware to Gin so the auth decision
// lives in one place for both stacks.
func GinAuth(a *AuthMiddleware, opts Options) gin.HandlerFunc {
	mw := a.Handler(opts)

	return func(c *gin.Context) {
		passed := false

		// Bridge handler to allow net/http middleware execution
		next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			passed = true
			c.Request = r
			c.Next()
		})

		mw(next).ServeHTTP(c.Writer, c.Request)

		// The middleware answered the request itself; stop the Gin chain.
		if !passed {
			c.Abort()
		}
	}
}

// GinRequireAuth is GinAuth with a required credential.
func GinRequireAuth(a *AuthMiddleware) gin.HandlerFunc {
	return GinAuth(a, RequireCredential)
}
