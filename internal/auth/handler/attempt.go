package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"bff-service/internal/auth/csrf"
)

const attemptCookiePath = "/auth"

func setAttemptCookie(c *gin.Context, attemptID string, secure bool) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     csrf.CookieName,
		Value:    attemptID,
		Path:     attemptCookiePath,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(csrf.TTL.Seconds()),
	})
}

func attemptIDFromRequest(c *gin.Context) string {
	cookie, err := c.Request.Cookie(csrf.CookieName)
	if err != nil {
		return ""
	}
	return cookie.Value
}

func clearAttemptCookie(c *gin.Context, secure bool) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     csrf.CookieName,
		Value:    "",
		Path:     attemptCookiePath,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})
}
