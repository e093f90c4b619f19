package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"bff-service/internal/auth"
	"bff-service/internal/auth/credential"
	"bff-service/internal/auth/service"
	"bff-service/internal/logger"
	"bff-service/internal/middleware"
	"bff-service/internal/response"
)

type Config struct {
	CookieName    string
	CookieDomain  string
	SecureCookies bool
}

type Handler struct {
	svc     *service.Service
	authMW  *middleware.AuthMiddleware
	limiter *middleware.RateLimiter
	cfg     Config
}

// NewHandler wires the auth routes. limiter may be nil to disable rate
// limiting of the login endpoints.
func NewHandler(
	svc *service.Service,
	authMW *middleware.AuthMiddleware,
	limiter *middleware.RateLimiter,
	cfg Config,
) *Handler {
	if cfg.CookieName == "" {
		cfg.CookieName = credential.DefaultCookieName
	}
	return &Handler{
		svc:     svc,
		authMW:  authMW,
		limiter: limiter,
		cfg:     cfg,
	}
}

func (h *Handler) RegisterRoutes(r gin.IRouter) {
	g := r.Group("/auth")

	login := []gin.HandlerFunc{}
	if h.limiter != nil {
		login = append(login, middleware.RateLimit(h.limiter))
	}
	g.GET("/google", append(login, h.startLogin)...)
	g.GET("/callback", append(login, h.callback)...)

	g.GET("/status", h.status)

	required := middleware.GinRequireAuth(h.authMW)
	g.GET("/me", required, h.me)
	g.POST("/logout", required, h.logout)
	g.POST("/logout/all", required, h.logoutAll)
	g.POST("/refresh", required, h.refresh)
}

func (h *Handler) startLogin(c *gin.Context) {
	returnTo := c.Query("redirect")
	if returnTo == "" {
		returnTo = c.Query("redirectUrl")
	}

	start, err := h.svc.StartLogin(c.Request.Context(), service.LoginRequest{
		State:    c.Query("state"),
		ReturnTo: returnTo,
	})
	if err != nil {
		response.Error(c.Writer, c.Request, err)
		return
	}

	setAttemptCookie(c, start.AttemptID, h.cfg.SecureCookies)
	c.Redirect(http.StatusFound, start.URL)
}

func (h *Handler) callback(c *gin.Context) {
	attemptID := attemptIDFromRequest(c)
	clearAttemptCookie(c, h.cfg.SecureCookies)

	res, err := h.svc.CompleteLogin(c.Request.Context(), service.Callback{
		AttemptID:        attemptID,
		Code:             c.Query("code"),
		State:            c.Query("state"),
		Error:            c.Query("error"),
		ErrorDescription: c.Query("error_description"),
	})
	if err != nil {
		response.Error(c.Writer, c.Request, err)
		return
	}

	h.setCredentialCookie(c, res.Credential)

	logger.Ctx(c.Request.Context()).Info().
		Str("user_id", res.Identity.ID).
		Str("ip", c.ClientIP()).
		Msg("login.success")

	c.Redirect(http.StatusFound, res.RedirectURL)
}

func (h *Handler) status(c *gin.Context) {
	raw := middleware.ExtractCredential(c.Request, h.cfg.CookieName)
	st := h.svc.Status(c.Request.Context(), raw)

	body := map[string]any{"isAuthenticated": st.Authenticated}
	if st.Identity != nil {
		body["user"] = st.Identity
	}
	response.OK(c.Writer, c.Request, body)
}

func (h *Handler) me(c *gin.Context) {
	identity, ok := auth.IdentityFromContext(c.Request.Context())
	if !ok {
		response.Error(c.Writer, c.Request, auth.Unauthenticated(auth.CodeAuthRequired, "Authentication required", nil))
		return
	}
	response.OK(c.Writer, c.Request, map[string]any{"user": identity})
}

func (h *Handler) logout(c *gin.Context) {
	raw, _ := auth.CredentialFromContext(c.Request.Context())

	// The cookie is cleared even if the store could not be reached.
	credential.ClearCookie(c.Writer, h.cookieOptions(0))

	revoked, err := h.svc.Logout(c.Request.Context(), raw)
	if err != nil {
		response.Error(c.Writer, c.Request, err)
		return
	}

	logger.Ctx(c.Request.Context()).Info().
		Bool("revoked", revoked).
		Str("mode", string(h.svc.Mode())).
		Msg("logout")

	response.OK(c.Writer, c.Request, map[string]any{
		"message": "Logged out successfully",
		"revoked": revoked,
	})
}

func (h *Handler) logoutAll(c *gin.Context) {
	identity, _ := auth.IdentityFromContext(c.Request.Context())

	credential.ClearCookie(c.Writer, h.cookieOptions(0))

	revoked, err := h.svc.LogoutEverywhere(c.Request.Context(), identity)
	if err != nil {
		response.Error(c.Writer, c.Request, err)
		return
	}

	response.OK(c.Writer, c.Request, map[string]any{
		"message": "Logged out from all sessions",
		"revoked": revoked,
	})
}

func (h *Handler) refresh(c *gin.Context) {
	raw, _ := auth.CredentialFromContext(c.Request.Context())

	cred, identity, err := h.svc.Refresh(c.Request.Context(), raw)
	if err != nil {
		response.Error(c.Writer, c.Request, err)
		return
	}

	h.setCredentialCookie(c, cred)

	body := map[string]any{
		"user":      identity,
		"expiresAt": cred.ExpiresAt,
	}
	if cred.Mode == credential.ModeToken {
		body["token"] = cred.Value
	}
	response.OK(c.Writer, c.Request, body)
}

func (h *Handler) setCredentialCookie(c *gin.Context, cred *credential.Credential) {
	credential.SetCookie(c.Writer, cred.Value, h.cookieOptions(cred.TTL()))
}

func (h *Handler) cookieOptions(maxAge time.Duration) credential.CookieOptions {
	return credential.CookieOptions{
		Name:   h.cfg.CookieName,
		Domain: h.cfg.CookieDomain,
		Secure: h.cfg.SecureCookies,
		MaxAge: maxAge,
	}
}
