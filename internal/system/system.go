// Package system serves the operational endpoints: health, version and
// Prometheus metrics.
package system

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"

	"bff-service/internal/buildinfo"
	"bff-service/internal/logger"
	"bff-service/internal/metrics"
)

const checkTimeout = 2 * time.Second

// Check reports whether one dependency is reachable.
type Check func(ctx context.Context) error

type Handler struct {
	environment string
	started     time.Time
	checks      map[string]Check
	metrics     *metrics.Metrics
	now         func() time.Time
}

func NewHandler(environment string, m *metrics.Metrics, checks map[string]Check) *Handler {
	return &Handler{
		environment: environment,
		started:     time.Now(),
		checks:      checks,
		metrics:     m,
		now:         time.Now,
	}
}

func (h *Handler) RegisterRoutes(r gin.IRouter) {
	r.GET("/health", h.health)
	r.GET("/version", h.version)
	if h.metrics != nil {
		r.GET("/metrics", gin.WrapH(h.metrics.Handler()))
	}
}

func (h *Handler) health(c *gin.Context) {
	now := h.now()

	status := "healthy"
	code := http.StatusOK

	var results map[string]string
	if len(h.checks) > 0 {
		results = make(map[string]string, len(h.checks))
		ctx, cancel := context.WithTimeout(c.Request.Context(), checkTimeout)
		defer cancel()

		for name, check := range h.checks {
			if err := check(ctx); err != nil {
				logger.Ctx(ctx).Warn().Err(err).Str("dependency", name).Msg("health check failed")
				results[name] = "unavailable"
				status = "degraded"
				code = http.StatusServiceUnavailable
				continue
			}
			results[name] = "ok"
		}
	}

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	body := gin.H{
		"status":    status,
		"timestamp": now.UTC().Format(time.RFC3339),
		"uptime":    now.Sub(h.started).Seconds(),
		"memory": gin.H{
			"heapAlloc":  mem.HeapAlloc,
			"heapSys":    mem.HeapSys,
			"goroutines": runtime.NumGoroutine(),
		},
	}
	if results != nil {
		body["checks"] = results
	}
	c.JSON(code, body)
}

func (h *Handler) version(c *gin.Context) {
	info := buildinfo.Get()
	c.JSON(http.StatusOK, gin.H{
		"version":     info.Version,
		"gitSha":      info.CommitHash,
		"buildTime":   info.BuildTime,
		"goVersion":   info.GoVersion,
		"environment": h.environment,
	})
}
