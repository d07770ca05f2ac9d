package health

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Endpoint paths.
const (
	PathHealth = "/health"
	PathReady  = "/ready"
	PathLive   = "/live"
)

// LivenessHandler always answers 200 while the process serves.
func (c *Checker) LivenessHandler() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{
			"status":    StatusOK,
			"timestamp": time.Now().UTC(),
		})
	}
}

// ReadinessHandler answers 200 when every check passes and 503 otherwise.
func (c *Checker) ReadinessHandler() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		report := c.Readiness(ctx.Request.Context())
		ctx.JSON(statusCode(report), report)
	}
}

// HealthHandler serves the check report without the draining gate.
func (c *Checker) HealthHandler() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		report := c.Health(ctx.Request.Context())
		ctx.JSON(statusCode(report), report)
	}
}

// RegisterRoutes mounts the endpoints on r.
func (c *Checker) RegisterRoutes(r gin.IRoutes) {
	r.GET(PathHealth, c.HealthHandler())
	r.GET(PathReady, c.ReadinessHandler())
	r.GET(PathLive, c.LivenessHandler())
}

func statusCode(report *Report) int {
	if report.Status == StatusOK {
		return http.StatusOK
	}
	return http.StatusServiceUnavailable
}
