package gateway

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/bkr/apigateway/internal/config"
	"github.com/bkr/apigateway/internal/health"
	"github.com/bkr/apigateway/internal/observability"
)

// NewAdminHandler returns the admin engine serving metrics and the health
// endpoints. Either dependency may be nil.
func NewAdminHandler(metrics *observability.Metrics, checker *health.Checker, metricsPath string) http.Handler {
	if metricsPath == "" {
		metricsPath = config.DefaultMetricsPath
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	if metrics != nil {
		engine.GET(metricsPath, gin.WrapH(metrics.Handler()))
	}
	if checker != nil {
		checker.RegisterRoutes(engine)
	}

	return engine
}
