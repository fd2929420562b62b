package app

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/sma-substitute-api/api/swagger"
	"github.com/noah-isme/sma-substitute-api/internal/handler"
	internalmiddleware "github.com/noah-isme/sma-substitute-api/internal/middleware"
	"github.com/noah-isme/sma-substitute-api/internal/service"
	"github.com/noah-isme/sma-substitute-api/pkg/config"
	"github.com/noah-isme/sma-substitute-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/sma-substitute-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/sma-substitute-api/pkg/middleware/requestid"
)

// NewRouter registers middleware and routes.
func NewRouter(
	cfg *config.Config,
	logr *zap.Logger,
	metrics *service.MetricsService,
	substitutions *service.SubstitutionService,
	workload *service.WorkloadService,
	checks map[string]handler.ReadinessCheck,
) *gin.Engine {
	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr, "/health", "/metrics"))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(metrics, "/metrics"))

	metricsHandler := handler.NewMetricsHandler(metrics, checks)
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	subs := handler.NewSubstitutionHandler(substitutions)
	loads := handler.NewWorkloadHandler(workload)

	api := r.Group(cfg.APIPrefix)
	api.POST("/absences", subs.CreateAbsence)
	api.GET("/absences", subs.ListAbsences)
	api.GET("/workload", loads.Get)

	substitution := api.Group("/substitutions")
	substitution.POST("/process", subs.Process)
	substitution.GET("/pending", subs.ListPending)
	substitution.GET("/expired", subs.ListExpired)
	substitution.POST("/reconcile", subs.Reconcile)
	substitution.POST("/confirm", subs.Confirm)
	substitution.POST("/finalize", subs.Finalize)
	substitution.POST("/expire", subs.Expire)

	return r
}
