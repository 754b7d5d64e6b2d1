package main

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-billing-api/internal/handler"
	"github.com/noah-isme/sma-billing-api/internal/middleware"
	"github.com/noah-isme/sma-billing-api/internal/models"
	"github.com/noah-isme/sma-billing-api/pkg/config"
	"github.com/noah-isme/sma-billing-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/sma-billing-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/sma-billing-api/pkg/middleware/requestid"
)

type routeDeps struct {
	terms          *handler.TermHandler
	payments       *handler.PaymentHandler
	accounts       *handler.AccountHandler
	sweep          *handler.SweepHandler
	metrics        *handler.MetricsHandler
	tokens         middleware.TokenValidator
	requestMetrics middleware.RequestObserver
}

func newRouter(cfg *config.Config, logr *zap.Logger, deps routeDeps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS))
	r.Use(middleware.Metrics(deps.requestMetrics))

	r.GET("/health", deps.metrics.Health)
	r.GET("/ready", deps.metrics.Ready)
	r.GET("/metrics", deps.metrics.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.Use(middleware.JWT(deps.tokens))

	staff := middleware.RequireRoles(models.RoleAdmin, models.RoleBursar)
	staffOrSystem := middleware.RequireRoles(models.RoleAdmin, models.RoleBursar, models.RoleSystem)

	accounts := api.Group("/accounts/:accountId")
	accounts.POST("/terms", staff, deps.terms.Generate)
	accounts.GET("/terms", staffOrSystem, deps.terms.List)
	accounts.POST("/payments", staffOrSystem, deps.payments.Allocate)
	accounts.GET("/summary", staffOrSystem, deps.accounts.Summary)

	api.POST("/billing/overdue-sweep", middleware.RequireRoles(models.RoleAdmin, models.RoleSystem), deps.sweep.Trigger)

	return r
}
