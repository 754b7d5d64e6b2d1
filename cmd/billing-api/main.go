package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	_ "github.com/noah-isme/sma-billing-api/api/swagger"
	"github.com/noah-isme/sma-billing-api/internal/handler"
	"github.com/noah-isme/sma-billing-api/internal/models"
	"github.com/noah-isme/sma-billing-api/internal/repository"
	"github.com/noah-isme/sma-billing-api/internal/service"
	"github.com/noah-isme/sma-billing-api/pkg/cache"
	"github.com/noah-isme/sma-billing-api/pkg/config"
	"github.com/noah-isme/sma-billing-api/pkg/database"
	"github.com/noah-isme/sma-billing-api/pkg/jobs"
	"github.com/noah-isme/sma-billing-api/pkg/logger"
)

// @title SMA Billing API
// @version 1.0.0
// @description Installment term generation, payment allocation and overdue sweep for student accounts
// @BasePath /api/v1
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		// the summary cache is optional; billing writes never depend on it
		logr.Warn("redis unavailable, summary cache disabled", zap.Error(err))
	}

	metricsSvc := service.NewMetricsService()
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	defer cacheRepo.Close() //nolint:errcheck
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Summary.CacheTTL, logr, cfg.Summary.Enabled && redisClient != nil)

	termRepo := repository.NewTermRepository(db)
	accountRepo := repository.NewAccountRepository(db)
	assessmentRepo := repository.NewAssessmentRepository(db)
	allocationRepo := repository.NewAllocationRepository(db)

	billingCfg := service.TermServiceConfig{
		DefaultPolicy:         models.SplitPolicy(cfg.Billing.DefaultPolicy),
		LenientScheduleAnchor: cfg.Billing.LenientScheduleAnchor,
		LockTimeout:           cfg.Billing.LockTimeout,
	}
	clock := service.SystemClock{}

	termSvc := service.NewTermService(termRepo, assessmentRepo, accountRepo, db, cacheSvc, metricsSvc, clock, billingCfg, nil, logr)
	paymentSvc := service.NewPaymentService(termRepo, allocationRepo, accountRepo, db, cacheSvc, metricsSvc, billingCfg, nil, logr)
	sweepSvc := service.NewOverdueSweepService(termRepo, accountRepo, db, cacheSvc, metricsSvc, clock, billingCfg, logr)
	accountSvc := service.NewAccountService(accountRepo, termRepo, cacheSvc, cfg.Summary.CacheTTL, clock, logr)
	tokens := service.NewTokenValidator(service.TokenConfig{
		Secret:   cfg.JWT.Secret,
		Issuer:   cfg.JWT.Issuer,
		Audience: cfg.JWT.Audience,
	})

	if cfg.Sweep.Enabled {
		queue := jobs.NewQueue("overdue-sweep", sweepSvc.Handle, jobs.QueueConfig{
			Workers:    1,
			MaxRetries: cfg.Sweep.Retries,
			RetryDelay: time.Minute,
			Logger:     logr,
		})
		queue.Start(ctx)
		defer queue.Stop()

		ticker := jobs.NewTicker(service.JobTypeOverdueSweep, cfg.Sweep.Interval, queue, logr)
		ticker.Start(ctx, true)
		defer ticker.Stop()
	}

	router := newRouter(cfg, logr, routeDeps{
		terms:    handler.NewTermHandler(termSvc),
		payments: handler.NewPaymentHandler(paymentSvc),
		accounts: handler.NewAccountHandler(accountSvc),
		sweep:    handler.NewSweepHandler(sweepSvc),
		metrics: handler.NewMetricsHandler(metricsSvc, map[string]handler.Pinger{
			"postgres": db,
			"redis":    handler.PingFunc(cacheRepo.Ping),
		}),
		tokens:         tokens,
		requestMetrics: metricsSvc,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Error("server failed", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}
