package main

import (
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/carddex/carddex-api/api/swagger"
	"github.com/carddex/carddex-api/internal/handler"
	"github.com/carddex/carddex-api/internal/middleware"
	"github.com/carddex/carddex-api/internal/models"
	"github.com/carddex/carddex-api/internal/repository"
	"github.com/carddex/carddex-api/internal/service"
	"github.com/carddex/carddex-api/pkg/cache"
	"github.com/carddex/carddex-api/pkg/config"
	"github.com/carddex/carddex-api/pkg/database"
	"github.com/carddex/carddex-api/pkg/logger"
	corsmiddleware "github.com/carddex/carddex-api/pkg/middleware/cors"
	reqidmiddleware "github.com/carddex/carddex-api/pkg/middleware/requestid"
)

// @title CardDex API
// @version 1.0.0
// @description Crowdsourced sports-card catalog contribution and review pipeline
// @BasePath /api/v1
// @schemes http

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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		// Degraded mode: trust stats are served from the database only.
		logr.Sugar().Warnw("redis unavailable, continuing without cache", "error", err)
		redisClient = nil
	}

	userRepo := repository.NewUserRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	submissionRepo := repository.NewSubmissionRepository(db)
	contributorRepo := repository.NewContributorRepository(db)
	catalogRepo := repository.NewCatalogRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	validate := validator.New()
	metricsSvc := service.NewMetricsService()
	policy := service.NewApprovalPolicy(cfg.Submissions.AutoApproveRoles)
	kinds := service.NewKindRegistry(catalogRepo, submissionRepo, cfg.Submissions.SnapshotGuard)
	resolver := service.NewDependencyResolver(submissionRepo)
	trustSvc := service.NewTrustService(contributorRepo, cacheRepo, cfg.Trust.StatsCacheTTL, logr)
	authSvc := service.NewAuthService(userRepo, auditRepo, validate, logr, service.AuthConfig{
		TokenSecret: cfg.JWT.Secret,
		TokenExpiry: cfg.JWT.Expiration,
		Issuer:      cfg.JWT.Issuer,
	})
	submissionSvc := service.NewSubmissionService(
		db, submissionRepo, contributorRepo, kinds, resolver, auditRepo, trustSvc,
		policy, metricsSvc, logr, cfg.Submissions.PageSize,
	)
	reviewSvc := service.NewReviewService(
		db, submissionRepo, contributorRepo, kinds, resolver, auditRepo, trustSvc,
		policy, metricsSvc, logr,
	)

	authHandler := handler.NewAuthHandler(authSvc)
	submissionHandler := handler.NewSubmissionHandler(submissionSvc, reviewSvc)
	contributorHandler := handler.NewContributorHandler(trustSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.POST("/auth/login", authHandler.Login)

	authed := api.Group("")
	authed.Use(middleware.JWT(authSvc))
	{
		authed.POST("/submissions", submissionHandler.Create)
		authed.GET("/submissions", submissionHandler.List)
		authed.GET("/submissions/queue", submissionHandler.Queue)
		authed.GET("/submissions/:id", submissionHandler.Get)

		reviewers := authed.Group("")
		reviewers.Use(middleware.RequireRoles(models.RoleSuperAdmin, models.RoleAdmin, models.RoleModerator))
		{
			reviewers.POST("/submissions/:id/approve", submissionHandler.Approve)
			reviewers.POST("/submissions/:id/reject", submissionHandler.Reject)
		}

		authed.GET("/contributors/:id/stats", middleware.RBAC("SUPERADMIN", "ADMIN", "MODERATOR", "SELF"), contributorHandler.Stats)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
