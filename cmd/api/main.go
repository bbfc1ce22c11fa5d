package main

import (
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/osei-labs/schoolmate-api/api/swagger"
	"github.com/osei-labs/schoolmate-api/internal/handler"
	"github.com/osei-labs/schoolmate-api/internal/middleware"
	"github.com/osei-labs/schoolmate-api/internal/repository"
	"github.com/osei-labs/schoolmate-api/internal/service"
	"github.com/osei-labs/schoolmate-api/pkg/cache"
	"github.com/osei-labs/schoolmate-api/pkg/config"
	"github.com/osei-labs/schoolmate-api/pkg/database"
	"github.com/osei-labs/schoolmate-api/pkg/export"
	"github.com/osei-labs/schoolmate-api/pkg/logger"
	corsmiddleware "github.com/osei-labs/schoolmate-api/pkg/middleware/cors"
	reqidmiddleware "github.com/osei-labs/schoolmate-api/pkg/middleware/requestid"
)

// @title Schoolmate API
// @version 1.0.0
// @description School results management and publication service
// @BasePath /api/v1
// @schemes http
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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close() //nolint:errcheck

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		// Analytics caching degrades to direct queries without Redis.
		logr.Sugar().Warnw("redis unavailable, caching disabled", "error", err)
		redisClient = nil
	}

	userRepo := repository.NewUserRepository(db)
	yearRepo := repository.NewAcademicYearRepository(db)
	termRepo := repository.NewTermRepository(db)
	subjectRepo := repository.NewSubjectRepository(db)
	classRepo := repository.NewClassRepository(db)
	classSubjectRepo := repository.NewClassSubjectRepository(db)
	resultRepo := repository.NewResultRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	defer cacheRepo.Close() //nolint:errcheck

	validate := validator.New()
	metricsSvc := service.NewMetricsService()

	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "schoolmate-api",
		Audience:           []string{"schoolmate"},
	})
	userSvc := service.NewUserService(userRepo, validate, logr)
	yearSvc := service.NewAcademicYearService(yearRepo, validate, logr)
	termSvc := service.NewTermService(termRepo, yearRepo, validate, logr)
	subjectSvc := service.NewSubjectService(subjectRepo, validate, logr)
	classSvc := service.NewClassService(classRepo, validate, logr)
	classSubjectSvc := service.NewClassSubjectService(classSubjectRepo, userRepo, validate, logr)
	resultSvc := service.NewResultService(resultRepo, termRepo, classSubjectRepo, userRepo, userRepo, cacheRepo, metricsSvc, validate, logr)
	analyticsSvc := service.NewAnalyticsService(resultRepo, cacheRepo, metricsSvc, cfg.Analytics.CacheTTL, logr)
	exportSvc := service.NewExportService(resultRepo, export.NewCSVExporter(), export.NewPDFExporter(), cfg.Exports.MaxRows, logr)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	metricsHandler := handler.NewMetricsHandler(metricsSvc)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	registerRoutes(r.Group(cfg.APIPrefix), routeDeps{
		auth:        authSvc,
		authHandler: handler.NewAuthHandler(authSvc),
		users:       handler.NewUserHandler(userSvc),
		years:       handler.NewAcademicYearHandler(yearSvc),
		terms:       handler.NewTermHandler(termSvc),
		subjects:    handler.NewSubjectHandler(subjectSvc),
		classes:     handler.NewClassHandler(classSvc),
		assignments: handler.NewClassSubjectHandler(classSubjectSvc),
		results:     handler.NewResultHandler(resultSvc, exportSvc),
		analytics:   handler.NewAnalyticsHandler(analyticsSvc),
	})

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
