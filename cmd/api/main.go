package main

import (
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/noah-isme/escola-api/api/swagger"
	"github.com/noah-isme/escola-api/internal/handler"
	"github.com/noah-isme/escola-api/internal/middleware"
	"github.com/noah-isme/escola-api/internal/models"
	"github.com/noah-isme/escola-api/internal/repository"
	"github.com/noah-isme/escola-api/internal/service"
	"github.com/noah-isme/escola-api/pkg/cache"
	"github.com/noah-isme/escola-api/pkg/config"
	"github.com/noah-isme/escola-api/pkg/database"
	"github.com/noah-isme/escola-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/escola-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/escola-api/pkg/middleware/requestid"
	"github.com/noah-isme/escola-api/pkg/storage"
)

// @title Escola API
// @version 1.0.0
// @description School management service: classes, enrollment, tuition ledger, mock exams and study materials
// @BasePath /
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

	var cacheRepo service.CacheRepository
	if cfg.Billing.CacheEnabled {
		redisClient, err := cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Sugar().Warnw("redis unavailable, billing status cache disabled", "error", err)
		} else {
			repo := repository.NewCacheRepository(redisClient, logr)
			defer repo.Close() //nolint:errcheck
			cacheRepo = repo
		}
	}

	uploadStore, err := storage.NewUploadStore(cfg.Uploads.StorageDir, cfg.Uploads.AllowedExtensions)
	if err != nil {
		logr.Sugar().Fatalw("failed to prepare upload storage", "error", err)
	}

	userRepo := repository.NewUserRepository(db)
	classRepo := repository.NewClassRepository(db)
	billingRepo := repository.NewBillingRepository(db)
	examRepo := repository.NewExamRepository(db)
	materialRepo := repository.NewMaterialRepository(db)
	schemaRepo := repository.NewSchemaRepository(db)

	var metricsSvc *service.MetricsService
	if cfg.Metrics.Enabled {
		metricsSvc = service.NewMetricsService()
	}

	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Billing.CacheTTL, logr, cfg.Billing.CacheEnabled)

	billingSvc := service.NewBillingService(billingRepo, userRepo, cacheSvc, logr, service.BillingConfig{
		InstallmentCount: cfg.Billing.InstallmentCount,
		StrideDays:       cfg.Billing.StrideDays,
		GraceDays:        cfg.Billing.GraceDays,
		CacheTTL:         cfg.Billing.CacheTTL,
	})
	authSvc := service.NewAuthService(userRepo, nil, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "escola-api",
	})
	bootstrapSvc := service.NewBootstrapService(schemaRepo, userRepo, logr, service.BootstrapConfig{
		AdminLogin:    cfg.Bootstrap.AdminLogin,
		AdminName:     cfg.Bootstrap.AdminName,
		AdminPassword: cfg.Bootstrap.AdminPassword,
	})
	classSvc := service.NewClassService(classRepo, userRepo, nil, logr)
	studentSvc := service.NewStudentService(userRepo, classRepo, billingSvc, nil, logr)
	examSvc := service.NewExamService(examRepo, classRepo, nil, logr)
	materialSvc := service.NewMaterialService(materialRepo, classRepo, uploadStore, nil, logr)

	authHandler := handler.NewAuthHandler(authSvc)
	bootstrapHandler := handler.NewBootstrapHandler(bootstrapSvc)
	classHandler := handler.NewClassHandler(classSvc)
	studentHandler := handler.NewStudentHandler(studentSvc, billingSvc)
	billingHandler := handler.NewBillingHandler(billingSvc)
	examHandler := handler.NewExamHandler(examSvc, studentSvc)
	materialHandler := handler.NewMaterialHandler(materialSvc, studentSvc, cfg.Uploads.MaxFileSizeBytes)
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
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	if cfg.Metrics.Enabled {
		r.GET("/metrics", metricsHandler.Prometheus)
	}
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	r.POST("/init", bootstrapHandler.Initialize)
	r.GET("/init", bootstrapHandler.Initialize)

	api := r.Group(cfg.APIPrefix)
	api.POST("/auth/login", authHandler.Login)
	api.POST("/auth/refresh", authHandler.Refresh)

	authed := api.Group("")
	authed.Use(middleware.JWT(authSvc))

	// Password change stays reachable while the rotation lock is active.
	authed.POST("/auth/change-password", authHandler.ChangePassword)

	private := authed.Group("")
	private.Use(middleware.PasswordRotation())

	private.POST("/auth/logout", authHandler.Logout)
	private.GET("/me", authHandler.Me)

	admin := private.Group("")
	admin.Use(middleware.RequireRoles(models.RoleAdmin))
	{
		admin.GET("/classes", classHandler.List)
		admin.POST("/classes", classHandler.Create)
		admin.GET("/classes/:id", classHandler.Get)
		admin.PUT("/classes/:id", classHandler.Update)
		admin.DELETE("/classes/:id", classHandler.Delete)

		admin.GET("/students", studentHandler.List)
		admin.POST("/students", studentHandler.Enroll)
		admin.GET("/students/:id", studentHandler.Get)
		admin.DELETE("/students/:id", studentHandler.Deactivate)
		admin.GET("/students/:id/installments", studentHandler.Installments)
		admin.GET("/students/:id/installments/export", studentHandler.ExportInstallments)

		admin.PATCH("/installments/:id/pay", billingHandler.MarkPaid)

		admin.GET("/exams", examHandler.List)
		admin.POST("/exams", examHandler.Create)
		admin.PATCH("/exams/:id/active", examHandler.SetActive)
		admin.DELETE("/exams/:id", examHandler.Delete)
		admin.GET("/exams/:id/questions", examHandler.Questions)
		admin.POST("/exams/:id/questions", examHandler.AddQuestion)

		admin.GET("/materials", materialHandler.List)
		admin.POST("/materials", materialHandler.Upload)
		admin.DELETE("/materials/:id", materialHandler.Delete)
	}

	student := private.Group("/me")
	student.Use(middleware.RequireRoles(models.RoleStudent))
	{
		// Standing and ledger stay visible to blocked students.
		student.GET("/status", billingHandler.MyStatus)
		student.GET("/installments", billingHandler.MyInstallments)

		gated := student.Group("")
		gated.Use(middleware.PaymentGate(billingSvc, metricsSvc, logr))
		{
			gated.GET("/exams", examHandler.MyExams)
			gated.GET("/exams/:id", examHandler.ViewExam)
			gated.POST("/exams/:id/attempts", examHandler.SubmitAttempt)
			gated.GET("/results", examHandler.MyResults)
			gated.GET("/materials", materialHandler.MyMaterials)
		}
	}

	download := private.Group("")
	download.Use(middleware.RequireRoles(models.RoleAdmin, models.RoleStudent))
	download.Use(middleware.PaymentGate(billingSvc, metricsSvc, logr))
	download.GET("/materials/:id/download", materialHandler.Download)

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
