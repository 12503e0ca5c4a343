package main

import (
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/noah-isme/sma-face-api/api/swagger"
	"github.com/noah-isme/sma-face-api/internal/embedding"
	"github.com/noah-isme/sma-face-api/internal/extractor"
	"github.com/noah-isme/sma-face-api/internal/handler"
	"github.com/noah-isme/sma-face-api/internal/middleware"
	"github.com/noah-isme/sma-face-api/internal/recognition"
	"github.com/noah-isme/sma-face-api/internal/repository"
	"github.com/noah-isme/sma-face-api/internal/service"
	"github.com/noah-isme/sma-face-api/pkg/cache"
	"github.com/noah-isme/sma-face-api/pkg/config"
	"github.com/noah-isme/sma-face-api/pkg/database"
	"github.com/noah-isme/sma-face-api/pkg/export"
	"github.com/noah-isme/sma-face-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/sma-face-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/sma-face-api/pkg/middleware/requestid"
	"github.com/noah-isme/sma-face-api/pkg/storage"
)

// @title SMA Face Attendance API
// @version 0.1.0
// @description Face recognition attendance backend with leave and substitution management
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

	// Redis is optional: reports fall back to the database when absent.
	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, report caching disabled", "error", err)
		redisClient = nil
	}

	files, err := storage.NewLocalStorage(cfg.Embeddings.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init embeddings storage", "error", err)
	}

	store := embedding.NewFileStore(files, cfg.Recognition.Dimension, logr)
	extractorClient := extractor.NewClient(cfg.Extractor.BaseURL, cfg.Extractor.Timeout)
	matcher := recognition.NewMatcher(store, logr)

	studentRepo := repository.NewStudentRepository(db)
	teacherRepo := repository.NewTeacherRepository(db)
	subjectRepo := repository.NewSubjectRepository(db)
	adminRepo := repository.NewAdminRepository(db)
	attendanceRepo := repository.NewAttendanceRepository(db)
	leaveRepo := repository.NewLeaveRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	validate := validator.New()
	metricsSvc := service.NewMetricsService()

	authSvc := service.NewAuthService(adminRepo, service.AuthConfig{
		Secret:     cfg.JWT.Secret,
		Expiration: cfg.JWT.Expiration,
	}, validate, logr)
	studentSvc := service.NewStudentService(studentRepo, store, validate, logr)
	teacherSvc := service.NewTeacherService(teacherRepo, validate, logr)
	subjectSvc := service.NewSubjectService(subjectRepo, teacherRepo, validate, logr)
	adminSvc := service.NewAdminService(adminRepo, validate, logr)
	enrollmentSvc := service.NewEnrollmentService(studentRepo, extractorClient, store, logr)
	recognitionSvc := service.NewRecognitionService(extractorClient, matcher, subjectRepo, attendanceRepo, metricsSvc, cfg.Recognition.Threshold, logr)
	attendanceSvc := service.NewAttendanceService(attendanceRepo, studentRepo, cacheRepo, cfg.Reports.CacheTTL, metricsSvc, validate, logr)
	leaveSvc := service.NewLeaveService(leaveRepo, teacherRepo, validate, logr)

	authHandler := handler.NewAuthHandler(authSvc)
	studentHandler := handler.NewStudentHandler(studentSvc)
	teacherHandler := handler.NewTeacherHandler(teacherSvc)
	subjectHandler := handler.NewSubjectHandler(subjectSvc)
	adminHandler := handler.NewAdminHandler(adminSvc)
	recognitionHandler := handler.NewRecognitionHandler(enrollmentSvc, recognitionSvc)
	attendanceHandler := handler.NewAttendanceHandler(attendanceSvc)
	leaveHandler := handler.NewLeaveHandler(leaveSvc)
	reportHandler := handler.NewReportHandler(attendanceSvc, export.NewCSVExporter(), export.NewPDFExporter())
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
		if err := db.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
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

	protected := api.Group("")
	protected.Use(middleware.JWT(authSvc))

	protected.GET("/auth/me", authHandler.Me)

	protected.GET("/students", studentHandler.List)
	protected.POST("/students", studentHandler.Create)
	protected.GET("/students/:id", studentHandler.Get)
	protected.DELETE("/students/:id", studentHandler.Delete)
	protected.POST("/students/:id/enroll", recognitionHandler.Enroll)

	protected.GET("/teachers", teacherHandler.List)
	protected.POST("/teachers", teacherHandler.Create)
	protected.GET("/teachers/:id", teacherHandler.Get)
	protected.DELETE("/teachers/:id", teacherHandler.Delete)

	protected.GET("/subjects", subjectHandler.List)
	protected.POST("/subjects", subjectHandler.Create)
	protected.GET("/subjects/:id", subjectHandler.Get)
	protected.DELETE("/subjects/:id", subjectHandler.Delete)

	protected.GET("/admins", adminHandler.List)
	protected.POST("/admins", adminHandler.Create)

	// Capture clients post frames without an admin session.
	api.POST("/recognize", recognitionHandler.Recognize)

	protected.GET("/attendance", attendanceHandler.List)
	protected.POST("/attendance", attendanceHandler.Record)
	protected.POST("/attendance/mark-absentees", attendanceHandler.MarkAbsentees)

	protected.GET("/leaves", leaveHandler.List)
	protected.POST("/leaves", leaveHandler.Create)
	protected.POST("/leaves/:id/resolve", leaveHandler.Resolve)
	protected.POST("/leaves/:id/reject", leaveHandler.Reject)
	protected.GET("/substitutions", leaveHandler.Substitutions)

	protected.GET("/reports/subjects/:id", reportHandler.AttendanceReport)
	protected.GET("/reports/subjects/:id/export", reportHandler.Export)

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
