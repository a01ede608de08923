// Package main 是应用程序的入口点。
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"healthtrack-go/internal/config"
	"healthtrack-go/internal/handler"
	"healthtrack-go/internal/middleware"
	"healthtrack-go/internal/pipeline"
	"healthtrack-go/internal/repository"
	"healthtrack-go/internal/service"
	"healthtrack-go/pkg/database"
	"healthtrack-go/pkg/es"
	"healthtrack-go/pkg/kafka"
	"healthtrack-go/pkg/llm"
	"healthtrack-go/pkg/log"
	"healthtrack-go/pkg/observability"
	"healthtrack-go/pkg/storage"
	"healthtrack-go/pkg/token"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

func main() {
	configPath := "./configs/config.yaml"
	if p := os.Getenv("HEALTHTRACK_CONFIG"); p != "" {
		configPath = p
	}

	// 1. 初始化配置
	config.Init(configPath)
	cfg := config.Conf

	// 2. 初始化日志记录器
	log.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath)
	defer log.Sync() // 确保在程序退出时刷新所有缓冲的日志条目
	log.Info("日志记录器初始化成功")

	rootCtx, stop := context.WithCancel(context.Background())
	defer stop()

	shutdownTracing, err := observability.InitTracing(rootCtx, cfg.Tracing)
	if err != nil {
		log.Errorf("链路追踪初始化失败，继续运行: %v", err)
	}

	// 3. 初始化数据库、Redis 和外部存储
	database.InitPostgres(cfg.Database.Postgres)
	database.InitRedis(cfg.Database.Redis.Addr, cfg.Database.Redis.Password, cfg.Database.Redis.DB)
	storage.InitMinIO(cfg.MinIO)
	if err := es.InitES(cfg.Elasticsearch); err != nil {
		log.Errorf("es 初始化失败 %s", err)
		return
	}
	producer := kafka.NewProducer(cfg.Kafka)
	defer producer.Close()

	// 4. 初始化 Repository
	userRepo := repository.NewUserRepository(database.DB)
	profileRepo := repository.NewProfileRepository(database.DB)
	tokenRepo := repository.NewTokenRepository(database.RDB)
	entryRepo := repository.NewSymptomEntryRepository(database.DB)
	assessmentRepo := repository.NewRiskAssessmentRepository(database.DB)

	// 5. 初始化 Service (依赖注入)
	jwtManager := token.NewJWTManager(cfg.JWT.Secret, cfg.JWT.AccessTokenExpireHours, cfg.JWT.RefreshTokenExpireDays)
	entryIndex := es.NewEntryIndex(es.ESClient, cfg.Elasticsearch.IndexName)
	exportStore := storage.NewStore(storage.MinioClient, cfg.MinIO.BucketName)

	userService := service.NewUserService(userRepo, profileRepo, tokenRepo, jwtManager, cfg.Auth.AdminUsernames)
	notifications := handler.NewNotificationHandler(userService)
	analysisService := service.NewAnalysisService(llm.NewClient(cfg.LLM), service.AnalysisOptions{MaxRetries: cfg.LLM.MaxRetries})
	intakeService := service.NewIntakeService(entryRepo, assessmentRepo, analysisService, producer, notifications, entryIndex)
	entryService := service.NewEntryService(entryRepo, assessmentRepo, entryIndex, entryIndex)
	dashboardService := service.NewDashboardService(entryRepo, assessmentRepo, exportStore)
	adminService := service.NewAdminService(profileRepo, entryRepo)

	// 6. 启动后台 Kafka 消费者，补写失败的评估
	processor := pipeline.NewProcessor(entryRepo, assessmentRepo, intakeService)
	consumerDone := make(chan struct{})
	go func() {
		defer close(consumerDone)
		kafka.StartConsumer(rootCtx, cfg.Kafka, database.RDB, processor)
	}()

	// 7. 设置 Gin 模式并创建路由引擎
	gin.SetMode(cfg.Server.Mode)
	r := gin.New()
	r.Use(otelgin.Middleware(cfg.Tracing.ServiceName), middleware.RequestLogger(), middleware.Recovery(), middleware.CORS())

	authRequired := middleware.AuthMiddleware(userService, cfg.Auth.LoginPath)
	userHandler := handler.NewUserHandler(userService)
	entryHandler := handler.NewEntryHandler(intakeService, entryService)
	dashboardHandler := handler.NewDashboardHandler(dashboardService)
	adminHandler := handler.NewAdminHandler(adminService)

	// 8. 注册路由
	apiV1 := r.Group("/api/v1")
	{
		auth := apiV1.Group("/auth")
		{
			auth.POST("/refreshToken", handler.NewAuthHandler(userService).RefreshToken)
		}

		users := apiV1.Group("/users")
		{
			// 无需认证的路由
			users.POST("/register", userHandler.Register)
			users.POST("/login", userHandler.Login)

			authed := users.Group("/")
			authed.Use(authRequired)
			{
				authed.GET("/me", userHandler.GetMe)
				authed.PUT("/profile", userHandler.UpdateProfile)
				authed.POST("/logout", userHandler.Logout)
			}
		}

		apiV1.POST("/analyze", authRequired, handler.NewAnalysisHandler(analysisService).Analyze)

		entries := apiV1.Group("/entries")
		entries.Use(authRequired)
		{
			entries.POST("", entryHandler.Submit)
			entries.GET("", entryHandler.List)
			entries.GET("/search", entryHandler.Search)
			entries.GET("/:id", entryHandler.Get)
			entries.DELETE("/:id", entryHandler.Delete)
		}

		dashboard := apiV1.Group("/dashboard")
		dashboard.Use(authRequired)
		{
			dashboard.GET("", dashboardHandler.Get)
			dashboard.GET("/export", dashboardHandler.Export)
			dashboard.POST("/export/archive", dashboardHandler.Archive)
		}

		// 管理员路由组，需要同时通过认证和管理员授权两个中间件
		admin := apiV1.Group("/admin")
		admin.Use(authRequired, middleware.AdminAuthMiddleware())
		{
			admin.GET("/profiles", adminHandler.ListProfiles)
			admin.GET("/entries", adminHandler.ListEntries)
		}
	}
	r.GET("/ws/:token", notifications.Handle)

	// 启动 HTTP 服务器并实现优雅停机
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: r,
	}

	go func() {
		log.Infof("服务启动于 %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP 服务监听失败: %s\n", err)
		}
	}()

	// 等待中断信号以实现优雅停机
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("接收到停机信号，正在关闭服务...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Errorf("HTTP 服务器关闭失败: %v", err)
	}

	// 停止消费者并等待当前消息处理完
	stop()
	select {
	case <-consumerDone:
	case <-ctx.Done():
		log.Warnf("等待 Kafka 消费者退出超时")
	}

	if shutdownTracing != nil {
		if err := shutdownTracing(ctx); err != nil {
			log.Warnf("链路追踪关闭失败: %v", err)
		}
	}
	log.Info("服务已优雅关闭")
}
