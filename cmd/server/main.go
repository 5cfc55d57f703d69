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

	"docqa-go/internal/config"
	"docqa-go/internal/handler"
	"docqa-go/internal/middleware"
	"docqa-go/internal/pipeline"
	"docqa-go/internal/repository"
	"docqa-go/internal/service"
	"docqa-go/pkg/database"
	"docqa-go/pkg/embedding"
	"docqa-go/pkg/es"
	"docqa-go/pkg/kafka"
	"docqa-go/pkg/llm"
	"docqa-go/pkg/log"
	"docqa-go/pkg/storage"
	"docqa-go/pkg/tika"
	"docqa-go/pkg/token"

	"github.com/gin-gonic/gin"
)

func main() {
	// 1. 初始化配置
	config.Init("./configs/config.yaml")
	cfg := config.Conf

	// 2. 初始化日志记录器
	log.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath)
	defer log.Sync() // 确保在程序退出时刷新所有缓冲的日志条目
	log.Info("日志记录器初始化成功")

	// 3. 初始化数据库、Redis、对象存储、向量索引和消息队列
	database.InitMySQL(cfg.Database.MySQL.DSN)
	database.InitRedis(cfg.Database.Redis.Addr, cfg.Database.Redis.Password, cfg.Database.Redis.DB)
	storage.InitMinIO(cfg.MinIO)
	if err := es.InitES(cfg.Elasticsearch, cfg.Embedding.Dimensions); err != nil {
		log.Errorf("es 初始化失败 %s", err)
		return
	}
	kafka.InitProducer(cfg.Kafka)

	// 4. 初始化 Repository
	userRepo := repository.NewUserRepository(database.DB)
	workspaceRepo := repository.NewWorkspaceRepository(database.DB)
	docRepo := repository.NewDocumentRepository(database.DB)
	historyRepo := repository.NewHistoryRepository(database.RDB)

	// 5. 初始化外部服务客户端
	jwtManager := token.NewJWTManager(cfg.JWT.Secret, cfg.JWT.AccessTokenExpireHours, cfg.JWT.RefreshTokenExpireDays)
	tikaClient := tika.NewClient(cfg.Tika)
	embeddingClient := embedding.NewClient(cfg.Embedding)
	llmClient := llm.NewClient(cfg.LLM)
	esStore := es.NewStore(es.ESClient, cfg.Elasticsearch.IndexName)

	// 6. 初始化摄取管道 (Processor)
	processor := pipeline.NewProcessor(docRepo, embeddingClient, esStore, cfg.Embedding, cfg.RAG.ChunkSize)

	// 7. 初始化 Service (依赖注入)
	userService := service.NewUserService(userRepo, jwtManager)
	workspaceService := service.NewWorkspaceService(workspaceRepo, docRepo, historyRepo, esStore, cfg.MinIO)
	documentService := service.NewDocumentService(docRepo, workspaceRepo, processor, tikaClient, esStore, cfg.MinIO)
	retrievalService := service.NewRetrievalService(embeddingClient, esStore, cfg.RAG)
	answerService := service.NewAnswerService(retrievalService, llmClient, historyRepo)
	chatService := service.NewChatService(retrievalService, llmClient, historyRepo)

	// 8. 启动后台 Kafka 消费者，处理重建索引任务
	go kafka.StartConsumer(cfg.Kafka, documentService)

	// 9. 设置 Gin 模式并创建路由引擎
	gin.SetMode(cfg.Server.Mode)
	r := gin.New() // 使用 New() 创建一个不带默认中间件的引擎
	// 添加我们自定义的日志中间件和 Gin 的 Recovery 中间件
	r.Use(middleware.RequestLogger(), gin.Recovery())

	// 10. 注册路由
	apiV1 := r.Group("/api/v1")
	{
		// Auth 路由组
		auth := apiV1.Group("/auth")
		{
			auth.POST("/refreshToken", handler.NewAuthHandler(userService).RefreshToken)
		}

		users := apiV1.Group("/users")
		{
			// 无需认证的路由 (公开访问)
			users.POST("/register", handler.NewUserHandler(userService).Register)
			users.POST("/login", handler.NewUserHandler(userService).Login)

			// 需要认证的路由 (仅限登录用户访问)
			authed := users.Group("/")
			authed.Use(middleware.AuthMiddleware(jwtManager, userService))
			{
				authed.GET("/me", handler.NewUserHandler(userService).GetProfile)
			}
		}

		// Workspace 路由组，需要认证
		workspaces := apiV1.Group("/workspaces")
		workspaces.Use(middleware.AuthMiddleware(jwtManager, userService))
		{
			workspaceHandler := handler.NewWorkspaceHandler(workspaceService)
			workspaces.POST("", workspaceHandler.Create)
			workspaces.GET("", workspaceHandler.List)
			workspaces.GET("/:workspaceId", workspaceHandler.Get)
			workspaces.PUT("/:workspaceId", workspaceHandler.Rename)
			workspaces.DELETE("/:workspaceId", workspaceHandler.Delete)
			workspaces.POST("/:workspaceId/reindex", workspaceHandler.Reindex)
			workspaces.GET("/:workspaceId/history", workspaceHandler.GetHistory)

			// 文档路由嵌套在工作空间之下
			documentHandler := handler.NewDocumentHandler(documentService)
			workspaces.POST("/:workspaceId/documents", documentHandler.Upload)
			workspaces.GET("/:workspaceId/documents", documentHandler.List)
			workspaces.GET("/:workspaceId/documents/:documentId", documentHandler.Get)
			workspaces.GET("/:workspaceId/documents/:documentId/download", documentHandler.Download)
			workspaces.DELETE("/:workspaceId/documents/:documentId", documentHandler.Delete)

			// 同步问答
			workspaces.POST("/:workspaceId/ask", handler.NewAskHandler(workspaceService, answerService).Ask)
		}

		// Chat 路由 (WebSocket)
		r.GET("/chat/:token", handler.NewChatHandler(chatService, workspaceService, jwtManager).Handle)
	}

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

	// 设置一个5秒的超时上下文
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("HTTP 服务器关闭失败: %v", err)
	}

	// Kafka 消费者是一个循环，会在程序退出时自然结束。
	log.Info("服务已优雅关闭")
}
