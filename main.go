package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"

	"github.com/Ranaran315/campus-backend-sub000/internal/clients"
	"github.com/Ranaran315/campus-backend-sub000/internal/config"
	"github.com/Ranaran315/campus-backend-sub000/internal/db"
	"github.com/Ranaran315/campus-backend-sub000/internal/handlers"
	"github.com/Ranaran315/campus-backend-sub000/internal/middleware"
	"github.com/Ranaran315/campus-backend-sub000/internal/observability"
	"github.com/Ranaran315/campus-backend-sub000/internal/rabbitmq"
	"github.com/Ranaran315/campus-backend-sub000/internal/repositories"
	"github.com/Ranaran315/campus-backend-sub000/internal/telemetry"
	"github.com/Ranaran315/campus-backend-sub000/internal/token"
	"github.com/Ranaran315/campus-backend-sub000/internal/ws"
)

const serviceName = "campus-chat"

func main() {
	cfg := config.Load()

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer logger.Sync()

	if cfg.JWTSecret == "" {
		log.Fatalf("JWT_SECRET is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	database, err := db.Connect(ctx, cfg.MongoURI, cfg.MongoDatabase)
	if err != nil {
		log.Fatalf("failed to connect to mongo: %v", err)
	}
	if err := db.EnsureIndexes(ctx, database); err != nil {
		log.Fatalf("failed to ensure indexes: %v", err)
	}

	shutdownTracing := observability.SetupTracing(ctx, serviceName, cfg.OTLPEndpoint)

	publisher := rabbitmq.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange)
	defer publisher.Close()
	observability.SetPublisher(publisher)
	audit := telemetry.NewAuditEmitter(publisher, "audit_log."+serviceName, serviceName, cfg.Environment)

	verifier := token.NewVerifier(cfg.JWTSecret)
	friends := clients.NewFriendDirectory(cfg.FriendBaseURL)

	convRepo := repositories.NewConversationRepo(database, logger)
	msgRepo := repositories.NewMessageRepo(database, logger)
	groupRepo := repositories.NewGroupRepo(database, logger)

	hub := ws.NewHub()

	chatHandler := handlers.NewChatHandler(convRepo, msgRepo, groupRepo, friends, hub, audit, logger)
	groupHandler := handlers.NewGroupHandler(groupRepo, convRepo, msgRepo, audit, logger)
	notifyHandler := handlers.NewNotifyHandler(hub)
	sessionHandler := ws.NewSessionHandler(hub, groupRepo, verifier)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowOrigins,
		AllowMethods:     []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Request-Id", "X-Device-Id"},
		AllowCredentials: true,
	}))
	router.Use(otelgin.Middleware(serviceName))
	router.Use(observability.HTTPMetricsMiddleware())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	authMiddleware := middleware.AuthMiddleware(verifier)

	api := router.Group("/", authMiddleware)
	{
		api.GET("/conversations", chatHandler.ListConversations)
		api.POST("/conversations/private", chatHandler.OpenPrivate)
		api.GET("/conversations/unread-total", chatHandler.UnreadTotal)
		api.GET("/conversations/:conversation_id", chatHandler.GetConversation)
		api.PATCH("/conversations/:conversation_id/settings", chatHandler.UpdateSetting)
		api.GET("/conversations/:conversation_id/messages", chatHandler.GetMessages)
		api.POST("/conversations/:conversation_id/read", chatHandler.MarkRead)

		api.POST("/messages", chatHandler.SendMessage)
		api.DELETE("/messages/:message_id", chatHandler.DeleteMessage)

		api.POST("/groups", groupHandler.CreateGroup)
		api.GET("/groups", groupHandler.ListGroups)
		api.GET("/groups/:group_id", groupHandler.GetGroup)
		api.PATCH("/groups/:group_id", groupHandler.UpdateProfile)
		api.DELETE("/groups/:group_id", groupHandler.Disband)
		api.POST("/groups/:group_id/members", groupHandler.AddMember)
		api.DELETE("/groups/:group_id/members/:user_id", groupHandler.RemoveMember)
		api.POST("/groups/:group_id/leave", groupHandler.Leave)
		api.POST("/groups/:group_id/admins", groupHandler.SetAdmin)
	}

	internal := router.Group("/internal/notify", authMiddleware, middleware.RequirePermission("notify:push"))
	{
		internal.POST("/announcements", notifyHandler.PushAnnouncement)
		internal.POST("/friend-requests", notifyHandler.PushFriendRequest)
		internal.POST("/friend-requests/status", notifyHandler.PushFriendRequestUpdate)
	}

	router.GET("/ws", sessionHandler.Handle)

	handlers.RegisterDebugRoutes(router, audit, cfg.DebugRoutes)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("server shutdown", zap.Error(err))
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Warn("tracing shutdown", zap.Error(err))
	}
}
