package server

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"avenir-sync/internal/auth"
	"avenir-sync/internal/handlers"
	"avenir-sync/internal/middleware"
	"avenir-sync/internal/observability"
	"avenir-sync/internal/repositories"
	"avenir-sync/internal/service"
	"avenir-sync/internal/telemetry"
	"avenir-sync/internal/ws"
)

// Deps collects the stores and helpers the server is built from. The same
// wiring serves production (Postgres repositories) and tests (a MemoryStore
// passed for every interface).
type Deps struct {
	Conversations repositories.ConversationRepository
	Messages      repositories.MessageRepository
	Notifications repositories.NotificationRepository
	Users         repositories.UserRepository
	Tokens        *auth.Tokens
	Emitter       *telemetry.AuditEmitter
	Poll          PollIntervals
}

// PollIntervals is the fallback cadence advertised to sync clients. Zero
// fields fall back to the production defaults.
type PollIntervals struct {
	Conversations time.Duration
	Messages      time.Duration
	Notifications time.Duration
}

func (p PollIntervals) withDefaults() PollIntervals {
	if p.Conversations <= 0 {
		p.Conversations = 30 * time.Second
	}
	if p.Messages <= 0 {
		p.Messages = 10 * time.Second
	}
	if p.Notifications <= 0 {
		p.Notifications = 45 * time.Second
	}
	return p
}

// Server bundles the router with the live components tests poke at.
type Server struct {
	Router *gin.Engine
	Hub    *ws.Hub
	Broker *handlers.Broker
	Svc    *service.ChatService
}

// New wires the realtime backend.
func New(deps Deps) *Server {
	hub := ws.NewHub()
	broker := handlers.NewBroker()
	svc := service.NewChatService(deps.Conversations, deps.Messages, deps.Notifications, deps.Users, hub, broker)

	convHandler := handlers.NewConversationHandler(svc, deps.Emitter)
	notifHandler := handlers.NewNotificationHandler(svc, broker)
	authHandler := handlers.NewAuthHandler(deps.Users, deps.Tokens)
	sessionWS := ws.NewSessionHandler(hub, svc, deps.Tokens)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("avenir-sync"))
	router.Use(observability.HTTPMetricsMiddleware())
	router.Use(cors.Default())

	authMiddleware := middleware.AuthMiddleware(deps.Tokens)

	router.POST("/auth/login", authHandler.Login)

	router.GET("/conversations", authMiddleware, convHandler.ListConversations)
	router.POST("/conversations/help", authMiddleware, convHandler.RequestHelp)
	router.POST("/conversations/:conversation_id/accept", authMiddleware, convHandler.AcceptConversation)
	router.POST("/conversations/:conversation_id/transfer", authMiddleware, convHandler.TransferConversation)
	router.GET("/conversations/:conversation_id/messages", authMiddleware, convHandler.GetMessages)
	router.POST("/conversations/:conversation_id/messages", authMiddleware, convHandler.PostMessage)
	router.POST("/conversations/:conversation_id/read", authMiddleware, convHandler.MarkRead)

	router.GET("/notifications", authMiddleware, notifHandler.ListNotifications)
	router.POST("/notifications/:notification_id/read", authMiddleware, notifHandler.MarkRead)
	router.POST("/notifications/read-all", authMiddleware, notifHandler.MarkAllRead)
	router.GET("/notifications/stream", authMiddleware, notifHandler.Stream)

	poll := deps.Poll.withDefaults()
	router.GET("/sync/config", authMiddleware, func(c *gin.Context) {
		c.JSON(200, gin.H{
			"conversation_poll_seconds": int(poll.Conversations.Seconds()),
			"message_poll_seconds":      int(poll.Messages.Seconds()),
			"notification_poll_seconds": int(poll.Notifications.Seconds()),
		})
	})

	router.GET("/ws", sessionWS.Handle)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/healthz", func(c *gin.Context) { c.JSON(200, gin.H{"status": "ok"}) })

	return &Server{Router: router, Hub: hub, Broker: broker, Svc: svc}
}
