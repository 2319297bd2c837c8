package main

import (
	"context"
	"log"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"avenir-sync/internal/auth"
	"avenir-sync/internal/config"
	"avenir-sync/internal/db"
	"avenir-sync/internal/handlers"
	"avenir-sync/internal/observability"
	"avenir-sync/internal/rabbitmq"
	"avenir-sync/internal/repositories"
	"avenir-sync/internal/server"
	"avenir-sync/internal/telemetry"
)

func main() {
	cfg := config.Load()

	if cfg.OTLPEndpoint != "" {
		shutdown, err := setupTracing(cfg.OTLPEndpoint)
		if err != nil {
			log.Printf("tracing disabled: %v", err)
		} else {
			defer shutdown()
		}
	}

	deps := server.Deps{
		Tokens: auth.NewTokens(cfg.JWTSecret, 24*time.Hour),
		Poll: server.PollIntervals{
			Conversations: cfg.ConversationPoll,
			Messages:      cfg.MessagePoll,
			Notifications: cfg.NotificationPoll,
		},
	}

	if cfg.DBDSN != "" {
		database, err := db.Connect(cfg.DBDSN)
		if err != nil {
			log.Fatalf("failed to connect to db: %v", err)
		}
		deps.Conversations = repositories.NewConversationRepo(database)
		deps.Messages = repositories.NewMessageRepo(database)
		deps.Notifications = repositories.NewNotificationRepo(database)
		deps.Users = repositories.NewUserRepo(database)
	} else {
		log.Println("no DB_DSN configured, using in-memory store")
		store := repositories.NewMemoryStore()
		store.SeedUser("camille", "client")
		store.SeedUser("alice", "advisor")
		deps.Conversations = store
		deps.Messages = store
		deps.Notifications = store
		deps.Users = store
	}

	if publisher, err := observability.DialTopicPublisher(cfg.AMQPURL, cfg.Exchange); err != nil {
		log.Printf("event publishing disabled: %v", err)
	} else {
		observability.SetEventPublisher(publisher)
		defer publisher.Close()
	}

	auditPublisher := rabbitmq.NewPublisher(cfg.AMQPURL, cfg.Exchange)
	defer auditPublisher.Close()
	deps.Emitter = telemetry.NewAuditEmitter(auditPublisher, "audit.avenir", "avenir-sync", cfg.Environment)

	srv := server.New(deps)
	handlers.RegisterDebugRoutes(srv.Router, deps.Emitter, cfg.Environment == "dev")

	log.Printf("realtime backend listening on :%s", cfg.Port)
	if err := srv.Router.Run(":" + cfg.Port); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func setupTracing(endpoint string) (func(), error) {
	exporter, err := otlptracegrpc.New(context.Background(),
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return nil, err
	}

	provider := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
	otel.SetTracerProvider(provider)

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = provider.Shutdown(ctx)
	}, nil
}
