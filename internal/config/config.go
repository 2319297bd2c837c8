package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds runtime settings. An empty DBDSN selects the in-memory store.
type Config struct {
	Port         string
	DBDSN        string
	AMQPURL      string
	Exchange     string
	JWTSecret    string
	OTLPEndpoint string
	Environment  string

	ConversationPoll time.Duration
	MessagePoll      time.Duration
	NotificationPoll time.Duration
}

// Load reads .env when present, then environment variables with defaults.
func Load() Config {
	if err := godotenv.Load(); err == nil {
		log.Println("loaded settings from .env")
	}

	return Config{
		Port:             getEnv("PORT", "8083"),
		DBDSN:            getEnv("DB_DSN", ""),
		AMQPURL:          getEnv("AMQP_URL", ""),
		Exchange:         getEnv("AMQP_EXCHANGE", "avenir.events"),
		JWTSecret:        getEnv("JWT_SECRET", "dev-secret"),
		OTLPEndpoint:     getEnv("OTLP_ENDPOINT", ""),
		Environment:      getEnv("ENVIRONMENT", "dev"),
		ConversationPoll: getDuration("CONVERSATION_POLL_SECONDS", 30*time.Second),
		MessagePoll:      getDuration("MESSAGE_POLL_SECONDS", 10*time.Second),
		NotificationPoll: getDuration("NOTIFICATION_POLL_SECONDS", 45*time.Second),
	}
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	val, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	seconds, err := strconv.Atoi(val)
	if err != nil || seconds <= 0 {
		log.Printf("invalid %s=%q, using default", key, val)
		return fallback
	}
	return time.Duration(seconds) * time.Second
}
