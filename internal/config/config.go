package config

import (
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds everything the service reads from the environment.
type Config struct {
	Port          string
	Environment   string
	MongoURI      string
	MongoDatabase string
	JWTSecret     string
	AMQPURL       string
	AMQPExchange  string
	FriendBaseURL string
	OTLPEndpoint  string
	AllowOrigins  []string
	DebugRoutes   bool
}

// Load reads the environment, after loading a local .env when present.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		Port:          getEnv("PORT", "8083"),
		Environment:   getEnv("ENVIRONMENT", "dev"),
		MongoURI:      getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDatabase: getEnv("MONGO_DATABASE", "campus_chat"),
		JWTSecret:     getEnv("JWT_SECRET", ""),
		AMQPURL:       getEnv("AMQP_URL", ""),
		AMQPExchange:  getEnv("AMQP_EXCHANGE", "campus.events"),
		FriendBaseURL: getEnv("FRIEND_SERVICE_URL", ""),
		OTLPEndpoint:  getEnv("OTLP_ENDPOINT", ""),
		AllowOrigins:  splitEnv("ALLOW_ORIGINS", "http://localhost:5173"),
		DebugRoutes:   getEnv("DEBUG_ROUTES", "") == "true",
	}
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok && val != "" {
		return val
	}
	return fallback
}

func splitEnv(key, fallback string) []string {
	raw := getEnv(key, fallback)
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
