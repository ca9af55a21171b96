package config

import (
	"time"

	"careconnect-backend/pkg/env"
)

// Config holds signaling service configuration sourced from the environment
type Config struct {
	Env  string
	Port int

	DBHost     string
	DBPort     int
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	RedisHost     string
	RedisPort     int
	RedisPassword string
	RedisDB       int

	JWTSecret string

	// PublicBaseURL is the externally visible origin used to build meeting
	// join URLs, e.g. https://portal.example.com
	PublicBaseURL string

	// LivenessWindow is the maximum heartbeat gap before a participant drops
	// out of the active-peers view. Clients are expected to heartbeat every
	// HeartbeatInterval; the window allows two missed beats plus slack.
	LivenessWindow    time.Duration
	HeartbeatInterval time.Duration
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Env:  env.GetString("ENV", "development"),
		Port: env.GetInt("PORT", 8085),

		DBHost:     env.GetString("DB_HOST", "localhost"),
		DBPort:     env.GetInt("DB_PORT", 5432),
		DBUser:     env.GetString("DB_USER", "careconnect"),
		DBPassword: env.GetStringFromFile("DB_PASSWORD", ""),
		DBName:     env.GetString("DB_NAME", "careconnect"),
		DBSSLMode:  env.GetString("DB_SSL_MODE", "disable"),

		RedisHost:     env.GetString("REDIS_HOST", "localhost"),
		RedisPort:     env.GetInt("REDIS_PORT", 6379),
		RedisPassword: env.GetStringFromFile("REDIS_PASSWORD", ""),
		RedisDB:       env.GetInt("REDIS_DB", 0),

		JWTSecret: env.GetStringFromFile("JWT_SECRET", ""),

		PublicBaseURL: env.GetString("PUBLIC_BASE_URL", "http://localhost:8085"),

		LivenessWindow:    env.GetDuration("LIVENESS_WINDOW", 30*time.Second),
		HeartbeatInterval: env.GetDuration("HEARTBEAT_INTERVAL", 10*time.Second),
	}
}
