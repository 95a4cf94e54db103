package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the server configuration loaded from environment variables.
type Config struct {
	// Server
	Port     string
	LogLevel string // debug, info, warn, error

	// Store selection
	Store     string // memory or redis
	RedisAddr string
	RedisDB   int
	TaskTTL   time.Duration

	// Adapter
	Mode              string // stream or generate
	WorkingStatusText string
	IncludeHistory    bool

	// Agent card
	AgentName    string
	AgentVersion string
	AgentURL     string
}

// LoadConfig loads configuration from environment variables.
// It loads a .env file if present (silent fail if not found).
func LoadConfig() (*Config, error) {
	godotenv.Load() // Load .env file if present

	cfg := &Config{
		Port:              getEnvOrDefault("TASKLINE_PORT", "8000"),
		LogLevel:          getEnvOrDefault("TASKLINE_LOG_LEVEL", "info"),
		Store:             getEnvOrDefault("TASKLINE_STORE", "memory"),
		RedisAddr:         getEnvOrDefault("TASKLINE_REDIS_ADDR", "localhost:6379"),
		RedisDB:           getEnvIntOrDefault("TASKLINE_REDIS_DB", 0),
		TaskTTL:           getEnvDurationOrDefault("TASKLINE_TASK_TTL", 24*time.Hour),
		Mode:              getEnvOrDefault("TASKLINE_MODE", "stream"),
		WorkingStatusText: os.Getenv("TASKLINE_WORKING_STATUS"),
		IncludeHistory:    getEnvBoolOrDefault("TASKLINE_INCLUDE_HISTORY", true),
		AgentName:         getEnvOrDefault("TASKLINE_AGENT_NAME", "dice-agent"),
		AgentVersion:      getEnvOrDefault("TASKLINE_AGENT_VERSION", "0.1.0"),
		AgentURL:          os.Getenv("TASKLINE_AGENT_URL"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that required configuration is present.
func (c *Config) Validate() error {
	switch c.Store {
	case "memory", "redis":
	default:
		return fmt.Errorf("unknown store: %s (must be memory or redis)", c.Store)
	}

	switch c.Mode {
	case "stream", "generate":
	default:
		return fmt.Errorf("unknown mode: %s (must be stream or generate)", c.Mode)
	}

	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
