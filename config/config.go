// Package config loads process-wide configuration from the environment: a
// single typed struct, getEnv/getEnvInt/getEnvFloat/getEnvBool helpers,
// validated once at startup rather than read ad hoc elsewhere.
package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config is every process-wide setting the ambient stack section names.
type Config struct {
	DatabaseURL string
	RedisURL    string

	SummarizerAPIKey      string
	SummarizerModel       string
	SummarizerMaxTokens   int
	SummarizerTemperature float64
	SummarizerTimeoutSec  int

	MaxConcurrentUsers int
	WorkerID           string
	SchedulerEnabled   bool
	AttachmentRoot     string
	LogLevel           string
}

// Load reads Config from the environment, applying the defaults below for
// anything unset, and validates the fields the process cannot run without.
func Load() (*Config, error) {
	cfg := &Config{
		DatabaseURL: getEnv("DATABASE_URL", ""),
		RedisURL:    getEnv("REDIS_URL", ""),

		SummarizerAPIKey:      getEnv("SUMMARIZER_API_KEY", ""),
		SummarizerModel:       getEnv("SUMMARIZER_MODEL", "gpt-4o-mini"),
		SummarizerMaxTokens:   getEnvInt("SUMMARIZER_MAX_TOKENS", 512),
		SummarizerTemperature: getEnvFloat("SUMMARIZER_TEMPERATURE", 0.7),
		SummarizerTimeoutSec:  getEnvInt("SUMMARIZER_TIMEOUT_SEC", 30),

		MaxConcurrentUsers: getEnvInt("MAX_CONCURRENT_USERS", 3),
		WorkerID:           getEnv("WORKER_ID", generateWorkerID()),
		SchedulerEnabled:   getEnvBool("SCHEDULER_ENABLED", true),
		AttachmentRoot:     getEnv("ATTACHMENT_ROOT", "attachments"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("config: DATABASE_URL is required")
	}
	if c.SummarizerAPIKey == "" {
		return fmt.Errorf("config: SUMMARIZER_API_KEY is required")
	}
	if c.MaxConcurrentUsers <= 0 {
		return fmt.Errorf("config: MAX_CONCURRENT_USERS must be positive, got %d", c.MaxConcurrentUsers)
	}
	return nil
}

func generateWorkerID() string {
	hostname, _ := os.Hostname()
	if hostname == "" {
		hostname = "worker"
	}
	return fmt.Sprintf("%s-%d", hostname, os.Getpid())
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultValue
}
