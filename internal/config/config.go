package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all configuration for the TTS gateway service
type Config struct {
	// Server configuration
	Port        string `envconfig:"PORT" default:"3001"`
	Environment string `envconfig:"ENVIRONMENT" default:"development"`

	// Frontend origin allowed by CORS
	FrontendURL string `envconfig:"FRONTEND_URL" default:"http://localhost:3002"`

	// OpenAI speech provider
	OpenAIAPIKey string `envconfig:"OPENAI_API_KEY" required:"true"`

	// Telegram bot
	TelegramBotToken string `envconfig:"TELEGRAM_BOT_TOKEN" required:"true"`

	// Temp file staging
	TempDir       string        `envconfig:"TEMP_DIR" default:"temp"`
	DeleteDelay   time.Duration `envconfig:"DELETE_DELAY" default:"5s"`   // Delay between delivery and file removal
	SweepInterval time.Duration `envconfig:"SWEEP_INTERVAL" default:"1h"` // How often the background sweep runs
	SweepMaxAge   time.Duration `envconfig:"SWEEP_MAX_AGE" default:"1h"`  // Age threshold for swept files

	// HTTP limits
	MaxBodyBytes int64 `envconfig:"MAX_BODY_BYTES" default:"10485760"` // 10 MiB request body cap

	// Resilience configuration
	RetryMaxAttempts           int           `envconfig:"RETRY_MAX_ATTEMPTS" default:"3"`
	RetryInitialBackoff        time.Duration `envconfig:"RETRY_INITIAL_BACKOFF" default:"100ms"`
	CircuitBreakerMaxFailures  int           `envconfig:"CIRCUIT_BREAKER_MAX_FAILURES" default:"5"`
	CircuitBreakerResetTimeout time.Duration `envconfig:"CIRCUIT_BREAKER_RESET_TIMEOUT" default:"30s"`

	// Observability configuration
	LogLevel       string `envconfig:"LOG_LEVEL" default:"info"`       // Log level: debug, info, warn, error
	LogPretty      bool   `envconfig:"LOG_PRETTY" default:"false"`     // Pretty print logs (for development)
	MetricsEnabled bool   `envconfig:"METRICS_ENABLED" default:"true"` // Enable Prometheus metrics
}

// Load reads configuration from environment variables.
// It first attempts to load from a .env file if one exists, then from the
// environment, and fails fast when a required credential is missing.
func Load() (*Config, error) {
	// Ignore the error: deployments set variables directly
	_ = godotenv.Load()

	return LoadFromEnv()
}

// LoadFromEnv loads configuration directly from environment variables without
// consulting a .env file (useful for containerized deployments)
func LoadFromEnv() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if cfg.OpenAIAPIKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY is required")
	}
	if cfg.TelegramBotToken == "" {
		return nil, fmt.Errorf("TELEGRAM_BOT_TOKEN is required")
	}

	return &cfg, nil
}
