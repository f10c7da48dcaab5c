package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration.
type Config struct {
	Server     ServerConfig
	Logging    LogConfig
	RateLimit  RateLimitConfig
	Sandbox    SandboxConfig
	Playground PlaygroundConfig
	Catalog    CatalogConfig
	Progress   ProgressConfig
	Tutor      TutorConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"8000"`
	Host string `envconfig:"HOST" default:"0.0.0.0"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" default:"100"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"200"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"true"`
}

// SandboxConfig bounds user code execution.
type SandboxConfig struct {
	Timeout          time.Duration `envconfig:"SANDBOX_TIMEOUT" default:"5s"`
	AsyncTimeout     time.Duration `envconfig:"SANDBOX_ASYNC_TIMEOUT" default:"10s"`
	MaxCallStackSize int           `envconfig:"SANDBOX_MAX_CALL_STACK" default:"1024"`
	MaxOutputRecords int           `envconfig:"SANDBOX_MAX_OUTPUT" default:"1000"`
	MaxConcurrent    int           `envconfig:"SANDBOX_MAX_CONCURRENT" default:"8"`
}

// PlaygroundConfig holds playground registry configuration.
type PlaygroundConfig struct {
	MaxInstances int `envconfig:"PLAYGROUND_MAX_INSTANCES" default:"1000"`
}

// CatalogConfig points at an optional on-disk question catalog.
// An empty Dir uses the embedded catalog.
type CatalogConfig struct {
	Dir string `envconfig:"CATALOG_DIR" default:""`
}

// ProgressConfig selects the progress tracker backend.
type ProgressConfig struct {
	Backend   string `envconfig:"PROGRESS_BACKEND" default:"file"` // memory, file, redis
	Path      string `envconfig:"PROGRESS_PATH" default:"/tmp/codeprep/progress.json.gz"`
	RedisAddr string `envconfig:"PROGRESS_REDIS_ADDR" default:"localhost:6379"`
	RedisDB   int    `envconfig:"PROGRESS_REDIS_DB" default:"0"`
}

// TutorConfig holds generative-model service configuration.
type TutorConfig struct {
	Endpoint string        `envconfig:"TUTOR_ENDPOINT" default:"https://generativelanguage.googleapis.com"`
	APIKey   string        `envconfig:"TUTOR_API_KEY" default:""`
	Model    string        `envconfig:"TUTOR_MODEL" default:"gemini-2.0-flash"`
	Timeout  time.Duration `envconfig:"TUTOR_TIMEOUT" default:"60s"`
	RPS      float64       `envconfig:"TUTOR_RPS" default:"2"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Validate rejects settings the sandbox cannot run with.
func (c *Config) Validate() error {
	if c.Sandbox.Timeout <= 0 {
		return fmt.Errorf("invalid config: SANDBOX_TIMEOUT must be positive, got %s", c.Sandbox.Timeout)
	}
	if c.Sandbox.AsyncTimeout < 0 {
		return fmt.Errorf("invalid config: SANDBOX_ASYNC_TIMEOUT must not be negative, got %s", c.Sandbox.AsyncTimeout)
	}
	if c.Sandbox.MaxConcurrent <= 0 {
		return fmt.Errorf("invalid config: SANDBOX_MAX_CONCURRENT must be positive, got %d", c.Sandbox.MaxConcurrent)
	}
	switch c.Progress.Backend {
	case "memory", "file", "redis":
	default:
		return fmt.Errorf("invalid config: unknown PROGRESS_BACKEND %q", c.Progress.Backend)
	}
	return nil
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port: "8000",
			Host: "0.0.0.0",
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 100,
			Burst:             200,
			Enabled:           true,
		},
		Sandbox: SandboxConfig{
			Timeout:          5 * time.Second,
			AsyncTimeout:     10 * time.Second,
			MaxCallStackSize: 1024,
			MaxOutputRecords: 1000,
			MaxConcurrent:    8,
		},
		Playground: PlaygroundConfig{
			MaxInstances: 1000,
		},
		Progress: ProgressConfig{
			Backend:   "file",
			Path:      "/tmp/codeprep/progress.json.gz",
			RedisAddr: "localhost:6379",
		},
		Tutor: TutorConfig{
			Endpoint: "https://generativelanguage.googleapis.com",
			Model:    "gemini-2.0-flash",
			Timeout:  60 * time.Second,
			RPS:      2,
		},
	}
}
