package config

import "time"

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server" validate:"required"`
	Queue    QueueConfig    `mapstructure:"queue" validate:"required"`
	Throttle ThrottleConfig `mapstructure:"throttle" validate:"required"`
	Retry    RetryConfig    `mapstructure:"retry"`
	Auth     AuthConfig     `mapstructure:"auth"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port" validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
	// ShutdownTimeout bounds how long running work may take to drain on exit
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"gt=0"`
}

// QueueConfig configures the shared task queue.
type QueueConfig struct {
	Concurrency int  `mapstructure:"concurrency" validate:"required,gte=1,lte=10000"`
	StartPaused bool `mapstructure:"start_paused"`
}

// ThrottleConfig configures the per-key queues.
type ThrottleConfig struct {
	Concurrency   int           `mapstructure:"concurrency" validate:"required,gte=1,lte=10000"`
	RatePerSecond float64       `mapstructure:"rate_per_second" validate:"gte=0"`
	Burst         int           `mapstructure:"burst" validate:"gte=0"`
	KeyTTL        time.Duration `mapstructure:"key_ttl" validate:"gte=0"`
	SweepInterval time.Duration `mapstructure:"sweep_interval" validate:"gte=0"`
}

// RetryConfig configures retries wrapped around built operations.
// MaxRetries of zero disables retrying.
type RetryConfig struct {
	MaxRetries   uint64        `mapstructure:"max_retries" validate:"lte=100"`
	InitialDelay time.Duration `mapstructure:"initial_delay" validate:"gt=0"`
	MaxDelay     time.Duration `mapstructure:"max_delay" validate:"gtefield=InitialDelay"`
}

// AuthConfig contains the admin API authentication settings.
// An empty JWTSecret leaves the API unauthenticated.
type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret" validate:"omitempty,min=32"`
}
