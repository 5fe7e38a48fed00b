package main

import (
	"fmt"
	"log/slog"

	"github.com/phrazzld/scry-queue/internal/config"
)

// loadAppConfig loads the application configuration from the given file,
// ./config.yaml and environment variables.
func loadAppConfig(configFile string) (*config.Config, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	slog.Info("Server configuration loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Server.LogLevel,
		"queue_concurrency", cfg.Queue.Concurrency)

	if cfg.Auth.JWTSecret != "" {
		slog.Debug("Auth configuration", "jwt_secret_present", true)
	}

	return cfg, nil
}
