// Package providers contains dependency injection providers for the rentwise server.
package providers

import (
	"github.com/samber/do/v2"

	"github.com/rentwise/rentwise-server/internal/config"
	"github.com/rentwise/rentwise-server/internal/logger"
)

// ConfigArgs are the command-line arguments handed to config.LoadConfig.
type ConfigArgs []string

// ProvideConfig provides the application configuration.
func ProvideConfig(i do.Injector) (*config.Config, error) {
	args, err := do.Invoke[ConfigArgs](i)
	if err != nil {
		args = nil
	}
	return config.LoadConfig(args)
}

// ProvideLogger provides the structured logger.
func ProvideLogger(i do.Injector) (*logger.Logger, error) {
	cfg := do.MustInvoke[*config.Config](i)

	log := logger.New(logger.Config{
		Level:       logger.ParseLevel(cfg.Logger.Level),
		AddSource:   cfg.App.Environment == "development",
		Environment: cfg.App.Environment,
	})

	log.Info("Starting rentwise server",
		"environment", cfg.App.Environment,
		"log_level", cfg.Logger.Level,
		"data_path", cfg.Storage.DataPath,
	)

	return log, nil
}
