// Package providers contains dependency injection providers for the
// cardbox client daemon and the cardboxd server.
package providers

import (
	"github.com/samber/do/v2"

	"github.com/cardboxapp/cardbox/internal/config"
	"github.com/cardboxapp/cardbox/internal/logger"
	"github.com/cardboxapp/cardbox/internal/validation"
)

// ProvideConfig provides the application configuration.
func ProvideConfig(i do.Injector) (*config.Config, error) {
	return config.LoadConfig()
}

// ProvideLogger provides the structured logger.
func ProvideLogger(i do.Injector) (*logger.Logger, error) {
	cfg := do.MustInvoke[*config.Config](i)

	log := logger.New(logger.Config{
		Level:       logger.ParseLevel(cfg.Logger.Level),
		AddSource:   cfg.App.Environment == "development",
		Environment: cfg.App.Environment,
	})

	return log, nil
}

// ProvideValidator provides the shared struct validator.
func ProvideValidator(i do.Injector) (*validation.Validator, error) {
	return validation.New(), nil
}
