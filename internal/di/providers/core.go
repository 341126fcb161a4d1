// Package providers contains dependency injection providers for the
// snipsync server.
package providers

import (
	"github.com/samber/do/v2"

	"github.com/snipsyncapp/snipsync-server/internal/config"
	"github.com/snipsyncapp/snipsync-server/internal/event"
	"github.com/snipsyncapp/snipsync-server/internal/logger"
	"github.com/snipsyncapp/snipsync-server/internal/validation"
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

	log.Info("Starting SnipSync Server",
		"environment", cfg.App.Environment,
		"log_level", cfg.Logger.Level,
		"store_backend", cfg.Store.Backend,
		"data_path", cfg.Data.BasePath,
	)

	return log, nil
}

// ProvideValidator provides the request validator.
func ProvideValidator(i do.Injector) (*validation.Validator, error) {
	return validation.New(), nil
}

// SnippetBus is the snippet store's listener fan-out.
type SnippetBus struct {
	*event.Bus
}

// ChangeBus is the propagation engine's listener fan-out, a separate
// listener set from the snippet store's.
type ChangeBus struct {
	*event.Bus
}

// ProvideSnippetBus provides the snippet event bus.
func ProvideSnippetBus(i do.Injector) (*SnippetBus, error) {
	log := do.MustInvoke[*logger.Logger](i)
	return &SnippetBus{Bus: event.NewBus(log.Logger)}, nil
}

// ProvideChangeBus provides the propagation event bus.
func ProvideChangeBus(i do.Injector) (*ChangeBus, error) {
	log := do.MustInvoke[*logger.Logger](i)
	return &ChangeBus{Bus: event.NewBus(log.Logger)}, nil
}
