// Package di provides dependency injection configuration for the
// snipsync server.
package di

import (
	"github.com/samber/do/v2"

	"github.com/snipsyncapp/snipsync-server/internal/config"
	"github.com/snipsyncapp/snipsync-server/internal/di/providers"
	"github.com/snipsyncapp/snipsync-server/internal/logger"
	"github.com/snipsyncapp/snipsync-server/internal/service"
)

// NewContainer creates and configures the DI container with all providers.
func NewContainer() *do.RootScope {
	injector := do.New()

	// Core infrastructure
	do.Provide(injector, providers.ProvideConfig)
	do.Provide(injector, providers.ProvideLogger)
	do.Provide(injector, providers.ProvideValidator)
	do.Provide(injector, providers.ProvideSnippetBus)
	do.Provide(injector, providers.ProvideChangeBus)

	// Storage layer
	do.Provide(injector, providers.ProvideStore)

	// Search layer
	do.Provide(injector, providers.ProvideSearchIndex)
	do.Provide(injector, providers.ProvideSearchService)

	// Business services
	do.Provide(injector, providers.ProvideTemplatePatcher)
	do.Provide(injector, providers.ProvideSnippetService)
	do.Provide(injector, providers.ProvideRegistryService)
	do.Provide(injector, providers.ProvidePropagationService)

	return injector
}

// Bootstrap initializes all services and seeds the built-in snippets.
// This triggers lazy initialization of everything in the container.
func Bootstrap(injector *do.RootScope) error {
	_ = do.MustInvoke[*config.Config](injector)
	_ = do.MustInvoke[*logger.Logger](injector)
	_ = do.MustInvoke[*providers.StoreHandle](injector)

	_ = do.MustInvoke[*service.SnippetService](injector)
	_ = do.MustInvoke[*service.RegistryService](injector)
	_ = do.MustInvoke[*service.PropagationService](injector)

	if err := providers.SeedBuiltins(injector); err != nil {
		return err
	}

	providers.StartSearchIfEnabled(injector)

	return nil
}
