package providers

import (
	"context"

	"github.com/samber/do/v2"

	"github.com/snipsyncapp/snipsync-server/internal/config"
	"github.com/snipsyncapp/snipsync-server/internal/logger"
	"github.com/snipsyncapp/snipsync-server/internal/service"
	"github.com/snipsyncapp/snipsync-server/internal/template"
	"github.com/snipsyncapp/snipsync-server/internal/validation"
)

// ProvideTemplatePatcher provides the template collaborator hook.
// Standalone deployments get the accepting log patcher; an embedding
// document system overrides this provider with its own.
func ProvideTemplatePatcher(i do.Injector) (service.TemplatePatcher, error) {
	log := do.MustInvoke[*logger.Logger](i)
	return template.NewLogPatcher(log.Logger), nil
}

// ProvideSnippetService provides the snippet store service.
func ProvideSnippetService(i do.Injector) (*service.SnippetService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	bus := do.MustInvoke[*SnippetBus](i)
	validator := do.MustInvoke[*validation.Validator](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewSnippetService(storeHandle.Store, bus.Bus, validator, log.Logger), nil
}

// ProvideRegistryService provides the reference registry service.
func ProvideRegistryService(i do.Injector) (*service.RegistryService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewRegistryService(storeHandle.Store, log.Logger), nil
}

// ProvidePropagationService provides the propagation engine.
func ProvidePropagationService(i do.Injector) (*service.PropagationService, error) {
	cfg := do.MustInvoke[*config.Config](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	snippets := do.MustInvoke[*service.SnippetService](i)
	registry := do.MustInvoke[*service.RegistryService](i)
	patcher := do.MustInvoke[service.TemplatePatcher](i)
	bus := do.MustInvoke[*ChangeBus](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewPropagationService(storeHandle.Store, snippets, registry,
		patcher, bus.Bus, cfg.Propagation, log.Logger), nil
}

// SeedBuiltins ensures the built-in snippets exist in the store.
func SeedBuiltins(i do.Injector) error {
	snippets := do.MustInvoke[*service.SnippetService](i)
	return snippets.EnsureBuiltins(context.Background())
}
