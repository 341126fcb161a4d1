package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/snipsyncapp/snipsync-server/internal/config"
	"github.com/snipsyncapp/snipsync-server/internal/domain"
	"github.com/snipsyncapp/snipsync-server/internal/event"
	"github.com/snipsyncapp/snipsync-server/internal/store/memory"
	"github.com/snipsyncapp/snipsync-server/internal/validation"
)

// fakePatcher stands in for the template collaborator. Templates listed
// in rejects refuse the patch with the given reason.
type fakePatcher struct {
	mu      sync.Mutex
	rejects map[string]string
	calls   []string
}

func (p *fakePatcher) AcceptPatch(ctx context.Context, templateID, snippetID string, patch domain.Patch) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, templateID)
	if reason, ok := p.rejects[templateID]; ok {
		return fmt.Errorf("%s", reason)
	}
	return nil
}

func (p *fakePatcher) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}

type testEnv struct {
	snippets    *SnippetService
	registry    *RegistryService
	propagation *PropagationService
	patcher     *fakePatcher
	snippetBus  *event.Bus
	changeBus   *event.Bus
}

func newTestEnv(stalePolicy string) *testEnv {
	logger := slog.New(slog.DiscardHandler)
	st := memory.New(logger)
	snippetBus := event.NewBus(logger)
	changeBus := event.NewBus(logger)
	patcher := &fakePatcher{}

	snippets := NewSnippetService(st, snippetBus, validation.New(), logger)
	registry := NewRegistryService(st, logger)
	propagation := NewPropagationService(st, snippets, registry, patcher, changeBus,
		config.PropagationConfig{StalePolicy: stalePolicy}, logger)

	return &testEnv{
		snippets:    snippets,
		registry:    registry,
		propagation: propagation,
		patcher:     patcher,
		snippetBus:  snippetBus,
		changeBus:   changeBus,
	}
}

func textBlock(html string) domain.Block {
	return domain.Block{
		Type:    "text",
		Content: map[string]any{"html": html},
	}
}
