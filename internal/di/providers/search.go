package providers

import (
	"context"

	"github.com/samber/do/v2"

	"github.com/snipsyncapp/snipsync-server/internal/config"
	"github.com/snipsyncapp/snipsync-server/internal/logger"
	"github.com/snipsyncapp/snipsync-server/internal/search"
	"github.com/snipsyncapp/snipsync-server/internal/service"
)

// SearchIndexHandle wraps the search index with shutdown capability.
type SearchIndexHandle struct {
	*search.Index
}

// Shutdown implements do.Shutdownable.
func (h *SearchIndexHandle) Shutdown() error {
	return h.Close()
}

// searchIndexPath resolves where the index lives. The volatile memory
// backend gets a mem-only index; persisting the index past a store that
// forgets everything on restart would serve hits for snippets that no
// longer exist.
func searchIndexPath(cfg *config.Config) string {
	if cfg.Store.Backend == config.StoreBackendMemory {
		return ""
	}
	return cfg.Search.IndexPath
}

// ProvideSearchIndex provides the Bleve search index.
func ProvideSearchIndex(i do.Injector) (*SearchIndexHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	index, err := search.NewIndex(search.Options{
		DataPath: searchIndexPath(cfg),
		Logger:   log.Logger,
	})
	if err != nil {
		return nil, err
	}

	docCount, _ := index.DocumentCount()
	log.Info("search index initialized", "documents", docCount)

	return &SearchIndexHandle{Index: index}, nil
}

// ProvideSearchService provides the search service.
func ProvideSearchService(i do.Injector) (*service.SearchService, error) {
	indexHandle := do.MustInvoke[*SearchIndexHandle](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewSearchService(indexHandle.Index, storeHandle.Store, log.Logger), nil
}

// StartSearchIfEnabled wires the search service to the snippet bus and
// backfills an empty index. Should be called after all services are
// provided.
func StartSearchIfEnabled(i do.Injector) {
	cfg := do.MustInvoke[*config.Config](i)
	if !cfg.Search.Enabled {
		return
	}

	searchService := do.MustInvoke[*service.SearchService](i)
	indexHandle := do.MustInvoke[*SearchIndexHandle](i)
	bus := do.MustInvoke[*SnippetBus](i)
	log := do.MustInvoke[*logger.Logger](i)

	searchService.Start(bus.Bus)

	docCount, _ := indexHandle.DocumentCount()
	if docCount > 0 {
		return
	}
	if err := searchService.ReindexAll(context.Background()); err != nil {
		log.Error("initial search reindex failed", "error", err)
	}
}
