package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	domainerrors "github.com/snipsyncapp/snipsync-server/internal/errors"
	"github.com/snipsyncapp/snipsync-server/internal/event"
	"github.com/snipsyncapp/snipsync-server/internal/search"
	"github.com/snipsyncapp/snipsync-server/internal/store"
)

// SearchService keeps the Bleve index in sync with the snippet store
// and serves queries. It is a pure secondary observer: it subscribes to
// the snippet fan-out and re-reads the store, never the event payload.
type SearchService struct {
	index  *search.Index
	store  store.Store
	logger *slog.Logger
	sub    *event.Subscription
}

// NewSearchService creates a search service over an open index.
func NewSearchService(index *search.Index, st store.Store, logger *slog.Logger) *SearchService {
	return &SearchService{
		index:  index,
		store:  st,
		logger: logger,
	}
}

// Start subscribes to the snippet bus so every snippet mutation is
// mirrored into the index.
func (s *SearchService) Start(bus *event.Bus) {
	s.sub = bus.Subscribe(func(evt event.Event) {
		if evt.SnippetID == "" {
			return
		}
		if err := s.syncSnippet(context.Background(), evt.SnippetID); err != nil {
			s.logger.Error("sync snippet into search index",
				"snippet_id", evt.SnippetID,
				"error", err,
			)
		}
	})
}

// Stop unsubscribes from the snippet bus.
func (s *SearchService) Stop(bus *event.Bus) {
	bus.Unsubscribe(s.sub)
}

// syncSnippet mirrors one snippet's current state into the index.
// Deleted or unknown snippets are removed from the index.
func (s *SearchService) syncSnippet(ctx context.Context, snippetID string) error {
	snippet, err := s.store.GetSnippet(ctx, snippetID)
	if errors.Is(err, store.ErrSnippetNotFound) {
		return s.index.DeleteDocument(snippetID)
	}
	if err != nil {
		return fmt.Errorf("get snippet: %w", err)
	}
	if snippet.IsDeleted() {
		return s.index.DeleteDocument(snippetID)
	}
	return s.index.IndexDocument(search.SnippetToDocument(snippet))
}

// ReindexAll rebuilds the index from the store's live snippets.
func (s *SearchService) ReindexAll(ctx context.Context) error {
	snippets, err := s.store.ListSnippets(ctx)
	if err != nil {
		return fmt.Errorf("list snippets: %w", err)
	}

	docs := make([]*search.SnippetDocument, 0, len(snippets))
	for _, snippet := range snippets {
		docs = append(docs, search.SnippetToDocument(snippet))
	}
	if err := s.index.IndexDocuments(docs); err != nil {
		return fmt.Errorf("index snippets: %w", err)
	}

	s.logger.Info("search index rebuilt", "documents", len(docs))
	return nil
}

// Search executes a query against the index.
func (s *SearchService) Search(ctx context.Context, params search.Params) (*search.Result, error) {
	if params.Limit <= 0 {
		params.Limit = search.DefaultParams().Limit
	}
	result, err := s.index.Search(ctx, params)
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "search failed")
	}
	return result, nil
}
