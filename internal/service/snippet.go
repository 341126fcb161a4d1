// Package service provides the business logic layer for snippets,
// references, and universal change propagation.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/snipsyncapp/snipsync-server/internal/domain"
	domainerrors "github.com/snipsyncapp/snipsync-server/internal/errors"
	"github.com/snipsyncapp/snipsync-server/internal/event"
	"github.com/snipsyncapp/snipsync-server/internal/id"
	"github.com/snipsyncapp/snipsync-server/internal/store"
	"github.com/snipsyncapp/snipsync-server/internal/util"
	"github.com/snipsyncapp/snipsync-server/internal/validation"
)

// SnippetService owns snippet records. It is the single writer of
// snippets; every mutating call notifies its listeners exactly once,
// after the state change is durable.
type SnippetService struct {
	store     store.Store
	bus       *event.Bus
	validator *validation.Validator
	logger    *slog.Logger
}

// NewSnippetService creates a snippet service.
func NewSnippetService(st store.Store, bus *event.Bus, validator *validation.Validator, logger *slog.Logger) *SnippetService {
	return &SnippetService{
		store:     st,
		bus:       bus,
		validator: validator,
		logger:    logger,
	}
}

// EnsureBuiltins seeds the built-in snippets. Already-seeded snippets
// are left untouched, so user edits to mutable builtin fields survive
// restarts.
func (s *SnippetService) EnsureBuiltins(ctx context.Context) error {
	for _, snippet := range domain.Builtins() {
		err := s.store.CreateSnippet(ctx, snippet)
		if err != nil && !errors.Is(err, store.ErrSnippetExists) {
			return fmt.Errorf("seed builtin %s: %w", snippet.ID, err)
		}
	}
	return nil
}

type createSnippetRequest struct {
	Name        string `json:"name" validate:"required,max=120"`
	Description string `json:"description" validate:"max=500"`
	BlockType   string `json:"block_type" validate:"required,max=60"`
}

type renameSnippetRequest struct {
	Name string `json:"name" validate:"required,max=120"`
}

// Create promotes a content block to a snippet. The block is stored
// verbatim but deep-copied, so later mutations of the caller's value
// never leak into the canonical record. Empty name/description default
// deterministically from the block type.
func (s *SnippetService) Create(ctx context.Context, content domain.Block, name, description string) (*domain.Snippet, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if name == "" {
		name = domain.DefaultName(content.Type)
	}
	if description == "" {
		description = domain.DefaultDescription(content.Type)
	}

	req := createSnippetRequest{
		Name:        name,
		Description: description,
		BlockType:   content.Type,
	}
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	snippetID, err := id.Generate("snip")
	if err != nil {
		return nil, fmt.Errorf("generate snippet ID: %w", err)
	}

	snippet := &domain.Snippet{
		ID:          snippetID,
		Name:        name,
		Description: description,
		Category:    domain.CategoryCustom,
		BlockType:   content.Type,
		Content:     content.Clone(),
	}
	snippet.InitTimestamps()

	if err := s.store.CreateSnippet(ctx, snippet); err != nil {
		return nil, fmt.Errorf("create snippet: %w", err)
	}

	s.logger.Info("snippet created",
		"snippet_id", snippetID,
		"name", name,
		"block_type", content.Type,
	)
	s.bus.Emit(event.NewSnippetEvent(event.TypeSnippetCreated, snippetID))

	return snippet.Clone(), nil
}

// Get retrieves a snippet by id. Deleted snippets resolve to a Gone
// error so dependents can distinguish "never existed" from "was
// removed".
func (s *SnippetService) Get(ctx context.Context, snippetID string) (*domain.Snippet, error) {
	snippet, err := s.store.GetSnippet(ctx, snippetID)
	if err != nil {
		return nil, mapSnippetErr(err, snippetID)
	}
	if snippet.IsDeleted() {
		return nil, domainerrors.Gonef("snippet %s was deleted", snippetID)
	}
	return snippet, nil
}

// List returns all live snippets, builtins first, each group ordered by
// creation time.
func (s *SnippetService) List(ctx context.Context) ([]*domain.Snippet, error) {
	snippets, err := s.store.ListSnippets(ctx)
	if err != nil {
		return nil, fmt.Errorf("list snippets: %w", err)
	}

	out := make([]*domain.Snippet, 0, len(snippets))
	for _, snippet := range snippets {
		if snippet.Builtin {
			out = append(out, snippet)
		}
	}
	for _, snippet := range snippets {
		if !snippet.Builtin {
			out = append(out, snippet)
		}
	}
	return out, nil
}

// Rename updates a snippet's name. Unknown ids are an explicit error,
// so callers can tell "nothing happened" from "it worked".
func (s *SnippetService) Rename(ctx context.Context, snippetID, newName string) (*domain.Snippet, error) {
	if err := s.validator.Validate(renameSnippetRequest{Name: newName}); err != nil {
		return nil, err
	}

	snippet, err := s.mutable(ctx, snippetID)
	if err != nil {
		return nil, err
	}

	snippet.Name = newName
	snippet.Touch()
	if err := s.store.UpdateSnippet(ctx, snippet); err != nil {
		return nil, fmt.Errorf("update snippet: %w", err)
	}

	s.logger.Info("snippet renamed", "snippet_id", snippetID, "new_name", newName)
	s.bus.Emit(event.NewSnippetEvent(event.TypeSnippetRenamed, snippetID))

	return snippet.Clone(), nil
}

// UpdateContent replaces a snippet's content block.
func (s *SnippetService) UpdateContent(ctx context.Context, snippetID string, content domain.Block) (*domain.Snippet, error) {
	snippet, err := s.mutable(ctx, snippetID)
	if err != nil {
		return nil, err
	}

	snippet.Content = content.Clone()
	if content.Type != "" {
		snippet.BlockType = content.Type
	}
	snippet.Touch()
	if err := s.store.UpdateSnippet(ctx, snippet); err != nil {
		return nil, fmt.Errorf("update snippet: %w", err)
	}

	s.logger.Info("snippet content updated", "snippet_id", snippetID, "block_type", snippet.BlockType)
	s.bus.Emit(event.NewSnippetEvent(event.TypeSnippetUpdated, snippetID))

	return snippet.Clone(), nil
}

// UpdateTags replaces a snippet's tag set. Tags are normalized to
// slugs, deduplicated, and sorted.
func (s *SnippetService) UpdateTags(ctx context.Context, snippetID string, tags []string) (*domain.Snippet, error) {
	snippet, err := s.mutable(ctx, snippetID)
	if err != nil {
		return nil, err
	}

	snippet.Tags = util.NormalizeTags(tags)
	snippet.Touch()
	if err := s.store.UpdateSnippet(ctx, snippet); err != nil {
		return nil, fmt.Errorf("update snippet: %w", err)
	}

	s.logger.Info("snippet tags updated", "snippet_id", snippetID, "tags", snippet.Tags)
	s.bus.Emit(event.NewSnippetEvent(event.TypeSnippetUpdated, snippetID))

	return snippet.Clone(), nil
}

// SetCategory reclassifies a snippet.
func (s *SnippetService) SetCategory(ctx context.Context, snippetID string, category domain.Category) (*domain.Snippet, error) {
	if !category.Valid() {
		return nil, domainerrors.Validationf("unknown category %q", string(category))
	}

	snippet, err := s.mutable(ctx, snippetID)
	if err != nil {
		return nil, err
	}

	snippet.Category = category
	snippet.Touch()
	if err := s.store.UpdateSnippet(ctx, snippet); err != nil {
		return nil, fmt.Errorf("update snippet: %w", err)
	}

	s.logger.Info("snippet category updated", "snippet_id", snippetID, "category", string(category))
	s.bus.Emit(event.NewSnippetEvent(event.TypeSnippetUpdated, snippetID))

	return snippet.Clone(), nil
}

// SetFavorite toggles a snippet's favorite flag. Favoriting is allowed
// on builtins; it is per-install state, not a content edit.
func (s *SnippetService) SetFavorite(ctx context.Context, snippetID string, favorite bool) (*domain.Snippet, error) {
	snippet, err := s.Get(ctx, snippetID)
	if err != nil {
		return nil, err
	}

	snippet.IsFavorite = favorite
	snippet.Touch()
	if err := s.store.UpdateSnippet(ctx, snippet); err != nil {
		return nil, fmt.Errorf("update snippet: %w", err)
	}

	s.bus.Emit(event.NewSnippetEvent(event.TypeSnippetUpdated, snippetID))
	return snippet.Clone(), nil
}

// IncrementUsage bumps a snippet's usage counter. The counter only ever
// increases.
func (s *SnippetService) IncrementUsage(ctx context.Context, snippetID string) (*domain.Snippet, error) {
	snippet, err := s.Get(ctx, snippetID)
	if err != nil {
		return nil, err
	}

	snippet.IncrementUsage()
	if err := s.store.UpdateSnippet(ctx, snippet); err != nil {
		return nil, fmt.Errorf("update snippet: %w", err)
	}

	s.bus.Emit(event.NewSnippetEvent(event.TypeSnippetUsed, snippetID))
	return snippet.Clone(), nil
}

// Delete tombstones a snippet. The record stays resolvable (as Gone)
// so dangling references can detect what happened; references to it are
// deliberately not cascaded.
func (s *SnippetService) Delete(ctx context.Context, snippetID string) error {
	if _, err := s.mutable(ctx, snippetID); err != nil {
		return err
	}

	if err := s.store.DeleteSnippet(ctx, snippetID); err != nil {
		return mapSnippetErr(err, snippetID)
	}

	s.logger.Info("snippet deleted", "snippet_id", snippetID)
	s.bus.Emit(event.NewSnippetEvent(event.TypeSnippetDeleted, snippetID))
	return nil
}

// Subscribe registers a listener on the snippet store's fan-out.
func (s *SnippetService) Subscribe(fn event.Listener) *event.Subscription {
	return s.bus.Subscribe(fn)
}

// Unsubscribe removes a previously registered listener.
func (s *SnippetService) Unsubscribe(sub *event.Subscription) {
	s.bus.Unsubscribe(sub)
}

// mutable resolves a snippet for mutation: it must exist, be live, and
// not be a builtin.
func (s *SnippetService) mutable(ctx context.Context, snippetID string) (*domain.Snippet, error) {
	snippet, err := s.Get(ctx, snippetID)
	if err != nil {
		return nil, err
	}
	if snippet.Builtin {
		return nil, domainerrors.Conflictf("builtin snippet %s cannot be modified", snippetID)
	}
	return snippet, nil
}

func mapSnippetErr(err error, snippetID string) error {
	if errors.Is(err, store.ErrSnippetNotFound) {
		return domainerrors.NotFoundf("snippet %s not found", snippetID)
	}
	return err
}
