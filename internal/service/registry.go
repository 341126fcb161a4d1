package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/snipsyncapp/snipsync-server/internal/domain"
	domainerrors "github.com/snipsyncapp/snipsync-server/internal/errors"
	"github.com/snipsyncapp/snipsync-server/internal/store"
)

// RegistryService owns template-to-snippet bindings. It is purely
// relational state: it never clones or mutates snippet content, only
// points at snippets by id.
type RegistryService struct {
	store  store.Store
	logger *slog.Logger
}

// NewRegistryService creates a registry service.
func NewRegistryService(st store.Store, logger *slog.Logger) *RegistryService {
	return &RegistryService{
		store:  st,
		logger: logger,
	}
}

// Register creates or replaces the single reference for the
// (template, snippet) pair, capturing the snippet's current UpdatedAt
// as the bound version. The snippet must exist and be live.
func (s *RegistryService) Register(ctx context.Context, templateID, templateName, snippetID string, customizations map[string]any) (*domain.SnippetReference, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if templateID == "" {
		return nil, domainerrors.Validation("template id is required")
	}

	snippet, err := s.store.GetSnippet(ctx, snippetID)
	if err != nil {
		return nil, mapSnippetErr(err, snippetID)
	}
	if snippet.IsDeleted() {
		return nil, domainerrors.Gonef("snippet %s was deleted", snippetID)
	}

	now := time.Now()
	ref := &domain.SnippetReference{
		TemplateID:   templateID,
		TemplateName: templateName,
		SnippetID:    snippetID,
		Locked:       false,
		BoundVersion: snippet.UpdatedAt,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if customizations != nil {
		ref.Customizations = customizations
	}

	if err := s.store.PutReference(ctx, ref.Clone()); err != nil {
		return nil, fmt.Errorf("put reference: %w", err)
	}

	s.logger.Info("snippet reference registered",
		"template_id", templateID,
		"snippet_id", snippetID,
	)
	return ref, nil
}

// ListForTemplate returns the references held by a template, oldest
// binding first. A template with no references yields an empty list.
func (s *RegistryService) ListForTemplate(ctx context.Context, templateID string) ([]*domain.SnippetReference, error) {
	refs, err := s.store.ListTemplateReferences(ctx, templateID)
	if err != nil {
		return nil, fmt.Errorf("list template references: %w", err)
	}
	return refs, nil
}

// Get resolves the reference for a (template, snippet) pair.
func (s *RegistryService) Get(ctx context.Context, templateID, snippetID string) (*domain.SnippetReference, error) {
	ref, err := s.store.GetReference(ctx, templateID, snippetID)
	if err != nil {
		return nil, mapReferenceErr(err, templateID, snippetID)
	}
	return ref, nil
}

// TemplatesUsing returns the ids of templates bound to a snippet,
// sorted. Served by the registry's reverse index.
func (s *RegistryService) TemplatesUsing(ctx context.Context, snippetID string) ([]string, error) {
	templates, err := s.store.TemplatesUsing(ctx, snippetID)
	if err != nil {
		return nil, fmt.Errorf("templates using: %w", err)
	}
	return templates, nil
}

// ToggleLock flips the lock flag on a reference and returns the new
// state. A locked reference opts its template out of propagation.
func (s *RegistryService) ToggleLock(ctx context.Context, templateID, snippetID string) (bool, error) {
	ref, err := s.store.GetReference(ctx, templateID, snippetID)
	if err != nil {
		return false, mapReferenceErr(err, templateID, snippetID)
	}

	locked := ref.ToggleLock()
	if err := s.store.PutReference(ctx, ref); err != nil {
		return false, fmt.Errorf("put reference: %w", err)
	}

	s.logger.Info("reference lock toggled",
		"template_id", templateID,
		"snippet_id", snippetID,
		"locked", locked,
	)
	return locked, nil
}

func mapReferenceErr(err error, templateID, snippetID string) error {
	if errors.Is(err, store.ErrReferenceNotFound) {
		return domainerrors.NotFoundf("no reference from template %s to snippet %s", templateID, snippetID)
	}
	return err
}
