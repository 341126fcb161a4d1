// Package memory provides the volatile in-memory store backend. All state
// lives in process memory; a restart loses everything. It maintains the
// reverse index (snippet → templates) that a production backend is
// expected to keep.
package memory

import (
	"context"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/snipsyncapp/snipsync-server/internal/domain"
	"github.com/snipsyncapp/snipsync-server/internal/store"
)

// refKey identifies a reference by its owning pair.
type refKey struct {
	templateID string
	snippetID  string
}

// Store is an in-memory implementation of store.Store.
// Safe for concurrent use.
type Store struct {
	mu       sync.RWMutex
	snippets map[string]*domain.Snippet
	refs     map[refKey]*domain.SnippetReference
	// usedBy is the reverse index: snippet id → set of template ids.
	usedBy  map[string]map[string]bool
	changes map[string]*domain.UniversalChange
	logger  *slog.Logger
}

// New creates an empty in-memory store.
func New(logger *slog.Logger) *Store {
	return &Store{
		snippets: make(map[string]*domain.Snippet),
		refs:     make(map[refKey]*domain.SnippetReference),
		usedBy:   make(map[string]map[string]bool),
		changes:  make(map[string]*domain.UniversalChange),
		logger:   logger,
	}
}

// Close is a no-op for the in-memory store.
func (s *Store) Close() error { return nil }

// CreateSnippet stores a new snippet record.
func (s *Store) CreateSnippet(ctx context.Context, snippet *domain.Snippet) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.snippets[snippet.ID]; exists {
		return store.ErrSnippetExists
	}
	s.snippets[snippet.ID] = snippet.Clone()
	s.logger.Debug("snippet stored", "snippet_id", snippet.ID)
	return nil
}

// GetSnippet retrieves a snippet by id, including tombstoned records.
func (s *Store) GetSnippet(ctx context.Context, id string) (*domain.Snippet, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	snippet, ok := s.snippets[id]
	if !ok {
		return nil, store.ErrSnippetNotFound
	}
	return snippet.Clone(), nil
}

// UpdateSnippet replaces an existing snippet record.
func (s *Store) UpdateSnippet(ctx context.Context, snippet *domain.Snippet) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.snippets[snippet.ID]; !ok {
		return store.ErrSnippetNotFound
	}
	s.snippets[snippet.ID] = snippet.Clone()
	return nil
}

// DeleteSnippet tombstones a snippet. Deleting an already-tombstoned
// snippet is a no-op. References to the snippet survive.
func (s *Store) DeleteSnippet(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snippet, ok := s.snippets[id]
	if !ok {
		return store.ErrSnippetNotFound
	}
	if snippet.IsDeleted() {
		return nil
	}
	snippet.MarkDeleted()
	s.logger.Debug("snippet tombstoned", "snippet_id", id)
	return nil
}

// ListSnippets returns live snippets ordered by creation time, oldest
// first, with ties broken by id for a stable order.
func (s *Store) ListSnippets(ctx context.Context) ([]*domain.Snippet, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.Snippet, 0, len(s.snippets))
	for _, snippet := range s.snippets {
		if snippet.IsDeleted() {
			continue
		}
		out = append(out, snippet.Clone())
	}
	slices.SortFunc(out, func(a, b *domain.Snippet) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return out, nil
}

// PutReference creates or replaces the single reference for the
// (template, snippet) pair and maintains the reverse index.
func (s *Store) PutReference(ctx context.Context, ref *domain.SnippetReference) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := refKey{templateID: ref.TemplateID, snippetID: ref.SnippetID}
	stored := ref.Clone()
	if existing, ok := s.refs[key]; ok {
		stored.CreatedAt = existing.CreatedAt
	} else if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now()
	}
	if stored.UpdatedAt.IsZero() {
		stored.UpdatedAt = time.Now()
	}
	s.refs[key] = stored

	templates, ok := s.usedBy[ref.SnippetID]
	if !ok {
		templates = make(map[string]bool)
		s.usedBy[ref.SnippetID] = templates
	}
	templates[ref.TemplateID] = true
	return nil
}

// GetReference retrieves the reference for a (template, snippet) pair.
func (s *Store) GetReference(ctx context.Context, templateID, snippetID string) (*domain.SnippetReference, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	ref, ok := s.refs[refKey{templateID: templateID, snippetID: snippetID}]
	if !ok {
		return nil, store.ErrReferenceNotFound
	}
	return ref.Clone(), nil
}

// ListTemplateReferences returns all references held by a template,
// ordered by bind time.
func (s *Store) ListTemplateReferences(ctx context.Context, templateID string) ([]*domain.SnippetReference, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.SnippetReference, 0)
	for key, ref := range s.refs {
		if key.templateID != templateID {
			continue
		}
		out = append(out, ref.Clone())
	}
	slices.SortFunc(out, func(a, b *domain.SnippetReference) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.SnippetID, b.SnippetID)
	})
	return out, nil
}

// TemplatesUsing returns the ids of templates holding a reference to the
// snippet, sorted. Served from the reverse index in O(dependents).
func (s *Store) TemplatesUsing(ctx context.Context, snippetID string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	templates := s.usedBy[snippetID]
	out := make([]string, 0, len(templates))
	for templateID := range templates {
		out = append(out, templateID)
	}
	slices.Sort(out)
	return out, nil
}

// CreateChange appends a universal change to the change log.
func (s *Store) CreateChange(ctx context.Context, c *domain.UniversalChange) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.changes[c.ID]; exists {
		return store.ErrChangeExists
	}
	s.changes[c.ID] = cloneChange(c)
	return nil
}

// GetChange retrieves a universal change by id.
func (s *Store) GetChange(ctx context.Context, id string) (*domain.UniversalChange, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.changes[id]
	if !ok {
		return nil, store.ErrChangeNotFound
	}
	return cloneChange(c), nil
}

// UpdateChange replaces a universal change record.
func (s *Store) UpdateChange(ctx context.Context, c *domain.UniversalChange) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.changes[c.ID]; !ok {
		return store.ErrChangeNotFound
	}
	s.changes[c.ID] = cloneChange(c)
	return nil
}

// ListChanges returns the change log, newest first.
func (s *Store) ListChanges(ctx context.Context) ([]*domain.UniversalChange, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.UniversalChange, 0, len(s.changes))
	for _, c := range s.changes {
		out = append(out, cloneChange(c))
	}
	slices.SortFunc(out, func(a, b *domain.UniversalChange) int {
		if c := b.Timestamp.Compare(a.Timestamp); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return out, nil
}

// cloneChange deep-copies a universal change record.
func cloneChange(c *domain.UniversalChange) *domain.UniversalChange {
	out := *c
	if c.Changes != nil {
		out.Changes = make(domain.Patch, len(c.Changes))
		for k, v := range c.Changes {
			out.Changes[k] = v
		}
	}
	out.AffectedTemplates = append([]string(nil), c.AffectedTemplates...)
	out.Outcomes = append([]domain.TemplateOutcome(nil), c.Outcomes...)
	return &out
}
