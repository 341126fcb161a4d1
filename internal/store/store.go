// Package store defines the persistence boundary for the synchronization
// engine. The default backend keeps everything in volatile process memory;
// durable backends plug in behind the same interface.
package store

import (
	"context"
	"errors"

	"github.com/snipsyncapp/snipsync-server/internal/domain"
)

// Sentinel errors returned by Store implementations.
var (
	ErrSnippetNotFound   = errors.New("snippet not found")
	ErrSnippetExists     = errors.New("snippet already exists")
	ErrReferenceNotFound = errors.New("snippet reference not found")
	ErrChangeNotFound    = errors.New("change not found")
	ErrChangeExists      = errors.New("change already exists")
)

// Store is the persistence interface for snippets, references, and the
// change log. Implementations return deep copies; callers never share
// memory with stored records.
//
// Tombstones: DeleteSnippet marks the record deleted rather than removing
// it. GetSnippet still resolves tombstoned records (with DeletedAt set) so
// dependents can detect the deletion; ListSnippets excludes them.
type Store interface {
	// Lifecycle
	Close() error

	// Snippets
	CreateSnippet(ctx context.Context, s *domain.Snippet) error
	GetSnippet(ctx context.Context, id string) (*domain.Snippet, error)
	UpdateSnippet(ctx context.Context, s *domain.Snippet) error
	DeleteSnippet(ctx context.Context, id string) error
	ListSnippets(ctx context.Context) ([]*domain.Snippet, error)

	// References
	PutReference(ctx context.Context, ref *domain.SnippetReference) error
	GetReference(ctx context.Context, templateID, snippetID string) (*domain.SnippetReference, error)
	ListTemplateReferences(ctx context.Context, templateID string) ([]*domain.SnippetReference, error)
	TemplatesUsing(ctx context.Context, snippetID string) ([]string, error)

	// Change log
	CreateChange(ctx context.Context, c *domain.UniversalChange) error
	GetChange(ctx context.Context, id string) (*domain.UniversalChange, error)
	UpdateChange(ctx context.Context, c *domain.UniversalChange) error
	ListChanges(ctx context.Context) ([]*domain.UniversalChange, error)
}
