package sqlite

import (
	"context"
	"database/sql"
	"encoding/json/v2"
	"errors"
	"fmt"
	"time"

	"github.com/snipsyncapp/snipsync-server/internal/domain"
	"github.com/snipsyncapp/snipsync-server/internal/store"
)

// PutReference creates or replaces the single reference for the
// (template, snippet) pair. The original bind time survives replacement.
func (s *Store) PutReference(ctx context.Context, ref *domain.SnippetReference) error {
	customizations, err := json.Marshal(ref.Customizations)
	if err != nil {
		return fmt.Errorf("marshal customizations: %w", err)
	}

	createdAt := ref.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	updatedAt := ref.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = createdAt
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO snippet_refs (template_id, snippet_id, template_name,
			customizations, locked, bound_version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (template_id, snippet_id) DO UPDATE SET
			template_name = excluded.template_name,
			customizations = excluded.customizations,
			locked = excluded.locked,
			bound_version = excluded.bound_version,
			updated_at = excluded.updated_at`,
		ref.TemplateID, ref.SnippetID, ref.TemplateName, string(customizations),
		boolToInt(ref.Locked), formatTime(ref.BoundVersion),
		formatTime(createdAt), formatTime(updatedAt),
	)
	if err != nil {
		return fmt.Errorf("upsert reference: %w", err)
	}
	return nil
}

// GetReference retrieves the reference for a (template, snippet) pair.
func (s *Store) GetReference(ctx context.Context, templateID, snippetID string) (*domain.SnippetReference, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT template_id, snippet_id, template_name, customizations, locked,
			bound_version, created_at, updated_at
		FROM snippet_refs
		WHERE template_id = ? AND snippet_id = ?`, templateID, snippetID)

	ref, err := scanReference(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrReferenceNotFound
	}
	return ref, err
}

// ListTemplateReferences returns all references held by a template, ordered
// by bind time.
func (s *Store) ListTemplateReferences(ctx context.Context, templateID string) ([]*domain.SnippetReference, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT template_id, snippet_id, template_name, customizations, locked,
			bound_version, created_at, updated_at
		FROM snippet_refs
		WHERE template_id = ?
		ORDER BY created_at, snippet_id`, templateID)
	if err != nil {
		return nil, fmt.Errorf("list template references: %w", err)
	}
	defer rows.Close()

	var out []*domain.SnippetReference
	for rows.Next() {
		ref, err := scanReference(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ref)
	}
	return out, rows.Err()
}

// TemplatesUsing returns the ids of templates holding a reference to the
// snippet, sorted. Served by the snippet_id index.
func (s *Store) TemplatesUsing(ctx context.Context, snippetID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT template_id FROM snippet_refs
		WHERE snippet_id = ?
		ORDER BY template_id`, snippetID)
	if err != nil {
		return nil, fmt.Errorf("templates using: %w", err)
	}
	defer rows.Close()

	out := make([]string, 0)
	for rows.Next() {
		var templateID string
		if err := rows.Scan(&templateID); err != nil {
			return nil, err
		}
		out = append(out, templateID)
	}
	return out, rows.Err()
}

func scanReference(row rowScanner) (*domain.SnippetReference, error) {
	var (
		ref            domain.SnippetReference
		customizations string
		locked         int
		boundVersion   string
		createdAt      string
		updatedAt      string
	)

	err := row.Scan(&ref.TemplateID, &ref.SnippetID, &ref.TemplateName,
		&customizations, &locked, &boundVersion, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	ref.Locked = locked != 0
	if err := json.Unmarshal([]byte(customizations), &ref.Customizations); err != nil {
		return nil, fmt.Errorf("unmarshal customizations: %w", err)
	}
	if ref.BoundVersion, err = parseTime(boundVersion); err != nil {
		return nil, fmt.Errorf("parse bound_version: %w", err)
	}
	if ref.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if ref.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}

	return &ref, nil
}
