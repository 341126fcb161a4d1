package sqlite

import (
	"context"
	"database/sql"
	"encoding/json/v2"
	"errors"
	"fmt"

	"github.com/snipsyncapp/snipsync-server/internal/domain"
	"github.com/snipsyncapp/snipsync-server/internal/store"
)

// CreateSnippet inserts a new snippet row.
func (s *Store) CreateSnippet(ctx context.Context, snippet *domain.Snippet) error {
	tags, err := json.Marshal(snippet.Tags)
	if err != nil {
		return fmt.Errorf("marshal tags: %w", err)
	}
	content, err := json.Marshal(snippet.Content)
	if err != nil {
		return fmt.Errorf("marshal content: %w", err)
	}

	var deletedAt any
	if snippet.DeletedAt != nil {
		deletedAt = formatTime(*snippet.DeletedAt)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO snippets (id, name, description, category, tags, block_type, content,
			usage_count, is_favorite, builtin, created_at, updated_at, deleted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		snippet.ID, snippet.Name, snippet.Description, string(snippet.Category),
		string(tags), snippet.BlockType, string(content),
		snippet.UsageCount, boolToInt(snippet.IsFavorite), boolToInt(snippet.Builtin),
		formatTime(snippet.CreatedAt), formatTime(snippet.UpdatedAt), deletedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrSnippetExists
		}
		return fmt.Errorf("insert snippet: %w", err)
	}
	s.logger.Debug("snippet stored", "snippet_id", snippet.ID)
	return nil
}

// GetSnippet retrieves a snippet by id, including tombstoned rows.
func (s *Store) GetSnippet(ctx context.Context, id string) (*domain.Snippet, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, description, category, tags, block_type, content,
			usage_count, is_favorite, builtin, created_at, updated_at, deleted_at
		FROM snippets WHERE id = ?`, id)

	snippet, err := scanSnippet(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrSnippetNotFound
	}
	return snippet, err
}

// UpdateSnippet replaces an existing snippet row.
func (s *Store) UpdateSnippet(ctx context.Context, snippet *domain.Snippet) error {
	tags, err := json.Marshal(snippet.Tags)
	if err != nil {
		return fmt.Errorf("marshal tags: %w", err)
	}
	content, err := json.Marshal(snippet.Content)
	if err != nil {
		return fmt.Errorf("marshal content: %w", err)
	}

	var deletedAt any
	if snippet.DeletedAt != nil {
		deletedAt = formatTime(*snippet.DeletedAt)
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE snippets
		SET name = ?, description = ?, category = ?, tags = ?, block_type = ?,
			content = ?, usage_count = ?, is_favorite = ?, builtin = ?,
			updated_at = ?, deleted_at = ?
		WHERE id = ?`,
		snippet.Name, snippet.Description, string(snippet.Category), string(tags),
		snippet.BlockType, string(content), snippet.UsageCount,
		boolToInt(snippet.IsFavorite), boolToInt(snippet.Builtin),
		formatTime(snippet.UpdatedAt), deletedAt, snippet.ID,
	)
	if err != nil {
		return fmt.Errorf("update snippet: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return store.ErrSnippetNotFound
	}
	return nil
}

// DeleteSnippet tombstones a snippet row. Already-tombstoned rows are left
// as they are.
func (s *Store) DeleteSnippet(ctx context.Context, id string) error {
	snippet, err := s.GetSnippet(ctx, id)
	if err != nil {
		return err
	}
	if snippet.IsDeleted() {
		return nil
	}
	snippet.MarkDeleted()
	if err := s.UpdateSnippet(ctx, snippet); err != nil {
		return err
	}
	s.logger.Debug("snippet tombstoned", "snippet_id", id)
	return nil
}

// ListSnippets returns live snippets ordered by creation time, oldest first.
func (s *Store) ListSnippets(ctx context.Context) ([]*domain.Snippet, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, description, category, tags, block_type, content,
			usage_count, is_favorite, builtin, created_at, updated_at, deleted_at
		FROM snippets
		WHERE deleted_at IS NULL
		ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list snippets: %w", err)
	}
	defer rows.Close()

	var out []*domain.Snippet
	for rows.Next() {
		snippet, err := scanSnippet(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, snippet)
	}
	return out, rows.Err()
}

// rowScanner abstracts *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanSnippet(row rowScanner) (*domain.Snippet, error) {
	var (
		snippet    domain.Snippet
		category   string
		tags       string
		content    string
		isFavorite int
		builtin    int
		createdAt  string
		updatedAt  string
		deletedAt  sql.NullString
	)

	err := row.Scan(&snippet.ID, &snippet.Name, &snippet.Description, &category,
		&tags, &snippet.BlockType, &content, &snippet.UsageCount,
		&isFavorite, &builtin, &createdAt, &updatedAt, &deletedAt)
	if err != nil {
		return nil, err
	}

	snippet.Category = domain.Category(category)
	snippet.IsFavorite = isFavorite != 0
	snippet.Builtin = builtin != 0

	if err := json.Unmarshal([]byte(tags), &snippet.Tags); err != nil {
		return nil, fmt.Errorf("unmarshal tags: %w", err)
	}
	if err := json.Unmarshal([]byte(content), &snippet.Content); err != nil {
		return nil, fmt.Errorf("unmarshal content: %w", err)
	}
	if snippet.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if snippet.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}
	if snippet.DeletedAt, err = parseNullableTime(deletedAt); err != nil {
		return nil, fmt.Errorf("parse deleted_at: %w", err)
	}

	return &snippet, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
