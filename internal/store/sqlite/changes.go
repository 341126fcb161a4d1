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

// CreateChange appends a universal change to the change log.
func (s *Store) CreateChange(ctx context.Context, c *domain.UniversalChange) error {
	changes, affected, outcomes, err := marshalChangeFields(c)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO changes (id, type, target_id, changes, affected_templates,
			outcomes, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, string(c.Type), c.TargetID, changes, affected, outcomes,
		string(c.Status), formatTime(c.Timestamp),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrChangeExists
		}
		return fmt.Errorf("insert change: %w", err)
	}
	return nil
}

// GetChange retrieves a universal change by id.
func (s *Store) GetChange(ctx context.Context, id string) (*domain.UniversalChange, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, type, target_id, changes, affected_templates, outcomes, status, created_at
		FROM changes WHERE id = ?`, id)

	c, err := scanChange(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrChangeNotFound
	}
	return c, err
}

// UpdateChange replaces a universal change record.
func (s *Store) UpdateChange(ctx context.Context, c *domain.UniversalChange) error {
	changes, affected, outcomes, err := marshalChangeFields(c)
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE changes
		SET type = ?, target_id = ?, changes = ?, affected_templates = ?,
			outcomes = ?, status = ?
		WHERE id = ?`,
		string(c.Type), c.TargetID, changes, affected, outcomes,
		string(c.Status), c.ID,
	)
	if err != nil {
		return fmt.Errorf("update change: %w", err)
	}
	affectedRows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affectedRows == 0 {
		return store.ErrChangeNotFound
	}
	return nil
}

// ListChanges returns the change log, newest first.
func (s *Store) ListChanges(ctx context.Context) ([]*domain.UniversalChange, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, type, target_id, changes, affected_templates, outcomes, status, created_at
		FROM changes
		ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("list changes: %w", err)
	}
	defer rows.Close()

	var out []*domain.UniversalChange
	for rows.Next() {
		c, err := scanChange(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func marshalChangeFields(c *domain.UniversalChange) (changes, affected, outcomes string, err error) {
	changesData, err := json.Marshal(c.Changes)
	if err != nil {
		return "", "", "", fmt.Errorf("marshal changes: %w", err)
	}
	affectedData, err := json.Marshal(c.AffectedTemplates)
	if err != nil {
		return "", "", "", fmt.Errorf("marshal affected templates: %w", err)
	}
	outcomesData, err := json.Marshal(c.Outcomes)
	if err != nil {
		return "", "", "", fmt.Errorf("marshal outcomes: %w", err)
	}
	return string(changesData), string(affectedData), string(outcomesData), nil
}

func scanChange(row rowScanner) (*domain.UniversalChange, error) {
	var (
		c         domain.UniversalChange
		typ       string
		changes   string
		affected  string
		outcomes  string
		status    string
		createdAt string
	)

	err := row.Scan(&c.ID, &typ, &c.TargetID, &changes, &affected, &outcomes,
		&status, &createdAt)
	if err != nil {
		return nil, err
	}

	c.Type = domain.ChangeType(typ)
	c.Status = domain.ChangeStatus(status)

	if err := json.Unmarshal([]byte(changes), &c.Changes); err != nil {
		return nil, fmt.Errorf("unmarshal changes: %w", err)
	}
	if err := json.Unmarshal([]byte(affected), &c.AffectedTemplates); err != nil {
		return nil, fmt.Errorf("unmarshal affected templates: %w", err)
	}
	if err := json.Unmarshal([]byte(outcomes), &c.Outcomes); err != nil {
		return nil, fmt.Errorf("unmarshal outcomes: %w", err)
	}
	if c.Timestamp, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}

	return &c, nil
}
