// Package domain contains the core types of the shared-content
// synchronization engine: snippets, template references, and universal
// changes with their computed impacts.
package domain

import (
	"encoding/json/v2"
	"fmt"
	"time"
)

// Category classifies a snippet in the library UI.
type Category string

// Snippet categories.
const (
	CategoryLayout  Category = "layout"
	CategoryContent Category = "content"
	CategoryCustom  Category = "custom"
)

// Valid reports whether the category is a known value.
func (c Category) Valid() bool {
	switch c {
	case CategoryLayout, CategoryContent, CategoryCustom:
		return true
	}
	return false
}

// Block is the opaque content payload a snippet wraps. The document model
// owns its meaning; this engine only stores, copies, and diffs it.
type Block struct {
	Type    string         `json:"type"`
	Content map[string]any `json:"content,omitempty"`
}

// Clone returns a deep copy of the block via a JSON round trip, so callers
// never alias engine-owned state.
func (b Block) Clone() Block {
	if b.Content == nil {
		return Block{Type: b.Type}
	}
	data, err := json.Marshal(b.Content)
	if err != nil {
		// Content came in through JSON-compatible APIs; a marshal failure
		// means a programming error upstream.
		panic(fmt.Sprintf("clone block content: %v", err))
	}
	var content map[string]any
	if err := json.Unmarshal(data, &content); err != nil {
		panic(fmt.Sprintf("clone block content: %v", err))
	}
	return Block{Type: b.Type, Content: content}
}

// Snippet is a canonical, reusable content fragment stored once and
// referenced by many templates.
type Snippet struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Category    Category   `json:"category"`
	Tags        []string   `json:"tags,omitempty"` // normalized slugs, sorted, unique
	BlockType   string     `json:"block_type"`
	Content     Block      `json:"content"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	DeletedAt   *time.Time `json:"deleted_at,omitempty"` // tombstone, references survive
	UsageCount  int        `json:"usage_count"`
	IsFavorite  bool       `json:"is_favorite"`
	Builtin     bool       `json:"builtin,omitempty"`
}

// InitTimestamps sets both CreatedAt and UpdatedAt to now.
// Call this when creating a new snippet.
func (s *Snippet) InitTimestamps() {
	now := time.Now()
	s.CreatedAt = now
	s.UpdatedAt = now
}

// Touch advances UpdatedAt. UpdatedAt must strictly increase on every
// mutation; when the clock hasn't moved past the previous value the
// timestamp is nudged forward a nanosecond.
func (s *Snippet) Touch() {
	now := time.Now()
	if !now.After(s.UpdatedAt) {
		now = s.UpdatedAt.Add(time.Nanosecond)
	}
	s.UpdatedAt = now
}

// IncrementUsage bumps the monotonically non-decreasing usage counter.
func (s *Snippet) IncrementUsage() {
	s.UsageCount++
	s.Touch()
}

// IsDeleted returns true if this snippet has been tombstoned.
func (s *Snippet) IsDeleted() bool {
	return s.DeletedAt != nil
}

// MarkDeleted tombstones the snippet. The record stays resolvable so
// dependent templates can detect the deletion and react.
func (s *Snippet) MarkDeleted() {
	s.Touch()
	deleted := s.UpdatedAt
	s.DeletedAt = &deleted
}

// Clone returns a deep copy of the snippet.
func (s *Snippet) Clone() *Snippet {
	c := *s
	c.Content = s.Content.Clone()
	if s.Tags != nil {
		c.Tags = append([]string(nil), s.Tags...)
	}
	if s.DeletedAt != nil {
		deleted := *s.DeletedAt
		c.DeletedAt = &deleted
	}
	return &c
}

// DefaultName derives a snippet name from a block type when the caller
// supplies none.
func DefaultName(blockType string) string {
	return blockType + " snippet"
}

// DefaultDescription derives a snippet description from a block type when
// the caller supplies none.
func DefaultDescription(blockType string) string {
	return "Saved " + blockType + " block"
}
