// Package search provides full-text snippet search using Bleve. It
// supports fuzzy matching on names, faceted filtering by category, tag,
// and block type, and recency sorting.
package search

import (
	"github.com/snipsyncapp/snipsync-server/internal/domain"
)

// SnippetDocument is the document structure for the Bleve index.
//
// Block content is flattened to a single searchable text blob. The
// structured block stays in the store; the index only needs enough to
// match and rank.
type SnippetDocument struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Category    string   `json:"category"`
	Tags        []string `json:"tags,omitempty"`
	BlockType   string   `json:"block_type"`
	Body        string   `json:"body,omitempty"`

	IsFavorite bool `json:"is_favorite"`
	Builtin    bool `json:"builtin"`

	UsageCount int `json:"usage_count"`

	// Unix millis, for recency sorting.
	CreatedAt int64 `json:"created_at"`
	UpdatedAt int64 `json:"updated_at"`
}

// ToMap converts the document to a map with lowercase field names.
// Bleve defaults to Go struct field names, but the index mapping uses
// lowercase names, so we convert explicitly.
func (d *SnippetDocument) ToMap() map[string]interface{} {
	m := map[string]interface{}{
		"id":          d.ID,
		"name":        d.Name,
		"category":    d.Category,
		"block_type":  d.BlockType,
		"is_favorite": d.IsFavorite,
		"builtin":     d.Builtin,
		"usage_count": d.UsageCount,
		"created_at":  d.CreatedAt,
		"updated_at":  d.UpdatedAt,
	}

	if d.Description != "" {
		m["description"] = d.Description
	}
	if len(d.Tags) > 0 {
		m["tags"] = d.Tags
	}
	if d.Body != "" {
		m["body"] = d.Body
	}

	return m
}

// SnippetToDocument converts a domain Snippet to a SnippetDocument.
func SnippetToDocument(s *domain.Snippet) *SnippetDocument {
	return &SnippetDocument{
		ID:          s.ID,
		Name:        s.Name,
		Description: s.Description,
		Category:    string(s.Category),
		Tags:        s.Tags,
		BlockType:   s.BlockType,
		Body:        flattenBlock(s.Content),
		IsFavorite:  s.IsFavorite,
		Builtin:     s.Builtin,
		UsageCount:  s.UsageCount,
		CreatedAt:   s.CreatedAt.UnixMilli(),
		UpdatedAt:   s.UpdatedAt.UnixMilli(),
	}
}

// flattenBlock pulls string values out of a block's content for
// full-text indexing. Nested maps and lists are walked; non-string
// leaves are skipped.
func flattenBlock(b domain.Block) string {
	var out []byte
	var walk func(v any)
	walk = func(v any) {
		switch val := v.(type) {
		case string:
			if len(out) > 0 {
				out = append(out, ' ')
			}
			out = append(out, val...)
		case map[string]any:
			for _, child := range val {
				walk(child)
			}
		case []any:
			for _, child := range val {
				walk(child)
			}
		}
	}
	walk(b.Content)
	return string(out)
}
