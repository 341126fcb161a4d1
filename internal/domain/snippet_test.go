package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnippet_Touch_StrictlyIncreases(t *testing.T) {
	s := &Snippet{}
	s.InitTimestamps()

	prev := s.UpdatedAt
	for i := 0; i < 100; i++ {
		s.Touch()
		assert.True(t, s.UpdatedAt.After(prev), "UpdatedAt must strictly increase")
		prev = s.UpdatedAt
	}
}

func TestSnippet_IncrementUsage_Monotonic(t *testing.T) {
	s := &Snippet{}
	s.InitTimestamps()

	require.Equal(t, 0, s.UsageCount)
	for i := 1; i <= 50; i++ {
		s.IncrementUsage()
		assert.Equal(t, i, s.UsageCount)
	}
}

func TestSnippet_MarkDeleted(t *testing.T) {
	s := &Snippet{}
	s.InitTimestamps()
	require.False(t, s.IsDeleted())

	s.MarkDeleted()

	assert.True(t, s.IsDeleted())
	require.NotNil(t, s.DeletedAt)
	assert.Equal(t, s.UpdatedAt, *s.DeletedAt)
}

func TestSnippet_Clone_DeepCopiesContent(t *testing.T) {
	s := &Snippet{
		ID:        "snip-1",
		Name:      "Greeting",
		BlockType: "text",
		Tags:      []string{"greeting"},
		Content: Block{
			Type: "text",
			Content: map[string]any{
				"html":   "<p>Hi</p>",
				"nested": map[string]any{"align": "left"},
			},
		},
	}

	c := s.Clone()
	require.Equal(t, s.Content, c.Content)

	// Mutating the clone must not touch the original.
	c.Content.Content["html"] = "<p>Bye</p>"
	c.Content.Content["nested"].(map[string]any)["align"] = "right"
	c.Tags[0] = "farewell"

	assert.Equal(t, "<p>Hi</p>", s.Content.Content["html"])
	assert.Equal(t, "left", s.Content.Content["nested"].(map[string]any)["align"])
	assert.Equal(t, []string{"greeting"}, s.Tags)
}

func TestBlock_Clone_NilContent(t *testing.T) {
	b := Block{Type: "divider"}
	c := b.Clone()
	assert.Equal(t, "divider", c.Type)
	assert.Nil(t, c.Content)
}

func TestDefaults(t *testing.T) {
	assert.Equal(t, "text snippet", DefaultName("text"))
	assert.Equal(t, "Saved text block", DefaultDescription("text"))
}

func TestCategory_Valid(t *testing.T) {
	assert.True(t, CategoryLayout.Valid())
	assert.True(t, CategoryContent.Valid())
	assert.True(t, CategoryCustom.Valid())
	assert.False(t, Category("media").Valid())
	assert.False(t, Category("").Valid())
}

func TestBuiltins_StableAndIsolated(t *testing.T) {
	first := Builtins()
	second := Builtins()
	require.Equal(t, len(first), len(second))

	for i := range first {
		assert.Equal(t, first[i].ID, second[i].ID)
		assert.True(t, first[i].Builtin)
		assert.Equal(t, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), first[i].CreatedAt)
	}

	// Mutating one call's result must not leak into the next.
	first[0].Name = "mutated"
	first[0].Content.Content["html"] = "mutated"
	third := Builtins()
	assert.NotEqual(t, "mutated", third[0].Name)
	assert.NotEqual(t, "mutated", third[0].Content.Content["html"])
}

func TestIsBuiltinID(t *testing.T) {
	assert.True(t, IsBuiltinID("snip-builtin-hero-banner"))
	assert.False(t, IsBuiltinID("snip-user-created"))
}
