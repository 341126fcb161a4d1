package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnippetReference_IsStale(t *testing.T) {
	bound := time.Now()
	ref := &SnippetReference{BoundVersion: bound}

	assert.False(t, ref.IsStale(bound), "same version is not stale")
	assert.False(t, ref.IsStale(bound.Add(-time.Second)), "older snippet is not stale")
	assert.True(t, ref.IsStale(bound.Add(time.Second)), "newer snippet means stale reference")
}

func TestSnippetReference_ToggleLock(t *testing.T) {
	ref := &SnippetReference{}

	assert.True(t, ref.ToggleLock())
	assert.True(t, ref.Locked)

	assert.False(t, ref.ToggleLock())
	assert.False(t, ref.Locked)
}

func TestSnippetReference_Clone_DeepCopiesCustomizations(t *testing.T) {
	ref := &SnippetReference{
		TemplateID: "tpl-1",
		SnippetID:  "snip-1",
		Customizations: map[string]any{
			"color": "blue",
			"style": map[string]any{"margin": "4px"},
		},
	}

	c := ref.Clone()
	require.Equal(t, ref.Customizations, c.Customizations)

	c.Customizations["color"] = "red"
	c.Customizations["style"].(map[string]any)["margin"] = "8px"

	assert.Equal(t, "blue", ref.Customizations["color"])
	assert.Equal(t, "4px", ref.Customizations["style"].(map[string]any)["margin"])
}
