package sqlite

import (
	"context"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/snipsyncapp/snipsync-server/internal/domain"
	"github.com/snipsyncapp/snipsync-server/internal/store"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"), slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func newSnippet(id, name string) *domain.Snippet {
	s := &domain.Snippet{
		ID:        id,
		Name:      name,
		Category:  domain.CategoryContent,
		Tags:      []string{"greeting"},
		BlockType: "text",
		Content: domain.Block{
			Type:    "text",
			Content: map[string]any{"html": "<p>Hi</p>"},
		},
	}
	s.InitTimestamps()
	return s
}

func TestSnippetRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	snippet := newSnippet("snip-1", "Greeting")
	snippet.IsFavorite = true
	snippet.UsageCount = 3
	require.NoError(t, s.CreateSnippet(ctx, snippet))

	got, err := s.GetSnippet(ctx, "snip-1")
	require.NoError(t, err)
	assert.Equal(t, snippet.Name, got.Name)
	assert.Equal(t, snippet.Category, got.Category)
	assert.Equal(t, snippet.Tags, got.Tags)
	assert.Equal(t, snippet.Content, got.Content)
	assert.Equal(t, 3, got.UsageCount)
	assert.True(t, got.IsFavorite)
	assert.False(t, got.Builtin)
	assert.True(t, got.UpdatedAt.Equal(snippet.UpdatedAt))
	assert.Nil(t, got.DeletedAt)

	// Duplicate id.
	assert.ErrorIs(t, s.CreateSnippet(ctx, snippet), store.ErrSnippetExists)
}

func TestUpdateSnippet(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	snippet := newSnippet("snip-1", "Greeting")
	require.NoError(t, s.CreateSnippet(ctx, snippet))

	snippet.Name = "Renamed"
	snippet.Touch()
	require.NoError(t, s.UpdateSnippet(ctx, snippet))

	got, err := s.GetSnippet(ctx, "snip-1")
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.Name)
	assert.True(t, got.UpdatedAt.After(got.CreatedAt))

	assert.ErrorIs(t, s.UpdateSnippet(ctx, newSnippet("snip-unknown", "x")), store.ErrSnippetNotFound)
}

func TestDeleteSnippet_Tombstone(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.CreateSnippet(ctx, newSnippet("snip-1", "Greeting")))
	require.NoError(t, s.PutReference(ctx, &domain.SnippetReference{
		TemplateID:   "tpl-1",
		SnippetID:    "snip-1",
		BoundVersion: time.Now(),
	}))

	require.NoError(t, s.DeleteSnippet(ctx, "snip-1"))

	// The row survives as a tombstone.
	got, err := s.GetSnippet(ctx, "snip-1")
	require.NoError(t, err)
	assert.True(t, got.IsDeleted())

	// Listings skip it.
	list, err := s.ListSnippets(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)

	// References to the dead snippet survive.
	templates, err := s.TemplatesUsing(ctx, "snip-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"tpl-1"}, templates)

	// Idempotent.
	require.NoError(t, s.DeleteSnippet(ctx, "snip-1"))
	assert.ErrorIs(t, s.DeleteSnippet(ctx, "snip-unknown"), store.ErrSnippetNotFound)
}

func TestListSnippets_OrderedByCreation(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	base := time.Now()
	for i, id := range []string{"snip-c", "snip-a", "snip-b"} {
		snippet := newSnippet(id, id)
		snippet.CreatedAt = base.Add(time.Duration(i) * time.Second)
		require.NoError(t, s.CreateSnippet(ctx, snippet))
	}

	list, err := s.ListSnippets(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "snip-c", list[0].ID)
	assert.Equal(t, "snip-a", list[1].ID)
	assert.Equal(t, "snip-b", list[2].ID)
}

func TestTimestampOrder_WholeVsFractionalSeconds(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	// A whole-second timestamp must sort before a fractional one in the
	// same second; the stored text form has to keep that order.
	whole := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	frac := whole.Add(500 * time.Millisecond)

	early := newSnippet("snip-early", "early")
	early.CreatedAt = whole
	late := newSnippet("snip-late", "late")
	late.CreatedAt = frac
	require.NoError(t, s.CreateSnippet(ctx, late))
	require.NoError(t, s.CreateSnippet(ctx, early))

	list, err := s.ListSnippets(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "snip-early", list[0].ID)
	assert.Equal(t, "snip-late", list[1].ID)

	for id, ts := range map[string]time.Time{"chg-early": whole, "chg-late": frac} {
		require.NoError(t, s.CreateChange(ctx, &domain.UniversalChange{
			ID:        id,
			Type:      domain.ChangeTypeSnippet,
			TargetID:  "snip-early",
			Timestamp: ts,
			Status:    domain.ChangePending,
		}))
	}

	changes, err := s.ListChanges(ctx)
	require.NoError(t, err)
	require.Len(t, changes, 2)
	assert.Equal(t, "chg-late", changes[0].ID)
	assert.Equal(t, "chg-early", changes[1].ID)
}

func TestReferenceUpsert(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	bound := time.Now()
	require.NoError(t, s.PutReference(ctx, &domain.SnippetReference{
		TemplateID:   "tpl-1",
		TemplateName: "Landing Page",
		SnippetID:    "snip-1",
		BoundVersion: bound,
	}))

	first, err := s.GetReference(ctx, "tpl-1", "snip-1")
	require.NoError(t, err)
	assert.Equal(t, "Landing Page", first.TemplateName)
	assert.False(t, first.Locked)

	// Upsert replaces everything except the original bind time.
	require.NoError(t, s.PutReference(ctx, &domain.SnippetReference{
		TemplateID:     "tpl-1",
		TemplateName:   "Landing Page v2",
		SnippetID:      "snip-1",
		Customizations: map[string]any{"color": "blue"},
		Locked:         true,
		BoundVersion:   bound.Add(time.Minute),
		CreatedAt:      time.Now().Add(time.Hour),
		UpdatedAt:      time.Now().Add(time.Hour),
	}))

	second, err := s.GetReference(ctx, "tpl-1", "snip-1")
	require.NoError(t, err)
	assert.Equal(t, "Landing Page v2", second.TemplateName)
	assert.True(t, second.Locked)
	assert.Equal(t, "blue", second.Customizations["color"])
	assert.True(t, second.CreatedAt.Equal(first.CreatedAt))
	assert.True(t, second.BoundVersion.After(first.BoundVersion))

	refs, err := s.ListTemplateReferences(ctx, "tpl-1")
	require.NoError(t, err)
	assert.Len(t, refs, 1)
}

func TestTemplatesUsing(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	for _, tpl := range []string{"tpl-c", "tpl-a", "tpl-b"} {
		require.NoError(t, s.PutReference(ctx, &domain.SnippetReference{
			TemplateID:   tpl,
			SnippetID:    "snip-1",
			BoundVersion: time.Now(),
		}))
	}

	templates, err := s.TemplatesUsing(ctx, "snip-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"tpl-a", "tpl-b", "tpl-c"}, templates)

	none, err := s.TemplatesUsing(ctx, "snip-unused")
	require.NoError(t, err)
	assert.Empty(t, none)

	_, err = s.GetReference(ctx, "tpl-x", "snip-1")
	assert.ErrorIs(t, err, store.ErrReferenceNotFound)
}

func TestChangeRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	c := &domain.UniversalChange{
		ID:                "chg-1",
		Type:              domain.ChangeTypeSnippet,
		TargetID:          "snip-1",
		Changes:           domain.Patch{"name": "New Name", "tags": []any{"a", "b"}},
		AffectedTemplates: []string{"tpl-1", "tpl-2"},
		Timestamp:         time.Now(),
		Status:            domain.ChangePending,
	}
	require.NoError(t, s.CreateChange(ctx, c))
	assert.ErrorIs(t, s.CreateChange(ctx, c), store.ErrChangeExists)

	got, err := s.GetChange(ctx, "chg-1")
	require.NoError(t, err)
	assert.Equal(t, domain.ChangeTypeSnippet, got.Type)
	assert.Equal(t, "snip-1", got.TargetID)
	assert.Equal(t, "New Name", got.Changes["name"])
	assert.Equal(t, []string{"tpl-1", "tpl-2"}, got.AffectedTemplates)
	assert.Equal(t, domain.ChangePending, got.Status)
	assert.Empty(t, got.Outcomes)

	got.Status = domain.ChangeApplied
	got.Outcomes = []domain.TemplateOutcome{
		{TemplateID: "tpl-1", Success: true},
		{TemplateID: "tpl-2", Success: false, Reason: "template missing"},
	}
	require.NoError(t, s.UpdateChange(ctx, got))

	applied, err := s.GetChange(ctx, "chg-1")
	require.NoError(t, err)
	assert.Equal(t, domain.ChangeApplied, applied.Status)
	require.Len(t, applied.Outcomes, 2)
	assert.Equal(t, "template missing", applied.Outcomes[1].Reason)

	_, err = s.GetChange(ctx, "chg-unknown")
	assert.ErrorIs(t, err, store.ErrChangeNotFound)
	assert.ErrorIs(t, s.UpdateChange(ctx, &domain.UniversalChange{ID: "chg-unknown"}), store.ErrChangeNotFound)
}

func TestListChanges_NewestFirst(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	base := time.Now()
	for i, id := range []string{"chg-1", "chg-2", "chg-3"} {
		require.NoError(t, s.CreateChange(ctx, &domain.UniversalChange{
			ID:        id,
			Type:      domain.ChangeTypeSnippet,
			TargetID:  "snip-1",
			Timestamp: base.Add(time.Duration(i) * time.Second),
			Status:    domain.ChangePending,
		}))
	}

	list, err := s.ListChanges(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "chg-3", list[0].ID)
	assert.Equal(t, "chg-1", list[2].ID)
}

func TestReopenPersists(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	path := filepath.Join(dir, "test.db")
	logger := slog.New(slog.DiscardHandler)

	s, err := Open(path, logger)
	require.NoError(t, err)
	require.NoError(t, s.CreateSnippet(ctx, newSnippet("snip-1", "Greeting")))
	require.NoError(t, s.Close())

	reopened, err := Open(path, logger)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.GetSnippet(ctx, "snip-1")
	require.NoError(t, err)
	assert.Equal(t, "Greeting", got.Name)
}
