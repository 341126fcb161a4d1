package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/snipsyncapp/snipsync-server/internal/domain"
	domainerrors "github.com/snipsyncapp/snipsync-server/internal/errors"
	"github.com/snipsyncapp/snipsync-server/internal/event"
)

func TestCreateSnippet(t *testing.T) {
	env := newTestEnv("ignore")
	ctx := context.Background()

	snippet, err := env.snippets.Create(ctx, textBlock("<p>Hi</p>"), "Greeting", "")
	require.NoError(t, err)

	assert.NotEmpty(t, snippet.ID)
	assert.Equal(t, "Greeting", snippet.Name)
	assert.Equal(t, "text", snippet.BlockType)
	assert.Equal(t, 0, snippet.UsageCount)
	// Empty description defaults from the block type.
	assert.Equal(t, "Saved text block", snippet.Description)
	assert.False(t, snippet.CreatedAt.IsZero())
}

func TestCreateSnippet_DefaultName(t *testing.T) {
	env := newTestEnv("ignore")

	snippet, err := env.snippets.Create(context.Background(), textBlock("<p>Hi</p>"), "", "")
	require.NoError(t, err)
	assert.Equal(t, "text snippet", snippet.Name)
}

func TestCreateSnippet_ValidationError(t *testing.T) {
	env := newTestEnv("ignore")

	// A block without a type has nothing to derive defaults from.
	_, err := env.snippets.Create(context.Background(), domain.Block{}, "", "")
	require.Error(t, err)

	var domainErr *domainerrors.Error
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, domainerrors.CodeValidation, domainErr.Code)
}

func TestCreateSnippet_RoundTrip(t *testing.T) {
	env := newTestEnv("ignore")
	ctx := context.Background()

	block := textBlock("<p>Hi</p>")
	created, err := env.snippets.Create(ctx, block, "Greeting", "")
	require.NoError(t, err)

	// Mutating the caller's block after the fact must not reach the store.
	block.Content["html"] = "<p>Mutated</p>"

	got, err := env.snippets.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "<p>Hi</p>", got.Content.Content["html"])
	assert.Equal(t, "text", got.Content.Type)
}

func TestMonotonicUsage(t *testing.T) {
	env := newTestEnv("ignore")
	ctx := context.Background()

	snippet, err := env.snippets.Create(ctx, textBlock("<p>Hi</p>"), "Greeting", "")
	require.NoError(t, err)

	const n = 5
	var last *domain.Snippet
	for range n {
		last, err = env.snippets.IncrementUsage(ctx, snippet.ID)
		require.NoError(t, err)
	}
	assert.Equal(t, n, last.UsageCount)

	got, err := env.snippets.Get(ctx, snippet.ID)
	require.NoError(t, err)
	assert.Equal(t, n, got.UsageCount)
	assert.True(t, got.UpdatedAt.After(snippet.UpdatedAt))
}

func TestRename(t *testing.T) {
	env := newTestEnv("ignore")
	ctx := context.Background()

	snippet, err := env.snippets.Create(ctx, textBlock("<p>Hi</p>"), "Greeting", "")
	require.NoError(t, err)

	renamed, err := env.snippets.Rename(ctx, snippet.ID, "Welcome")
	require.NoError(t, err)
	assert.Equal(t, "Welcome", renamed.Name)
	assert.True(t, renamed.UpdatedAt.After(snippet.UpdatedAt))
}

func TestRename_NotFound(t *testing.T) {
	env := newTestEnv("ignore")

	_, err := env.snippets.Rename(context.Background(), "snip-unknown", "Welcome")
	assert.ErrorIs(t, err, domainerrors.ErrNotFound)
}

func TestDelete_TombstoneAndDanglingReference(t *testing.T) {
	env := newTestEnv("ignore")
	ctx := context.Background()

	snippet, err := env.snippets.Create(ctx, textBlock("<p>Hi</p>"), "Greeting", "")
	require.NoError(t, err)
	_, err = env.registry.Register(ctx, "tpl-1", "Landing Page", snippet.ID, nil)
	require.NoError(t, err)

	require.NoError(t, env.snippets.Delete(ctx, snippet.ID))

	// Gone from listings.
	list, err := env.snippets.List(ctx)
	require.NoError(t, err)
	for _, s := range list {
		assert.NotEqual(t, snippet.ID, s.ID)
	}

	// Resolvable as deleted, distinct from never-existed.
	_, err = env.snippets.Get(ctx, snippet.ID)
	assert.ErrorIs(t, err, domainerrors.ErrGone)
	_, err = env.snippets.Get(ctx, "snip-never-existed")
	assert.ErrorIs(t, err, domainerrors.ErrNotFound)

	// The dangling reference survives.
	templates, err := env.registry.TemplatesUsing(ctx, snippet.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"tpl-1"}, templates)

	// Deleting again reports not-found-for-mutation via the Gone marker.
	err = env.snippets.Delete(ctx, snippet.ID)
	assert.ErrorIs(t, err, domainerrors.ErrGone)
}

func TestListenerFanOut(t *testing.T) {
	env := newTestEnv("ignore")
	ctx := context.Background()

	snippet, err := env.snippets.Create(ctx, textBlock("<p>Hi</p>"), "Greeting", "")
	require.NoError(t, err)

	var order []string
	env.snippets.Subscribe(func(evt event.Event) {
		order = append(order, "first:"+string(evt.Type))
	})
	env.snippets.Subscribe(func(evt event.Event) {
		order = append(order, "second:"+string(evt.Type))
	})

	// Both listeners run exactly once, in registration order, before the
	// mutating call returns.
	_, err = env.snippets.Rename(ctx, snippet.ID, "X")
	require.NoError(t, err)

	assert.Equal(t, []string{
		"first:" + string(event.TypeSnippetRenamed),
		"second:" + string(event.TypeSnippetRenamed),
	}, order)
}

func TestListenerIsolation(t *testing.T) {
	env := newTestEnv("ignore")
	ctx := context.Background()

	secondCalled := false
	env.snippets.Subscribe(func(event.Event) {
		panic("listener fault")
	})
	env.snippets.Subscribe(func(event.Event) {
		secondCalled = true
	})

	snippet, err := env.snippets.Create(ctx, textBlock("<p>Hi</p>"), "Greeting", "")
	require.NoError(t, err)
	assert.NotEmpty(t, snippet.ID)
	assert.True(t, secondCalled, "second listener must run despite the first panicking")
}

func TestUnsubscribe(t *testing.T) {
	env := newTestEnv("ignore")
	ctx := context.Background()

	calls := 0
	sub := env.snippets.Subscribe(func(event.Event) { calls++ })

	_, err := env.snippets.Create(ctx, textBlock("<p>Hi</p>"), "Greeting", "")
	require.NoError(t, err)
	assert.Equal(t, 1, calls)

	env.snippets.Unsubscribe(sub)
	_, err = env.snippets.Create(ctx, textBlock("<p>Bye</p>"), "Farewell", "")
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestBuiltins(t *testing.T) {
	env := newTestEnv("ignore")
	ctx := context.Background()

	require.NoError(t, env.snippets.EnsureBuiltins(ctx))
	// Seeding twice is a no-op.
	require.NoError(t, env.snippets.EnsureBuiltins(ctx))

	user, err := env.snippets.Create(ctx, textBlock("<p>Hi</p>"), "Greeting", "")
	require.NoError(t, err)

	list, err := env.snippets.List(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, list)

	// Builtins sort ahead of user snippets.
	sawUser := false
	for _, s := range list {
		if s.ID == user.ID {
			sawUser = true
		}
		if s.Builtin {
			assert.False(t, sawUser, "builtin %s listed after a user snippet", s.ID)
		}
	}
	assert.True(t, sawUser)

	// Builtins resist mutation and deletion.
	builtinID := list[0].ID
	_, err = env.snippets.Rename(ctx, builtinID, "X")
	assert.ErrorIs(t, err, domainerrors.ErrConflict)
	err = env.snippets.Delete(ctx, builtinID)
	assert.ErrorIs(t, err, domainerrors.ErrConflict)

	// Usage tracking and favorites still work on builtins.
	bumped, err := env.snippets.IncrementUsage(ctx, builtinID)
	require.NoError(t, err)
	assert.Equal(t, 1, bumped.UsageCount)
	fav, err := env.snippets.SetFavorite(ctx, builtinID, true)
	require.NoError(t, err)
	assert.True(t, fav.IsFavorite)
}

func TestUpdateTags_Normalized(t *testing.T) {
	env := newTestEnv("ignore")
	ctx := context.Background()

	snippet, err := env.snippets.Create(ctx, textBlock("<p>Hi</p>"), "Greeting", "")
	require.NoError(t, err)

	updated, err := env.snippets.UpdateTags(ctx, snippet.ID, []string{"Héro Banner", "hero-banner", "", "CTA"})
	require.NoError(t, err)
	assert.Equal(t, []string{"cta", "hero-banner"}, updated.Tags)
}

func TestSetCategory(t *testing.T) {
	env := newTestEnv("ignore")
	ctx := context.Background()

	snippet, err := env.snippets.Create(ctx, textBlock("<p>Hi</p>"), "Greeting", "")
	require.NoError(t, err)
	assert.Equal(t, domain.CategoryCustom, snippet.Category)

	updated, err := env.snippets.SetCategory(ctx, snippet.ID, domain.CategoryLayout)
	require.NoError(t, err)
	assert.Equal(t, domain.CategoryLayout, updated.Category)

	_, err = env.snippets.SetCategory(ctx, snippet.ID, domain.Category("banner"))
	require.Error(t, err)
	assert.ErrorIs(t, err, domainerrors.ErrValidation)
}

func TestUpdateContent(t *testing.T) {
	env := newTestEnv("ignore")
	ctx := context.Background()

	snippet, err := env.snippets.Create(ctx, textBlock("<p>Hi</p>"), "Greeting", "")
	require.NoError(t, err)

	next := domain.Block{Type: "button", Content: map[string]any{"label": "Go"}}
	updated, err := env.snippets.UpdateContent(ctx, snippet.ID, next)
	require.NoError(t, err)
	assert.Equal(t, "button", updated.BlockType)
	assert.Equal(t, "Go", updated.Content.Content["label"])
}
