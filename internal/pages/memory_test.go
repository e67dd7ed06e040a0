package pages

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pagetrail/pagetrail/internal/adapter"
	"github.com/pagetrail/pagetrail/internal/domain"
)

func buildTree(t *testing.T) (*MemoryRepository, *domain.Page, *domain.Page) {
	t.Helper()
	repo := NewMemoryRepository(adapter.NewClock())

	parent := repo.Add(domain.Page{
		Names: map[domain.LanguageID]string{domain.DefaultLanguage: "Products"},
	})
	child := repo.Add(domain.Page{
		ParentID: parent.ID,
		Names: map[domain.LanguageID]string{
			domain.DefaultLanguage: "Widgets",
			7:                      "Geräte",
		},
	})
	return repo, parent, child
}

func TestMemoryRepositoryPath(t *testing.T) {
	ctx := context.Background()
	repo, parent, child := buildTree(t)

	path, err := repo.Path(ctx, parent, domain.DefaultLanguage)
	require.NoError(t, err)
	assert.Equal(t, "/products", path)

	path, err = repo.Path(ctx, child, domain.DefaultLanguage)
	require.NoError(t, err)
	assert.Equal(t, "/products/widgets", path)

	// Localized leaf name, default-language fallback for the parent
	path, err = repo.Path(ctx, child, 7)
	require.NoError(t, err)
	assert.Equal(t, "/products/gerate", path)
}

func TestMemoryRepositoryGetByPath(t *testing.T) {
	ctx := context.Background()
	repo, _, child := buildTree(t)

	page, err := repo.GetByPath(ctx, "/products/widgets", nil)
	require.NoError(t, err)
	require.NotNil(t, page)
	assert.Equal(t, child.ID, page.ID)

	language := domain.LanguageID(7)
	page, err = repo.GetByPath(ctx, "/products/gerate", &language)
	require.NoError(t, err)
	require.NotNil(t, page)
	assert.Equal(t, child.ID, page.ID)

	page, err = repo.GetByPath(ctx, "/nowhere", nil)
	require.NoError(t, err)
	assert.Nil(t, page)
}

func TestMemoryRepositoryMoveFiresHook(t *testing.T) {
	ctx := context.Background()
	repo, _, child := buildTree(t)
	other := repo.Add(domain.Page{
		Names: map[domain.LanguageID]string{domain.DefaultLanguage: "Archive"},
	})

	var got Moved
	repo.Hooks().OnMoved(func(_ context.Context, event Moved) {
		got = event
	})

	require.NoError(t, repo.Move(ctx, child.ID, other.ID))
	require.NotNil(t, got.Page)
	assert.Equal(t, child.ID, got.Page.ID)
	assert.Equal(t, "/products", got.PreviousParentPath)
	assert.Equal(t, "Widgets", got.PreviousName)

	path, err := repo.Path(ctx, got.Page, domain.DefaultLanguage)
	require.NoError(t, err)
	assert.Equal(t, "/archive/widgets", path)
}

func TestMemoryRepositoryRenameFiresHook(t *testing.T) {
	ctx := context.Background()
	repo, _, child := buildTree(t)

	var got Renamed
	repo.Hooks().OnRenamed(func(_ context.Context, event Renamed) {
		got = event
	})

	require.NoError(t, repo.Rename(ctx, child.ID, domain.DefaultLanguage, "Gadgets"))
	require.NotNil(t, got.Page)
	assert.Equal(t, "Widgets", got.PreviousName)
	assert.Equal(t, "Gadgets", got.Page.Name(domain.DefaultLanguage))
}

func TestMemoryRepositoryDelete(t *testing.T) {
	ctx := context.Background()
	repo, _, child := buildTree(t)

	var got Deleted
	repo.Hooks().OnDeleted(func(_ context.Context, event Deleted) {
		got = event
	})

	require.NoError(t, repo.Delete(ctx, child.ID))
	require.NotNil(t, got.Page)
	assert.Equal(t, child.ID, got.Page.ID)

	page, err := repo.GetByID(ctx, child.ID)
	require.NoError(t, err)
	assert.Nil(t, page)

	assert.ErrorIs(t, repo.Delete(ctx, child.ID), domain.ErrPageNotFound)
}
