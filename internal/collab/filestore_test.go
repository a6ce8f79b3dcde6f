package collab

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dossier/internal/types"
)

func TestFileSourceStoreCRUD(t *testing.T) {
	store := NewFileSourceStore(t.TempDir())
	ctx := context.Background()

	src := types.StoredSource{
		ID:         "s1",
		NotebookID: "costco",
		Title:      "Membership fee increase",
		Content:    "The annual fee rises by five dollars.",
		Status:     "processing",
	}
	require.NoError(t, store.Create(ctx, src))

	got, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "Membership fee increase", got.Title)
	assert.False(t, got.CreatedAt.IsZero(), "create stamps the timestamp")

	got.Status = "completed"
	require.NoError(t, store.Update(ctx, got))
	got, err = store.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "completed", got.Status)

	require.NoError(t, store.Delete(ctx, "s1"))
	_, err = store.Get(ctx, "s1")
	assert.Error(t, err)
}

func TestFileSourceStoreValidation(t *testing.T) {
	store := NewFileSourceStore(t.TempDir())
	ctx := context.Background()

	assert.Error(t, store.Create(ctx, types.StoredSource{ID: "no-notebook"}))
	assert.Error(t, store.Create(ctx, types.StoredSource{NotebookID: "no-id"}))
	assert.Error(t, store.Update(ctx, types.StoredSource{ID: "ghost", NotebookID: "nb"}))
	assert.Error(t, store.Delete(ctx, "ghost"))
}

func TestFileSourceStoreListNewestFirst(t *testing.T) {
	store := NewFileSourceStore(t.TempDir())
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, store.Create(ctx, types.StoredSource{
		ID: "old", NotebookID: "nb", CreatedAt: now.Add(-2 * time.Hour),
	}))
	require.NoError(t, store.Create(ctx, types.StoredSource{
		ID: "new", NotebookID: "nb", CreatedAt: now,
	}))
	require.NoError(t, store.Create(ctx, types.StoredSource{
		ID: "other", NotebookID: "other-nb", CreatedAt: now.Add(-time.Hour),
	}))

	list, err := store.List(ctx, "nb")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "new", list[0].ID)
	assert.Equal(t, "old", list[1].ID)

	all, err := store.ListAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)
	assert.Equal(t, "new", all[0].ID)

	empty, err := store.List(ctx, "missing")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestFileSourceStoreSetTags(t *testing.T) {
	store := NewFileSourceStore(t.TempDir())
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, types.StoredSource{ID: "s1", NotebookID: "nb"}))
	require.NoError(t, store.SetTags(ctx, "s1", []string{"pricing", "membership"}))

	got, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, []string{"pricing", "membership"}, got.Tags)
}

func TestDirNotebookStoreList(t *testing.T) {
	dataDir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dataDir, "notebooks", "costco"), 0755))
	require.NoError(t, os.MkdirAll(filepath.Join(dataDir, "notebooks", "fusion"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dataDir, "notebooks", "stray.txt"), nil, 0644))

	store := NewDirNotebookStore(dataDir)
	ids, err := store.List(context.Background())
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"costco", "fusion"}, ids)

	empty := NewDirNotebookStore(t.TempDir())
	ids, err = empty.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, ids)
}
