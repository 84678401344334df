package search

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Colorex-team/Colorex-System/internal/domain"
	domainerrors "github.com/Colorex-team/Colorex-System/internal/errors"
)

var base = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// setupTestIndex creates an in-memory index for testing.
func setupTestIndex(t *testing.T) *Index {
	t.Helper()

	index, err := Open(Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = index.Close() })
	return index
}

func seedPosts(t *testing.T, index *Index) {
	t.Helper()
	docs := []*PostDocument{
		{ID: "post-1", Title: "Marble bench restoration", OwnerUserID: "u1", CreatedAt: base.Add(1 * time.Minute)},
		{ID: "post-2", Title: "Marble statues", OwnerUserID: "u2", CreatedAt: base.Add(2 * time.Minute)},
		{ID: "post-3", Title: "Garden bench", OwnerUserID: "u1", CreatedAt: base.Add(3 * time.Minute)},
		{ID: "post-4", Title: "MARBLE floors", OwnerUserID: "u1", CreatedAt: base.Add(4 * time.Minute)},
	}
	require.NoError(t, index.IndexPosts(docs))
}

func TestOpen_InMemory(t *testing.T) {
	index := setupTestIndex(t)

	count, err := index.DocumentCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(0), count)
}

func TestOpen_OnDiskReopen(t *testing.T) {
	dir := t.TempDir()

	index, err := Open(Options{DataPath: dir})
	require.NoError(t, err)
	require.NoError(t, index.IndexPost(&PostDocument{ID: "post-1", Title: "Hello", CreatedAt: base}))
	require.NoError(t, index.Close())

	version, err := os.ReadFile(filepath.Join(dir, "posts.version"))
	require.NoError(t, err)
	assert.Equal(t, mappingVersion, string(version))

	index, err = Open(Options{DataPath: dir})
	require.NoError(t, err)
	t.Cleanup(func() { _ = index.Close() })

	count, err := index.DocumentCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), count)
}

func TestOpen_StaleMappingVersionRecreates(t *testing.T) {
	dir := t.TempDir()

	index, err := Open(Options{DataPath: dir})
	require.NoError(t, err)
	require.NoError(t, index.IndexPost(&PostDocument{ID: "post-1", Title: "Hello", CreatedAt: base}))
	require.NoError(t, index.Close())

	require.NoError(t, os.WriteFile(filepath.Join(dir, "posts.version"), []byte("0"), 0o644))

	index, err = Open(Options{DataPath: dir})
	require.NoError(t, err)
	t.Cleanup(func() { _ = index.Close() })

	count, err := index.DocumentCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(0), count)
}

func TestSearch_PrefixNewestFirst(t *testing.T) {
	index := setupTestIndex(t)
	seedPosts(t, index)
	ctx := context.Background()

	res, err := index.Search(ctx, Request{Text: "mar", Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, []string{"post-4", "post-2", "post-1"}, res.IDs())

	res, err = index.Search(ctx, Request{Text: "Marble Ben", Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, []string{"post-1"}, res.IDs())

	res, err = index.Search(ctx, Request{Text: "zebra", Limit: 10})
	require.NoError(t, err)
	assert.Empty(t, res.IDs())
}

func TestSearch_OwnerFilter(t *testing.T) {
	index := setupTestIndex(t)
	seedPosts(t, index)

	res, err := index.Search(context.Background(), Request{Text: "marble", OwnerUserID: "u1", Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, []string{"post-4", "post-1"}, res.IDs())
}

func TestSearch_AfterPosition(t *testing.T) {
	index := setupTestIndex(t)
	seedPosts(t, index)
	ctx := context.Background()

	var got []string
	var after *Position
	for {
		res, err := index.Search(ctx, Request{Text: "marble", After: after, Limit: 2})
		require.NoError(t, err)
		if len(res.Hits) == 0 {
			break
		}
		got = append(got, res.IDs()...)
		last := res.Hits[len(res.Hits)-1]
		after = &last
	}
	assert.Equal(t, []string{"post-4", "post-2", "post-1"}, got)
}

func TestSearch_HitPositions(t *testing.T) {
	index := setupTestIndex(t)
	seedPosts(t, index)

	res, err := index.Search(context.Background(), Request{Text: "garden", Limit: 10})
	require.NoError(t, err)
	require.Len(t, res.Hits, 1)
	assert.Equal(t, "post-3", res.Hits[0].ID)
	assert.True(t, base.Add(3*time.Minute).Equal(res.Hits[0].CreatedAt))
}

func TestSearch_OffsetAndCount(t *testing.T) {
	index := setupTestIndex(t)
	seedPosts(t, index)
	ctx := context.Background()

	res, err := index.Search(ctx, Request{Text: "marble", Offset: 1, Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, []string{"post-2"}, res.IDs())

	n, err := index.Count(ctx, "marble", "")
	require.NoError(t, err)
	assert.Equal(t, uint64(3), n)

	_, err = index.Search(ctx, Request{Text: "marble", Offset: 1, After: &Position{ID: "x"}, Limit: 1})
	assert.ErrorIs(t, err, domainerrors.ErrValidation)
}

func TestSearch_EmptyText(t *testing.T) {
	index := setupTestIndex(t)

	_, err := index.Search(context.Background(), Request{Text: "  !! ", Limit: 10})
	assert.ErrorIs(t, err, domainerrors.ErrValidation)
}

func TestDeleteAndRebuild(t *testing.T) {
	index := setupTestIndex(t)
	seedPosts(t, index)
	ctx := context.Background()

	require.NoError(t, index.DeletePost("post-2"))
	require.NoError(t, index.DeletePost("post-unknown"))

	res, err := index.Search(ctx, Request{Text: "marble", Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, []string{"post-4", "post-1"}, res.IDs())

	require.NoError(t, index.Rebuild())
	count, err := index.DocumentCount()
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestPostDocumentFrom(t *testing.T) {
	post := &domain.ContentItem{ID: "p", Kind: domain.KindPost, Title: "T", OwnerUserID: "u", CreatedAt: base}
	doc := PostDocumentFrom(post)
	require.NotNil(t, doc)
	assert.Equal(t, "T", doc.Title)

	assert.Nil(t, PostDocumentFrom(&domain.ContentItem{ID: "c", Kind: domain.KindComment}))
	assert.Nil(t, PostDocumentFrom(nil))
}

func TestTokenize(t *testing.T) {
	assert.Equal(t, []string{"don't", "stop", "2024"}, tokenize("Don't  STOP, 2024!"))
	assert.Empty(t, tokenize(" - "))
}
