package tagindex

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Colorex-team/Colorex-System/internal/domain"
	domainerrors "github.com/Colorex-team/Colorex-System/internal/errors"
	"github.com/Colorex-team/Colorex-System/internal/store"
	"github.com/Colorex-team/Colorex-System/internal/store/storetest"
)

func setupMaintainer(t *testing.T) (*Maintainer, *store.Store) {
	t.Helper()
	s := storetest.New(t, store.WithMaxTxnRetries(100))
	return New(s, nil), s
}

func postCountOf(t *testing.T, m *Maintainer, tagID string) int64 {
	t.Helper()
	tag, err := m.Get(context.Background(), tagID)
	require.NoError(t, err)
	return tag.PostCount
}

// writePost applies a post's tag change and field update in one batch,
// the way the content service does.
func writePost(t *testing.T, m *Maintainer, s *store.Store, postID string, oldTags, newTags []string) {
	t.Helper()
	b := s.Batch()
	_, err := m.Reconcile(b, oldTags, newTags)
	require.NoError(t, err)
	require.NoError(t, b.Set(domain.CollectionPosts, postID, store.Document{domain.FieldTagIDs: newTags}))
	require.NoError(t, b.Commit(context.Background()))
}

func TestDiff(t *testing.T) {
	tests := []struct {
		name        string
		old, new    []string
		wantAdded   []string
		wantRemoved []string
	}{
		{"create", nil, []string{"x", "y"}, []string{"x", "y"}, nil},
		{"edit", []string{"x", "y"}, []string{"y", "z"}, []string{"z"}, []string{"x"}},
		{"delete", []string{"y", "z"}, nil, nil, []string{"y", "z"}},
		{"unchanged", []string{"a"}, []string{"a"}, nil, nil},
		{"duplicates ignored", []string{"a", "a"}, []string{"b", "b", ""}, []string{"b"}, []string{"a"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Diff(tt.old, tt.new)
			assert.Equal(t, tt.wantAdded, d.Added)
			assert.Equal(t, tt.wantRemoved, d.Removed)
		})
	}

	assert.True(t, Diff([]string{"a"}, []string{"a"}).IsEmpty())
}

func TestReconcile_Scenario(t *testing.T) {
	m, s := setupMaintainer(t)
	ctx := context.Background()

	x, err := m.CreateTag(ctx, "x")
	require.NoError(t, err)
	y, err := m.CreateTag(ctx, "y")
	require.NoError(t, err)
	z, err := m.CreateTag(ctx, "z")
	require.NoError(t, err)

	// Create A with [x, y].
	writePost(t, m, s, "A", nil, []string{x.ID, y.ID})
	assert.Equal(t, int64(1), postCountOf(t, m, x.ID))
	assert.Equal(t, int64(1), postCountOf(t, m, y.ID))

	// Edit A to [y, z].
	writePost(t, m, s, "A", []string{x.ID, y.ID}, []string{y.ID, z.ID})
	assert.Equal(t, int64(0), postCountOf(t, m, x.ID))
	assert.Equal(t, int64(1), postCountOf(t, m, y.ID))
	assert.Equal(t, int64(1), postCountOf(t, m, z.ID))

	// Delete A.
	b := s.Batch()
	_, err = m.Reconcile(b, []string{y.ID, z.ID}, nil)
	require.NoError(t, err)
	require.NoError(t, b.Delete(domain.CollectionPosts, "A"))
	require.NoError(t, b.Commit(ctx))

	assert.Equal(t, int64(0), postCountOf(t, m, y.ID))
	assert.Equal(t, int64(0), postCountOf(t, m, z.ID))
}

func TestReconcile_EditSequenceSums(t *testing.T) {
	m, s := setupMaintainer(t)
	ctx := context.Background()

	a, err := m.CreateTag(ctx, "a")
	require.NoError(t, err)
	bTag, err := m.CreateTag(ctx, "b")
	require.NoError(t, err)

	edits := [][]string{
		{a.ID},
		{a.ID, bTag.ID},
		{bTag.ID},
		{},
		{a.ID, bTag.ID},
		{a.ID},
	}

	var prev []string
	for _, next := range edits {
		writePost(t, m, s, "p", prev, next)
		prev = next
	}

	// The final set references a only.
	assert.Equal(t, int64(1), postCountOf(t, m, a.ID))
	assert.Equal(t, int64(0), postCountOf(t, m, bTag.ID))
}

func TestReconcile_MissingTagAbortsBatch(t *testing.T) {
	m, s := setupMaintainer(t)
	ctx := context.Background()

	x, err := m.CreateTag(ctx, "x")
	require.NoError(t, err)

	b := s.Batch()
	_, err = m.Reconcile(b, nil, []string{x.ID, "tag-missing"})
	require.NoError(t, err)
	require.NoError(t, b.Set(domain.CollectionPosts, "A", store.Document{}))

	err = b.Commit(ctx)
	assert.ErrorIs(t, err, domainerrors.ErrNotFound)
	assert.Equal(t, int64(0), postCountOf(t, m, x.ID), "partial reconciliation must not be visible")

	exists, err := s.Collection(domain.CollectionPosts).Exists(ctx, "A")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestCreateTag(t *testing.T) {
	m, _ := setupMaintainer(t)
	ctx := context.Background()

	tag, err := m.CreateTag(ctx, "  #GoLang ")
	require.NoError(t, err)
	assert.Equal(t, "GoLang", tag.Name)
	assert.Equal(t, "golang", tag.NormalizedName)
	assert.Zero(t, tag.PostCount)

	_, err = m.CreateTag(ctx, "golang")
	assert.ErrorIs(t, err, domainerrors.ErrConflict)

	_, err = m.CreateTag(ctx, "   ")
	assert.ErrorIs(t, err, domainerrors.ErrValidation)
}

func TestCreateTag_ConcurrentSameName(t *testing.T) {
	m, s := setupMaintainer(t)
	ctx := context.Background()

	const workers = 12
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created int
	)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := m.CreateTag(ctx, "Photography")
			if err == nil {
				mu.Lock()
				created++
				mu.Unlock()
				return
			}
			assert.ErrorIs(t, err, domainerrors.ErrConflict)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, created)
	docs, err := s.Collection(domain.CollectionHashtags).Query().Documents(ctx)
	require.NoError(t, err)
	assert.Len(t, docs, 1)
}

func TestFindByName(t *testing.T) {
	m, _ := setupMaintainer(t)
	ctx := context.Background()

	created, err := m.CreateTag(ctx, "Travel")
	require.NoError(t, err)

	found, err := m.FindByName(ctx, "TRAVEL")
	require.NoError(t, err)
	assert.Equal(t, created.ID, found.ID)

	_, err = m.FindByName(ctx, "food")
	assert.ErrorIs(t, err, domainerrors.ErrNotFound)
}

func TestFindOrCreateAndResolve(t *testing.T) {
	m, _ := setupMaintainer(t)
	ctx := context.Background()

	first, err := m.FindOrCreate(ctx, "art")
	require.NoError(t, err)
	again, err := m.FindOrCreate(ctx, "ART")
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)

	tags, err := m.Resolve(ctx, []string{"Music", "art", "#music", "film"})
	require.NoError(t, err)
	require.Len(t, tags, 3)
	assert.Equal(t, "music", tags[0].NormalizedName)
	assert.Equal(t, first.ID, tags[1].ID)
	assert.Equal(t, "film", tags[2].NormalizedName)

	_, err = m.Resolve(ctx, []string{"ok", ""})
	assert.ErrorIs(t, err, domainerrors.ErrValidation)
}

func TestPopularTags(t *testing.T) {
	m, s := setupMaintainer(t)
	ctx := context.Background()

	counts := map[string]int{"a": 1, "b": 5, "c": 3}
	for name, n := range counts {
		tag, err := m.CreateTag(ctx, name)
		require.NoError(t, err)
		for i := 0; i < n; i++ {
			writePost(t, m, s, tag.ID+"-post-"+string(rune('0'+i)), nil, []string{tag.ID})
		}
	}

	top, err := m.PopularTags(ctx, 2)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, "b", top[0].NormalizedName)
	assert.Equal(t, int64(5), top[0].PostCount)
	assert.Equal(t, "c", top[1].NormalizedName)

	all, err := m.PopularTags(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestRecount(t *testing.T) {
	m, s := setupMaintainer(t)
	ctx := context.Background()

	tag, err := m.CreateTag(ctx, "x")
	require.NoError(t, err)
	writePost(t, m, s, "p1", nil, []string{tag.ID})
	writePost(t, m, s, "p2", nil, []string{tag.ID})

	require.NoError(t, s.Collection(domain.CollectionHashtags).Increment(ctx, tag.ID, domain.FieldPostCount, 3))

	delta, err := m.Recount(ctx, tag.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(-3), delta)
	assert.Equal(t, int64(2), postCountOf(t, m, tag.ID))

	ids, err := m.AllTagIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{tag.ID}, ids)
}
