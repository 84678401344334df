package store_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Colorex-team/Colorex-System/internal/store"
	"github.com/Colorex-team/Colorex-System/internal/store/storetest"
)

var base = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func seedPosts(t *testing.T, s *store.Store) {
	t.Helper()
	ctx := context.Background()
	posts := s.Collection("posts")

	docs := []struct {
		id     string
		owner  string
		tags   []string
		minute int
		likes  int64
	}{
		{"p1", "alice", []string{"go"}, 1, 5},
		{"p2", "bob", []string{"go", "db"}, 2, 1},
		{"p3", "alice", []string{"db"}, 3, 7},
		{"p4", "carol", nil, 4, 0},
		{"p5", "alice", []string{"go"}, 4, 2},
	}
	for _, d := range docs {
		doc := store.Document{
			"ownerUserId": d.owner,
			"createdAt":   base.Add(time.Duration(d.minute) * time.Minute),
			"likeCount":   d.likes,
			"titleLower":  fmt.Sprintf("title %s", d.id),
		}
		if d.tags != nil {
			doc["tagIds"] = d.tags
		}
		require.NoError(t, posts.Set(ctx, d.id, doc))
	}
}

func ids(snaps []*store.Snapshot) []string {
	out := make([]string, len(snaps))
	for i, s := range snaps {
		out[i] = s.ID
	}
	return out
}

func TestQuery_Filters(t *testing.T) {
	s := storetest.New(t)
	seedPosts(t, s)
	ctx := context.Background()
	posts := s.Collection("posts")

	tests := []struct {
		name  string
		query *store.Query
		want  []string
	}{
		{"equal", posts.Query().Where("ownerUserId", store.OpEqual, "alice"), []string{"p1", "p3", "p5"}},
		{"in", posts.Query().Where("ownerUserId", store.OpIn, []string{"bob", "carol"}), []string{"p2", "p4"}},
		{"array-contains", posts.Query().Where("tagIds", store.OpArrayContains, "db"), []string{"p2", "p3"}},
		{"array-contains-any", posts.Query().Where("tagIds", store.OpArrayContainsAny, []string{"db", "go"}), []string{"p1", "p2", "p3", "p5"}},
		{"greater", posts.Query().Where("likeCount", store.OpGreater, 2), []string{"p1", "p3"}},
		{"less-equal", posts.Query().Where("likeCount", store.OpLessEqual, int64(1)), []string{"p2", "p4"}},
		{"range on strings", posts.Query().
			Where("titleLower", store.OpGreaterEqual, "title p2").
			Where("titleLower", store.OpLess, "title p4"), []string{"p2", "p3"}},
		{"type mismatch never matches", posts.Query().Where("likeCount", store.OpLess, "zzz"), []string{}},
		{"id in", posts.Query().WhereIDIn([]string{"p4", "p1", "missing", "p1"}), []string{"p1", "p4"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.query.Documents(ctx)
			require.NoError(t, err)
			assert.ElementsMatch(t, tt.want, ids(got))
		})
	}
}

func TestQuery_OrderWithTieBreak(t *testing.T) {
	s := storetest.New(t)
	seedPosts(t, s)
	ctx := context.Background()

	got, err := s.Collection("posts").Query().OrderBy("createdAt", store.Desc).Documents(ctx)
	require.NoError(t, err)
	// p4 and p5 share a timestamp; descending id tie-break puts p5 first.
	assert.Equal(t, []string{"p5", "p4", "p3", "p2", "p1"}, ids(got))
}

func TestQuery_OrderExcludesMissingField(t *testing.T) {
	s := storetest.New(t)
	seedPosts(t, s)
	ctx := context.Background()
	require.NoError(t, s.Collection("posts").Set(ctx, "p0", store.Document{"ownerUserId": "dave"}))

	got, err := s.Collection("posts").Query().OrderBy("createdAt", store.Asc).Documents(ctx)
	require.NoError(t, err)
	assert.NotContains(t, ids(got), "p0")
}

func TestQuery_StartAfterWalk(t *testing.T) {
	s := storetest.New(t)
	seedPosts(t, s)
	ctx := context.Background()

	q := s.Collection("posts").Query().OrderBy("createdAt", store.Desc).Limit(2)

	var walked []string
	page, err := q.Documents(ctx)
	require.NoError(t, err)
	for len(page) > 0 {
		walked = append(walked, ids(page)...)
		last := page[len(page)-1]
		page, err = q.StartAfter(last.Data["createdAt"], last.ID).Documents(ctx)
		require.NoError(t, err)
	}

	assert.Equal(t, []string{"p5", "p4", "p3", "p2", "p1"}, walked)
}

func TestQuery_OffsetLimit(t *testing.T) {
	s := storetest.New(t)
	seedPosts(t, s)
	ctx := context.Background()

	q := s.Collection("posts").Query().OrderBy("createdAt", store.Asc)

	got, err := q.Offset(1).Limit(2).Documents(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"p2", "p3"}, ids(got))

	got, err = q.Offset(10).Documents(ctx)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestQuery_Count(t *testing.T) {
	s := storetest.New(t)
	seedPosts(t, s)
	ctx := context.Background()

	n, err := s.Collection("posts").Query().Where("ownerUserId", store.OpEqual, "alice").Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}

func TestQuery_CountUnsupported(t *testing.T) {
	s := storetest.New(t, store.WithAggregateCount(false))
	_, err := s.Collection("posts").Query().Count(context.Background())
	assert.ErrorIs(t, err, store.ErrAggregateUnsupported)
}

func TestQuery_Invalid(t *testing.T) {
	s := storetest.New(t)
	ctx := context.Background()
	posts := s.Collection("posts")

	eleven := make([]string, store.MaxDisjunction+1)
	for i := range eleven {
		eleven[i] = fmt.Sprintf("v%d", i)
	}

	tests := []struct {
		name  string
		query *store.Query
	}{
		{"too many in values", posts.Query().Where("ownerUserId", store.OpIn, eleven)},
		{"too many ids", posts.Query().WhereIDIn(eleven)},
		{"empty in", posts.Query().Where("ownerUserId", store.OpIn, []string{})},
		{"in with scalar", posts.Query().Where("ownerUserId", store.OpIn, "alice")},
		{"two disjunctions", posts.Query().
			Where("ownerUserId", store.OpIn, []string{"a"}).
			Where("tagIds", store.OpArrayContainsAny, []string{"b"})},
		{"unknown operator", posts.Query().Where("a", store.Operator("!="), 1)},
		{"negative limit", posts.Query().Limit(-1)},
		{"cursor longer than order", posts.Query().StartAfter("a", "b")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.query.Documents(ctx)
			assert.ErrorIs(t, err, store.ErrInvalidQuery)
		})
	}
}

func TestQuery_BuilderIsImmutable(t *testing.T) {
	s := storetest.New(t)
	seedPosts(t, s)
	ctx := context.Background()

	baseQuery := s.Collection("posts").Query().OrderBy("createdAt", store.Asc)
	_ = baseQuery.Where("ownerUserId", store.OpEqual, "bob")

	got, err := baseQuery.Documents(ctx)
	require.NoError(t, err)
	assert.Len(t, got, 5)
}
