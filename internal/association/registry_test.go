package association

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

func setupRegistry(t *testing.T) (*Registry, *store.Store) {
	t.Helper()
	s := storetest.New(t, store.WithMaxTxnRetries(100))
	return NewRegistry(s, nil), s
}

func seedPost(t *testing.T, s *store.Store, id string) {
	t.Helper()
	require.NoError(t, s.Collection(domain.CollectionPosts).Set(context.Background(), id, store.Document{
		domain.FieldOwnerUserID: "owner",
	}))
}

func seedUser(t *testing.T, s *store.Store, id, username string) {
	t.Helper()
	u := &domain.UserProfile{ID: id, Username: username}
	require.NoError(t, s.Collection(domain.CollectionUsers).Set(context.Background(), id, u.ToDocument()))
}

func countRecords(t *testing.T, s *store.Store, collection string) int {
	t.Helper()
	docs, err := s.Collection(collection).Query().Documents(context.Background())
	require.NoError(t, err)
	return len(docs)
}

func TestApply_CreateAndDelete(t *testing.T) {
	r, s := setupRegistry(t)
	ctx := context.Background()
	seedPost(t, s, "p1")

	res, err := r.Apply(ctx, PostLike, "u1", "p1", Create)
	require.NoError(t, err)
	assert.Equal(t, Result{Changed: true, NowPresent: true}, res)

	res, err = r.Apply(ctx, PostLike, "u1", "p1", Create)
	require.NoError(t, err)
	assert.Equal(t, Result{Changed: false, NowPresent: true}, res, "second create is a no-op")

	n, err := r.Count(ctx, PostLike, "p1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	res, err = r.Apply(ctx, PostLike, "u1", "p1", Delete)
	require.NoError(t, err)
	assert.Equal(t, Result{Changed: true, NowPresent: false}, res)

	res, err = r.Apply(ctx, PostLike, "u1", "p1", Delete)
	require.NoError(t, err)
	assert.Equal(t, Result{Changed: false, NowPresent: false}, res, "delete of absent record changes nothing")

	n, err = r.Count(ctx, PostLike, "p1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestApply_ConcurrentCreatesCountOnce(t *testing.T) {
	r, s := setupRegistry(t)
	ctx := context.Background()
	seedPost(t, s, "p1")

	const workers = 25
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		changed int
	)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := r.Apply(ctx, PostLike, "u1", "p1", Create)
			if !assert.NoError(t, err) {
				return
			}
			assert.True(t, res.NowPresent)
			if res.Changed {
				mu.Lock()
				changed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, changed)
	assert.Equal(t, 1, countRecords(t, s, domain.CollectionPostLikes))

	n, err := r.Count(ctx, PostLike, "p1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestApply_TwoConcurrentLikes(t *testing.T) {
	r, s := setupRegistry(t)
	ctx := context.Background()
	seedPost(t, s, "P")

	var wg sync.WaitGroup
	for range 2 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := r.Apply(ctx, PostLike, "U", "P", Create)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	n, err := r.Count(ctx, PostLike, "P")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	ok, err := r.Verify(ctx, PostLike, "U", "P")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, countRecords(t, s, domain.CollectionPostLikes))
}

func TestToggle_Symmetric(t *testing.T) {
	r, s := setupRegistry(t)
	ctx := context.Background()
	seedPost(t, s, "p1")

	for i, want := range []bool{true, false, true} {
		res, err := r.Toggle(ctx, PostLike, "u1", "p1")
		require.NoError(t, err)
		assert.True(t, res.Changed, "toggle %d", i)
		assert.Equal(t, want, res.NowPresent, "toggle %d", i)
	}

	n, err := r.Count(ctx, PostLike, "p1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	ok, err := r.Verify(ctx, PostLike, "u1", "p1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestToggle_ConcurrentPairsStayConsistent(t *testing.T) {
	r, s := setupRegistry(t)
	ctx := context.Background()
	seedPost(t, s, "p1")

	const togglesPerUser = 7
	users := []string{"a", "b", "c", "d"}

	var wg sync.WaitGroup
	for _, u := range users {
		for range togglesPerUser {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := r.Toggle(ctx, PostLike, u, "p1")
				assert.NoError(t, err)
			}()
		}
	}
	wg.Wait()

	// An odd number of toggles per user leaves every user's like present.
	n, err := r.Count(ctx, PostLike, "p1")
	require.NoError(t, err)
	assert.Equal(t, int64(len(users)), n)
	assert.Equal(t, len(users), countRecords(t, s, domain.CollectionPostLikes))
}

func TestApply_MissingTarget(t *testing.T) {
	r, s := setupRegistry(t)

	_, err := r.Apply(context.Background(), CommentLike, "u1", "missing", Create)
	assert.ErrorIs(t, err, domainerrors.ErrNotFound)
	assert.Equal(t, 0, countRecords(t, s, domain.CollectionCommentLikes))
}

func TestApply_InvalidIDs(t *testing.T) {
	r, _ := setupRegistry(t)
	ctx := context.Background()

	_, err := r.Apply(ctx, PostLike, "", "p1", Create)
	assert.ErrorIs(t, err, domainerrors.ErrValidation)

	_, err = r.Toggle(ctx, Follow, "u1", "u1")
	assert.ErrorIs(t, err, domainerrors.ErrValidation)
}

func TestFollow_CountersAndDenormalizedNames(t *testing.T) {
	r, s := setupRegistry(t)
	ctx := context.Background()
	seedUser(t, s, "u1", "ann")
	seedUser(t, s, "u2", "ben")

	res, err := r.Apply(ctx, Follow, "u1", "u2", Create)
	require.NoError(t, err)
	assert.True(t, res.Changed)

	rec, err := r.Get(ctx, Follow, "u1", "u2")
	require.NoError(t, err)
	require.NotNil(t, rec.Subject)
	require.NotNil(t, rec.Target)
	assert.Equal(t, "ann", rec.Subject.Username)
	assert.Equal(t, "ben", rec.Target.Username)

	followers, err := Follow.TargetCounter.Get(ctx, s, "u2")
	require.NoError(t, err)
	assert.Equal(t, int64(1), followers)

	following, err := Follow.SubjectCounter.Get(ctx, s, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), following)

	_, err = r.Apply(ctx, Follow, "u1", "u2", Delete)
	require.NoError(t, err)

	following, err = Follow.SubjectCounter.Get(ctx, s, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), following)
}

func TestFollow_MissingSubject(t *testing.T) {
	r, s := setupRegistry(t)
	seedUser(t, s, "u2", "ben")

	_, err := r.Apply(context.Background(), Follow, "ghost", "u2", Create)
	assert.ErrorIs(t, err, domainerrors.ErrNotFound)

	followers, err := Follow.TargetCounter.Get(context.Background(), s, "u2")
	require.NoError(t, err)
	assert.Equal(t, int64(0), followers, "failed follow must not leave a counter change")
}

func TestRecount_RepairsDrift(t *testing.T) {
	r, s := setupRegistry(t)
	ctx := context.Background()
	seedPost(t, s, "p1")

	for _, u := range []string{"a", "b", "c"} {
		_, err := r.Apply(ctx, PostLike, u, "p1", Create)
		require.NoError(t, err)
	}

	// Simulate drift written by an older, racy writer.
	require.NoError(t, s.Collection(domain.CollectionPosts).Increment(ctx, "p1", domain.FieldLikeCount, 4))

	delta, err := r.RecountTarget(ctx, PostLike, "p1")
	require.NoError(t, err)
	assert.Equal(t, int64(-4), delta)

	n, err := r.Count(ctx, PostLike, "p1")
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	delta, err = r.RecountTarget(ctx, PostLike, "p1")
	require.NoError(t, err)
	assert.Zero(t, delta)
}

func TestRecountSubject(t *testing.T) {
	r, s := setupRegistry(t)
	ctx := context.Background()
	seedUser(t, s, "u1", "ann")
	seedUser(t, s, "u2", "ben")
	seedUser(t, s, "u3", "cat")

	_, err := r.Apply(ctx, Follow, "u1", "u2", Create)
	require.NoError(t, err)
	_, err = r.Apply(ctx, Follow, "u1", "u3", Create)
	require.NoError(t, err)

	require.NoError(t, s.Collection(domain.CollectionUsers).Increment(ctx, "u1", domain.FieldFollowingCount, -2))

	delta, err := r.RecountSubject(ctx, Follow, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), delta)

	_, err = r.RecountSubject(ctx, PostLike, "u1")
	assert.ErrorIs(t, err, domainerrors.ErrValidation)
}

func TestLikeKind(t *testing.T) {
	k, err := LikeKind(domain.KindReply)
	require.NoError(t, err)
	assert.Equal(t, ReplyLike, k)

	_, err = LikeKind("story")
	assert.ErrorIs(t, err, domainerrors.ErrValidation)
}

func TestCounter_GetDefaultsToZero(t *testing.T) {
	_, s := setupRegistry(t)
	ctx := context.Background()
	seedPost(t, s, "p1")

	n, err := PostLike.TargetCounter.Get(ctx, s, "p1")
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = PostLike.TargetCounter.Get(ctx, s, "nope")
	assert.ErrorIs(t, err, domainerrors.ErrNotFound)
}
