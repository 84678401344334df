package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Colorex-team/Colorex-System/internal/association"
	"github.com/Colorex-team/Colorex-System/internal/domain"
	"github.com/Colorex-team/Colorex-System/internal/fanout"
	"github.com/Colorex-team/Colorex-System/internal/notify"
	"github.com/Colorex-team/Colorex-System/internal/pagination"
	"github.com/Colorex-team/Colorex-System/internal/search"
	"github.com/Colorex-team/Colorex-System/internal/store"
	"github.com/Colorex-team/Colorex-System/internal/store/storetest"
	"github.com/Colorex-team/Colorex-System/internal/tagindex"
)

var base = time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)

// eventRecorder collects dispatched events synchronously.
type eventRecorder struct {
	mu     sync.Mutex
	events []notify.Event
}

func (r *eventRecorder) Dispatch(e notify.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *eventRecorder) all() []notify.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]notify.Event(nil), r.events...)
}

// stepClock returns a clock that advances one second per call.
func stepClock(start time.Time) func() time.Time {
	var mu sync.Mutex
	now := start
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now = now.Add(time.Second)
		return now
	}
}

type testEnv struct {
	store    *store.Store
	tags     *tagindex.Maintainer
	index    *search.Index
	registry *association.Registry
	events   *eventRecorder

	content *ContentService
	social  *SocialService
	users   *UserService
	subs    *SubscriptionService
	maint   *MaintenanceService
}

// setupTestServices wires every service over an in-memory store and index.
func setupTestServices(t *testing.T) *testEnv {
	t.Helper()

	s := storetest.New(t)
	index, err := search.Open(search.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = index.Close() })

	tags := tagindex.New(s, nil)
	registry := association.NewRegistry(s, nil)
	pages := pagination.New(s, pagination.Config{}, nil, index, nil)
	events := &eventRecorder{}

	env := &testEnv{
		store:    s,
		tags:     tags,
		index:    index,
		registry: registry,
		events:   events,
		content:  NewContentService(s, tags, pages, fanout.New(s, 4, nil), index, nil),
		social:   NewSocialService(s, registry, pages, events, nil),
		users:    NewUserService(s, nil),
		subs:     NewSubscriptionService(s, nil),
	}
	env.maint = NewMaintenanceService(s, registry, tags, index, env.subs, 10_000, nil)
	env.content.now = stepClock(base)
	return env
}

func (env *testEnv) createUser(t *testing.T, userID, username string) *domain.UserProfile {
	t.Helper()
	user, err := env.users.CreateUser(context.Background(), userID, username, "")
	require.NoError(t, err)
	return user
}

func (env *testEnv) createPost(t *testing.T, userID, title string, tags ...string) *domain.ContentItem {
	t.Helper()
	post, err := env.content.CreatePost(context.Background(), userID, CreatePostInput{Title: title, Body: "body", Tags: tags})
	require.NoError(t, err)
	return post
}

func (env *testEnv) tagCount(t *testing.T, name string) int64 {
	t.Helper()
	tag, err := env.tags.FindByName(context.Background(), name)
	require.NoError(t, err)
	return tag.PostCount
}

func itemIDs(items []*domain.ContentItem) []string {
	ids := make([]string, len(items))
	for i, item := range items {
		ids[i] = item.ID
	}
	return ids
}
