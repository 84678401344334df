package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Colorex-team/Colorex-System/internal/store"
)

func TestContentKind(t *testing.T) {
	assert.Equal(t, CollectionPosts, KindPost.Collection())
	assert.Equal(t, CollectionComments, KindComment.Collection())
	assert.Equal(t, CollectionReplies, KindReply.Collection())
	assert.False(t, ContentKind("story").Valid())

	parent, ok := KindReply.ParentKind()
	require.True(t, ok)
	assert.Equal(t, KindComment, parent)

	_, ok = KindPost.ParentKind()
	assert.False(t, ok)
}

func TestContentItem_DocumentFields(t *testing.T) {
	now := time.Date(2024, 2, 3, 4, 5, 6, 0, time.UTC)
	post := &ContentItem{
		ID:          "p1",
		Kind:        KindPost,
		OwnerUserID: "u1",
		Title:       "  Hello World ",
		Body:        "body",
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	doc := post.ToDocument()
	assert.Equal(t, "hello world", doc[FieldTitleLower])
	assert.NotContains(t, doc, FieldParentID)
	assert.Equal(t, []string{}, doc[FieldTagIDs])

	comment := &ContentItem{Kind: KindComment, ParentID: "p1", Body: "hi"}
	doc = comment.ToDocument()
	assert.Equal(t, "p1", doc[FieldParentID])
	assert.NotContains(t, doc, FieldTitleLower)
}

func TestContentItemFromSnapshot(t *testing.T) {
	now := time.Date(2024, 2, 3, 4, 5, 6, 0, time.UTC)
	snap := &store.Snapshot{ID: "c1", Data: store.Document{
		FieldOwnerUserID: "u2",
		FieldParentID:    "p1",
		FieldBody:        "nice",
		FieldLikeCount:   int64(4),
		FieldCreatedAt:   store.FormatTime(now),
		FieldTagIDs:      []any{"t1"},
	}}

	item := ContentItemFromSnapshot(KindComment, snap)
	assert.Equal(t, "c1", item.ID)
	assert.Equal(t, KindComment, item.Kind)
	assert.Equal(t, "p1", item.ParentID)
	assert.Equal(t, int64(4), item.LikeCount)
	assert.True(t, now.Equal(item.CreatedAt))
	assert.Equal(t, []string{"t1"}, item.TagIDs)
	assert.True(t, item.IsOwnedBy("u2"))
}

func TestNormalizeTagName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Go", "go"},
		{"  #GoLang  ", "golang"},
		{"Slow   Burn", "slow burn"},
		{"ＧＯ", "go"}, // full-width letters fold under NFKC
		{"café", "café"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeTagName(tt.in))
		})
	}
}

func TestAssociation_Document(t *testing.T) {
	assert.Equal(t, "u1_p1", AssociationKey("u1", "p1"))

	a := &Association{
		Key:           AssociationKey("u1", "u2"),
		SubjectUserID: "u1",
		TargetID:      "u2",
		Subject:       &UserSummary{ID: "u1", Username: "ann"},
		Target:        &UserSummary{ID: "u2", Username: "ben", AvatarURL: "http://x/b.png"},
	}

	got := AssociationFromSnapshot(&store.Snapshot{ID: a.Key, Data: a.ToDocument()})
	assert.Equal(t, "u1", got.SubjectUserID)
	require.NotNil(t, got.Target)
	assert.Equal(t, "ben", got.Target.Username)
	assert.Equal(t, "u2", got.Target.ID)

	like := AssociationFromSnapshot(&store.Snapshot{ID: "u1_p1", Data: store.Document{
		FieldSubjectID: "u1", FieldTargetID: "p1",
	}})
	assert.Nil(t, like.Subject)
	assert.Nil(t, like.Target)
}

func TestSubscriptionStatus(t *testing.T) {
	assert.True(t, SubscriptionPending.CanTransitionTo(SubscriptionActive))
	assert.True(t, SubscriptionActive.CanTransitionTo(SubscriptionExpired))
	assert.False(t, SubscriptionExpired.CanTransitionTo(SubscriptionActive))
	assert.False(t, SubscriptionCancelled.CanTransitionTo(SubscriptionActive))
	assert.False(t, SubscriptionStatus("refunded").Valid())
}

func TestSubscription_IsActiveAt(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s := &Subscription{Status: SubscriptionActive, StartDate: start, EndDate: start.AddDate(0, 1, 0)}

	assert.True(t, s.IsActiveAt(start))
	assert.True(t, s.IsActiveAt(start.AddDate(0, 0, 10)))
	assert.False(t, s.IsActiveAt(start.AddDate(0, 1, 0)))
	assert.False(t, s.IsActiveAt(start.Add(-time.Second)))

	s.Status = SubscriptionCancelled
	assert.False(t, s.IsActiveAt(start.AddDate(0, 0, 10)))
}
