// Package domain defines the content graph entities and their stored layout.
package domain

import "github.com/Colorex-team/Colorex-System/internal/store"

// Collection names.
const (
	CollectionPosts         = "posts"
	CollectionComments      = "comments"
	CollectionReplies       = "replies"
	CollectionPostLikes     = "postLikes"
	CollectionCommentLikes  = "commentLikes"
	CollectionReplyLikes    = "replyLikes"
	CollectionFollows       = "follows"
	CollectionHashtags      = "hashtags"
	CollectionHashtagNames  = "hashtagNames"
	CollectionUsers         = "users"
	CollectionSubscriptions = "subscriptions"
	// CollectionSubscriptionOrders maps a gateway order ID to its subscription.
	CollectionSubscriptionOrders = "subscriptionOrders"
)

// Stored field names shared by queries and writers.
const (
	FieldOwnerUserID    = "ownerUserId"
	FieldParentID       = "parentId"
	FieldTitle          = "title"
	FieldTitleLower     = "titleLower"
	FieldBody           = "body"
	FieldMediaURL       = "mediaUrl"
	FieldPostType       = "postType"
	FieldTagIDs         = "tagIds"
	FieldTagNames       = "tagNames"
	FieldCreatedAt      = "createdAt"
	FieldUpdatedAt      = "updatedAt"
	FieldLikeCount      = "likeCount"
	FieldName           = "name"
	FieldNormalizedName = "normalizedName"
	FieldPostCount      = "postCount"
	FieldTagID          = "tagId"
	FieldUsername       = "username"
	FieldAvatarURL      = "avatarUrl"
	FieldFollowersCount = "followersCount"
	FieldFollowingCount = "followingCount"
	FieldSubjectID      = "subjectId"
	FieldTargetID       = "targetId"
	FieldSubjectName    = "subjectUsername"
	FieldSubjectAvatar  = "subjectAvatarUrl"
	FieldTargetName     = "targetUsername"
	FieldTargetAvatar   = "targetAvatarUrl"
	FieldUserID         = "userId"
	FieldOrderID        = "orderId"
	FieldPlan           = "plan"
	FieldStatus         = "status"
	FieldStartDate      = "startDate"
	FieldEndDate        = "endDate"
	FieldSubscriptionID = "subscriptionId"
)

// StoreIndexes lists the equality indexes behind the layer's filtered queries:
// owner and tag pages, children by parent, associations by either end,
// tag lookup by name and subscriptions by user or status.
func StoreIndexes() []store.Option {
	opts := []store.Option{
		store.WithIndex(CollectionPosts, FieldOwnerUserID, FieldTagIDs),
		store.WithIndex(CollectionComments, FieldParentID, FieldOwnerUserID),
		store.WithIndex(CollectionReplies, FieldParentID, FieldOwnerUserID),
		store.WithIndex(CollectionHashtags, FieldNormalizedName),
		store.WithIndex(CollectionSubscriptions, FieldUserID, FieldStatus),
	}
	for _, collection := range []string{CollectionPostLikes, CollectionCommentLikes, CollectionReplyLikes, CollectionFollows} {
		opts = append(opts, store.WithIndex(collection, FieldSubjectID, FieldTargetID))
	}
	return opts
}
