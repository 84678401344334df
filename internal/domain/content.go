package domain

import (
	"strings"
	"time"

	"github.com/Colorex-team/Colorex-System/internal/store"
)

// ContentKind identifies one of the three structurally identical content collections.
type ContentKind string

const (
	KindPost    ContentKind = "post"
	KindComment ContentKind = "comment"
	KindReply   ContentKind = "reply"
)

// Valid checks if the kind is known.
func (k ContentKind) Valid() bool {
	switch k {
	case KindPost, KindComment, KindReply:
		return true
	default:
		return false
	}
}

// Collection returns the collection that stores items of this kind.
func (k ContentKind) Collection() string {
	switch k {
	case KindComment:
		return CollectionComments
	case KindReply:
		return CollectionReplies
	default:
		return CollectionPosts
	}
}

// ParentKind returns the kind a parentId refers to. Posts have no parent.
func (k ContentKind) ParentKind() (ContentKind, bool) {
	switch k {
	case KindComment:
		return KindPost, true
	case KindReply:
		return KindComment, true
	default:
		return "", false
	}
}

// ContentItem is a post, comment or reply.
// ParentID is empty for posts, the post ID for comments and the comment ID for replies.
type ContentItem struct {
	ID          string      `json:"id"`
	Kind        ContentKind `json:"kind"`
	OwnerUserID string      `json:"owner_user_id"`
	ParentID    string      `json:"parent_id,omitempty"`
	Title       string      `json:"title,omitempty"`
	Body        string      `json:"body"`
	MediaURL    string      `json:"media_url,omitempty"` // Opaque blob storage URL
	PostType    string      `json:"post_type,omitempty"`
	TagIDs      []string    `json:"tag_ids,omitempty"`
	TagNames    []string    `json:"tag_names,omitempty"`
	LikeCount   int64       `json:"like_count"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// Touch updates the UpdatedAt timestamp.
func (c *ContentItem) Touch() {
	c.UpdatedAt = time.Now()
}

// IsOwnedBy reports whether userID created the item.
func (c *ContentItem) IsOwnedBy(userID string) bool {
	return c.OwnerUserID == userID
}

// TitleKey is the lowercase token stored for prefix search.
func TitleKey(title string) string {
	return strings.ToLower(strings.TrimSpace(title))
}

// ToDocument renders the item's stored fields. LikeCount is written as-is,
// so callers creating an item pass zero and never rewrite the counter later.
func (c *ContentItem) ToDocument() store.Document {
	doc := store.Document{
		FieldOwnerUserID: c.OwnerUserID,
		FieldBody:        c.Body,
		FieldLikeCount:   c.LikeCount,
		FieldCreatedAt:   c.CreatedAt,
		FieldUpdatedAt:   c.UpdatedAt,
		FieldTagIDs:      nonNil(c.TagIDs),
		FieldTagNames:    nonNil(c.TagNames),
	}
	if c.ParentID != "" {
		doc[FieldParentID] = c.ParentID
	}
	if c.Kind == KindPost {
		doc[FieldTitle] = c.Title
		doc[FieldTitleLower] = TitleKey(c.Title)
		doc[FieldPostType] = c.PostType
	}
	if c.MediaURL != "" {
		doc[FieldMediaURL] = c.MediaURL
	}
	return doc
}

// ContentItemFromSnapshot decodes a stored content item.
func ContentItemFromSnapshot(kind ContentKind, snap *store.Snapshot) *ContentItem {
	d := snap.Data
	return &ContentItem{
		ID:          snap.ID,
		Kind:        kind,
		OwnerUserID: d.String(FieldOwnerUserID),
		ParentID:    d.String(FieldParentID),
		Title:       d.String(FieldTitle),
		Body:        d.String(FieldBody),
		MediaURL:    d.String(FieldMediaURL),
		PostType:    d.String(FieldPostType),
		TagIDs:      d.Strings(FieldTagIDs),
		TagNames:    d.Strings(FieldTagNames),
		LikeCount:   d.Int(FieldLikeCount),
		CreatedAt:   d.Time(FieldCreatedAt),
		UpdatedAt:   d.Time(FieldUpdatedAt),
	}
}

// DetailedItem is a root content item with its comments, each carrying its replies.
type DetailedItem struct {
	*ContentItem
	Comments []*DetailedComment `json:"comments"`
}

// DetailedComment is a comment node in a DetailedItem tree.
type DetailedComment struct {
	*ContentItem
	Replies []*ContentItem `json:"replies"`
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
