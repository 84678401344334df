package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/Colorex-team/Colorex-System/internal/domain"
	domainerrors "github.com/Colorex-team/Colorex-System/internal/errors"
	"github.com/Colorex-team/Colorex-System/internal/fanout"
	"github.com/Colorex-team/Colorex-System/internal/id"
	"github.com/Colorex-team/Colorex-System/internal/logger"
	"github.com/Colorex-team/Colorex-System/internal/pagination"
	"github.com/Colorex-team/Colorex-System/internal/search"
	"github.com/Colorex-team/Colorex-System/internal/store"
	"github.com/Colorex-team/Colorex-System/internal/tagindex"
	"github.com/Colorex-team/Colorex-System/internal/validation"
)

// ContentService orchestrates posts, comments and replies.
// The acting user id comes from the auth collaborator; ownership is checked here.
type ContentService struct {
	store     *store.Store
	tags      *tagindex.Maintainer
	pages     *pagination.Engine
	assembler *fanout.Assembler
	index     *search.Index
	validate  *validation.Validator
	logger    *slog.Logger
	now       func() time.Time
}

// NewContentService creates a content service. index may be nil.
func NewContentService(
	s *store.Store,
	tags *tagindex.Maintainer,
	pages *pagination.Engine,
	assembler *fanout.Assembler,
	index *search.Index,
	log *slog.Logger,
) *ContentService {
	return &ContentService{
		store:     s,
		tags:      tags,
		pages:     pages,
		assembler: assembler,
		index:     index,
		validate:  validation.New(),
		logger:    logger.OrDiscard(log),
		now:       time.Now,
	}
}

// CreatePostInput holds the fields of a new post.
type CreatePostInput struct {
	Title    string `json:"title" validate:"max=300"`
	Body     string `json:"body" validate:"max=10000"`
	MediaURL string `json:"media_url" validate:"omitempty,url"`
	PostType string `json:"post_type" validate:"max=32"`
	// Tags are tag names; missing tags are created.
	Tags []string `json:"tags" validate:"max=30"`
}

// UpdatePostInput holds the fields to change. Nil fields are left as they are.
type UpdatePostInput struct {
	Title    *string
	Body     *string
	MediaURL *string
	Tags     *[]string
}

// ContentPage is one page of content items.
type ContentPage struct {
	Items      []*domain.ContentItem `json:"items"`
	Total      int64                 `json:"total"`
	TotalExact bool                  `json:"total_exact"`
	NextCursor string                `json:"next_cursor,omitempty"`
	HasMore    bool                  `json:"has_more"`
}

// ListRequest selects a page of content items.
type ListRequest struct {
	OwnerIDs []string
	TagIDs   []string
	Search   string
	PageRequest
}

// PageRequest carries the paging parameters shared by list operations.
type PageRequest struct {
	PageSize int
	Cursor   string
	Page     int
}

// CreatePost writes a post and increments the post count of each of its tags
// in one batch.
func (s *ContentService) CreatePost(ctx context.Context, userID string, in CreatePostInput) (*domain.ContentItem, error) {
	if userID == "" {
		return nil, domainerrors.Unauthorized("missing acting user")
	}
	if err := s.validate.Validate(in); err != nil {
		return nil, err
	}

	tags, err := s.tags.Resolve(ctx, in.Tags)
	if err != nil {
		return nil, err
	}

	now := s.now()
	post := &domain.ContentItem{
		ID:          id.MustGenerate(id.PrefixPost),
		Kind:        domain.KindPost,
		OwnerUserID: userID,
		Title:       strings.TrimSpace(in.Title),
		Body:        in.Body,
		MediaURL:    in.MediaURL,
		PostType:    in.PostType,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	post.TagIDs, post.TagNames = tagFields(tags)

	b := s.store.Batch()
	if err := b.Create(domain.CollectionPosts, post.ID, post.ToDocument()); err != nil {
		return nil, err
	}
	if _, err := s.tags.Reconcile(b, nil, post.TagIDs); err != nil {
		return nil, err
	}
	if err := b.Commit(ctx); err != nil {
		return nil, err
	}

	s.indexPost(post)
	s.logger.Info("post created", "post_id", post.ID, "owner_id", userID, "tags", len(post.TagIDs))
	return post, nil
}

// CreateComment adds a comment to a post.
func (s *ContentService) CreateComment(ctx context.Context, userID, postID, body, mediaURL string) (*domain.ContentItem, error) {
	return s.createChild(ctx, domain.KindComment, userID, postID, body, mediaURL)
}

// CreateReply adds a reply to a comment.
func (s *ContentService) CreateReply(ctx context.Context, userID, commentID, body, mediaURL string) (*domain.ContentItem, error) {
	return s.createChild(ctx, domain.KindReply, userID, commentID, body, mediaURL)
}

// createChild checks the parent and writes the child in one transaction, so
// a child is never created under a parent deleted concurrently.
func (s *ContentService) createChild(ctx context.Context, kind domain.ContentKind, userID, parentID, body, mediaURL string) (*domain.ContentItem, error) {
	if userID == "" {
		return nil, domainerrors.Unauthorized("missing acting user")
	}
	parentKind, _ := kind.ParentKind()

	prefix := id.PrefixComment
	if kind == domain.KindReply {
		prefix = id.PrefixReply
	}

	now := s.now()
	item := &domain.ContentItem{
		ID:          id.MustGenerate(prefix),
		Kind:        kind,
		OwnerUserID: userID,
		ParentID:    parentID,
		Body:        body,
		MediaURL:    mediaURL,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err := s.store.RunTransaction(ctx, func(tx *store.Txn) error {
		if _, err := tx.Get(parentKind.Collection(), parentID); err != nil {
			return notFound(err, "%s %s not found", parentKind, parentID)
		}
		return tx.Create(kind.Collection(), item.ID, item.ToDocument())
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("content created", "kind", kind, "id", item.ID, "parent_id", parentID, "owner_id", userID)
	return item, nil
}

// UpdatePost edits a post owned by userID. A tag change reconciles tag post
// counts in the same transaction as the post write.
func (s *ContentService) UpdatePost(ctx context.Context, userID, postID string, in UpdatePostInput) (*domain.ContentItem, error) {
	var newTags []*domain.TagRef
	if in.Tags != nil {
		// Resolve creates missing tags, so ownership is checked before it.
		err := s.store.RunTransaction(ctx, func(tx *store.Txn) error {
			_, err := s.getOwned(tx, domain.KindPost, userID, postID)
			return err
		})
		if err != nil {
			return nil, err
		}
		newTags, err = s.tags.Resolve(ctx, *in.Tags)
		if err != nil {
			return nil, err
		}
	}

	var updated *domain.ContentItem
	err := s.store.RunTransaction(ctx, func(tx *store.Txn) error {
		post, err := s.getOwned(tx, domain.KindPost, userID, postID)
		if err != nil {
			return err
		}

		fields := store.Document{}
		if in.Title != nil {
			post.Title = strings.TrimSpace(*in.Title)
			fields[domain.FieldTitle] = post.Title
			fields[domain.FieldTitleLower] = domain.TitleKey(post.Title)
		}
		if in.Body != nil {
			post.Body = *in.Body
			fields[domain.FieldBody] = post.Body
		}
		if in.MediaURL != nil {
			post.MediaURL = *in.MediaURL
			fields[domain.FieldMediaURL] = nilIfEmpty(post.MediaURL)
		}
		if in.Tags != nil {
			oldTagIDs := post.TagIDs
			post.TagIDs, post.TagNames = tagFields(newTags)
			if _, err := s.tags.Reconcile(tx, oldTagIDs, post.TagIDs); err != nil {
				return err
			}
			fields[domain.FieldTagIDs] = post.TagIDs
			fields[domain.FieldTagNames] = post.TagNames
		}

		post.UpdatedAt = s.now()
		fields[domain.FieldUpdatedAt] = post.UpdatedAt
		updated = post
		return tx.Update(domain.CollectionPosts, postID, fields)
	})
	if err != nil {
		return nil, err
	}

	s.indexPost(updated)
	s.logger.Info("post updated", "post_id", postID, "owner_id", userID)
	return updated, nil
}

// UpdateBody edits the body of a comment or reply owned by userID.
func (s *ContentService) UpdateBody(ctx context.Context, kind domain.ContentKind, userID, itemID, body string) (*domain.ContentItem, error) {
	if !kind.Valid() {
		return nil, domainerrors.Validationf("unknown content kind %q", kind)
	}

	var updated *domain.ContentItem
	err := s.store.RunTransaction(ctx, func(tx *store.Txn) error {
		item, err := s.getOwned(tx, kind, userID, itemID)
		if err != nil {
			return err
		}
		item.Body = body
		item.UpdatedAt = s.now()
		updated = item
		return tx.Update(kind.Collection(), itemID, store.Document{
			domain.FieldBody:      body,
			domain.FieldUpdatedAt: item.UpdatedAt,
		})
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Delete removes an item owned by userID. Deleting a post decrements the post
// count of its tags in the same transaction. Dependent comments, replies and
// likes are removed later by the orphan sweep.
func (s *ContentService) Delete(ctx context.Context, kind domain.ContentKind, userID, itemID string) error {
	if !kind.Valid() {
		return domainerrors.Validationf("unknown content kind %q", kind)
	}

	err := s.store.RunTransaction(ctx, func(tx *store.Txn) error {
		item, err := s.getOwned(tx, kind, userID, itemID)
		if err != nil {
			return err
		}
		if kind == domain.KindPost {
			if _, err := s.tags.Reconcile(tx, item.TagIDs, nil); err != nil {
				return err
			}
		}
		return tx.Delete(kind.Collection(), itemID)
	})
	if err != nil {
		return err
	}

	if kind == domain.KindPost && s.index != nil {
		if err := s.index.DeletePost(itemID); err != nil {
			s.logger.Warn("failed to remove post from search index", "post_id", itemID, "error", err)
		}
	}
	s.logger.Info("content deleted", "kind", kind, "id", itemID, "owner_id", userID)
	return nil
}

// Get returns one content item.
func (s *ContentService) Get(ctx context.Context, kind domain.ContentKind, itemID string) (*domain.ContentItem, error) {
	if !kind.Valid() {
		return nil, domainerrors.Validationf("unknown content kind %q", kind)
	}
	snap, err := s.store.Collection(kind.Collection()).Get(ctx, itemID)
	if err != nil {
		return nil, notFound(err, "%s %s not found", kind, itemID)
	}
	return domain.ContentItemFromSnapshot(kind, snap), nil
}

// GetDetailed returns a post with its comments and their replies.
func (s *ContentService) GetDetailed(ctx context.Context, postID string) (*domain.DetailedItem, error) {
	return s.assembler.GetDetailed(ctx, postID)
}

// List returns a page of items of kind filtered by owner, tag or title search.
func (s *ContentService) List(ctx context.Context, kind domain.ContentKind, req ListRequest) (*ContentPage, error) {
	if !kind.Valid() {
		return nil, domainerrors.Validationf("unknown content kind %q", kind)
	}

	res, err := s.pages.Page(ctx, pagination.Request{
		Source: pagination.ContentSource(kind),
		Filter: pagination.Filter{
			OwnerIDs: req.OwnerIDs,
			TagIDs:   req.TagIDs,
			Search:   req.Search,
		},
		PageSize: req.PageSize,
		Cursor:   req.Cursor,
		Page:     req.Page,
	})
	if err != nil {
		return nil, err
	}
	return contentPage(kind, res), nil
}

// PostsByTag returns a page of posts carrying the tag with the given name.
func (s *ContentService) PostsByTag(ctx context.Context, tagName string, page PageRequest) (*ContentPage, error) {
	tag, err := s.tags.FindByName(ctx, tagName)
	if err != nil {
		return nil, err
	}
	return s.List(ctx, domain.KindPost, ListRequest{TagIDs: []string{tag.ID}, PageRequest: page})
}

// PopularTags returns the most used tags.
func (s *ContentService) PopularTags(ctx context.Context, limit int) ([]*domain.TagRef, error) {
	return s.tags.PopularTags(ctx, limit)
}

// getOwned loads an item inside tx and checks that userID owns it.
func (s *ContentService) getOwned(tx *store.Txn, kind domain.ContentKind, userID, itemID string) (*domain.ContentItem, error) {
	snap, err := tx.Get(kind.Collection(), itemID)
	if err != nil {
		return nil, notFound(err, "%s %s not found", kind, itemID)
	}
	item := domain.ContentItemFromSnapshot(kind, snap)
	if userID == "" || !item.IsOwnedBy(userID) {
		return nil, domainerrors.Unauthorized("only the owner can change this " + string(kind))
	}
	return item, nil
}

func (s *ContentService) indexPost(post *domain.ContentItem) {
	if s.index == nil {
		return
	}
	if err := s.index.IndexPost(search.PostDocumentFrom(post)); err != nil {
		s.logger.Warn("failed to index post", "post_id", post.ID, "error", err)
	}
}

func contentPage(kind domain.ContentKind, res *pagination.Result) *ContentPage {
	items := make([]*domain.ContentItem, len(res.Items))
	for i, snap := range res.Items {
		items[i] = domain.ContentItemFromSnapshot(kind, snap)
	}
	return &ContentPage{
		Items:      items,
		Total:      res.Total,
		TotalExact: res.TotalExact,
		NextCursor: res.NextCursor,
		HasMore:    res.HasMore,
	}
}

func tagFields(tags []*domain.TagRef) (ids, names []string) {
	ids = make([]string, len(tags))
	names = make([]string, len(tags))
	for i, tag := range tags {
		ids[i] = tag.ID
		names[i] = tag.Name
	}
	return ids, names
}

func nilIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// notFound rewrites a store not-found into a domain error with a message
// naming the missing document.
func notFound(err error, format string, args ...any) error {
	if errors.Is(err, store.ErrNotFound) {
		return domainerrors.NotFoundf(format, args...)
	}
	return err
}
