package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/Colorex-team/Colorex-System/internal/association"
	"github.com/Colorex-team/Colorex-System/internal/domain"
	domainerrors "github.com/Colorex-team/Colorex-System/internal/errors"
	"github.com/Colorex-team/Colorex-System/internal/logger"
	"github.com/Colorex-team/Colorex-System/internal/notify"
	"github.com/Colorex-team/Colorex-System/internal/pagination"
	"github.com/Colorex-team/Colorex-System/internal/store"
)

// EventSink receives notification events. *notify.Dispatcher implements it.
type EventSink interface {
	Dispatch(event notify.Event)
}

// SocialService handles likes, follows and the follow feed.
type SocialService struct {
	store    *store.Store
	registry *association.Registry
	pages    *pagination.Engine
	events   EventSink
	logger   *slog.Logger
	now      func() time.Time
}

// NewSocialService creates a social service. events may be nil.
func NewSocialService(
	s *store.Store,
	registry *association.Registry,
	pages *pagination.Engine,
	events EventSink,
	log *slog.Logger,
) *SocialService {
	return &SocialService{
		store:    s,
		registry: registry,
		pages:    pages,
		events:   events,
		logger:   logger.OrDiscard(log),
		now:      time.Now,
	}
}

// AssociationPage is one page of follow records.
type AssociationPage struct {
	Items      []*domain.Association `json:"items"`
	Total      int64                 `json:"total"`
	TotalExact bool                  `json:"total_exact"`
	NextCursor string                `json:"next_cursor,omitempty"`
	HasMore    bool                  `json:"has_more"`
}

// Like makes userID like the item. Liking twice is a no-op.
func (s *SocialService) Like(ctx context.Context, kind domain.ContentKind, userID, itemID string) (association.Result, error) {
	return s.applyLike(ctx, kind, userID, itemID, association.Create)
}

// Unlike removes userID's like from the item. Unliking twice is a no-op.
func (s *SocialService) Unlike(ctx context.Context, kind domain.ContentKind, userID, itemID string) (association.Result, error) {
	return s.applyLike(ctx, kind, userID, itemID, association.Delete)
}

// ToggleLike flips userID's like on the item.
func (s *SocialService) ToggleLike(ctx context.Context, kind domain.ContentKind, userID, itemID string) (association.Result, error) {
	likeKind, err := association.LikeKind(kind)
	if err != nil {
		return association.Result{}, err
	}
	if userID == "" {
		return association.Result{}, domainerrors.Unauthorized("missing acting user")
	}

	res, err := s.registry.Toggle(ctx, likeKind, userID, itemID)
	if err != nil {
		return association.Result{}, err
	}
	s.notifyLike(ctx, kind, userID, itemID, res)
	return res, nil
}

func (s *SocialService) applyLike(ctx context.Context, kind domain.ContentKind, userID, itemID string, intent association.Intent) (association.Result, error) {
	likeKind, err := association.LikeKind(kind)
	if err != nil {
		return association.Result{}, err
	}
	if userID == "" {
		return association.Result{}, domainerrors.Unauthorized("missing acting user")
	}

	res, err := s.registry.Apply(ctx, likeKind, userID, itemID, intent)
	if err != nil {
		return association.Result{}, err
	}
	s.notifyLike(ctx, kind, userID, itemID, res)
	return res, nil
}

// HasLiked reports whether userID likes the item.
func (s *SocialService) HasLiked(ctx context.Context, kind domain.ContentKind, userID, itemID string) (bool, error) {
	likeKind, err := association.LikeKind(kind)
	if err != nil {
		return false, err
	}
	return s.registry.Verify(ctx, likeKind, userID, itemID)
}

// LikeCount reads the denormalized like counter of the item.
func (s *SocialService) LikeCount(ctx context.Context, kind domain.ContentKind, itemID string) (int64, error) {
	likeKind, err := association.LikeKind(kind)
	if err != nil {
		return 0, err
	}
	return s.registry.Count(ctx, likeKind, itemID)
}

// Follow makes userID follow targetUserID. Following twice is a no-op.
func (s *SocialService) Follow(ctx context.Context, userID, targetUserID string) (association.Result, error) {
	if userID == "" {
		return association.Result{}, domainerrors.Unauthorized("missing acting user")
	}
	res, err := s.registry.Apply(ctx, association.Follow, userID, targetUserID, association.Create)
	if err != nil {
		return association.Result{}, err
	}
	s.notifyFollow(userID, targetUserID, res)
	return res, nil
}

// Unfollow removes the follow. Unfollowing twice is a no-op.
func (s *SocialService) Unfollow(ctx context.Context, userID, targetUserID string) (association.Result, error) {
	if userID == "" {
		return association.Result{}, domainerrors.Unauthorized("missing acting user")
	}
	return s.registry.Apply(ctx, association.Follow, userID, targetUserID, association.Delete)
}

// ToggleFollow flips the follow.
func (s *SocialService) ToggleFollow(ctx context.Context, userID, targetUserID string) (association.Result, error) {
	if userID == "" {
		return association.Result{}, domainerrors.Unauthorized("missing acting user")
	}
	res, err := s.registry.Toggle(ctx, association.Follow, userID, targetUserID)
	if err != nil {
		return association.Result{}, err
	}
	s.notifyFollow(userID, targetUserID, res)
	return res, nil
}

// IsFollowing reports whether userID follows targetUserID.
func (s *SocialService) IsFollowing(ctx context.Context, userID, targetUserID string) (bool, error) {
	return s.registry.Verify(ctx, association.Follow, userID, targetUserID)
}

// Followers returns a page of the users following userID, newest first.
func (s *SocialService) Followers(ctx context.Context, userID string, page PageRequest) (*AssociationPage, error) {
	return s.followPage(ctx, pagination.FollowersSource(), userID, page)
}

// Following returns a page of the users userID follows, newest first.
func (s *SocialService) Following(ctx context.Context, userID string, page PageRequest) (*AssociationPage, error) {
	return s.followPage(ctx, pagination.FollowingSource(), userID, page)
}

func (s *SocialService) followPage(ctx context.Context, src pagination.Source, userID string, page PageRequest) (*AssociationPage, error) {
	if userID == "" {
		return nil, domainerrors.Validation("user id is required")
	}
	res, err := s.pages.Page(ctx, pagination.Request{
		Source:   src,
		Filter:   pagination.Filter{OwnerIDs: []string{userID}},
		PageSize: page.PageSize,
		Cursor:   page.Cursor,
		Page:     page.Page,
	})
	if err != nil {
		return nil, err
	}

	items := make([]*domain.Association, len(res.Items))
	for i, snap := range res.Items {
		items[i] = domain.AssociationFromSnapshot(snap)
	}
	return &AssociationPage{
		Items:      items,
		Total:      res.Total,
		TotalExact: res.TotalExact,
		NextCursor: res.NextCursor,
		HasMore:    res.HasMore,
	}, nil
}

// Feed returns a page of posts by the users userID follows, newest first.
func (s *SocialService) Feed(ctx context.Context, userID string, page PageRequest) (*ContentPage, error) {
	if userID == "" {
		return nil, domainerrors.Unauthorized("missing acting user")
	}

	follows, err := s.store.Collection(domain.CollectionFollows).Query().
		Where(domain.FieldSubjectID, store.OpEqual, userID).
		Documents(ctx)
	if err != nil {
		return nil, err
	}
	if len(follows) == 0 {
		return &ContentPage{Items: []*domain.ContentItem{}, TotalExact: true}, nil
	}

	followees := make([]string, len(follows))
	for i, snap := range follows {
		followees[i] = snap.Data.String(domain.FieldTargetID)
	}

	res, err := s.pages.Page(ctx, pagination.Request{
		Source:   pagination.ContentSource(domain.KindPost),
		Filter:   pagination.Filter{OwnerIDs: followees},
		PageSize: page.PageSize,
		Cursor:   page.Cursor,
		Page:     page.Page,
	})
	if err != nil {
		return nil, err
	}
	return contentPage(domain.KindPost, res), nil
}

// notifyLike emits a like event when the like was newly created by someone
// other than the item's owner.
func (s *SocialService) notifyLike(ctx context.Context, kind domain.ContentKind, userID, itemID string, res association.Result) {
	if s.events == nil || !res.Changed || !res.NowPresent {
		return
	}

	snap, err := s.store.Collection(kind.Collection()).Get(ctx, itemID)
	if err != nil {
		s.logger.Debug("like target gone before notification", "kind", kind, "id", itemID, "error", err)
		return
	}
	owner := snap.Data.String(domain.FieldOwnerUserID)
	if owner == userID {
		return
	}

	s.events.Dispatch(notify.Event{
		Type:            notify.EventLike,
		ActorUserID:     userID,
		RecipientUserID: owner,
		TargetID:        itemID,
		TargetKind:      string(kind),
		At:              s.now(),
	})
}

func (s *SocialService) notifyFollow(userID, targetUserID string, res association.Result) {
	if s.events == nil || !res.Changed || !res.NowPresent {
		return
	}
	s.events.Dispatch(notify.Event{
		Type:            notify.EventFollow,
		ActorUserID:     userID,
		RecipientUserID: targetUserID,
		TargetID:        targetUserID,
		At:              s.now(),
	})
}
