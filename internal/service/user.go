package service

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/Colorex-team/Colorex-System/internal/domain"
	domainerrors "github.com/Colorex-team/Colorex-System/internal/errors"
	"github.com/Colorex-team/Colorex-System/internal/id"
	"github.com/Colorex-team/Colorex-System/internal/logger"
	"github.com/Colorex-team/Colorex-System/internal/store"
)

// UserService manages the user documents that carry follow counters.
// Authentication lives outside this module.
type UserService struct {
	store  *store.Store
	logger *slog.Logger
	now    func() time.Time
}

// NewUserService creates a user service.
func NewUserService(s *store.Store, log *slog.Logger) *UserService {
	return &UserService{
		store:  s,
		logger: logger.OrDiscard(log),
		now:    time.Now,
	}
}

// CreateUser inserts a profile with zero follow counters.
// An empty userID gets a generated one.
func (s *UserService) CreateUser(ctx context.Context, userID, username, avatarURL string) (*domain.UserProfile, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, domainerrors.Validation("username is required")
	}
	if userID == "" {
		userID = id.MustGenerate(id.PrefixUser)
	}

	now := s.now()
	user := &domain.UserProfile{
		ID:        userID,
		Username:  username,
		AvatarURL: avatarURL,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.Collection(domain.CollectionUsers).Create(ctx, user.ID, user.ToDocument()); err != nil {
		if domainerrors.CodeOf(err) == domainerrors.CodeAlreadyExists {
			return nil, domainerrors.Conflictf("user %s already exists", userID)
		}
		return nil, err
	}

	s.logger.Info("user created", "user_id", user.ID, "username", username)
	return user, nil
}

// Get returns a user profile.
func (s *UserService) Get(ctx context.Context, userID string) (*domain.UserProfile, error) {
	snap, err := s.store.Collection(domain.CollectionUsers).Get(ctx, userID)
	if err != nil {
		return nil, notFound(err, "user %s not found", userID)
	}
	return domain.UserProfileFromSnapshot(snap), nil
}

// UpdateUserInput names the profile fields to change. Nil fields are kept.
type UpdateUserInput struct {
	Username  *string
	AvatarURL *string
}

// Update edits the profile of userID on behalf of actorID, then rewrites the
// username and avatar copied onto that user's follow records.
//
// The follow records are rewritten after the profile commit in batches of at
// most store.MaxBatchOps, so a reader can briefly see the old summary. A
// failed refresh is logged and retried by the next Update.
func (s *UserService) Update(ctx context.Context, actorID, userID string, in UpdateUserInput) (*domain.UserProfile, error) {
	if actorID == "" || actorID != userID {
		return nil, domainerrors.Unauthorized("only the user can change this profile")
	}

	fields := store.Document{}
	if in.Username != nil {
		name := strings.TrimSpace(*in.Username)
		if name == "" {
			return nil, domainerrors.Validation("username is required")
		}
		fields[domain.FieldUsername] = name
	}
	if in.AvatarURL != nil {
		fields[domain.FieldAvatarURL] = *in.AvatarURL
	}

	var user *domain.UserProfile
	err := s.store.RunTransaction(ctx, func(tx *store.Txn) error {
		snap, err := tx.Get(domain.CollectionUsers, userID)
		if err != nil {
			return notFound(err, "user %s not found", userID)
		}
		user = domain.UserProfileFromSnapshot(snap)
		if name, ok := fields[domain.FieldUsername].(string); ok {
			user.Username = name
		}
		if avatar, ok := fields[domain.FieldAvatarURL].(string); ok {
			user.AvatarURL = avatar
		}
		user.UpdatedAt = s.now()
		fields[domain.FieldUpdatedAt] = user.UpdatedAt
		return tx.Update(domain.CollectionUsers, userID, fields)
	})
	if err != nil {
		return nil, err
	}

	if err := s.refreshFollowSummaries(ctx, user); err != nil {
		s.logger.Warn("follow summaries not refreshed", "user_id", userID, logger.Err(err))
	}
	s.logger.Info("user updated", "user_id", userID)
	return user, nil
}

// refreshFollowSummaries copies the user's current username and avatar onto
// the follow records where the user is the follower or the followee.
func (s *UserService) refreshFollowSummaries(ctx context.Context, user *domain.UserProfile) error {
	sides := []struct {
		idField, nameField, avatarField string
	}{
		{domain.FieldSubjectID, domain.FieldSubjectName, domain.FieldSubjectAvatar},
		{domain.FieldTargetID, domain.FieldTargetName, domain.FieldTargetAvatar},
	}

	follows := s.store.Collection(domain.CollectionFollows)
	for _, side := range sides {
		snaps, err := follows.Query().Where(side.idField, store.OpEqual, user.ID).Documents(ctx)
		if err != nil {
			return err
		}
		ids := make([]string, len(snaps))
		for i, snap := range snaps {
			ids[i] = snap.ID
		}

		fields := store.Document{side.nameField: user.Username, side.avatarField: user.AvatarURL}
		for chunk := range slices.Chunk(ids, store.MaxBatchOps) {
			err := s.store.RunTransaction(ctx, func(tx *store.Txn) error {
				for _, followID := range chunk {
					ok, err := tx.Exists(domain.CollectionFollows, followID)
					if err != nil {
						return err
					}
					// Unfollowed since the query ran.
					if !ok {
						continue
					}
					if err := tx.Update(domain.CollectionFollows, followID, fields); err != nil {
						return err
					}
				}
				return nil
			})
			if err != nil {
				return fmt.Errorf("rewrite %s of follows: %w", side.nameField, err)
			}
		}
	}
	return nil
}
