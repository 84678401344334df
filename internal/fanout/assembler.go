// Package fanout assembles a post with its comments and their replies from
// three collections.
package fanout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Colorex-team/Colorex-System/internal/domain"
	domainerrors "github.com/Colorex-team/Colorex-System/internal/errors"
	"github.com/Colorex-team/Colorex-System/internal/logger"
	"github.com/Colorex-team/Colorex-System/internal/store"
)

// DefaultConcurrency bounds reply fetches in flight for one tree.
const DefaultConcurrency = 8

// Assembler builds DetailedItem trees. The tree is not paginated: breadth is
// bounded only by the number of comments and replies.
type Assembler struct {
	store       *store.Store
	concurrency int
	logger      *slog.Logger
}

// New creates an assembler that loads at most concurrency reply lists at once.
func New(s *store.Store, concurrency int, log *slog.Logger) *Assembler {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	return &Assembler{
		store:       s,
		concurrency: concurrency,
		logger:      logger.OrDiscard(log),
	}
}

// GetDetailed returns the post with its comments oldest first, each with its
// replies oldest first. Every node carries its own like count.
func (a *Assembler) GetDetailed(ctx context.Context, postID string) (*domain.DetailedItem, error) {
	start := time.Now()

	snap, err := a.store.Collection(domain.CollectionPosts).Get(ctx, postID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, domainerrors.NotFoundf("post %s not found", postID)
		}
		return nil, err
	}
	root := &domain.DetailedItem{ContentItem: domain.ContentItemFromSnapshot(domain.KindPost, snap)}

	comments, err := a.children(ctx, domain.KindComment, postID)
	if err != nil {
		return nil, fmt.Errorf("load comments of %s: %w", postID, err)
	}

	root.Comments = make([]*domain.DetailedComment, len(comments))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.concurrency)
	for i, comment := range comments {
		root.Comments[i] = &domain.DetailedComment{ContentItem: comment}
		g.Go(func() error {
			replies, err := a.children(gctx, domain.KindReply, comment.ID)
			if err != nil {
				return fmt.Errorf("load replies of %s: %w", comment.ID, err)
			}
			root.Comments[i].Replies = replies
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	a.logger.Debug("detailed item assembled",
		"post_id", postID,
		"comments", len(comments),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return root, nil
}

// children lists items of kind whose parent is parentID, oldest first.
func (a *Assembler) children(ctx context.Context, kind domain.ContentKind, parentID string) ([]*domain.ContentItem, error) {
	docs, err := a.store.Collection(kind.Collection()).Query().
		Where(domain.FieldParentID, store.OpEqual, parentID).
		OrderBy(domain.FieldCreatedAt, store.Asc).
		Documents(ctx)
	if err != nil {
		return nil, err
	}

	items := make([]*domain.ContentItem, len(docs))
	for i, doc := range docs {
		items[i] = domain.ContentItemFromSnapshot(kind, doc)
	}
	return items, nil
}
