package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/Colorex-team/Colorex-System/internal/association"
	"github.com/Colorex-team/Colorex-System/internal/domain"
	"github.com/Colorex-team/Colorex-System/internal/id"
	"github.com/Colorex-team/Colorex-System/internal/logger"
	"github.com/Colorex-team/Colorex-System/internal/search"
	"github.com/Colorex-team/Colorex-System/internal/store"
	"github.com/Colorex-team/Colorex-System/internal/tagindex"
)

// DefaultSweepRate is the default number of sweep deletes per second.
const DefaultSweepRate = 200

// MaintenanceService removes orphaned documents left behind by deletes and
// repairs denormalized counters from the records they summarize.
type MaintenanceService struct {
	store         *store.Store
	registry      *association.Registry
	tags          *tagindex.Maintainer
	index         *search.Index
	subscriptions *SubscriptionService
	limiter       *rate.Limiter
	logger        *slog.Logger
}

// NewMaintenanceService creates a maintenance service. index and
// subscriptions may be nil. deletesPerSecond bounds sweep write load.
func NewMaintenanceService(
	s *store.Store,
	registry *association.Registry,
	tags *tagindex.Maintainer,
	index *search.Index,
	subscriptions *SubscriptionService,
	deletesPerSecond int,
	log *slog.Logger,
) *MaintenanceService {
	if deletesPerSecond <= 0 {
		deletesPerSecond = DefaultSweepRate
	}
	return &MaintenanceService{
		store:         s,
		registry:      registry,
		tags:          tags,
		index:         index,
		subscriptions: subscriptions,
		limiter:       rate.NewLimiter(rate.Limit(deletesPerSecond), deletesPerSecond),
		logger:        logger.OrDiscard(log),
	}
}

// SweepReport counts the orphans removed by one sweep.
type SweepReport struct {
	RunID    string        `json:"run_id"`
	Comments int           `json:"comments"`
	Replies  int           `json:"replies"`
	Likes    int           `json:"likes"`
	Follows  int           `json:"follows"`
	Duration time.Duration `json:"duration"`
}

// Total returns the number of documents removed.
func (r *SweepReport) Total() int {
	return r.Comments + r.Replies + r.Likes + r.Follows
}

// RecountReport counts the documents whose counter was corrected.
type RecountReport struct {
	Checked  int `json:"checked"`
	Repaired int `json:"repaired"`
}

// RunReport summarizes one maintenance run.
type RunReport struct {
	Sweep                *SweepReport `json:"sweep"`
	ExpiredSubscriptions int          `json:"expired_subscriptions"`
}

// RunOnce sweeps orphans and expires subscriptions past their end date.
func (s *MaintenanceService) RunOnce(ctx context.Context) (*RunReport, error) {
	sweep, err := s.SweepOrphans(ctx)
	if err != nil {
		return nil, err
	}

	report := &RunReport{Sweep: sweep}
	if s.subscriptions != nil {
		report.ExpiredSubscriptions, err = s.subscriptions.ExpireDue(ctx)
		if err != nil {
			return report, err
		}
	}
	return report, nil
}

// SweepOrphans deletes comments whose post is gone, replies whose comment is
// gone, likes whose target is gone and follows naming a missing user.
// Passes run parent first so one sweep clears a whole deleted subtree.
// Every delete re-checks the parent in its own transaction.
func (s *MaintenanceService) SweepOrphans(ctx context.Context) (*SweepReport, error) {
	start := time.Now()
	report := &SweepReport{RunID: id.NewRunID()}
	log := s.logger.With("run_id", report.RunID)
	log.Info("orphan sweep started")

	var err error
	report.Comments, err = s.sweepChildren(ctx, domain.CollectionComments, domain.FieldParentID, domain.CollectionPosts)
	if err != nil {
		return nil, err
	}
	report.Replies, err = s.sweepChildren(ctx, domain.CollectionReplies, domain.FieldParentID, domain.CollectionComments)
	if err != nil {
		return nil, err
	}

	for _, kind := range []association.Kind{association.PostLike, association.CommentLike, association.ReplyLike} {
		n, err := s.sweepChildren(ctx, kind.Collection, domain.FieldTargetID, kind.TargetCollection)
		if err != nil {
			return nil, err
		}
		report.Likes += n
	}

	report.Follows, err = s.sweepFollows(ctx)
	if err != nil {
		return nil, err
	}

	report.Duration = time.Since(start)
	log.Info("orphan sweep completed",
		"comments", report.Comments,
		"replies", report.Replies,
		"likes", report.Likes,
		"follows", report.Follows,
		"duration", report.Duration,
	)
	return report, nil
}

// sweepChildren deletes documents of collection whose parentField names a
// document missing from parentCollection.
func (s *MaintenanceService) sweepChildren(ctx context.Context, collection, parentField, parentCollection string) (int, error) {
	orphans, err := s.findOrphans(ctx, collection, func(doc store.Document) []parentRef {
		return []parentRef{{parentCollection, doc.String(parentField)}}
	})
	if err != nil {
		return 0, err
	}

	deleted := 0
	for _, docID := range orphans {
		if err := s.limiter.Wait(ctx); err != nil {
			return deleted, err
		}

		var removed bool
		err := s.store.RunTransaction(ctx, func(tx *store.Txn) error {
			removed = false
			snap, err := tx.Get(collection, docID)
			if err != nil {
				if errors.Is(err, store.ErrNotFound) {
					return nil
				}
				return err
			}
			exists, err := tx.Exists(parentCollection, snap.Data.String(parentField))
			if err != nil || exists {
				return err
			}
			removed, err = tx.DeleteExisting(collection, docID)
			return err
		})
		if err != nil {
			return deleted, err
		}
		if removed {
			deleted++
			s.logger.Debug("orphan removed", "collection", collection, "id", docID)
		}
	}
	return deleted, nil
}

// sweepFollows deletes follow records where either user is gone and
// decrements the counter of the user that remains.
func (s *MaintenanceService) sweepFollows(ctx context.Context) (int, error) {
	orphans, err := s.findOrphans(ctx, domain.CollectionFollows, func(doc store.Document) []parentRef {
		return []parentRef{
			{domain.CollectionUsers, doc.String(domain.FieldSubjectID)},
			{domain.CollectionUsers, doc.String(domain.FieldTargetID)},
		}
	})
	if err != nil {
		return 0, err
	}

	follow := association.Follow
	deleted := 0
	for _, key := range orphans {
		if err := s.limiter.Wait(ctx); err != nil {
			return deleted, err
		}

		var removed bool
		err := s.store.RunTransaction(ctx, func(tx *store.Txn) error {
			removed = false
			snap, err := tx.Get(domain.CollectionFollows, key)
			if err != nil {
				if errors.Is(err, store.ErrNotFound) {
					return nil
				}
				return err
			}
			subjectID := snap.Data.String(domain.FieldSubjectID)
			targetID := snap.Data.String(domain.FieldTargetID)

			subjectExists, err := tx.Exists(domain.CollectionUsers, subjectID)
			if err != nil {
				return err
			}
			targetExists, err := tx.Exists(domain.CollectionUsers, targetID)
			if err != nil {
				return err
			}
			if subjectExists && targetExists {
				return nil
			}

			if removed, err = tx.DeleteExisting(domain.CollectionFollows, key); err != nil || !removed {
				return err
			}
			if subjectExists {
				if err := follow.SubjectCounter.Apply(tx, subjectID, -1); err != nil {
					return err
				}
			}
			if targetExists {
				if err := follow.TargetCounter.Apply(tx, targetID, -1); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return deleted, err
		}
		if removed {
			deleted++
			s.logger.Debug("orphan follow removed", "key", key)
		}
	}
	return deleted, nil
}

type parentRef struct {
	collection string
	id         string
}

// findOrphans scans collection and returns the ids of documents with at least
// one missing parent. Parent lookups are memoized for the scan.
func (s *MaintenanceService) findOrphans(ctx context.Context, collection string, parents func(store.Document) []parentRef) ([]string, error) {
	known := make(map[parentRef]bool)
	var orphans []string

	for snap, err := range s.store.Collection(collection).All(ctx) {
		if err != nil {
			return nil, err
		}
		for _, ref := range parents(snap.Data) {
			exists, ok := known[ref]
			if !ok {
				if ref.id == "" {
					exists = false
				} else if exists, err = s.store.Collection(ref.collection).Exists(ctx, ref.id); err != nil {
					return nil, err
				}
				known[ref] = exists
			}
			if !exists {
				orphans = append(orphans, snap.ID)
				break
			}
		}
	}
	return orphans, nil
}

// RecountLikes rebuilds the like counter of every item of kind.
func (s *MaintenanceService) RecountLikes(ctx context.Context, kind domain.ContentKind) (*RecountReport, error) {
	likeKind, err := association.LikeKind(kind)
	if err != nil {
		return nil, err
	}
	return s.recountAll(ctx, kind.Collection(), func(docID string) (int64, error) {
		return s.registry.RecountTarget(ctx, likeKind, docID)
	})
}

// RecountFollows rebuilds the follower and following counters of every user.
func (s *MaintenanceService) RecountFollows(ctx context.Context) (*RecountReport, error) {
	return s.recountAll(ctx, domain.CollectionUsers, func(userID string) (int64, error) {
		followers, err := s.registry.RecountTarget(ctx, association.Follow, userID)
		if err != nil {
			return 0, err
		}
		following, err := s.registry.RecountSubject(ctx, association.Follow, userID)
		if err != nil {
			return 0, err
		}
		return abs(followers) + abs(following), nil
	})
}

// RecountTags rebuilds the post count of every tag.
func (s *MaintenanceService) RecountTags(ctx context.Context) (*RecountReport, error) {
	tagIDs, err := s.tags.AllTagIDs(ctx)
	if err != nil {
		return nil, err
	}

	report := &RecountReport{}
	for _, tagID := range tagIDs {
		delta, err := s.tags.Recount(ctx, tagID)
		if err != nil {
			return report, err
		}
		report.Checked++
		if delta != 0 {
			report.Repaired++
		}
	}
	s.logger.Info("tag recount completed", "checked", report.Checked, "repaired", report.Repaired)
	return report, nil
}

func (s *MaintenanceService) recountAll(ctx context.Context, collection string, recount func(docID string) (int64, error)) (*RecountReport, error) {
	var ids []string
	for snap, err := range s.store.Collection(collection).All(ctx) {
		if err != nil {
			return nil, err
		}
		ids = append(ids, snap.ID)
	}

	report := &RecountReport{}
	for _, docID := range ids {
		delta, err := recount(docID)
		if err != nil {
			// Deleted since the scan.
			if errors.Is(err, store.ErrNotFound) {
				continue
			}
			return report, err
		}
		report.Checked++
		if delta != 0 {
			report.Repaired++
		}
	}
	s.logger.Info("recount completed", "collection", collection, "checked", report.Checked, "repaired", report.Repaired)
	return report, nil
}

// ReindexSearch rebuilds the search index from the posts collection and
// returns the number of posts indexed. Without an index it does nothing.
func (s *MaintenanceService) ReindexSearch(ctx context.Context) (int, error) {
	if s.index == nil {
		return 0, nil
	}

	start := time.Now()
	if err := s.index.Rebuild(); err != nil {
		return 0, err
	}

	var docs []*search.PostDocument
	for snap, err := range s.store.Collection(domain.CollectionPosts).All(ctx) {
		if err != nil {
			return 0, err
		}
		docs = append(docs, search.PostDocumentFrom(domain.ContentItemFromSnapshot(domain.KindPost, snap)))
	}
	if err := s.index.IndexPosts(docs); err != nil {
		return 0, err
	}

	s.logger.Info("search index rebuilt", "posts", len(docs), "duration", time.Since(start))
	return len(docs), nil
}

func abs(n int64) int64 {
	if n < 0 {
		return -n
	}
	return n
}
