// Package association implements idempotent relation toggles (likes, follows)
// paired with the denormalized counters they maintain.
//
// Every mutation runs as one optimistic store transaction: the existence
// check of the association key, the conditional create or delete and the
// counter increments commit together. Two concurrent identical requests
// therefore cannot both observe absence and both count.
package association

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Colorex-team/Colorex-System/internal/domain"
	domainerrors "github.com/Colorex-team/Colorex-System/internal/errors"
	"github.com/Colorex-team/Colorex-System/internal/logger"
	"github.com/Colorex-team/Colorex-System/internal/store"
)

// Kind parameterizes the registry for one relation type.
type Kind struct {
	Name string
	// Collection holds the association records.
	Collection string
	// TargetCollection holds the related-to documents; the target must exist.
	TargetCollection string
	// TargetCounter is incremented on the target for every created record.
	TargetCounter Counter
	// SubjectCounter, when set, is incremented on the subject's document too.
	SubjectCounter Counter
	// Denormalize copies both users' display fields into the record.
	Denormalize bool
	// AllowSelf permits subject == target.
	AllowSelf bool
}

// The relation types of the content graph.
var (
	PostLike = Kind{
		Name:             "post_like",
		Collection:       domain.CollectionPostLikes,
		TargetCollection: domain.CollectionPosts,
		TargetCounter:    Counter{Collection: domain.CollectionPosts, Field: domain.FieldLikeCount},
		AllowSelf:        true,
	}
	CommentLike = Kind{
		Name:             "comment_like",
		Collection:       domain.CollectionCommentLikes,
		TargetCollection: domain.CollectionComments,
		TargetCounter:    Counter{Collection: domain.CollectionComments, Field: domain.FieldLikeCount},
		AllowSelf:        true,
	}
	ReplyLike = Kind{
		Name:             "reply_like",
		Collection:       domain.CollectionReplyLikes,
		TargetCollection: domain.CollectionReplies,
		TargetCounter:    Counter{Collection: domain.CollectionReplies, Field: domain.FieldLikeCount},
		AllowSelf:        true,
	}
	Follow = Kind{
		Name:             "follow",
		Collection:       domain.CollectionFollows,
		TargetCollection: domain.CollectionUsers,
		TargetCounter:    Counter{Collection: domain.CollectionUsers, Field: domain.FieldFollowersCount},
		SubjectCounter:   Counter{Collection: domain.CollectionUsers, Field: domain.FieldFollowingCount},
		Denormalize:      true,
	}
)

// LikeKind returns the like relation for a content kind.
func LikeKind(kind domain.ContentKind) (Kind, error) {
	switch kind {
	case domain.KindPost:
		return PostLike, nil
	case domain.KindComment:
		return CommentLike, nil
	case domain.KindReply:
		return ReplyLike, nil
	default:
		return Kind{}, domainerrors.Validationf("unknown content kind %q", kind)
	}
}

// Intent is the state the caller wants the association to end in.
type Intent int

const (
	Create Intent = iota
	Delete
)

func (i Intent) String() string {
	if i == Delete {
		return "delete"
	}
	return "create"
}

// Result describes the outcome of a mutation.
// Changed is false when the association was already in the requested state;
// in that case no counter was touched.
type Result struct {
	Changed    bool
	NowPresent bool
}

// Registry applies association mutations.
type Registry struct {
	store  *store.Store
	logger *slog.Logger
	now    func() time.Time
}

// NewRegistry creates a registry on s.
func NewRegistry(s *store.Store, log *slog.Logger) *Registry {
	return &Registry{
		store:  s,
		logger: logger.OrDiscard(log),
		now:    time.Now,
	}
}

// Apply drives the (subject, target) association to the state named by intent.
// Returns NotFound if the target is absent.
func (r *Registry) Apply(ctx context.Context, kind Kind, subjectUserID, targetID string, intent Intent) (Result, error) {
	if err := checkIDs(kind, subjectUserID, targetID); err != nil {
		return Result{}, err
	}

	var res Result
	err := r.store.RunTransaction(ctx, func(tx *store.Txn) error {
		var err error
		res, err = r.apply(tx, kind, subjectUserID, targetID, func(present bool) bool {
			return present != (intent == Create)
		})
		return err
	})
	if err != nil {
		return Result{}, err
	}

	r.logResult(kind, subjectUserID, targetID, intent.String(), res)
	return res, nil
}

// Toggle flips the association: creates it when absent, deletes it when present.
func (r *Registry) Toggle(ctx context.Context, kind Kind, subjectUserID, targetID string) (Result, error) {
	if err := checkIDs(kind, subjectUserID, targetID); err != nil {
		return Result{}, err
	}

	var res Result
	err := r.store.RunTransaction(ctx, func(tx *store.Txn) error {
		var err error
		res, err = r.apply(tx, kind, subjectUserID, targetID, func(bool) bool { return true })
		return err
	})
	if err != nil {
		return Result{}, err
	}

	r.logResult(kind, subjectUserID, targetID, "toggle", res)
	return res, nil
}

// apply runs inside a transaction. shouldFlip decides from the current
// presence whether the record is created or deleted.
func (r *Registry) apply(tx *store.Txn, kind Kind, subjectUserID, targetID string, shouldFlip func(present bool) bool) (Result, error) {
	target, err := tx.Get(kind.TargetCollection, targetID)
	if err != nil {
		return Result{}, notFoundAs(err, kind.TargetCollection, targetID)
	}

	key := domain.AssociationKey(subjectUserID, targetID)
	present, err := tx.Exists(kind.Collection, key)
	if err != nil {
		return Result{}, err
	}

	if !shouldFlip(present) {
		return Result{Changed: false, NowPresent: present}, nil
	}

	if present {
		if err := tx.Delete(kind.Collection, key); err != nil {
			return Result{}, err
		}
		if err := r.applyCounters(tx, kind, subjectUserID, targetID, -1); err != nil {
			return Result{}, err
		}
		return Result{Changed: true, NowPresent: false}, nil
	}

	record := &domain.Association{
		Key:           key,
		SubjectUserID: subjectUserID,
		TargetID:      targetID,
		CreatedAt:     r.now(),
	}
	if kind.Denormalize {
		subject, err := tx.Get(kind.TargetCollection, subjectUserID)
		if err != nil {
			return Result{}, notFoundAs(err, kind.TargetCollection, subjectUserID)
		}
		record.Subject = domain.UserProfileFromSnapshot(subject).Summary()
		record.Target = domain.UserProfileFromSnapshot(target).Summary()
	}

	if err := tx.Create(kind.Collection, key, record.ToDocument()); err != nil {
		return Result{}, err
	}
	if err := r.applyCounters(tx, kind, subjectUserID, targetID, 1); err != nil {
		return Result{}, err
	}
	return Result{Changed: true, NowPresent: true}, nil
}

func (r *Registry) applyCounters(tx *store.Txn, kind Kind, subjectUserID, targetID string, delta int64) error {
	if err := kind.TargetCounter.Apply(tx, targetID, delta); err != nil {
		return err
	}
	if err := kind.SubjectCounter.Apply(tx, subjectUserID, delta); err != nil {
		return notFoundAs(err, kind.SubjectCounter.Collection, subjectUserID)
	}
	return nil
}

// Verify reports whether the association exists. No side effects.
func (r *Registry) Verify(ctx context.Context, kind Kind, subjectUserID, targetID string) (bool, error) {
	return r.store.Collection(kind.Collection).Exists(ctx, domain.AssociationKey(subjectUserID, targetID))
}

// Get returns the association record.
func (r *Registry) Get(ctx context.Context, kind Kind, subjectUserID, targetID string) (*domain.Association, error) {
	key := domain.AssociationKey(subjectUserID, targetID)
	snap, err := r.store.Collection(kind.Collection).Get(ctx, key)
	if err != nil {
		return nil, notFoundAs(err, kind.Collection, key)
	}
	return domain.AssociationFromSnapshot(snap), nil
}

// Count reads the denormalized target counter.
func (r *Registry) Count(ctx context.Context, kind Kind, targetID string) (int64, error) {
	return kind.TargetCounter.Get(ctx, r.store, targetID)
}

// RecountTarget rebuilds the target counter from the number of association
// records pointing at targetID and returns the correction applied.
func (r *Registry) RecountTarget(ctx context.Context, kind Kind, targetID string) (int64, error) {
	return r.recount(ctx, kind, kind.TargetCounter, domain.FieldTargetID, targetID)
}

// RecountSubject rebuilds the subject counter (e.g. followingCount) of subjectUserID.
func (r *Registry) RecountSubject(ctx context.Context, kind Kind, subjectUserID string) (int64, error) {
	if kind.SubjectCounter.IsZero() {
		return 0, domainerrors.Validationf("%s has no subject counter", kind.Name)
	}
	return r.recount(ctx, kind, kind.SubjectCounter, domain.FieldSubjectID, subjectUserID)
}

func (r *Registry) recount(ctx context.Context, kind Kind, counter Counter, field, docID string) (int64, error) {
	var delta int64
	err := r.store.RunTransaction(ctx, func(tx *store.Txn) error {
		records, err := r.store.Collection(kind.Collection).Query().
			Where(field, store.OpEqual, docID).
			DocumentsTx(ctx, tx)
		if err != nil {
			return err
		}
		delta, err = counter.Reconcile(tx, docID, int64(len(records)))
		return err
	})
	if err != nil {
		return 0, err
	}

	if delta != 0 {
		r.logger.Warn("counter drift repaired",
			"kind", kind.Name,
			"collection", counter.Collection,
			"field", counter.Field,
			"doc_id", docID,
			"delta", delta,
		)
	}
	return delta, nil
}

func (r *Registry) logResult(kind Kind, subjectUserID, targetID, op string, res Result) {
	r.logger.Debug("association applied",
		"kind", kind.Name,
		"op", op,
		"subject_id", subjectUserID,
		"target_id", targetID,
		"changed", res.Changed,
		"present", res.NowPresent,
	)
}

func checkIDs(kind Kind, subjectUserID, targetID string) error {
	if subjectUserID == "" || targetID == "" {
		return domainerrors.Validation(fmt.Sprintf("%s requires subject and target ids", kind.Name))
	}
	if !kind.AllowSelf && subjectUserID == targetID {
		return domainerrors.Validationf("%s: subject and target must differ", kind.Name)
	}
	return nil
}
