// Package tagindex maintains hashtags and their denormalized post counts.
package tagindex

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/Colorex-team/Colorex-System/internal/association"
	"github.com/Colorex-team/Colorex-System/internal/domain"
	domainerrors "github.com/Colorex-team/Colorex-System/internal/errors"
	"github.com/Colorex-team/Colorex-System/internal/id"
	"github.com/Colorex-team/Colorex-System/internal/logger"
	"github.com/Colorex-team/Colorex-System/internal/store"
)

// Popular tag limits.
const (
	DefaultPopularLimit = 10
	MaxPopularLimit     = 100
	// MaxNameLength bounds a normalized tag name in bytes.
	MaxNameLength = 64
)

var postCount = association.Counter{Collection: domain.CollectionHashtags, Field: domain.FieldPostCount}

// Delta is the symmetric difference between two tag sets.
type Delta struct {
	Added   []string
	Removed []string
}

// IsEmpty reports whether the sets were equal.
func (d Delta) IsEmpty() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0
}

// Diff computes Added = new − old and Removed = old − new.
// Duplicates and empty ids in either input are ignored.
func Diff(oldTagIDs, newTagIDs []string) Delta {
	oldSet := toSet(oldTagIDs)
	newSet := toSet(newTagIDs)

	var d Delta
	for _, tagID := range dedupe(newTagIDs) {
		if !oldSet[tagID] {
			d.Added = append(d.Added, tagID)
		}
	}
	for _, tagID := range dedupe(oldTagIDs) {
		if !newSet[tagID] {
			d.Removed = append(d.Removed, tagID)
		}
	}
	return d
}

// Maintainer keeps TagRef.PostCount equal to the number of live posts using the tag.
type Maintainer struct {
	store  *store.Store
	logger *slog.Logger
	now    func() time.Time
}

// New creates a tag index maintainer.
func New(s *store.Store, log *slog.Logger) *Maintainer {
	return &Maintainer{
		store:  s,
		logger: logger.OrDiscard(log),
		now:    time.Now,
	}
}

// Reconcile queues +1 on every added tag and −1 on every removed tag onto w,
// which must be the batch or transaction that also writes the content item.
// A referenced tag that does not exist aborts the whole write with NotFound.
func (m *Maintainer) Reconcile(w store.Writer, oldTagIDs, newTagIDs []string) (Delta, error) {
	d := Diff(oldTagIDs, newTagIDs)
	for _, tagID := range d.Added {
		if err := postCount.Apply(w, tagID, 1); err != nil {
			return Delta{}, err
		}
	}
	for _, tagID := range d.Removed {
		if err := postCount.Apply(w, tagID, -1); err != nil {
			return Delta{}, err
		}
	}
	return d, nil
}

// CreateTag inserts a tag with postCount 0.
// Returns Conflict if a tag with the same normalized name exists.
//
// The tag and a guard document keyed by the normalized name are created in
// one batch, so two concurrent creations of the same name cannot both succeed.
func (m *Maintainer) CreateTag(ctx context.Context, name string) (*domain.TagRef, error) {
	normalized, err := normalize(name)
	if err != nil {
		return nil, err
	}

	tag := &domain.TagRef{
		ID:             id.MustGenerate(id.PrefixTag),
		Name:           displayName(name),
		NormalizedName: normalized,
		PostCount:      0,
		CreatedAt:      m.now(),
	}

	b := m.store.Batch()
	if err := b.Create(domain.CollectionHashtagNames, normalized, store.Document{domain.FieldTagID: tag.ID}); err != nil {
		return nil, err
	}
	if err := b.Create(domain.CollectionHashtags, tag.ID, tag.ToDocument()); err != nil {
		return nil, err
	}

	if err := b.Commit(ctx); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return nil, domainerrors.Conflictf("tag %q already exists", normalized)
		}
		return nil, err
	}

	m.logger.Info("tag created", "tag_id", tag.ID, "name", tag.NormalizedName)
	return tag, nil
}

// FindByName looks a tag up by the normalized form of name.
func (m *Maintainer) FindByName(ctx context.Context, name string) (*domain.TagRef, error) {
	normalized, err := normalize(name)
	if err != nil {
		return nil, err
	}

	docs, err := m.store.Collection(domain.CollectionHashtags).Query().
		Where(domain.FieldNormalizedName, store.OpEqual, normalized).
		Limit(1).
		Documents(ctx)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, domainerrors.NotFoundf("tag %q not found", normalized)
	}
	return domain.TagRefFromSnapshot(docs[0]), nil
}

// Get returns a tag by ID.
func (m *Maintainer) Get(ctx context.Context, tagID string) (*domain.TagRef, error) {
	snap, err := m.store.Collection(domain.CollectionHashtags).Get(ctx, tagID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, domainerrors.NotFoundf("tag %s not found", tagID)
		}
		return nil, err
	}
	return domain.TagRefFromSnapshot(snap), nil
}

// FindOrCreate returns the tag named name, creating it when missing.
// A concurrent creator winning the race is resolved by reading its tag.
func (m *Maintainer) FindOrCreate(ctx context.Context, name string) (*domain.TagRef, error) {
	tag, err := m.FindByName(ctx, name)
	if err == nil {
		return tag, nil
	}
	if !errors.Is(err, domainerrors.ErrNotFound) {
		return nil, err
	}

	tag, err = m.CreateTag(ctx, name)
	if errors.Is(err, domainerrors.ErrConflict) {
		return m.FindByName(ctx, name)
	}
	return tag, err
}

// Resolve maps tag names to tags, creating missing ones. Names that
// normalize to the same key resolve once; order follows first appearance.
func (m *Maintainer) Resolve(ctx context.Context, names []string) ([]*domain.TagRef, error) {
	seen := make(map[string]bool, len(names))
	tags := make([]*domain.TagRef, 0, len(names))
	for _, name := range names {
		normalized, err := normalize(name)
		if err != nil {
			return nil, err
		}
		if seen[normalized] {
			continue
		}
		seen[normalized] = true

		tag, err := m.FindOrCreate(ctx, name)
		if err != nil {
			return nil, err
		}
		tags = append(tags, tag)
	}
	return tags, nil
}

// PopularTags returns tags ordered by post count, highest first.
func (m *Maintainer) PopularTags(ctx context.Context, limit int) ([]*domain.TagRef, error) {
	if limit <= 0 {
		limit = DefaultPopularLimit
	}
	limit = min(limit, MaxPopularLimit)

	docs, err := m.store.Collection(domain.CollectionHashtags).Query().
		OrderBy(domain.FieldPostCount, store.Desc).
		Limit(limit).
		Documents(ctx)
	if err != nil {
		return nil, err
	}

	tags := make([]*domain.TagRef, len(docs))
	for i, doc := range docs {
		tags[i] = domain.TagRefFromSnapshot(doc)
	}
	return tags, nil
}

// Recount rebuilds a tag's post count from the posts referencing it and
// returns the correction applied.
func (m *Maintainer) Recount(ctx context.Context, tagID string) (int64, error) {
	var delta int64
	err := m.store.RunTransaction(ctx, func(tx *store.Txn) error {
		posts, err := m.store.Collection(domain.CollectionPosts).Query().
			Where(domain.FieldTagIDs, store.OpArrayContains, tagID).
			DocumentsTx(ctx, tx)
		if err != nil {
			return err
		}
		delta, err = postCount.Reconcile(tx, tagID, int64(len(posts)))
		return err
	})
	if err != nil {
		return 0, err
	}

	if delta != 0 {
		m.logger.Warn("tag post count repaired", "tag_id", tagID, "delta", delta)
	}
	return delta, nil
}

// AllTagIDs lists every tag ID.
func (m *Maintainer) AllTagIDs(ctx context.Context) ([]string, error) {
	var ids []string
	for snap, err := range m.store.Collection(domain.CollectionHashtags).All(ctx) {
		if err != nil {
			return nil, err
		}
		ids = append(ids, snap.ID)
	}
	return ids, nil
}

func normalize(name string) (string, error) {
	normalized := domain.NormalizeTagName(name)
	if normalized == "" {
		return "", domainerrors.Validation("tag name is empty")
	}
	if len(normalized) > MaxNameLength {
		return "", domainerrors.Validationf("tag name exceeds %d bytes", MaxNameLength)
	}
	return normalized, nil
}

// displayName keeps the caller's casing but drops surrounding space and '#'.
func displayName(name string) string {
	return strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(name), "#"))
}

func toSet(ids []string) map[string]bool {
	set := make(map[string]bool, len(ids))
	for _, tagID := range ids {
		if tagID != "" {
			set[tagID] = true
		}
	}
	return set
}

func dedupe(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, tagID := range ids {
		if tagID != "" && !slices.Contains(out, tagID) {
			out = append(out, tagID)
		}
	}
	return out
}
