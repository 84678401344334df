package association

import (
	"context"
	"errors"

	domainerrors "github.com/Colorex-team/Colorex-System/internal/errors"
	"github.com/Colorex-team/Colorex-System/internal/store"
)

// Counter names a denormalized counter field on the documents of one collection.
// Counters only ever change through the store's increment primitive.
type Counter struct {
	Collection string
	Field      string
}

// IsZero reports whether c names no counter.
func (c Counter) IsZero() bool {
	return c.Field == ""
}

// Apply queues delta on the counter of docID. It must share the writer of the
// association mutation it accounts for, so both commit together or not at all.
func (c Counter) Apply(w store.Writer, docID string, delta int64) error {
	if c.IsZero() || delta == 0 {
		return nil
	}
	return w.Increment(c.Collection, docID, c.Field, delta)
}

// Get reads the counter of docID. A document that predates the field reads as 0.
func (c Counter) Get(ctx context.Context, s *store.Store, docID string) (int64, error) {
	snap, err := s.Collection(c.Collection).Get(ctx, docID)
	if err != nil {
		return 0, notFoundAs(err, c.Collection, docID)
	}
	return snap.Data.Int(c.Field), nil
}

// Reconcile moves the stored counter of docID to actual inside tx and returns
// the correction applied. The correction itself goes through Increment, so a
// concurrent toggle committed first is detected as a conflict and tx is rerun.
func (c Counter) Reconcile(tx *store.Txn, docID string, actual int64) (int64, error) {
	snap, err := tx.Get(c.Collection, docID)
	if err != nil {
		return 0, notFoundAs(err, c.Collection, docID)
	}
	delta := actual - snap.Data.Int(c.Field)
	if delta == 0 {
		return 0, nil
	}
	return delta, tx.Increment(c.Collection, docID, c.Field, delta)
}

// notFoundAs rewrites a store not-found into a message naming the document.
func notFoundAs(err error, collection, docID string) error {
	if errors.Is(err, store.ErrNotFound) {
		return domainerrors.NotFoundf("%s %s not found", collection, docID)
	}
	return err
}
