package store

import (
	"context"
	"fmt"
)

type batchOpKind int

const (
	opCreate batchOpKind = iota
	opSet
	opUpdate
	opDelete
	opIncrement
)

type batchOp struct {
	kind       batchOpKind
	collection string
	id         string
	doc        Document
	field      string
	delta      int64
}

// WriteBatch queues writes and commits them atomically: either every write
// is applied or none is. Preconditions (Create's absence check, Update's and
// Increment's existence check) are evaluated at commit time inside the
// transaction, so a failed precondition aborts the whole batch.
type WriteBatch struct {
	store *Store
	ops   []batchOp
}

var _ Writer = (*WriteBatch)(nil)

// Batch starts a new write batch.
func (s *Store) Batch() *WriteBatch {
	return &WriteBatch{store: s}
}

// Create queues a conditional create.
func (b *WriteBatch) Create(collection, id string, doc Document) error {
	return b.add(batchOp{kind: opCreate, collection: collection, id: id, doc: doc.Clone()})
}

// Set queues an overwrite.
func (b *WriteBatch) Set(collection, id string, doc Document) error {
	return b.add(batchOp{kind: opSet, collection: collection, id: id, doc: doc.Clone()})
}

// Update queues a field merge into an existing document.
func (b *WriteBatch) Update(collection, id string, fields Document) error {
	return b.add(batchOp{kind: opUpdate, collection: collection, id: id, doc: fields.Clone()})
}

// Delete queues a delete.
func (b *WriteBatch) Delete(collection, id string) error {
	return b.add(batchOp{kind: opDelete, collection: collection, id: id})
}

// Increment queues an atomic counter change.
func (b *WriteBatch) Increment(collection, id, field string, delta int64) error {
	return b.add(batchOp{kind: opIncrement, collection: collection, id: id, field: field, delta: delta})
}

// Len returns the number of queued writes.
func (b *WriteBatch) Len() int {
	return len(b.ops)
}

func (b *WriteBatch) add(op batchOp) error {
	if len(b.ops) >= MaxBatchOps {
		return ErrBatchTooLarge.WithMessage(fmt.Sprintf("batch exceeds %d writes", MaxBatchOps))
	}
	b.ops = append(b.ops, op)
	return nil
}

// Commit applies all queued writes in one transaction. An empty batch is a no-op.
func (b *WriteBatch) Commit(ctx context.Context) error {
	if len(b.ops) == 0 {
		return nil
	}
	return b.store.RunTransaction(ctx, func(tx *Txn) error {
		return b.apply(tx)
	})
}

func (b *WriteBatch) apply(tx *Txn) error {
	for _, op := range b.ops {
		var err error
		switch op.kind {
		case opCreate:
			err = tx.Create(op.collection, op.id, op.doc)
		case opSet:
			err = tx.Set(op.collection, op.id, op.doc)
		case opUpdate:
			err = tx.Update(op.collection, op.id, op.doc)
		case opDelete:
			err = tx.Delete(op.collection, op.id)
		case opIncrement:
			err = tx.Increment(op.collection, op.id, op.field, op.delta)
		}
		if err != nil {
			return err
		}
	}
	return nil
}
