package store

import (
	"context"
	"iter"

	"github.com/dgraph-io/badger/v4"
)

// Collection provides single-document operations on one named collection.
// Every method runs in its own transaction; use Store.RunTransaction or
// Store.Batch to group writes.
type Collection struct {
	store *Store
	name  string
}

// Name returns the collection name.
func (c *Collection) Name() string {
	return c.name
}

// Get retrieves a document by ID.
// Returns ErrNotFound if the document does not exist.
func (c *Collection) Get(ctx context.Context, docID string) (*Snapshot, error) {
	var snap *Snapshot
	err := c.store.view(ctx, func(tx *Txn) error {
		var err error
		snap, err = tx.Get(c.name, docID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return snap, nil
}

// Exists checks if a document exists.
func (c *Collection) Exists(ctx context.Context, docID string) (bool, error) {
	var exists bool
	err := c.store.view(ctx, func(tx *Txn) error {
		var err error
		exists, err = tx.Exists(c.name, docID)
		return err
	})
	return exists, err
}

// Create writes a new document, failing with ErrAlreadyExists if the ID is taken.
// The existence check and the write are one transaction, so concurrent creators
// of the same ID see exactly one success.
func (c *Collection) Create(ctx context.Context, docID string, doc Document) error {
	return c.store.RunTransaction(ctx, func(tx *Txn) error {
		return tx.Create(c.name, docID, doc)
	})
}

// Set writes a document, overwriting any existing one.
func (c *Collection) Set(ctx context.Context, docID string, doc Document) error {
	return c.store.RunTransaction(ctx, func(tx *Txn) error {
		return tx.Set(c.name, docID, doc)
	})
}

// Update merges fields into an existing document.
// Returns ErrNotFound if the document does not exist.
func (c *Collection) Update(ctx context.Context, docID string, fields Document) error {
	return c.store.RunTransaction(ctx, func(tx *Txn) error {
		return tx.Update(c.name, docID, fields)
	})
}

// Delete deletes a document by ID.
// This operation is idempotent - it does not return an error if the document does not exist.
func (c *Collection) Delete(ctx context.Context, docID string) error {
	return c.store.RunTransaction(ctx, func(tx *Txn) error {
		return tx.Delete(c.name, docID)
	})
}

// Increment atomically adds delta to an integer field.
func (c *Collection) Increment(ctx context.Context, docID, field string, delta int64) error {
	return c.store.RunTransaction(ctx, func(tx *Txn) error {
		return tx.Increment(c.name, docID, field, delta)
	})
}

// Query starts a query over the collection.
func (c *Collection) Query() *Query {
	return &Query{store: c.store, collection: c.name}
}

// All returns an iterator over every document in the collection, in key order.
func (c *Collection) All(ctx context.Context) iter.Seq2[*Snapshot, error] {
	return func(yield func(*Snapshot, error) bool) {
		prefix := collectionPrefix(c.name)

		err := c.store.view(ctx, func(tx *Txn) error {
			opts := badger.DefaultIteratorOptions
			opts.Prefix = prefix
			opts.PrefetchValues = true

			it := tx.txn.NewIterator(opts)
			defer it.Close()

			for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
				if err := ctx.Err(); err != nil {
					return err
				}

				item := it.Item()
				docID := idFromKey(item.Key(), prefix)

				var doc Document
				err := item.Value(func(val []byte) error {
					var decodeErr error
					doc, decodeErr = decodeDocument(val)
					return decodeErr
				})
				if err != nil {
					return err
				}

				if !yield(&Snapshot{ID: docID, Data: doc}, nil) {
					return errStopIteration
				}
			}
			return nil
		})

		if err != nil && err != errStopIteration {
			yield(nil, err)
		}
	}
}
