package store

import (
	"errors"
	"fmt"
	"maps"

	"github.com/dgraph-io/badger/v4"
)

// Writer is the write surface shared by transactions and batches, so that
// components can queue their writes on whichever unit of atomicity the caller owns.
type Writer interface {
	Create(collection, id string, doc Document) error
	Set(collection, id string, doc Document) error
	Update(collection, id string, fields Document) error
	Delete(collection, id string) error
	Increment(collection, id, field string, delta int64) error
}

// Txn is a read-write view of the store bound to one Badger transaction.
type Txn struct {
	store    *Store
	txn      *badger.Txn
	readOnly bool
}

var _ Writer = (*Txn)(nil)

// Get reads a document. Returns ErrNotFound if it does not exist.
func (tx *Txn) Get(collection, id string) (*Snapshot, error) {
	item, err := tx.txn.Get(docKey(collection, id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound.WithMessage(fmt.Sprintf("%s/%s not found", collection, id))
	}
	if err != nil {
		return nil, unavailable("failed to get document", err)
	}

	var doc Document
	err = item.Value(func(val []byte) error {
		var decodeErr error
		doc, decodeErr = decodeDocument(val)
		return decodeErr
	})
	if err != nil {
		return nil, err
	}

	return &Snapshot{ID: id, Data: doc}, nil
}

// Exists reports whether a document exists. The read is tracked for conflicts.
func (tx *Txn) Exists(collection, id string) (bool, error) {
	_, err := tx.txn.Get(docKey(collection, id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, unavailable("failed to check document", err)
	}
	return true, nil
}

// Create writes a new document. Returns ErrAlreadyExists if the key is taken.
func (tx *Txn) Create(collection, id string, doc Document) error {
	exists, err := tx.Exists(collection, id)
	if err != nil {
		return err
	}
	if exists {
		return ErrAlreadyExists.WithMessage(fmt.Sprintf("%s/%s already exists", collection, id))
	}
	return tx.put(collection, id, nil, doc)
}

// Set writes a document, replacing any existing one.
func (tx *Txn) Set(collection, id string, doc Document) error {
	prev, err := tx.indexedPrev(collection, id)
	if err != nil {
		return err
	}
	return tx.put(collection, id, prev, doc)
}

// Update merges fields into an existing document. Returns ErrNotFound if absent.
// A nil field value removes the field.
func (tx *Txn) Update(collection, id string, fields Document) error {
	snap, err := tx.Get(collection, id)
	if err != nil {
		return err
	}

	var prev Document
	if len(tx.store.indexedFields(collection)) > 0 {
		prev = maps.Clone(snap.Data)
	}
	for k, v := range fields {
		if v == nil {
			delete(snap.Data, k)
			continue
		}
		snap.Data[k] = v
	}

	return tx.put(collection, id, prev, snap.Data)
}

// Delete removes a document. Deleting a missing document is not an error.
func (tx *Txn) Delete(collection, id string) error {
	if tx.readOnly {
		return errReadOnly
	}
	prev, err := tx.indexedPrev(collection, id)
	if err != nil {
		return err
	}
	if err := tx.reindex(collection, id, prev, nil); err != nil {
		return err
	}
	if err := tx.txn.Delete(docKey(collection, id)); err != nil {
		return txnWriteError(err)
	}
	return nil
}

// DeleteExisting removes a document only if it exists and reports whether it did.
func (tx *Txn) DeleteExisting(collection, id string) (bool, error) {
	exists, err := tx.Exists(collection, id)
	if err != nil || !exists {
		return false, err
	}
	return true, tx.Delete(collection, id)
}

// Increment atomically adds delta to an integer field of an existing document.
// A missing field counts as zero. Returns ErrNotFound if the document is absent.
// Integers are never indexed, so index entries are left as they are.
func (tx *Txn) Increment(collection, id, field string, delta int64) error {
	snap, err := tx.Get(collection, id)
	if err != nil {
		return err
	}

	snap.Data[field] = snap.Data.Int(field) + delta
	return tx.write(collection, id, snap.Data)
}

// put writes doc and moves the index entries over from prev, the document
// it replaces (nil when absent).
func (tx *Txn) put(collection, id string, prev, doc Document) error {
	if tx.readOnly {
		return errReadOnly
	}
	if err := tx.reindex(collection, id, prev, doc); err != nil {
		return err
	}
	return tx.write(collection, id, doc)
}

// indexedPrev reads the current document when the collection is indexed.
func (tx *Txn) indexedPrev(collection, id string) (Document, error) {
	if len(tx.store.indexedFields(collection)) == 0 {
		return nil, nil
	}
	snap, err := tx.Get(collection, id)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return snap.Data, nil
}

func (tx *Txn) write(collection, id string, doc Document) error {
	if tx.readOnly {
		return errReadOnly
	}
	data, err := encodeDocument(doc)
	if err != nil {
		return err
	}
	if err := tx.txn.Set(docKey(collection, id), data); err != nil {
		return txnWriteError(err)
	}
	return nil
}

var errReadOnly = errors.New("store: write in read-only transaction")

// txnWriteError classifies an error from staging a write.
func txnWriteError(err error) error {
	if errors.Is(err, badger.ErrTxnTooBig) {
		return ErrBatchTooLarge.WithCause(err)
	}
	return unavailable("failed to stage write", err)
}
